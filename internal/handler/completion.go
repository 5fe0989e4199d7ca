package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/cleanhome/internal/gamification"
	"github.com/dukerupert/cleanhome/internal/ledger"
	"github.com/dukerupert/cleanhome/internal/model"
)

// MemberLookup checks actor ids on toggles.
type MemberLookup interface {
	Get(id string) (*model.FamilyMember, error)
}

type CompletionHandler struct {
	ledger  *ledger.Ledger
	tracker *gamification.Tracker
	members MemberLookup
	now     func() time.Time
	logger  *slog.Logger
}

func NewCompletionHandler(l *ledger.Ledger, tracker *gamification.Tracker, members MemberLookup, now func() time.Time, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{ledger: l, tracker: tracker, members: members, now: now, logger: logger}
}

type toggleRequest struct {
	TaskID   int64   `json:"task_id"`
	Date     string  `json:"date"`
	MemberID *string `json:"member_id"`
}

type toggleResponse struct {
	ledger.ToggleResult
	Stats     gamification.Stats   `json:"stats"`
	NewBadges []gamification.Badge `json:"new_badges"`
}

// Toggle handles POST /api/completions/toggle.
func (h *CompletionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	date, err := parseDate(req.Date, h.now)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	if req.MemberID != nil && *req.MemberID != "" {
		if _, err := h.members.Get(*req.MemberID); err != nil {
			writeError(w, h.logger, err, "failed to check family member")
			return
		}
	} else {
		req.MemberID = nil
	}

	res, err := h.ledger.Toggle(req.TaskID, date, req.MemberID)
	if err != nil {
		writeError(w, h.logger, err, "failed to toggle completion")
		return
	}

	stats := h.ledger.Stats(h.now())
	fresh, err := h.tracker.Evaluate(stats)
	if err != nil {
		h.logger.Error("evaluate badges", "error", err)
	}
	if fresh == nil {
		fresh = []gamification.Badge{}
	}

	writeJSON(w, http.StatusOK, toggleResponse{ToggleResult: res, Stats: stats, NewBadges: fresh})
}

// List handles GET /api/completions?from=&to=. Without a range the whole
// history is returned.
func (h *CompletionHandler) List(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" && to == "" {
		writeJSON(w, http.StatusOK, nonNil(h.ledger.Records()))
		return
	}

	start, err := model.ParseDay(from)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from must be YYYY-MM-DD"})
		return
	}
	end, err := model.ParseDay(to)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to must be YYYY-MM-DD"})
		return
	}
	if end.Before(start) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to must not be before from"})
		return
	}
	writeJSON(w, http.StatusOK, nonNil(h.ledger.RecordsInRange(start, end)))
}

type statsResponse struct {
	gamification.Stats
	Level      gamification.Level  `json:"level"`
	NextLevel  *gamification.Level `json:"next_level,omitempty"`
	Progress   float64             `json:"progress"`
	Last7Days  []ledger.DayCount   `json:"last_7_days"`
	WeekPoints int                 `json:"week_points"`
}

// Stats handles GET /api/stats.
func (h *CompletionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	today := model.Day(h.now())
	stats := h.ledger.Stats(today)

	resp := statsResponse{
		Stats:     stats,
		Level:     gamification.LevelFor(stats.TotalPoints),
		Progress:  gamification.ProgressToNextLevel(stats.TotalPoints),
		Last7Days: h.ledger.DailyCounts(today, 7),
	}
	if next, ok := gamification.NextLevel(stats.TotalPoints); ok {
		resp.NextLevel = &next
	}
	for _, rec := range h.ledger.RecordsInRange(gamification.WeekStart(today), today) {
		resp.WeekPoints += rec.Points
	}
	writeJSON(w, http.StatusOK, resp)
}

func nonNil(records []model.CompletionRecord) []model.CompletionRecord {
	if records == nil {
		return []model.CompletionRecord{}
	}
	return records
}
