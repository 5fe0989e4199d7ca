package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/cleanhome/internal/gamification"
	"github.com/dukerupert/cleanhome/internal/ledger"
	"github.com/dukerupert/cleanhome/internal/model"
)

type GamificationHandler struct {
	ledger     *ledger.Ledger
	tracker    *gamification.Tracker
	challenges gamification.ChallengeStore
	now        func() time.Time
	logger     *slog.Logger
}

func NewGamificationHandler(l *ledger.Ledger, tracker *gamification.Tracker, challenges gamification.ChallengeStore, now func() time.Time, logger *slog.Logger) *GamificationHandler {
	return &GamificationHandler{ledger: l, tracker: tracker, challenges: challenges, now: now, logger: logger}
}

type badgeView struct {
	gamification.Badge
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Badges handles GET /api/badges.
func (h *GamificationHandler) Badges(w http.ResponseWriter, r *http.Request) {
	at := make(map[string]time.Time)
	for _, u := range h.tracker.Unlocked() {
		at[u.BadgeID] = u.UnlockedAt
	}

	out := make([]badgeView, len(gamification.Badges))
	for i, b := range gamification.Badges {
		out[i] = badgeView{Badge: b}
		if t, ok := at[b.ID]; ok {
			out[i].Unlocked = true
			out[i].UnlockedAt = &t
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *GamificationHandler) Levels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gamification.Levels)
}

type challengesResponse struct {
	WeekID     string                           `json:"week_id"`
	Challenges []gamification.ChallengeProgress `json:"challenges"`
}

// Challenges handles GET /api/challenges: the current week's challenges
// with progress.
func (h *GamificationHandler) Challenges(w http.ResponseWriter, r *http.Request) {
	today := model.Day(h.now())
	weekID := gamification.WeekID(today)

	challenges, err := gamification.ForWeek(h.challenges, weekID)
	if err != nil {
		writeError(w, h.logger, err, "failed to load challenges")
		return
	}

	weekRecords := h.ledger.RecordsInRange(gamification.WeekStart(today), today)
	streak := h.ledger.Streak(today)

	resp := challengesResponse{WeekID: weekID, Challenges: make([]gamification.ChallengeProgress, len(challenges))}
	for i, c := range challenges {
		resp.Challenges[i] = gamification.Progress(c, weekRecords, streak)
	}
	writeJSON(w, http.StatusOK, resp)
}
