package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/cleanhome/internal/catalog"
	"github.com/dukerupert/cleanhome/internal/scheduler"
)

type ScheduleHandler struct {
	scheduler *scheduler.Scheduler
	done      scheduler.CompletionChecker
	now       func() time.Time
	logger    *slog.Logger
}

func NewScheduleHandler(s *scheduler.Scheduler, done scheduler.CompletionChecker, now func() time.Time, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{scheduler: s, done: done, now: now, logger: logger}
}

type monthRef struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

type monthResponse struct {
	Year        int                              `json:"year"`
	Month       time.Month                       `json:"month"`
	Occurrences []scheduler.OccurrenceWithStatus `json:"occurrences"`
	Skipped     []scheduler.SkippedTask          `json:"skipped"`
	Prev        monthRef                         `json:"prev"`
	Next        monthRef                         `json:"next"`
}

// Month handles GET /api/schedule/{year}/{month}?template=
func (h *ScheduleHandler) Month(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r.PathValue("year"), r.PathValue("month"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	template := r.URL.Query().Get("template")
	if _, ok := catalog.ZonesFor(template); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown template"})
		return
	}

	m, err := h.scheduler.Month(year, month)
	if err != nil {
		writeError(w, h.logger, err, "failed to build schedule")
		return
	}

	occs := scheduler.FilterZones(m.Occurrences, template)
	py, pm := m.Prev()
	ny, nm := m.Next()
	skipped := m.Skipped
	if skipped == nil {
		skipped = []scheduler.SkippedTask{}
	}
	writeJSON(w, http.StatusOK, monthResponse{
		Year:        m.Year,
		Month:       m.Month,
		Occurrences: scheduler.Annotate(occs, h.done, h.now()),
		Skipped:     skipped,
		Prev:        monthRef{Year: py, Month: pm},
		Next:        monthRef{Year: ny, Month: nm},
	})
}

// Due handles GET /api/schedule/due?date=YYYY-MM-DD&template=. The date
// defaults to today.
func (h *ScheduleHandler) Due(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"), h.now)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}
	template := r.URL.Query().Get("template")
	if _, ok := catalog.ZonesFor(template); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown template"})
		return
	}

	occs, err := h.scheduler.DueOn(date)
	if err != nil {
		writeError(w, h.logger, err, "failed to build schedule")
		return
	}
	occs = scheduler.FilterZones(occs, template)
	writeJSON(w, http.StatusOK, scheduler.Annotate(occs, h.done, h.now()))
}

func parseYearMonth(ys, ms string) (int, time.Month, error) {
	year, err := strconv.Atoi(ys)
	if err != nil || year < 1 || year > 9999 {
		return 0, 0, fmt.Errorf("invalid year %q", ys)
	}
	month, err := strconv.Atoi(ms)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month %q", ms)
	}
	return year, time.Month(month), nil
}
