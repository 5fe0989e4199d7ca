// Package scheduler expands the task catalog into calendar occurrences.
package scheduler

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dukerupert/cleanhome/internal/catalog"
	"github.com/dukerupert/cleanhome/internal/metrics"
	"github.com/dukerupert/cleanhome/internal/model"
	"github.com/dukerupert/cleanhome/internal/recurrence"
)

// TaskLister returns the visible catalog.
type TaskLister interface {
	ListTasks() ([]model.Task, error)
}

// Occurrence is one due date of one task. It is derived, never stored.
type Occurrence struct {
	TaskID           int64     `json:"task_id"`
	Date             time.Time `json:"date"`
	TaskName         string    `json:"task_name"`
	Zone             string    `json:"zone"`
	Frequency        string    `json:"frequency"`
	EstimatedMinutes *int      `json:"estimated_minutes,omitempty"`
}

// SkippedTask is a task left out of a month because its frequency did not
// parse.
type SkippedTask struct {
	TaskID int64  `json:"task_id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type Scheduler struct {
	tasks   TaskLister
	anchors recurrence.Anchors
	logger  *slog.Logger
}

func New(tasks TaskLister, anchors recurrence.Anchors, logger *slog.Logger) *Scheduler {
	return &Scheduler{tasks: tasks, anchors: anchors, logger: logger}
}

func (s *Scheduler) Anchors() recurrence.Anchors {
	return s.anchors
}

// Month expands every task over the given month. Tasks with an invalid
// frequency are skipped and reported in Month.Skipped; the rest of the
// month is still produced. Nothing is cached.
func (s *Scheduler) Month(year int, month time.Month) (*Month, error) {
	started := time.Now()
	defer func() { metrics.MonthExpansionDuration.Observe(time.Since(started).Seconds()) }()

	tasks, err := s.tasks.ListTasks()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	m := &Month{Year: first.Year(), Month: first.Month(), Occurrences: []Occurrence{}}
	for _, t := range tasks {
		dates, err := recurrence.Occurrences(t.Frequency, s.anchors, first, last)
		if err != nil {
			s.logger.Warn("skipping task with invalid frequency", "task_id", t.ID, "frequency", t.Frequency, "error", err)
			metrics.SkippedTasks.Inc()
			m.Skipped = append(m.Skipped, SkippedTask{TaskID: t.ID, Name: t.Name, Reason: err.Error()})
			continue
		}
		for _, d := range dates {
			m.Occurrences = append(m.Occurrences, Occurrence{
				TaskID:           t.ID,
				Date:             d,
				TaskName:         t.Name,
				Zone:             t.Zone,
				Frequency:        t.Frequency,
				EstimatedMinutes: t.EstimatedMinutes,
			})
		}
	}

	sort.SliceStable(m.Occurrences, func(i, j int) bool {
		a, b := m.Occurrences[i], m.Occurrences[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.TaskID < b.TaskID
	})
	return m, nil
}

// DueOn returns the occurrences falling on date.
func (s *Scheduler) DueOn(date time.Time) ([]Occurrence, error) {
	m, err := s.Month(date.Year(), date.Month())
	if err != nil {
		return nil, err
	}
	return m.On(date), nil
}

// Month is the expansion of one calendar month.
type Month struct {
	Year        int           `json:"year"`
	Month       time.Month    `json:"month"`
	Occurrences []Occurrence  `json:"occurrences"`
	Skipped     []SkippedTask `json:"skipped,omitempty"`
}

// On filters the month's occurrences to date. Dates outside the month
// yield nothing.
func (m *Month) On(date time.Time) []Occurrence {
	d := model.Day(date)
	out := []Occurrence{}
	for _, o := range m.Occurrences {
		if o.Date.Equal(d) {
			out = append(out, o)
		}
	}
	return out
}

// Prev returns the year and month before m.
func (m *Month) Prev() (int, time.Month) {
	t := time.Date(m.Year, m.Month-1, 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// Next returns the year and month after m.
func (m *Month) Next() (int, time.Month) {
	t := time.Date(m.Year, m.Month+1, 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// ByDay groups the occurrences per date, keyed YYYY-MM-DD.
func (m *Month) ByDay() map[string][]Occurrence {
	out := make(map[string][]Occurrence)
	for _, o := range m.Occurrences {
		key := o.Date.Format(model.DateLayout)
		out[key] = append(out[key], o)
	}
	return out
}

// FilterZones keeps the occurrences whose zone belongs to a home template
// (see catalog.Templates). Unknown templates and "all" keep everything.
func FilterZones(occs []Occurrence, template string) []Occurrence {
	zones, ok := catalog.ZonesFor(template)
	if !ok || len(zones) == 0 {
		return occs
	}
	allowed := make(map[string]bool, len(zones))
	for _, z := range zones {
		allowed[z] = true
	}
	out := []Occurrence{}
	for _, o := range occs {
		if allowed[o.Zone] {
			out = append(out, o)
		}
	}
	return out
}
