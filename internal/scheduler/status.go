package scheduler

import (
	"time"

	"github.com/dukerupert/cleanhome/internal/model"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusOverdue   Status = "overdue"
	StatusUpcoming  Status = "upcoming"
)

// CompletionChecker reports whether a task is done for a date.
type CompletionChecker interface {
	IsCompleted(taskID int64, date time.Time) bool
}

type OccurrenceWithStatus struct {
	Occurrence
	Status Status `json:"status"`
}

// StatusOf classifies an occurrence relative to today: completed when done,
// otherwise overdue before today, pending on today and upcoming after.
func StatusOf(date time.Time, done bool, today time.Time) Status {
	if done {
		return StatusCompleted
	}
	d, t := model.Day(date), model.Day(today)
	switch {
	case d.Before(t):
		return StatusOverdue
	case d.Equal(t):
		return StatusPending
	}
	return StatusUpcoming
}

// Annotate attaches a status to every occurrence of the month.
func (m *Month) Annotate(done CompletionChecker, today time.Time) []OccurrenceWithStatus {
	return Annotate(m.Occurrences, done, today)
}

func Annotate(occs []Occurrence, done CompletionChecker, today time.Time) []OccurrenceWithStatus {
	out := make([]OccurrenceWithStatus, len(occs))
	for i, o := range occs {
		out[i] = OccurrenceWithStatus{
			Occurrence: o,
			Status:     StatusOf(o.Date, done.IsCompleted(o.TaskID, o.Date), today),
		}
	}
	return out
}
