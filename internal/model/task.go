package model

import "time"

// DateLayout is the civil-date format used for occurrence and completion dates.
const DateLayout = "2006-01-02"

// CustomTaskIDBase is the first id handed out to user-defined tasks. System
// catalog ids stay below it.
const CustomTaskIDBase int64 = 100000

type Task struct {
	ID               int64     `json:"id" yaml:"id"`
	Name             string    `json:"name" yaml:"name"`
	Zone             string    `json:"zone" yaml:"zone"`
	Frequency        string    `json:"frequency" yaml:"frequency"`
	EstimatedMinutes *int      `json:"estimated_minutes,omitempty" yaml:"estimated_minutes"`
	Description      string    `json:"description,omitempty" yaml:"description"`
	IsCustom         bool      `json:"is_custom" yaml:"-"`
	CreatedAt        time.Time `json:"created_at,omitzero" yaml:"-"`
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a Day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
