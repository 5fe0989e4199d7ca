package model

import "time"

// CompletionRecord marks a task as done for one occurrence date.
type CompletionRecord struct {
	TaskID      int64     `json:"task_id"`
	Date        time.Time `json:"date"`
	CompletedAt time.Time `json:"completed_at"`
	ActorID     *string   `json:"actor_id,omitempty"`
	Points      int       `json:"points"`
}

// Key identifies the (task, date) pair a record belongs to.
func (r CompletionRecord) Key() CompletionKey {
	return CompletionKey{TaskID: r.TaskID, Date: Day(r.Date)}
}

type CompletionKey struct {
	TaskID int64
	Date   time.Time
}
