package model

import "time"

type FamilyMember struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	AvatarEmoji string    `json:"avatar_emoji"`
	HasPIN      bool      `json:"has_pin"`
	SortOrder   int       `json:"sort_order"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TaskAssignment struct {
	TaskID     int64     `json:"task_id"`
	MemberID   string    `json:"member_id"`
	AssignedAt time.Time `json:"assigned_at"`
}
