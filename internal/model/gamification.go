package model

import "time"

// UnlockedBadge records the moment a badge was first earned.
type UnlockedBadge struct {
	BadgeID    string    `json:"badge_id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}
