package gamification

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/cleanhome/internal/model"
)

type Condition string

const (
	ConditionTasks  Condition = "tasks"
	ConditionPoints Condition = "points"
	ConditionStreak Condition = "streak"
)

type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Condition   Condition `json:"condition"`
	Threshold   int       `json:"threshold"`
}

// Badges ids are persisted; never rename one.
var Badges = []Badge{
	{ID: "first-task", Name: "First Step", Description: "Complete your first task", Icon: "🎯", Condition: ConditionTasks, Threshold: 1},
	{ID: "tasks-10", Name: "Getting Started", Description: "Complete 10 tasks", Icon: "🧹", Condition: ConditionTasks, Threshold: 10},
	{ID: "tasks-50", Name: "Regular", Description: "Complete 50 tasks", Icon: "🏠", Condition: ConditionTasks, Threshold: 50},
	{ID: "tasks-100", Name: "Centurion", Description: "Complete 100 tasks", Icon: "💯", Condition: ConditionTasks, Threshold: 100},
	{ID: "points-100", Name: "Point Collector", Description: "Earn 100 points", Icon: "⭐", Condition: ConditionPoints, Threshold: 100},
	{ID: "points-500", Name: "High Scorer", Description: "Earn 500 points", Icon: "🌟", Condition: ConditionPoints, Threshold: 500},
	{ID: "points-1000", Name: "Point Master", Description: "Earn 1000 points", Icon: "🏆", Condition: ConditionPoints, Threshold: 1000},
	{ID: "streak-3", Name: "On a Roll", Description: "Complete tasks 3 days in a row", Icon: "🔥", Condition: ConditionStreak, Threshold: 3},
	{ID: "streak-7", Name: "Week Warrior", Description: "Complete tasks 7 days in a row", Icon: "⚡", Condition: ConditionStreak, Threshold: 7},
	{ID: "streak-30", Name: "Unstoppable", Description: "Complete tasks 30 days in a row", Icon: "🚀", Condition: ConditionStreak, Threshold: 30},
}

func BadgeByID(id string) (Badge, bool) {
	for _, b := range Badges {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// BadgeUnlocked reports whether stats meet the badge's condition right now.
// Use a Tracker to keep unlocks permanent.
func BadgeUnlocked(b Badge, s Stats) bool {
	switch b.Condition {
	case ConditionTasks:
		return s.TotalTasks >= b.Threshold
	case ConditionPoints:
		return s.TotalPoints >= b.Threshold
	case ConditionStreak:
		return s.CurrentStreak >= b.Threshold
	}
	return false
}

// UnlockStore persists unlocked badge ids.
type UnlockStore interface {
	ListUnlocked() ([]model.UnlockedBadge, error)
	Unlock(badgeID string, at time.Time) error
}

// Tracker holds the monotonic set of unlocked badges: a badge, once
// unlocked, stays unlocked whatever later stats say.
type Tracker struct {
	mu       sync.Mutex
	store    UnlockStore
	unlocked map[string]time.Time
	now      func() time.Time
}

// NewTracker loads previously unlocked badges from store. A nil store keeps
// the set in memory only.
func NewTracker(store UnlockStore) (*Tracker, error) {
	t := &Tracker{store: store, unlocked: make(map[string]time.Time), now: time.Now}
	if store == nil {
		return t, nil
	}
	saved, err := store.ListUnlocked()
	if err != nil {
		return nil, fmt.Errorf("load unlocked badges: %w", err)
	}
	for _, b := range saved {
		t.unlocked[b.BadgeID] = b.UnlockedAt
	}
	return t, nil
}

// Evaluate unlocks every badge whose condition stats meet and returns the
// ones that were not unlocked before.
func (t *Tracker) Evaluate(stats Stats) ([]Badge, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var fresh []Badge
	for _, b := range Badges {
		if _, ok := t.unlocked[b.ID]; ok || !BadgeUnlocked(b, stats) {
			continue
		}
		at := t.now().UTC()
		if t.store != nil {
			if err := t.store.Unlock(b.ID, at); err != nil {
				return fresh, err
			}
		}
		t.unlocked[b.ID] = at
		fresh = append(fresh, b)
	}
	return fresh, nil
}

func (t *Tracker) IsUnlocked(badgeID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.unlocked[badgeID]
	return ok
}

// Unlocked lists unlocked badges in unlock order.
func (t *Tracker) Unlocked() []model.UnlockedBadge {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.UnlockedBadge, 0, len(t.unlocked))
	for id, at := range t.unlocked {
		out = append(out, model.UnlockedBadge{BadgeID: id, UnlockedAt: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].UnlockedAt.Before(out[j].UnlockedAt)
		}
		return out[i].BadgeID < out[j].BadgeID
	})
	return out
}
