package gamification

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/dukerupert/cleanhome/internal/model"
)

type ChallengeKind string

const (
	KindCompleteTasks ChallengeKind = "complete"
	KindPoints        ChallengeKind = "points"
	KindDailyStreak   ChallengeKind = "daily-streak"
)

type Challenge struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Kind        ChallengeKind `json:"kind"`
	Target      int           `json:"target"`
	Reward      int           `json:"reward"`
}

// ChallengeTemplates ids are persisted per week; never rename one.
var ChallengeTemplates = []Challenge{
	{ID: "complete-10", Name: "Busy Week", Description: "Complete 10 tasks this week", Icon: "✅", Kind: KindCompleteTasks, Target: 10, Reward: 50},
	{ID: "complete-20", Name: "Productive Week", Description: "Complete 20 tasks this week", Icon: "📋", Kind: KindCompleteTasks, Target: 20, Reward: 100},
	{ID: "complete-35", Name: "Cleaning Marathon", Description: "Complete 35 tasks this week", Icon: "🏃", Kind: KindCompleteTasks, Target: 35, Reward: 200},
	{ID: "points-100", Name: "Point Hunter", Description: "Earn 100 points this week", Icon: "💎", Kind: KindPoints, Target: 100, Reward: 50},
	{ID: "points-250", Name: "Point Hoarder", Description: "Earn 250 points this week", Icon: "💰", Kind: KindPoints, Target: 250, Reward: 120},
	{ID: "daily-streak-5", Name: "Five in a Row", Description: "Keep a 5 day streak", Icon: "🔥", Kind: KindDailyStreak, Target: 5, Reward: 75},
	{ID: "daily-streak-7", Name: "Perfect Week", Description: "Keep a 7 day streak", Icon: "🌈", Kind: KindDailyStreak, Target: 7, Reward: 150},
}

// ChallengesPerWeek is how many templates are drawn each week, at most one
// per kind.
const ChallengesPerWeek = 3

// WeekID is the ISO-8601 week key of t, e.g. "2024-W09".
func WeekID(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// WeekStart returns the Monday starting t's ISO week.
func WeekStart(t time.Time) time.Time {
	d := model.Day(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// WeekSeed is the PRNG seed of a week: the FNV-1a 64-bit hash of its id.
func WeekSeed(weekID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(weekID))
	return h.Sum64()
}

// WeeklyChallenges draws the challenges of a week. The draw is a
// Fisher-Yates shuffle of ChallengeTemplates driven by a PCG generator
// seeded with WeekSeed, keeping the first template of each kind, so the
// same weekID always yields the same set.
func WeeklyChallenges(weekID string) []Challenge {
	seed := WeekSeed(weekID)
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)

	order := make([]int, len(ChallengeTemplates))
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i > 0; i-- {
		j := int(src.Uint64() % uint64(i+1))
		order[i], order[j] = order[j], order[i]
	}

	used := make(map[ChallengeKind]bool)
	var out []Challenge
	for _, idx := range order {
		c := ChallengeTemplates[idx]
		if used[c.Kind] {
			continue
		}
		used[c.Kind] = true
		out = append(out, c)
		if len(out) == ChallengesPerWeek {
			break
		}
	}
	return out
}

// ChallengeStore persists the drawn template ids per week.
type ChallengeStore interface {
	GetWeek(weekID string) ([]string, error)
	SaveWeek(weekID string, ids []string) error
}

// ForWeek returns the stored challenges of weekID, drawing and storing
// them the first time the week is requested.
func ForWeek(store ChallengeStore, weekID string) ([]Challenge, error) {
	ids, err := store.GetWeek(weekID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		drawn := WeeklyChallenges(weekID)
		ids = make([]string, len(drawn))
		for i, c := range drawn {
			ids[i] = c.ID
		}
		if err := store.SaveWeek(weekID, ids); err != nil {
			return nil, err
		}
		return drawn, nil
	}

	out := make([]Challenge, 0, len(ids))
	for _, id := range ids {
		if c, ok := challengeByID(id); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func challengeByID(id string) (Challenge, bool) {
	for _, c := range ChallengeTemplates {
		if c.ID == id {
			return c, true
		}
	}
	return Challenge{}, false
}

type ChallengeProgress struct {
	Challenge
	Progress  int  `json:"progress"`
	Percent   int  `json:"percent"`
	Completed bool `json:"completed"`
}

// Progress measures a challenge against the week's completions and the
// current streak. Progress is capped at the target.
func Progress(c Challenge, weekRecords []model.CompletionRecord, streak int) ChallengeProgress {
	var p int
	switch c.Kind {
	case KindCompleteTasks:
		p = len(weekRecords)
	case KindPoints:
		for _, r := range weekRecords {
			p += r.Points
		}
	case KindDailyStreak:
		p = streak
	}
	if p > c.Target {
		p = c.Target
	}

	percent := 100
	if c.Target > 0 {
		percent = p * 100 / c.Target
	}
	return ChallengeProgress{
		Challenge: c,
		Progress:  p,
		Percent:   percent,
		Completed: p >= c.Target,
	}
}
