// Package gamification derives points, levels, badges and weekly challenge
// progress from completion history. Everything here except Tracker and
// ForWeek is a pure function of its arguments.
package gamification

const (
	basePoints      = 5
	minutesPerPoint = 5
	maxPoints       = 50
)

// Points is the reward for completing a task of the given duration: 5
// points plus one per started 5 minutes, capped at 50. Tasks without a
// duration earn the base 5.
func Points(minutes *int) int {
	if minutes == nil || *minutes <= 0 {
		return basePoints
	}
	p := basePoints + (*minutes+minutesPerPoint-1)/minutesPerPoint
	if p > maxPoints {
		p = maxPoints
	}
	return p
}

// Stats is the aggregate snapshot badges are evaluated against.
type Stats struct {
	TotalTasks    int `json:"total_tasks"`
	TotalPoints   int `json:"total_points"`
	CurrentStreak int `json:"current_streak"`
}

type Level struct {
	Number    int    `json:"number"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	MinPoints int    `json:"min_points"`
}

// Levels is ordered by MinPoints ascending.
var Levels = []Level{
	{Number: 1, Name: "Novice", Icon: "🌱", MinPoints: 0},
	{Number: 2, Name: "Helper", Icon: "🧽", MinPoints: 50},
	{Number: 3, Name: "Tidy", Icon: "🧹", MinPoints: 150},
	{Number: 4, Name: "Organized", Icon: "🧺", MinPoints: 300},
	{Number: 5, Name: "Spotless", Icon: "✨", MinPoints: 600},
	{Number: 6, Name: "Home Hero", Icon: "🦸", MinPoints: 1000},
	{Number: 7, Name: "Cleaning Master", Icon: "👑", MinPoints: 2000},
}

// LevelFor returns the level with the largest threshold not above totalPoints.
func LevelFor(totalPoints int) Level {
	current := Levels[0]
	for _, l := range Levels {
		if l.MinPoints > totalPoints {
			break
		}
		current = l
	}
	return current
}

// NextLevel returns the level after the one totalPoints reaches; ok is
// false at the top level.
func NextLevel(totalPoints int) (Level, bool) {
	for _, l := range Levels {
		if l.MinPoints > totalPoints {
			return l, true
		}
	}
	return Level{}, false
}

// ProgressToNextLevel is the position of totalPoints between the current
// and the next threshold, in [0, 1). It is 0 at the top level.
func ProgressToNextLevel(totalPoints int) float64 {
	next, ok := NextLevel(totalPoints)
	if !ok {
		return 0
	}
	current := LevelFor(totalPoints)
	if totalPoints < current.MinPoints {
		return 0
	}
	return float64(totalPoints-current.MinPoints) / float64(next.MinPoints-current.MinPoints)
}
