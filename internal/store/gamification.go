package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/cleanhome/internal/model"
)

// BadgeStore keeps the set of unlocked badges. Rows are only ever added.
type BadgeStore struct {
	db *sql.DB
}

func NewBadgeStore(db *sql.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

func (s *BadgeStore) ListUnlocked() ([]model.UnlockedBadge, error) {
	rows, err := s.db.Query(`SELECT badge_id, unlocked_at FROM unlocked_badges ORDER BY unlocked_at ASC, badge_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list unlocked badges: %w", err)
	}
	defer rows.Close()

	var out []model.UnlockedBadge
	for rows.Next() {
		var b model.UnlockedBadge
		if err := rows.Scan(&b.BadgeID, &b.UnlockedAt); err != nil {
			return nil, fmt.Errorf("scan unlocked badge: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *BadgeStore) Unlock(badgeID string, at time.Time) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO unlocked_badges (badge_id, unlocked_at) VALUES (?, ?)`, badgeID, at.UTC())
	if err != nil {
		return fmt.Errorf("unlock badge: %w", err)
	}
	return nil
}

// ChallengeStore remembers which challenge templates were drawn for a week.
type ChallengeStore struct {
	db *sql.DB
}

func NewChallengeStore(db *sql.DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

// GetWeek returns the stored template ids for weekID, or nil if none.
func (s *ChallengeStore) GetWeek(weekID string) ([]string, error) {
	var ids string
	err := s.db.QueryRow(`SELECT challenge_ids FROM weekly_challenges WHERE week_id = ?`, weekID).Scan(&ids)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get weekly challenges: %w", err)
	}
	if ids == "" {
		return []string{}, nil
	}
	return strings.Split(ids, ","), nil
}

// SaveWeek stores the template ids for weekID unless the week already has a set.
func (s *ChallengeStore) SaveWeek(weekID string, ids []string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO weekly_challenges (week_id, challenge_ids) VALUES (?, ?)`,
		weekID, strings.Join(ids, ","),
	)
	if err != nil {
		return fmt.Errorf("save weekly challenges: %w", err)
	}
	return nil
}
