package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/cleanhome/internal/model"
)

type FamilyMemberStore struct {
	db *sql.DB
}

func NewFamilyMemberStore(db *sql.DB) *FamilyMemberStore {
	return &FamilyMemberStore{db: db}
}

const memberCols = "id, name, color, avatar_emoji, pin IS NOT NULL, sort_order, created_at, updated_at"

func scanMember(scanner interface{ Scan(...any) error }) (*model.FamilyMember, error) {
	var m model.FamilyMember
	if err := scanner.Scan(&m.ID, &m.Name, &m.Color, &m.AvatarEmoji, &m.HasPIN, &m.SortOrder, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *FamilyMemberStore) Create(name, color, avatarEmoji string) (*model.FamilyMember, error) {
	var maxOrder int
	err := s.db.QueryRow("SELECT COALESCE(MAX(sort_order), -1) FROM family_members").Scan(&maxOrder)
	if err != nil {
		return nil, fmt.Errorf("query max sort_order: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.Exec(
		"INSERT INTO family_members (id, name, color, avatar_emoji, sort_order) VALUES (?, ?, ?, ?, ?)",
		id, name, color, avatarEmoji, maxOrder+1,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family member: %w", err)
	}

	return s.GetByID(id)
}

func (s *FamilyMemberStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM family_members").Scan(&n); err != nil {
		return 0, fmt.Errorf("count family members: %w", err)
	}
	return n, nil
}

func (s *FamilyMemberStore) List() ([]model.FamilyMember, error) {
	rows, err := s.db.Query("SELECT " + memberCols + " FROM family_members ORDER BY sort_order, name")
	if err != nil {
		return nil, fmt.Errorf("query family members: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *FamilyMemberStore) GetByID(id string) (*model.FamilyMember, error) {
	m, err := scanMember(s.db.QueryRow("SELECT "+memberCols+" FROM family_members WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query family member: %w", err)
	}
	return m, nil
}

func (s *FamilyMemberStore) Update(id, name, color, avatarEmoji string) (*model.FamilyMember, error) {
	_, err := s.db.Exec(
		"UPDATE family_members SET name = ?, color = ?, avatar_emoji = ? WHERE id = ?",
		name, color, avatarEmoji, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update family member: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes the member and their task assignments. Completion records
// that name the member are left untouched.
func (s *FamilyMemberStore) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM task_assignments WHERE member_id = ?", id); err != nil {
		return fmt.Errorf("delete member assignments: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM family_members WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete family member: %w", err)
	}
	return tx.Commit()
}

func (s *FamilyMemberStore) UpdateSortOrder(ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("UPDATE family_members SET sort_order = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.Exec(i, id); err != nil {
			return fmt.Errorf("update sort order for id %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// ReplaceAll makes the member table match members: rows are upserted by id
// and members missing from the list are deleted. PIN hashes of surviving
// members are kept.
func (s *FamilyMemberStore) ReplaceAll(members []model.FamilyMember) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	keep := make(map[string]bool, len(members))
	for _, m := range members {
		keep[m.ID] = true
		_, err := tx.Exec(
			`INSERT INTO family_members (id, name, color, avatar_emoji, sort_order) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color,
			 avatar_emoji = excluded.avatar_emoji, sort_order = excluded.sort_order`,
			m.ID, m.Name, m.Color, m.AvatarEmoji, m.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("upsert family member %s: %w", m.ID, err)
		}
	}

	rows, err := tx.Query("SELECT id FROM family_members")
	if err != nil {
		return fmt.Errorf("query family member ids: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan family member id: %w", err)
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()

	for _, id := range stale {
		if _, err := tx.Exec("DELETE FROM task_assignments WHERE member_id = ?", id); err != nil {
			return fmt.Errorf("delete member assignments: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM family_members WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete family member: %w", err)
		}
	}

	return tx.Commit()
}

func (s *FamilyMemberStore) SetPIN(id string, hashedPIN string) error {
	_, err := s.db.Exec("UPDATE family_members SET pin = ? WHERE id = ?", hashedPIN, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *FamilyMemberStore) ClearPIN(id string) error {
	_, err := s.db.Exec("UPDATE family_members SET pin = NULL WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

func (s *FamilyMemberStore) GetPINHash(id string) (string, error) {
	var pin sql.NullString
	err := s.db.QueryRow("SELECT pin FROM family_members WHERE id = ?", id).Scan(&pin)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("family member not found")
	}
	if err != nil {
		return "", fmt.Errorf("query pin: %w", err)
	}
	if !pin.Valid {
		return "", nil
	}
	return pin.String, nil
}

func (s *FamilyMemberStore) NameExists(name string, excludeID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM family_members WHERE name = ? AND id != ?",
		name, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check name exists: %w", err)
	}
	return count > 0, nil
}
