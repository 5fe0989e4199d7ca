package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/cleanhome/internal/model"
)

// AssignmentStore maps tasks to the family member responsible for them.
type AssignmentStore struct {
	db *sql.DB
}

func NewAssignmentStore(db *sql.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

func (s *AssignmentStore) List() ([]model.TaskAssignment, error) {
	rows, err := s.db.Query(`SELECT task_id, member_id, assigned_at FROM task_assignments ORDER BY task_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []model.TaskAssignment
	for rows.Next() {
		var a model.TaskAssignment
		if err := rows.Scan(&a.TaskID, &a.MemberID, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AssignmentStore) Get(taskID int64) (*model.TaskAssignment, error) {
	var a model.TaskAssignment
	err := s.db.QueryRow(
		`SELECT task_id, member_id, assigned_at FROM task_assignments WHERE task_id = ?`, taskID,
	).Scan(&a.TaskID, &a.MemberID, &a.AssignedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return &a, nil
}

// Assign gives taskID to memberID, replacing any previous assignee.
func (s *AssignmentStore) Assign(taskID int64, memberID string) (*model.TaskAssignment, error) {
	_, err := s.db.Exec(
		`INSERT INTO task_assignments (task_id, member_id) VALUES (?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET member_id = excluded.member_id, assigned_at = CURRENT_TIMESTAMP`,
		taskID, memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("assign task: %w", err)
	}
	return s.Get(taskID)
}

func (s *AssignmentStore) Unassign(taskID int64) error {
	if _, err := s.db.Exec(`DELETE FROM task_assignments WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("unassign task: %w", err)
	}
	return nil
}

// ReplaceAll overwrites every assignment. Entries naming unknown members
// are skipped.
func (s *AssignmentStore) ReplaceAll(assignments []model.TaskAssignment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM task_assignments`); err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	for _, a := range assignments {
		_, err := tx.Exec(
			`INSERT OR REPLACE INTO task_assignments (task_id, member_id, assigned_at)
			 SELECT ?, id, ? FROM family_members WHERE id = ?`,
			a.TaskID, a.AssignedAt.UTC(), a.MemberID,
		)
		if err != nil {
			return fmt.Errorf("insert assignment for task %d: %w", a.TaskID, err)
		}
	}
	return tx.Commit()
}
