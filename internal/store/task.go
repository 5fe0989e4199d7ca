package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/cleanhome/internal/model"
)

// TaskStore holds custom tasks and the set of hidden task ids.
type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var minutes sql.NullInt64

	err := scanner.Scan(&t.ID, &t.Name, &t.Zone, &t.Frequency, &minutes, &t.Description, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	if minutes.Valid {
		m := int(minutes.Int64)
		t.EstimatedMinutes = &m
	}
	t.IsCustom = true
	return &t, nil
}

const taskCols = `id, name, zone, frequency, estimated_minutes, description, created_at`

func (s *TaskStore) ListCustom() ([]model.Task, error) {
	rows, err := s.db.Query(`SELECT ` + taskCols + ` FROM custom_tasks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list custom tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan custom task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) GetCustom(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM custom_tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get custom task: %w", err)
	}
	return t, nil
}

// CreateCustom inserts a task. Ids start at model.CustomTaskIDBase and are
// never handed out twice, even after a delete.
func (s *TaskStore) CreateCustom(name, zone, frequency string, estimatedMinutes *int, description string) (*model.Task, error) {
	var minutes sql.NullInt64
	if estimatedMinutes != nil {
		minutes = sql.NullInt64{Int64: int64(*estimatedMinutes), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO custom_tasks (name, zone, frequency, estimated_minutes, description)
		 VALUES (?, ?, ?, ?, ?)`,
		name, zone, frequency, minutes, description,
	)
	if err != nil {
		return nil, fmt.Errorf("insert custom task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetCustom(id)
}

// DeleteCustom removes a custom task and its assignment.
func (s *TaskStore) DeleteCustom(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM task_assignments WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("delete task assignment: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM custom_tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete custom task: %w", err)
	}
	return tx.Commit()
}

func (s *TaskStore) ListHidden() ([]int64, error) {
	rows, err := s.db.Query(`SELECT task_id FROM hidden_tasks ORDER BY task_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list hidden tasks: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan hidden task: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *TaskStore) Hide(id int64) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO hidden_tasks (task_id) VALUES (?)`, id)
	if err != nil {
		return fmt.Errorf("hide task: %w", err)
	}
	return nil
}

func (s *TaskStore) Unhide(id int64) error {
	_, err := s.db.Exec(`DELETE FROM hidden_tasks WHERE task_id = ?`, id)
	if err != nil {
		return fmt.Errorf("unhide task: %w", err)
	}
	return nil
}
