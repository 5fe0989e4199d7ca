package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/cleanhome/internal/model"
)

// CompletionStore is the durable copy of the completion ledger.
type CompletionStore struct {
	db *sql.DB
}

func NewCompletionStore(db *sql.DB) *CompletionStore {
	return &CompletionStore{db: db}
}

const completionCols = `task_id, date, completed_at, actor_id, points`

// scanCompletion leaves Date zero when the stored date does not parse; the
// ledger drops such records as malformed.
func scanCompletion(scanner interface{ Scan(...any) error }) (*model.CompletionRecord, error) {
	var r model.CompletionRecord
	var date string
	var actorID sql.NullString

	if err := scanner.Scan(&r.TaskID, &date, &r.CompletedAt, &actorID, &r.Points); err != nil {
		return nil, err
	}

	if d, err := model.ParseDay(date); err == nil {
		r.Date = d
	}
	if actorID.Valid {
		r.ActorID = &actorID.String
	}
	return &r, nil
}

// LoadHistory returns every stored completion ordered by date.
func (s *CompletionStore) LoadHistory() ([]model.CompletionRecord, error) {
	rows, err := s.db.Query(`SELECT ` + completionCols + ` FROM completions ORDER BY date ASC, task_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()
	return scanCompletions(rows)
}

// SaveHistory replaces the stored history with records.
func (s *CompletionStore) SaveHistory(records []model.CompletionRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM completions`); err != nil {
		return fmt.Errorf("clear completions: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO completions (` + completionCols + `) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var actorID sql.NullString
		if r.ActorID != nil {
			actorID = sql.NullString{String: *r.ActorID, Valid: true}
		}
		if _, err := stmt.Exec(r.TaskID, r.Date.Format(model.DateLayout), r.CompletedAt.UTC(), actorID, r.Points); err != nil {
			return fmt.Errorf("insert completion for task %d: %w", r.TaskID, err)
		}
	}

	return tx.Commit()
}

// ListByDateRange returns completions with start <= date < end.
func (s *CompletionStore) ListByDateRange(start, end time.Time) ([]model.CompletionRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+completionCols+` FROM completions WHERE date >= ? AND date < ? ORDER BY date ASC, task_id ASC`,
		start.Format(model.DateLayout), end.Format(model.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("list completions by range: %w", err)
	}
	defer rows.Close()
	return scanCompletions(rows)
}

func scanCompletions(rows *sql.Rows) ([]model.CompletionRecord, error) {
	var records []model.CompletionRecord
	for rows.Next() {
		r, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}
