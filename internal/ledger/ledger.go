// Package ledger keeps the completion history: at most one record per
// (task, date), with streak and points aggregates derived from it.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/cleanhome/internal/gamification"
	"github.com/dukerupert/cleanhome/internal/metrics"
	"github.com/dukerupert/cleanhome/internal/model"
)

var (
	ErrUnknownTask     = errors.New("unknown task")
	ErrMalformedRecord = errors.New("malformed completion record")
)

// TaskLookup resolves a task id, returning (nil, nil) when it does not exist.
type TaskLookup interface {
	Lookup(id int64) (*model.Task, error)
}

// HistoryStore persists the full history as one snapshot.
type HistoryStore interface {
	LoadHistory() ([]model.CompletionRecord, error)
	SaveHistory(records []model.CompletionRecord) error
}

// ToggleResult reports the state a toggle left behind. Record is the
// inserted or the removed record.
type ToggleResult struct {
	Completed bool                   `json:"completed"`
	Record    model.CompletionRecord `json:"record"`
}

type DayCount struct {
	Date   time.Time `json:"date"`
	Count  int       `json:"count"`
	Points int       `json:"points"`
}

type Ledger struct {
	mu      sync.RWMutex
	records map[model.CompletionKey]model.CompletionRecord

	// pmu is held from a mutation until its snapshot is saved, so saves
	// reach the history store in mutation order.
	pmu sync.Mutex

	tasks   TaskLookup
	history HistoryStore
	logger  *slog.Logger
	now     func() time.Time

	lmu       sync.Mutex
	listeners map[int]func([]model.CompletionRecord)
	nextID    int
}

// New creates an empty ledger. history may be nil for an in-memory ledger.
func New(tasks TaskLookup, history HistoryStore, logger *slog.Logger) *Ledger {
	return &Ledger{
		records:   make(map[model.CompletionKey]model.CompletionRecord),
		tasks:     tasks,
		history:   history,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]func([]model.CompletionRecord)),
	}
}

// Validate checks a record in isolation.
func Validate(r model.CompletionRecord) error {
	switch {
	case r.TaskID <= 0:
		return fmt.Errorf("%w: task id %d", ErrMalformedRecord, r.TaskID)
	case r.Date.IsZero():
		return fmt.Errorf("%w: missing date", ErrMalformedRecord)
	case r.Points < 0:
		return fmt.Errorf("%w: negative points %d", ErrMalformedRecord, r.Points)
	}
	return nil
}

// Init replaces the ledger contents with seed without persisting or
// notifying. Malformed records are dropped with a warning; of two records
// for the same (task, date) the later completion wins. It returns the
// number of dropped records.
func (l *Ledger) Init(seed []model.CompletionRecord) int {
	records, dropped := l.normalize(seed)
	l.mu.Lock()
	l.records = records
	l.mu.Unlock()
	return dropped
}

// Load seeds the ledger from the history store.
func (l *Ledger) Load() error {
	if l.history == nil {
		return nil
	}
	seed, err := l.history.LoadHistory()
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	dropped := l.Init(seed)
	l.logger.Info("history loaded", "records", len(seed)-dropped, "dropped", dropped)
	return nil
}

// Replace overwrites the ledger with a remote snapshot and persists it.
// Change listeners are not called, so the snapshot is not echoed back.
func (l *Ledger) Replace(records []model.CompletionRecord) int {
	l.pmu.Lock()
	defer l.pmu.Unlock()
	dropped := l.Init(records)
	l.persist(l.Records())
	return dropped
}

func (l *Ledger) normalize(seed []model.CompletionRecord) (map[model.CompletionKey]model.CompletionRecord, int) {
	records := make(map[model.CompletionKey]model.CompletionRecord, len(seed))
	dropped := 0
	for _, r := range seed {
		if err := Validate(r); err != nil {
			l.logger.Warn("dropping completion record", "task_id", r.TaskID, "error", err)
			metrics.MalformedRecords.Inc()
			dropped++
			continue
		}
		r.Date = model.Day(r.Date)
		key := r.Key()
		if prev, ok := records[key]; ok && prev.CompletedAt.After(r.CompletedAt) {
			continue
		}
		records[key] = r
	}
	return records, dropped
}

// Toggle flips the completion of taskID on date. Completing awards points
// from the task's estimated duration. Unknown tasks fail with
// ErrUnknownTask and leave the ledger unchanged.
func (l *Ledger) Toggle(taskID int64, date time.Time, actorID *string) (ToggleResult, error) {
	task, err := l.tasks.Lookup(taskID)
	if err != nil {
		return ToggleResult{}, fmt.Errorf("lookup task: %w", err)
	}
	if task == nil {
		return ToggleResult{}, fmt.Errorf("toggle task %d: %w", taskID, ErrUnknownTask)
	}

	key := model.CompletionKey{TaskID: taskID, Date: model.Day(date)}

	l.pmu.Lock()
	l.mu.Lock()
	var res ToggleResult
	if existing, ok := l.records[key]; ok {
		delete(l.records, key)
		res = ToggleResult{Completed: false, Record: existing}
	} else {
		rec := model.CompletionRecord{
			TaskID:      taskID,
			Date:        key.Date,
			CompletedAt: l.now().UTC(),
			ActorID:     actorID,
			Points:      gamification.Points(task.EstimatedMinutes),
		}
		l.records[key] = rec
		res = ToggleResult{Completed: true, Record: rec}
	}
	snapshot := l.sortedLocked()
	l.mu.Unlock()
	l.persist(snapshot)
	l.pmu.Unlock()

	metrics.IncrementToggle(res.Completed)
	l.notify(snapshot)
	return res, nil
}

// RemoveTask drops every record of taskID and returns how many were removed.
func (l *Ledger) RemoveTask(taskID int64) int {
	l.pmu.Lock()
	l.mu.Lock()
	removed := 0
	for key := range l.records {
		if key.TaskID == taskID {
			delete(l.records, key)
			removed++
		}
	}
	snapshot := l.sortedLocked()
	l.mu.Unlock()
	if removed == 0 {
		l.pmu.Unlock()
		return 0
	}
	l.persist(snapshot)
	l.pmu.Unlock()

	l.notify(snapshot)
	return removed
}

// OnChange registers fn to receive the full history after every local
// mutation. The returned func unregisters it.
func (l *Ledger) OnChange(fn func([]model.CompletionRecord)) func() {
	l.lmu.Lock()
	defer l.lmu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	return func() {
		l.lmu.Lock()
		delete(l.listeners, id)
		l.lmu.Unlock()
	}
}

func (l *Ledger) notify(snapshot []model.CompletionRecord) {
	l.lmu.Lock()
	fns := make([]func([]model.CompletionRecord), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.lmu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

func (l *Ledger) persist(snapshot []model.CompletionRecord) {
	if l.history == nil {
		return
	}
	if err := l.history.SaveHistory(snapshot); err != nil {
		l.logger.Error("failed to save history", "records", len(snapshot), "error", err)
	}
}

func (l *Ledger) sortedLocked() []model.CompletionRecord {
	out := make([]model.CompletionRecord, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out
}

// Records returns every record ordered by date then task id.
func (l *Ledger) Records() []model.CompletionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortedLocked()
}

func (l *Ledger) IsCompleted(taskID int64, date time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[model.CompletionKey{TaskID: taskID, Date: model.Day(date)}]
	return ok
}

func (l *Ledger) RecordsForDate(date time.Time) []model.CompletionRecord {
	return l.RecordsInRange(date, date)
}

// RecordsInRange returns records dated within [start, end], both inclusive.
func (l *Ledger) RecordsInRange(start, end time.Time) []model.CompletionRecord {
	start, end = model.Day(start), model.Day(end)
	var out []model.CompletionRecord
	for _, r := range l.Records() {
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Streak counts consecutive days with at least one completion, walking back
// from asOf. It is 0 when asOf itself has none.
func (l *Ledger) Streak(asOf time.Time) int {
	l.mu.RLock()
	days := make(map[time.Time]bool)
	for key := range l.records {
		days[key.Date] = true
	}
	l.mu.RUnlock()

	streak := 0
	for d := model.Day(asOf); days[d]; d = d.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// DailyCounts returns one entry per day for the days ending at end, oldest
// first.
func (l *Ledger) DailyCounts(end time.Time, days int) []DayCount {
	if days <= 0 {
		return nil
	}
	end = model.Day(end)
	start := end.AddDate(0, 0, -(days - 1))

	out := make([]DayCount, days)
	index := make(map[time.Time]int, days)
	for i := range out {
		d := start.AddDate(0, 0, i)
		out[i].Date = d
		index[d] = i
	}
	for _, r := range l.RecordsInRange(start, end) {
		i := index[r.Date]
		out[i].Count++
		out[i].Points += r.Points
	}
	return out
}

func (l *Ledger) TotalPoints() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0
	for _, r := range l.records {
		total += r.Points
	}
	return total
}

// PointsByActor sums points per actor id. Records without an actor are not
// counted.
func (l *Ledger) PointsByActor() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int)
	for _, r := range l.records {
		if r.ActorID == nil {
			continue
		}
		out[*r.ActorID] += r.Points
	}
	return out
}

func (l *Ledger) Stats(asOf time.Time) gamification.Stats {
	l.mu.RLock()
	total := len(l.records)
	l.mu.RUnlock()
	return gamification.Stats{
		TotalTasks:    total,
		TotalPoints:   l.TotalPoints(),
		CurrentStreak: l.Streak(asOf),
	}
}
