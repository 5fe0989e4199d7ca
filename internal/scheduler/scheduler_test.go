package scheduler

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/cleanhome/internal/model"
	"github.com/dukerupert/cleanhome/internal/recurrence"
)

type staticTasks []model.Task

func (s staticTasks) ListTasks() ([]model.Task, error) {
	return s, nil
}

type failingTasks struct{}

func (failingTasks) ListTasks() ([]model.Task, error) {
	return nil, errors.New("catalog unavailable")
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestScheduler(tasks ...model.Task) *Scheduler {
	return New(staticTasks(tasks), recurrence.DefaultAnchors(), slog.Default())
}

func TestWeeklyTaskFallsOnEveryMonday(t *testing.T) {
	s := newTestScheduler(model.Task{ID: 1, Name: "Vacuum", Zone: "Living Room", Frequency: "weekly"})

	m, err := s.Month(2024, time.March)
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	want := []time.Time{day(2024, 3, 4), day(2024, 3, 11), day(2024, 3, 18), day(2024, 3, 25)}
	if len(m.Occurrences) != len(want) {
		t.Fatalf("got %d occurrences, want %d", len(m.Occurrences), len(want))
	}
	for i, o := range m.Occurrences {
		if !o.Date.Equal(want[i]) {
			t.Errorf("occurrence %d = %s, want %s", i, o.Date.Format(model.DateLayout), want[i].Format(model.DateLayout))
		}
		if o.TaskName != "Vacuum" || o.Zone != "Living Room" {
			t.Errorf("occurrence %d carries %q/%q", i, o.TaskName, o.Zone)
		}
	}
}

func TestMonthSortedByDateThenTask(t *testing.T) {
	s := newTestScheduler(
		model.Task{ID: 9, Name: "Dishes", Frequency: "daily"},
		model.Task{ID: 2, Name: "Bins", Frequency: "weekly"},
		model.Task{ID: 5, Name: "Fridge", Frequency: "monthly"},
	)
	m, err := s.Month(2024, time.April)
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	if len(m.Occurrences) != 30+5+1 {
		t.Errorf("got %d occurrences, want 36", len(m.Occurrences))
	}
	for i := 1; i < len(m.Occurrences); i++ {
		a, b := m.Occurrences[i-1], m.Occurrences[i]
		if b.Date.Before(a.Date) || (b.Date.Equal(a.Date) && b.TaskID <= a.TaskID) {
			t.Fatalf("occurrences %d and %d out of order: %+v, %+v", i-1, i, a, b)
		}
	}
	// 2024-04-01 is a Monday: bins, fridge and dishes are all due.
	first := m.On(day(2024, 4, 1))
	if len(first) != 3 || first[0].TaskID != 2 || first[1].TaskID != 5 || first[2].TaskID != 9 {
		t.Errorf("2024-04-01 = %+v", first)
	}
}

func TestMonthSkipsInvalidFrequency(t *testing.T) {
	s := newTestScheduler(
		model.Task{ID: 1, Name: "Dishes", Frequency: "daily"},
		model.Task{ID: 2, Name: "Mystery", Frequency: "fortnightly"},
	)
	m, err := s.Month(2024, time.February)
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	if len(m.Occurrences) != 29 {
		t.Errorf("got %d occurrences, want 29", len(m.Occurrences))
	}
	if len(m.Skipped) != 1 || m.Skipped[0].TaskID != 2 {
		t.Errorf("skipped = %+v, want task 2", m.Skipped)
	}
}

func TestMonthCatalogError(t *testing.T) {
	s := New(failingTasks{}, recurrence.DefaultAnchors(), slog.Default())
	if _, err := s.Month(2024, time.March); err == nil {
		t.Error("expected error from failing catalog")
	}
}

func TestMonthIsRecomputed(t *testing.T) {
	tasks := staticTasks{{ID: 1, Name: "Dishes", Frequency: "weekly"}}
	s := New(tasks, recurrence.DefaultAnchors(), slog.Default())
	a, _ := s.Month(2024, time.March)
	tasks[0].Frequency = "daily"
	b, _ := s.Month(2024, time.March)
	if len(a.Occurrences) == len(b.Occurrences) {
		t.Errorf("month not recomputed: %d occurrences both times", len(a.Occurrences))
	}
}

func TestOnOutsideMonth(t *testing.T) {
	s := newTestScheduler(model.Task{ID: 1, Name: "Dishes", Frequency: "daily"})
	m, _ := s.Month(2024, time.March)
	if got := m.On(day(2024, 4, 1)); len(got) != 0 {
		t.Errorf("On outside month = %d, want 0", len(got))
	}
	if got := m.On(time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)); len(got) != 1 {
		t.Errorf("On with time of day = %d, want 1", len(got))
	}
}

func TestDueOn(t *testing.T) {
	s := newTestScheduler(
		model.Task{ID: 1, Name: "Vacuum", Frequency: "weekly"},
		model.Task{ID: 2, Name: "Gutters", Frequency: "seasonal"},
	)
	got, err := s.DueOn(day(2024, 3, 20))
	if err != nil {
		t.Fatalf("DueOn: %v", err)
	}
	if len(got) != 1 || got[0].TaskID != 2 {
		t.Errorf("DueOn(2024-03-20) = %+v, want gutters", got)
	}
	got, _ = s.DueOn(day(2024, 3, 19))
	if len(got) != 0 {
		t.Errorf("DueOn(2024-03-19) = %+v, want nothing", got)
	}
}

func TestPrevNext(t *testing.T) {
	tests := []struct {
		year      int
		month     time.Month
		prevYear  int
		prevMonth time.Month
		nextYear  int
		nextMonth time.Month
	}{
		{2024, time.March, 2024, time.February, 2024, time.April},
		{2024, time.January, 2023, time.December, 2024, time.February},
		{2024, time.December, 2024, time.November, 2025, time.January},
	}
	for _, tt := range tests {
		m := &Month{Year: tt.year, Month: tt.month}
		py, pm := m.Prev()
		ny, nm := m.Next()
		if py != tt.prevYear || pm != tt.prevMonth {
			t.Errorf("%d-%02d Prev = %d-%02d", tt.year, tt.month, py, pm)
		}
		if ny != tt.nextYear || nm != tt.nextMonth {
			t.Errorf("%d-%02d Next = %d-%02d", tt.year, tt.month, ny, nm)
		}
	}
}

func TestByDay(t *testing.T) {
	s := newTestScheduler(model.Task{ID: 1, Name: "Vacuum", Frequency: "weekly"})
	m, _ := s.Month(2024, time.March)
	days := m.ByDay()
	if len(days) != 4 || len(days["2024-03-11"]) != 1 {
		t.Errorf("ByDay = %v", days)
	}
}

func TestFilterZones(t *testing.T) {
	occs := []Occurrence{
		{TaskID: 1, Zone: "Kitchen"},
		{TaskID: 2, Zone: "Garage"},
		{TaskID: 3, Zone: "Bathroom"},
	}
	if got := FilterZones(occs, "minimal"); len(got) != 2 {
		t.Errorf("minimal = %d, want 2", len(got))
	}
	if got := FilterZones(occs, "all"); len(got) != 3 {
		t.Errorf("all = %d, want 3", len(got))
	}
	if got := FilterZones(occs, "castle"); len(got) != 3 {
		t.Errorf("unknown template = %d, want 3", len(got))
	}
}
