package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/dukerupert/cleanhome/internal/database"
	"github.com/dukerupert/cleanhome/internal/model"
	"github.com/dukerupert/cleanhome/internal/recurrence"
	"github.com/dukerupert/cleanhome/internal/store"
)

func setupRepo(t *testing.T, system []model.Task) *Repository {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(system, store.NewTaskStore(db))
}

func intPtr(n int) *int { return &n }

func TestEmbeddedCatalog(t *testing.T) {
	tasks, err := LoadSystemFile("")
	if err != nil {
		t.Fatalf("LoadSystemFile: %v", err)
	}
	if len(tasks) < 30 {
		t.Fatalf("embedded catalog has %d tasks", len(tasks))
	}
	for _, task := range tasks {
		if _, err := recurrence.ParseFrequency(task.Frequency); err != nil {
			t.Errorf("task %d %q: %v", task.ID, task.Name, err)
		}
		if task.Zone == "" {
			t.Errorf("task %d has no zone", task.ID)
		}
		if task.IsCustom {
			t.Errorf("task %d marked custom", task.ID)
		}
	}
}

func TestLoadSystem(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"ok", "tasks:\n  - {id: 1, name: Dishes, zone: Kitchen, frequency: quotidienne}\n", ""},
		{"zero id", "tasks:\n  - {id: 0, name: Dishes}\n", "out of range"},
		{"custom range", "tasks:\n  - {id: 100000, name: Dishes}\n", "out of range"},
		{"duplicate", "tasks:\n  - {id: 1, name: A}\n  - {id: 1, name: B}\n", "duplicate"},
		{"no name", "tasks:\n  - {id: 1, name: \"\"}\n", "name is required"},
		{"unknown field", "tasks:\n  - {id: 1, name: A, colour: red}\n", "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := LoadSystem(strings.NewReader(tt.yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("LoadSystem: %v", err)
				}
				if len(tasks) != 1 || tasks[0].Frequency != "quotidienne" {
					t.Errorf("tasks = %+v", tasks)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func testSystem() []model.Task {
	return []model.Task{
		{ID: 1, Name: "Dishes", Zone: "Kitchen", Frequency: "daily", EstimatedMinutes: intPtr(15)},
		{ID: 2, Name: "Vacuum", Zone: "Living Room", Frequency: "weekly"},
		{ID: 3, Name: "Gutters", Zone: "Outdoor", Frequency: "seasonal"},
	}
}

func TestAddCustomTask(t *testing.T) {
	r := setupRepo(t, testSystem())

	task, err := r.AddCustomTask(CustomTaskDef{Name: " Feed the cat ", Zone: "Kitchen", Frequency: "Hebdomadaire", EstimatedMinutes: intPtr(2)})
	if err != nil {
		t.Fatalf("AddCustomTask: %v", err)
	}
	if task.ID < model.CustomTaskIDBase {
		t.Errorf("custom id %d below %d", task.ID, model.CustomTaskIDBase)
	}
	if !task.IsCustom || task.Name != "Feed the cat" || task.Frequency != "weekly" {
		t.Errorf("task = %+v", task)
	}

	second, err := r.AddCustomTask(CustomTaskDef{Name: "Water cactus", Zone: "Living Room", Frequency: "monthly"})
	if err != nil {
		t.Fatalf("AddCustomTask: %v", err)
	}
	if second.ID <= task.ID {
		t.Errorf("second id %d not after %d", second.ID, task.ID)
	}

	tasks, err := r.ListTasks()
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 5 {
		t.Errorf("ListTasks = %d, want 5", len(tasks))
	}
	for i := 1; i < len(tasks); i++ {
		if tasks[i].ID <= tasks[i-1].ID {
			t.Errorf("tasks not ordered by id at %d", i)
		}
	}
}

func TestAddCustomTaskValidation(t *testing.T) {
	r := setupRepo(t, testSystem())
	tests := []struct {
		def  CustomTaskDef
		want error
	}{
		{CustomTaskDef{Zone: "Kitchen", Frequency: "daily"}, ErrInvalidTask},
		{CustomTaskDef{Name: "X", Frequency: "daily"}, ErrInvalidTask},
		{CustomTaskDef{Name: "X", Zone: "Kitchen", Frequency: "fortnightly"}, recurrence.ErrInvalidFrequency},
		{CustomTaskDef{Name: "X", Zone: "Kitchen", Frequency: "daily", EstimatedMinutes: intPtr(-1)}, ErrInvalidTask},
	}
	for _, tt := range tests {
		if _, err := r.AddCustomTask(tt.def); !errors.Is(err, tt.want) {
			t.Errorf("AddCustomTask(%+v) err = %v, want %v", tt.def, err, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	r := setupRepo(t, testSystem())
	custom, _ := r.AddCustomTask(CustomTaskDef{Name: "Feed the cat", Zone: "Kitchen", Frequency: "daily"})

	for _, id := range []int64{1, custom.ID} {
		task, err := r.Lookup(id)
		if err != nil || task == nil {
			t.Errorf("Lookup(%d) = %v, %v", id, task, err)
		}
	}
	for _, id := range []int64{999, model.CustomTaskIDBase + 500} {
		task, err := r.Lookup(id)
		if err != nil || task != nil {
			t.Errorf("Lookup(%d) = %v, %v; want nil, nil", id, task, err)
		}
	}
}

func TestRemoveCustomTask(t *testing.T) {
	r := setupRepo(t, testSystem())
	custom, _ := r.AddCustomTask(CustomTaskDef{Name: "Feed the cat", Zone: "Kitchen", Frequency: "daily"})
	r.SetHidden(custom.ID, true)

	if err := r.RemoveCustomTask(1); !errors.Is(err, ErrNotCustom) {
		t.Errorf("removing system task err = %v, want ErrNotCustom", err)
	}
	if err := r.RemoveCustomTask(custom.ID); err != nil {
		t.Fatalf("RemoveCustomTask: %v", err)
	}
	if err := r.RemoveCustomTask(custom.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("second remove err = %v, want ErrTaskNotFound", err)
	}
	hidden, _ := r.Hidden()
	if len(hidden) != 0 {
		t.Errorf("hidden = %v, removed task should not stay hidden", hidden)
	}
}

func TestSetHidden(t *testing.T) {
	r := setupRepo(t, testSystem())

	if err := r.SetHidden(2, true); err != nil {
		t.Fatalf("SetHidden: %v", err)
	}
	tasks, _ := r.ListTasks()
	if len(tasks) != 2 {
		t.Errorf("visible = %d, want 2", len(tasks))
	}
	if task, _ := r.Lookup(2); task == nil {
		t.Error("hidden task should still resolve through Lookup")
	}
	all, _ := r.ListAll()
	if len(all) != 3 {
		t.Errorf("ListAll = %d, want 3", len(all))
	}

	if err := r.SetHidden(2, false); err != nil {
		t.Fatalf("SetHidden: %v", err)
	}
	tasks, _ = r.ListTasks()
	if len(tasks) != 3 {
		t.Errorf("visible after unhide = %d, want 3", len(tasks))
	}

	if err := r.SetHidden(404, true); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("hiding unknown task err = %v", err)
	}
}

func TestZonesAndTemplates(t *testing.T) {
	r := setupRepo(t, testSystem())
	zones, err := r.Zones()
	if err != nil {
		t.Fatalf("Zones: %v", err)
	}
	if strings.Join(zones, ",") != "Kitchen,Living Room,Outdoor" {
		t.Errorf("zones = %v", zones)
	}

	if got := FilterByTemplate(testSystem(), "studio"); len(got) != 2 {
		t.Errorf("studio = %d tasks, want 2", len(got))
	}
	if got := FilterByTemplate(testSystem(), "house"); len(got) != 3 {
		t.Errorf("house = %d tasks, want 3", len(got))
	}
	if _, ok := ZonesFor("castle"); ok {
		t.Error("unknown template should not resolve")
	}
}
