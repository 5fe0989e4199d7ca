// Package catalog provides the task repository: the fixed system catalog
// merged with user-defined custom tasks, minus tasks the household hid.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/cleanhome/internal/model"
	"github.com/dukerupert/cleanhome/internal/recurrence"
)

//go:embed tasks.yaml
var defaultCatalog []byte

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrNotCustom    = errors.New("task is not a custom task")
	ErrInvalidTask  = errors.New("invalid task")
)

type catalogFile struct {
	Tasks []model.Task `yaml:"tasks"`
}

// LoadSystem decodes a YAML task catalog. Frequency tags are not checked
// here; the scheduler skips tasks whose tag it cannot expand.
func LoadSystem(r io.Reader) ([]model.Task, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[int64]bool, len(f.Tasks))
	for i, t := range f.Tasks {
		switch {
		case t.ID <= 0 || t.ID >= model.CustomTaskIDBase:
			return nil, fmt.Errorf("task %d: id %d out of range", i, t.ID)
		case seen[t.ID]:
			return nil, fmt.Errorf("task %d: duplicate id %d", i, t.ID)
		case strings.TrimSpace(t.Name) == "":
			return nil, fmt.Errorf("task %d: name is required", t.ID)
		}
		seen[t.ID] = true
		f.Tasks[i].IsCustom = false
	}
	return f.Tasks, nil
}

// LoadSystemFile reads the catalog at path, or the embedded default catalog
// when path is empty.
func LoadSystemFile(path string) ([]model.Task, error) {
	if path == "" {
		return LoadSystem(bytes.NewReader(defaultCatalog))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return LoadSystem(f)
}

// CustomTaskStore persists user-defined tasks and the hidden-task set.
type CustomTaskStore interface {
	ListCustom() ([]model.Task, error)
	GetCustom(id int64) (*model.Task, error)
	CreateCustom(name, zone, frequency string, estimatedMinutes *int, description string) (*model.Task, error)
	DeleteCustom(id int64) error
	ListHidden() ([]int64, error)
	Hide(id int64) error
	Unhide(id int64) error
}

type Repository struct {
	system []model.Task
	byID   map[int64]model.Task
	store  CustomTaskStore
}

func NewRepository(system []model.Task, store CustomTaskStore) *Repository {
	byID := make(map[int64]model.Task, len(system))
	for _, t := range system {
		byID[t.ID] = t
	}
	return &Repository{system: system, byID: byID, store: store}
}

// ListTasks returns system and custom tasks ordered by id, excluding hidden ones.
func (r *Repository) ListTasks() ([]model.Task, error) {
	all, err := r.ListAll()
	if err != nil {
		return nil, err
	}
	hidden, err := r.hiddenSet()
	if err != nil {
		return nil, err
	}

	tasks := all[:0]
	for _, t := range all {
		if !hidden[t.ID] {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// ListAll returns every task including hidden ones.
func (r *Repository) ListAll() ([]model.Task, error) {
	custom, err := r.store.ListCustom()
	if err != nil {
		return nil, fmt.Errorf("list custom tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(r.system)+len(custom))
	tasks = append(tasks, r.system...)
	tasks = append(tasks, custom...)
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// Lookup finds a task by id, hidden or not. It returns (nil, nil) when no
// such task exists.
func (r *Repository) Lookup(id int64) (*model.Task, error) {
	if t, ok := r.byID[id]; ok {
		return &t, nil
	}
	if id < model.CustomTaskIDBase {
		return nil, nil
	}
	t, err := r.store.GetCustom(id)
	if err != nil {
		return nil, fmt.Errorf("lookup task %d: %w", id, err)
	}
	return t, nil
}

type CustomTaskDef struct {
	Name             string `json:"name"`
	Zone             string `json:"zone"`
	Frequency        string `json:"frequency"`
	EstimatedMinutes *int   `json:"estimated_minutes"`
	Description      string `json:"description"`
}

// AddCustomTask validates def and stores it as a new custom task. The
// frequency tag is normalized to its English name.
func (r *Repository) AddCustomTask(def CustomTaskDef) (*model.Task, error) {
	def.Name = strings.TrimSpace(def.Name)
	def.Zone = strings.TrimSpace(def.Zone)
	if def.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidTask)
	}
	if def.Zone == "" {
		return nil, fmt.Errorf("%w: zone is required", ErrInvalidTask)
	}
	freq, err := recurrence.ParseFrequency(def.Frequency)
	if err != nil {
		return nil, err
	}
	if def.EstimatedMinutes != nil && *def.EstimatedMinutes < 0 {
		return nil, fmt.Errorf("%w: estimated minutes must not be negative", ErrInvalidTask)
	}

	t, err := r.store.CreateCustom(def.Name, def.Zone, freq.String(), def.EstimatedMinutes, strings.TrimSpace(def.Description))
	if err != nil {
		return nil, fmt.Errorf("add custom task: %w", err)
	}
	return t, nil
}

// RemoveCustomTask deletes a custom task. System tasks can only be hidden.
func (r *Repository) RemoveCustomTask(id int64) error {
	if _, ok := r.byID[id]; ok {
		return fmt.Errorf("remove task %d: %w", id, ErrNotCustom)
	}
	t, err := r.store.GetCustom(id)
	if err != nil {
		return fmt.Errorf("remove task %d: %w", id, err)
	}
	if t == nil {
		return fmt.Errorf("remove task %d: %w", id, ErrTaskNotFound)
	}
	if err := r.store.Unhide(id); err != nil {
		return fmt.Errorf("remove task %d: %w", id, err)
	}
	return r.store.DeleteCustom(id)
}

// SetHidden hides or restores a task in ListTasks.
func (r *Repository) SetHidden(id int64, hidden bool) error {
	t, err := r.Lookup(id)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("hide task %d: %w", id, ErrTaskNotFound)
	}
	if hidden {
		return r.store.Hide(id)
	}
	return r.store.Unhide(id)
}

// Hidden returns the ids of hidden tasks.
func (r *Repository) Hidden() ([]int64, error) {
	return r.store.ListHidden()
}

// Zones lists the distinct zones of all tasks in first-seen order.
func (r *Repository) Zones() ([]string, error) {
	tasks, err := r.ListAll()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var zones []string
	for _, t := range tasks {
		if !seen[t.Zone] {
			seen[t.Zone] = true
			zones = append(zones, t.Zone)
		}
	}
	return zones, nil
}

func (r *Repository) hiddenSet() (map[int64]bool, error) {
	ids, err := r.store.ListHidden()
	if err != nil {
		return nil, fmt.Errorf("list hidden tasks: %w", err)
	}
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
