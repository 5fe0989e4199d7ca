package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/cleanhome/internal/catalog"
	"github.com/dukerupert/cleanhome/internal/ledger"
	"github.com/dukerupert/cleanhome/internal/model"
)

// Unassigner drops the assignee of a task.
type Unassigner interface {
	Unassign(taskID int64) error
}

type TaskHandler struct {
	repo      *catalog.Repository
	ledger    *ledger.Ledger
	assignees Unassigner
	logger    *slog.Logger
}

func NewTaskHandler(repo *catalog.Repository, l *ledger.Ledger, assignees Unassigner, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{repo: repo, ledger: l, assignees: assignees, logger: logger}
}

// List handles GET /api/tasks. ?template= restricts zones, ?hidden=true
// includes hidden tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	template := r.URL.Query().Get("template")
	if _, ok := catalog.ZonesFor(template); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown template"})
		return
	}

	var tasks []model.Task
	var err error
	if r.URL.Query().Get("hidden") == "true" {
		tasks, err = h.repo.ListAll()
	} else {
		tasks, err = h.repo.ListTasks()
	}
	if err != nil {
		writeError(w, h.logger, err, "failed to list tasks")
		return
	}

	tasks = catalog.FilterByTemplate(tasks, template)
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	task, err := h.repo.Lookup(id)
	if err != nil {
		writeError(w, h.logger, err, "failed to get task")
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req catalog.CustomTaskDef
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	task, err := h.repo.AddCustomTask(req)
	if err != nil {
		writeError(w, h.logger, err, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// Delete removes a custom task together with its assignment and completion
// history.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.repo.RemoveCustomTask(id); err != nil {
		writeError(w, h.logger, err, "failed to delete task")
		return
	}
	if err := h.assignees.Unassign(id); err != nil {
		h.logger.Error("failed to unassign deleted task", "task_id", id, "error", err)
	}
	if n := h.ledger.RemoveTask(id); n > 0 {
		h.logger.Info("dropped history of deleted task", "task_id", id, "records", n)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) SetHidden(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		Hidden bool `json:"hidden"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := h.repo.SetHidden(id, req.Hidden); err != nil {
		writeError(w, h.logger, err, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "hidden": req.Hidden})
}

func (h *TaskHandler) Zones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.repo.Zones()
	if err != nil {
		writeError(w, h.logger, err, "failed to list zones")
		return
	}
	if zones == nil {
		zones = []string{}
	}
	writeJSON(w, http.StatusOK, zones)
}

func (h *TaskHandler) Templates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Templates)
}
