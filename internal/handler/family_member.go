package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/cleanhome/internal/family"
	"github.com/dukerupert/cleanhome/internal/ledger"
	"github.com/dukerupert/cleanhome/internal/model"
)

type FamilyMemberHandler struct {
	roster *family.Roster
	tasks  ledger.TaskLookup
	logger *slog.Logger
}

func NewFamilyMemberHandler(roster *family.Roster, tasks ledger.TaskLookup, logger *slog.Logger) *FamilyMemberHandler {
	return &FamilyMemberHandler{roster: roster, tasks: tasks, logger: logger}
}

type memberRequest struct {
	Name        string `json:"name"`
	Color       string `json:"color"`
	AvatarEmoji string `json:"avatar_emoji"`
}

func (h *FamilyMemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.roster.List()
	if err != nil {
		writeError(w, h.logger, err, "failed to list family members")
		return
	}
	if members == nil {
		members = []model.FamilyMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

// Leaderboard handles GET /api/leaderboard.
func (h *FamilyMemberHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	members, err := h.roster.Leaderboard()
	if err != nil {
		writeError(w, h.logger, err, "failed to build leaderboard")
		return
	}
	if members == nil {
		members = []model.FamilyMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *FamilyMemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	member, err := h.roster.Add(req.Name, req.Color, req.AvatarEmoji)
	if err != nil {
		writeError(w, h.logger, err, "failed to create family member")
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (h *FamilyMemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	member, err := h.roster.Update(r.PathValue("id"), req.Name, req.Color, req.AvatarEmoji)
	if err != nil {
		writeError(w, h.logger, err, "failed to update family member")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *FamilyMemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.Remove(r.PathValue("id")); err != nil {
		writeError(w, h.logger, err, "failed to delete family member")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FamilyMemberHandler) UpdateSortOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ids are required"})
		return
	}

	if err := h.roster.Reorder(req.IDs); err != nil {
		writeError(w, h.logger, err, "failed to update sort order")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FamilyMemberHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := h.roster.SetPIN(r.PathValue("id"), req.PIN); err != nil {
		writeError(w, h.logger, err, "failed to set PIN")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

func (h *FamilyMemberHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.ClearPIN(r.PathValue("id")); err != nil {
		writeError(w, h.logger, err, "failed to clear PIN")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pin cleared"})
}

func (h *FamilyMemberHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := h.roster.VerifyPIN(r.PathValue("id"), req.PIN); err != nil {
		writeError(w, h.logger, err, "failed to verify PIN")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (h *FamilyMemberHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	out, err := h.roster.Assignments()
	if err != nil {
		writeError(w, h.logger, err, "failed to list assignments")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Assign handles PUT /api/tasks/{id}/assignee.
func (h *FamilyMemberHandler) Assign(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req struct {
		MemberID string `json:"member_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	task, err := h.tasks.Lookup(taskID)
	if err != nil {
		writeError(w, h.logger, err, "failed to get task")
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}

	a, err := h.roster.Assign(taskID, req.MemberID)
	if err != nil {
		writeError(w, h.logger, err, "failed to assign task")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Unassign handles DELETE /api/tasks/{id}/assignee.
func (h *FamilyMemberHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if err := h.roster.Unassign(taskID); err != nil {
		writeError(w, h.logger, err, "failed to unassign task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
