package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/cleanhome/internal/catalog"
	"github.com/dukerupert/cleanhome/internal/family"
	"github.com/dukerupert/cleanhome/internal/ledger"
	"github.com/dukerupert/cleanhome/internal/model"
	"github.com/dukerupert/cleanhome/internal/recurrence"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrTaskNotFound),
		errors.Is(err, ledger.ErrUnknownTask),
		errors.Is(err, family.ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, family.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, family.ErrWrongPIN):
		return http.StatusUnauthorized
	case errors.Is(err, catalog.ErrNotCustom),
		errors.Is(err, catalog.ErrInvalidTask),
		errors.Is(err, recurrence.ErrInvalidFrequency),
		errors.Is(err, family.ErrNameRequired),
		errors.Is(err, family.ErrInvalidColor),
		errors.Is(err, family.ErrInvalidPIN),
		errors.Is(err, family.ErrNoPIN):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError writes err with its mapped status. Internal errors are logged
// and replaced by msg.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error, msg string) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, "error", err)
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// parseDate reads a YYYY-MM-DD value, defaulting to today when empty.
func parseDate(s string, now func() time.Time) (time.Time, error) {
	if s == "" {
		return model.Day(now()), nil
	}
	return model.ParseDay(s)
}
