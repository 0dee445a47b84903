// Package handler implements the JSON API surface of the dashboard.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rowanhall/hearth/internal/calendar"
	"github.com/rowanhall/hearth/internal/kv"
	"github.com/rowanhall/hearth/internal/ledger"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps service errors onto HTTP statuses. Unknown errors are
// reported as 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, calendar.ErrNotFound),
		errors.Is(err, kv.ErrNotFound):
		writeErrorMsg(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrValidation),
		errors.Is(err, calendar.ErrValidation),
		errors.Is(err, ledger.ErrIneligible),
		errors.Is(err, ledger.ErrInsufficientStars):
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, kv.ErrVersionConflict):
		writeErrorMsg(w, http.StatusConflict, "concurrent update, try again")
	default:
		writeErrorMsg(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
