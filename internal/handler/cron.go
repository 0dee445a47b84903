package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rowanhall/hearth/internal/backup"
	"github.com/rowanhall/hearth/internal/notify"
)

// CronHandler serves the endpoints an external scheduler hits: the morning
// digest and the store snapshot. Both are idempotent within their window.
type CronHandler struct {
	digest      *notify.Digest
	snapshotter *backup.Snapshotter
	logger      *slog.Logger
}

func NewCronHandler(digest *notify.Digest, snapshotter *backup.Snapshotter, logger *slog.Logger) *CronHandler {
	return &CronHandler{digest: digest, snapshotter: snapshotter, logger: logger}
}

// Digest triggers the morning digest. Firing outside the window or after
// this window's digest went out is a skip, not a failure; the scheduler
// retries blindly and should not see errors for expected no-ops.
func (h *CronHandler) Digest(w http.ResponseWriter, r *http.Request) {
	err := h.digest.Run(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	case errors.Is(err, notify.ErrOutsideWindow):
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "outside window"})
	case errors.Is(err, notify.ErrAlreadySent):
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "already sent"})
	default:
		h.logger.Error("digest run", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "digest failed")
	}
}

// Backup snapshots the document store to S3.
func (h *CronHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if !h.snapshotter.Configured() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "backup not configured"})
		return
	}

	key, err := h.snapshotter.Run(r.Context())
	if err != nil {
		h.logger.Error("snapshot run", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "backup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "key": key})
}

// Restore loads a named snapshot back into the document store, replacing
// the documents it contains. Meant for disaster recovery, run by hand.
func (h *CronHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if !h.snapshotter.Configured() {
		writeErrorMsg(w, http.StatusServiceUnavailable, "backup not configured")
		return
	}

	var req struct {
		Key string `json:"key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Key == "" {
		writeErrorMsg(w, http.StatusBadRequest, "key is required")
		return
	}

	if err := h.snapshotter.Restore(r.Context(), req.Key); err != nil {
		h.logger.Error("snapshot restore", "key", req.Key, "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "restore failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "restored", "key": req.Key})
}
