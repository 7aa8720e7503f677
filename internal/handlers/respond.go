package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okarpov/stash/internal/core"
	"github.com/okarpov/stash/internal/database/models"
	"github.com/okarpov/stash/internal/logger"
	"github.com/okarpov/stash/internal/rank"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

// respondError translates a service error into the protocol status
// mapping. Operational failures are logged with their cause; the client
// only learns that the operation failed.
func respondError(w http.ResponseWriter, err error) {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"detail": "Validation error",
			"errors": verr.Fields,
		})
		return
	}

	var operr *core.OperationalError
	if errors.As(err, &operr) {
		logger.Error("operational failure", "op", operr.Op, "error", operr.Err)
		respondDetail(w, http.StatusInternalServerError, "Operation failed")
		return
	}

	switch {
	case errors.Is(err, core.ErrForbidden):
		respondDetail(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, core.ErrNotFound):
		respondDetail(w, http.StatusNotFound, "Not found")
	case errors.Is(err, core.ErrConflict):
		respondDetail(w, http.StatusConflict, "Conflict")
	case errors.Is(err, core.ErrBadRequest):
		respondDetail(w, http.StatusBadRequest, "Bad request")
	default:
		logger.Error("internal error", "error", err)
		respondDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

// accountJSON is the wire shape of an account, including its derived
// level and rank.
func accountJSON(a *models.Account) map[string]any {
	return map[string]any{
		"id":           a.ID,
		"username":     a.Username,
		"full_name":    a.FullName,
		"email":        a.Email,
		"is_admin":     a.IsAdmin,
		"is_staff":     a.IsStaff,
		"is_superuser": a.IsSuperuser,
		"level":        rank.LevelOf(a),
		"rank":         rank.RankOf(a),
		"storage_path": a.StoragePath,
	}
}

// shareURL renders the public link for a file's token, or nil when the
// file is not shared.
func shareURL(r *http.Request, f *models.File) any {
	if f.ShareToken == nil {
		return nil
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/api/share/" + *f.ShareToken + "/"
}

// fileJSON is the wire shape of a file record.
func fileJSON(r *http.Request, f *models.File) map[string]any {
	var lastDownloaded any
	if f.LastDownloaded != nil {
		lastDownloaded = f.LastDownloaded
	}
	var shareCreated any
	if f.ShareCreated != nil {
		shareCreated = f.ShareCreated
	}

	return map[string]any{
		"id":              f.ID,
		"original_name":   f.OriginalName,
		"size_bytes":      f.SizeBytes,
		"comment":         f.Comment,
		"uploaded":        f.Uploaded,
		"last_downloaded": lastDownloaded,
		"share_url":       shareURL(r, f),
		"share_created":   shareCreated,
	}
}
