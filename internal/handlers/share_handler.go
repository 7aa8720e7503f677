package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okarpov/stash/internal/auth"
	"github.com/okarpov/stash/internal/file"
	"github.com/okarpov/stash/internal/metrics"
)

type ShareHandler struct {
	files *file.Service
}

func NewShareHandler(files *file.Service) *ShareHandler {
	return &ShareHandler{files: files}
}

func (h *ShareHandler) Enable(w http.ResponseWriter, r *http.Request) {
	acct := auth.GetAccount(r)
	id, ok := fileIDParam(r)
	if !ok {
		respondDetail(w, http.StatusNotFound, "Not found")
		return
	}

	f, err := h.files.EnableShare(r.Context(), acct, id)
	if err != nil {
		respondError(w, err)
		return
	}
	metrics.SharesEnabled.Inc()

	respondJSON(w, http.StatusOK, map[string]any{
		"id":            f.ID,
		"share_url":     shareURL(r, f),
		"share_created": f.ShareCreated,
		"share_token":   f.ShareToken,
	})
}

func (h *ShareHandler) Disable(w http.ResponseWriter, r *http.Request) {
	acct := auth.GetAccount(r)
	id, ok := fileIDParam(r)
	if !ok {
		respondDetail(w, http.StatusNotFound, "Not found")
		return
	}

	f, err := h.files.DisableShare(r.Context(), acct, id)
	if err != nil {
		respondError(w, err)
		return
	}
	metrics.SharesDisabled.Inc()

	respondJSON(w, http.StatusOK, map[string]any{
		"id":            f.ID,
		"share_url":     nil,
		"share_created": nil,
		"share_token":   nil,
	})
}

// Download serves a shared file to anyone holding the token. No session
// is required; a revoked or unknown token is indistinguishable from a
// missing file.
func (h *ShareHandler) Download(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	f, rc, err := h.files.ResolveShare(r.Context(), token)
	if err != nil {
		respondError(w, err)
		return
	}
	defer rc.Close()

	serveFileContent(w, f.OriginalName, f.SizeBytes, true, rc)
	metrics.FilesDownloaded.WithLabelValues("share").Inc()
}
