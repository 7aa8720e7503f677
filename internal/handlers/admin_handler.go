package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/okarpov/stash/internal/account"
	"github.com/okarpov/stash/internal/auth"
	"github.com/okarpov/stash/internal/metrics"
	"github.com/okarpov/stash/internal/rank"
)

type AdminHandler struct {
	accounts *account.Service
}

func NewAdminHandler(accounts *account.Service) *AdminHandler {
	return &AdminHandler{accounts: accounts}
}

func accountIDParam(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "userID"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// ListUsers returns every account the actor may manage, the actor first,
// with per-account file counts and storage totals.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	acct := auth.GetAccount(r)

	summaries, err := h.accounts.List(r.Context(), acct)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(summaries))
	for i := range summaries {
		s := &summaries[i]
		entry := accountJSON(&s.Account)
		entry["files_count"] = s.FilesCount
		entry["total_storage_bytes"] = s.TotalStorageBytes
		out = append(out, entry)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	acct := auth.GetAccount(r)
	id, ok := accountIDParam(r)
	if !ok {
		respondDetail(w, http.StatusNotFound, "User not found")
		return
	}

	purgeFiles := r.URL.Query().Get("delete_files") == "1"

	if err := h.accounts.Delete(r.Context(), acct, id, purgeFiles); err != nil {
		respondError(w, err)
		return
	}
	metrics.AccountsDeleted.WithLabelValues(strconv.FormatBool(purgeFiles)).Inc()

	respondJSON(w, http.StatusOK, map[string]any{
		"detail":        "User deleted",
		"files_deleted": purgeFiles,
	})
}

func (h *AdminHandler) SetUserLevel(w http.ResponseWriter, r *http.Request) {
	acct := auth.GetAccount(r)
	id, ok := accountIDParam(r)
	if !ok {
		respondDetail(w, http.StatusNotFound, "User not found")
		return
	}

	var payload struct {
		Level string `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if payload.Level == "" {
		respondDetail(w, http.StatusBadRequest, "Missing level")
		return
	}
	if !rank.ValidLevel(payload.Level) {
		respondDetail(w, http.StatusBadRequest, "Invalid level")
		return
	}

	target, err := h.accounts.SetLevel(r.Context(), acct, id, payload.Level)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"detail": "User level updated",
		"user":   accountJSON(target),
	})
}
