package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/okarpov/stash/internal/account"
	"github.com/okarpov/stash/internal/auth"
	"github.com/okarpov/stash/internal/config"
	"github.com/okarpov/stash/internal/metrics"
)

type AuthHandler struct {
	cfg            *config.Config
	accounts       *account.Service
	sessionManager *scs.SessionManager
}

func NewAuthHandler(cfg *config.Config, accounts *account.Service, sessionManager *scs.SessionManager) *AuthHandler {
	return &AuthHandler{
		cfg:            cfg,
		accounts:       accounts,
		sessionManager: sessionManager,
	}
}

type RegisterRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Csrf exists so browser clients can prime the session cookie before the
// first state-changing request.
func (h *AuthHandler) Csrf(w http.ResponseWriter, r *http.Request) {
	respondDetail(w, http.StatusOK, "ok")
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.EnableRegistration {
		respondDetail(w, http.StatusForbidden, "Registration is disabled")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	acct, err := h.accounts.Register(r.Context(), req.Username, req.FullName, req.Email, req.Password)
	if err != nil {
		metrics.RegisterAttempts.WithLabelValues("failure").Inc()
		respondError(w, err)
		return
	}
	metrics.RegisterAttempts.WithLabelValues("success").Inc()

	respondJSON(w, http.StatusCreated, accountJSON(acct))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Username == "" || req.Password == "" {
		respondDetail(w, http.StatusBadRequest, "Missing username or password")
		return
	}

	acct, err := h.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		respondDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := auth.Login(r, h.sessionManager, acct.ID); err != nil {
		respondDetail(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()

	respondJSON(w, http.StatusOK, map[string]any{
		"detail": "Login successful",
		"user":   accountJSON(acct),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if auth.GetAccount(r) == nil {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := auth.Logout(r, h.sessionManager); err != nil {
		respondDetail(w, http.StatusInternalServerError, "Failed to destroy session")
		return
	}

	respondDetail(w, http.StatusOK, "Logout successful")
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	acct := auth.GetAccount(r)
	if acct == nil {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"user": accountJSON(acct)})
}
