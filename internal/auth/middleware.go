package auth

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/okarpov/stash/internal/database/models"
	"gorm.io/gorm"
)

type contextKey string

const accountContextKey contextKey = "account"

// sessionAccountKey is the scs session key holding the account id.
const sessionAccountKey = "account_id"

// Login records the account in the session, rotating the token first.
func Login(r *http.Request, sm *scs.SessionManager, accountID uint) error {
	if err := sm.RenewToken(r.Context()); err != nil {
		return err
	}
	sm.Put(r.Context(), sessionAccountKey, int(accountID))
	return nil
}

// Logout destroys the current session.
func Logout(r *http.Request, sm *scs.SessionManager) error {
	return sm.Destroy(r.Context())
}

// accountFromSession resolves the session's account id to a live record.
func accountFromSession(r *http.Request, db *gorm.DB, sm *scs.SessionManager) *models.Account {
	id := sm.GetInt(r.Context(), sessionAccountKey)
	if id <= 0 {
		return nil
	}

	var account models.Account
	if err := db.First(&account, id).Error; err != nil {
		return nil
	}
	return &account
}

// RequireAuth rejects unauthenticated requests with a 401 JSON body and
// injects the acting account into the request context otherwise.
func RequireAuth(db *gorm.DB, sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := accountFromSession(r, db, sm)
			if account == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail":"Authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth injects the acting account when a valid session exists and
// passes the request through either way.
func OptionalAuth(db *gorm.DB, sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if account := accountFromSession(r, db, sm); account != nil {
				ctx := context.WithValue(r.Context(), accountContextKey, account)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetAccount returns the acting account from the request context, or nil.
func GetAccount(r *http.Request) *models.Account {
	account, _ := r.Context().Value(accountContextKey).(*models.Account)
	return account
}
