package middleware

import (
	"net/http"

	"github.com/okarpov/stash/internal/logger"
)

// Recover converts a handler panic into a 500 JSON response instead of
// tearing down the connection.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"detail":"Internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
