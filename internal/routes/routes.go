package routes

import (
	"net/http"
	"time"

	csrf "filippo.io/csrf/gorilla"
	"github.com/alexedwards/scs/v2"
	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/go-chi/chi/v5"
	"github.com/okarpov/stash/internal/account"
	"github.com/okarpov/stash/internal/auth"
	"github.com/okarpov/stash/internal/config"
	"github.com/okarpov/stash/internal/file"
	"github.com/okarpov/stash/internal/handlers"
	"github.com/okarpov/stash/internal/logger"
	"github.com/okarpov/stash/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Setup wires the API surface onto the provided router.
//
// CSRF protection uses Fetch Metadata headers (Sec-Fetch-Site, Origin)
// rather than double-submit tokens. Cross-site browser requests are
// blocked; requests without those headers (curl, API clients, mobile
// apps) pass through, since they do not attach cookies automatically
// and still need a valid session. /api/auth/csrf exists so browser
// clients can prime the session cookie; no token is issued or checked.
func Setup(r chi.Router, db *gorm.DB, cfg *config.Config, backend storage.Backend, sessionManager *scs.SessionManager, version string) {
	accounts := account.NewService(db, backend, cfg.BcryptCost)
	files := file.NewService(db, backend)

	authHandler := handlers.NewAuthHandler(cfg, accounts, sessionManager)
	fileHandler := handlers.NewFileHandler(files)
	shareHandler := handlers.NewShareHandler(files)
	adminHandler := handlers.NewAdminHandler(accounts)
	healthHandler := handlers.NewHealthHandler(db, backend, version)

	// 5 login/register attempts per 15 minutes per IP
	authRateLimiter := tollbooth.NewLimiter(5.0/900.0, &limiter.ExpirableOptions{
		DefaultExpirationTTL: 15 * time.Minute,
	})
	authRateLimiter.SetBurst(5)
	authRateLimiter.SetMessageContentType("application/json")
	authRateLimiter.SetMessage(`{"detail": "Too many requests. Please try again later."}`)

	var csrfMiddleware func(http.Handler) http.Handler
	if cfg.CSRFEnabled {
		// The key must be exactly 32 bytes and persist across restarts.
		csrfMiddleware = csrf.Protect(
			[]byte(cfg.SessionSecret),
			csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.Warn("csrf validation failed",
					"reason", csrf.FailureReason(r),
					"method", r.Method,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"detail": "CSRF validation failed"}`))
			})),
		)
	} else {
		csrfMiddleware = func(next http.Handler) http.Handler {
			return next
		}
	}

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Public share downloads carry no session.
	r.Get("/api/share/{token}", shareHandler.Download)
	r.Get("/api/share/{token}/", shareHandler.Download)

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)

		r.Get("/csrf", authHandler.Csrf)

		r.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return tollbooth.LimitHandler(authRateLimiter, next)
			})
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(db, sessionManager))
			r.Use(csrfMiddleware)
			r.Post("/logout", authHandler.Logout)
			// GET kept for clients that treat logout as navigation.
			r.Get("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})
	})

	r.Route("/api/files", func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(auth.RequireAuth(db, sessionManager))
		r.Use(csrfMiddleware)

		r.Get("/", fileHandler.List)
		r.Post("/upload", fileHandler.Upload)
		r.Delete("/{fileID}", fileHandler.Delete)
		r.Patch("/{fileID}/rename", fileHandler.Rename)
		r.Patch("/{fileID}/comment", fileHandler.Comment)
		r.Get("/{fileID}/download", fileHandler.Download)
		r.Post("/{fileID}/share", shareHandler.Enable)
		r.Post("/{fileID}/share/disable", shareHandler.Disable)
	})

	r.Route("/api/admin/users", func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(auth.RequireAuth(db, sessionManager))
		r.Use(csrfMiddleware)

		r.Get("/", adminHandler.ListUsers)
		r.Delete("/{userID}", adminHandler.DeleteUser)
		r.Patch("/{userID}/level", adminHandler.SetUserLevel)
	})
}
