package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/okarpov/stash/internal/storage"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db      *gorm.DB
	storage storage.Backend
	version string
}

func NewHealthHandler(db *gorm.DB, backend storage.Backend, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		storage: backend,
		version: version,
	}
}

type HealthResponse struct {
	Status  string           `json:"status"`
	Version string           `json:"version"`
	Checks  map[string]Check `json:"checks"`
	Uptime  string           `json:"uptime,omitempty"`
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

var startTime = time.Now()

// Health reports overall service health from a database ping and a
// storage backend probe. Any failing check makes the whole response 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Check{
		"database": h.checkDatabase(r.Context()),
		"storage":  h.checkStorage(r.Context()),
	}

	status := "healthy"
	for _, c := range checks {
		if c.Status != "healthy" {
			status = "unhealthy"
			break
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, HealthResponse{
		Status:  status,
		Version: h.version,
		Checks:  checks,
		Uptime:  time.Since(startTime).Round(time.Second).String(),
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		return Check{
			Status:  "unhealthy",
			Message: err.Error(),
			Latency: time.Since(start).String(),
		}
	}
	return Check{Status: "healthy", Latency: time.Since(start).String()}
}

func (h *HealthHandler) checkStorage(ctx context.Context) Check {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.storage.HealthCheck(ctx); err != nil {
		return Check{
			Status:  "unhealthy",
			Message: err.Error(),
			Latency: time.Since(start).String(),
		}
	}
	return Check{Status: "healthy", Latency: time.Since(start).String()}
}
