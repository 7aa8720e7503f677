package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/okarpov/stash/internal/auth"
	"github.com/okarpov/stash/internal/config"
	"github.com/okarpov/stash/internal/database"
	"github.com/okarpov/stash/internal/logger"
	internalMiddleware "github.com/okarpov/stash/internal/middleware"
	"github.com/okarpov/stash/internal/routes"
	"github.com/okarpov/stash/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Env)

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"db_type", cfg.DBType,
		"storage_backend", cfg.StorageBackend,
	)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	backend, err := storage.NewBackendFromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer backend.Close()

	sessionManager, err := auth.NewSessionManager(db, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(internalMiddleware.LoggingMiddleware)
	r.Use(internalMiddleware.Recover)
	r.Use(internalMiddleware.SecurityHeaders)

	versionInfo := fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	routes.Setup(r, db, cfg, backend, sessionManager, versionInfo)

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	logger.Info("starting stash server",
		"address", addr,
		"environment", cfg.Env,
		"version", versionInfo,
	)

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
