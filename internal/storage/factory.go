package storage

import (
	"fmt"

	"github.com/okarpov/stash/internal/config"
)

// NewBackendFromConfig builds the backend named by STORAGE_BACKEND.
// "disk" (the default) keeps account directories sandboxed under
// cfg.StorageRoot, "memory" backs tests, and "s3" targets AWS or any
// S3-compatible endpoint such as MinIO.
func NewBackendFromConfig(cfg *config.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case "disk", "":
		return NewDiskBackend(cfg.StorageRoot)
	case "memory":
		return NewMemoryBackend(), nil
	case "s3":
		return NewS3Backend(S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
	}
	return nil, fmt.Errorf("unknown storage backend %q (want disk, memory or s3)", cfg.StorageBackend)
}
