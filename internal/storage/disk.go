package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// DiskBackend implements Backend on the local filesystem. It uses os.Root
// for sandboxed file operations, preventing path traversal out of the
// storage root.
type DiskBackend struct {
	root     *os.Root
	basePath string
}

// NewDiskBackend creates a disk-based storage backend rooted at basePath.
// The directory is created if it does not exist.
func NewDiskBackend(basePath string) (*DiskBackend, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	root, err := os.OpenRoot(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage root: %w", err)
	}

	return &DiskBackend{
		root:     root,
		basePath: basePath,
	}, nil
}

// EnsureDir creates an account directory. Creating an existing directory
// is not an error.
func (d *DiskBackend) EnsureDir(ctx context.Context, dir string) error {
	if err := d.root.MkdirAll(normalizeDir(dir), 0755); err != nil {
		return fmt.Errorf("failed to create account directory: %w", err)
	}
	return nil
}

// Save writes content to dir/storedName, creating the parent on demand.
func (d *DiskBackend) Save(ctx context.Context, r io.Reader, dir, storedName string) (int64, error) {
	if err := d.EnsureDir(ctx, dir); err != nil {
		return 0, err
	}

	relPath := path.Join(normalizeDir(dir), storedName)

	file, err := d.root.Create(relPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	buf := make([]byte, copyBufferSize)
	size, err := io.CopyBuffer(file, r, buf)
	if err != nil {
		d.root.Remove(relPath) // Clean up partial write
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	return size, nil
}

// Open returns a reader for the file at the given relative path.
func (d *DiskBackend) Open(ctx context.Context, relPath string) (io.ReadCloser, error) {
	file, err := d.root.Open(relPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Stat returns file metadata without opening it.
func (d *DiskBackend) Stat(ctx context.Context, relPath string) (FileInfo, error) {
	info, err := d.root.Stat(relPath)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, ErrNotFound
		}
		return FileInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}

	return FileInfo{
		Path:    relPath,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Delete removes a file. Returns nil if the file doesn't exist (idempotent).
func (d *DiskBackend) Delete(ctx context.Context, relPath string) error {
	if err := d.root.Remove(relPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// RemoveAll recursively removes an account directory, including files no
// record tracks. Absence of the directory is a clean state.
func (d *DiskBackend) RemoveAll(ctx context.Context, dir string) error {
	if err := d.root.RemoveAll(normalizeDir(dir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to purge account directory: %w", err)
	}
	return nil
}

// HealthCheck verifies the backend is reachable (cheap, safe for frequent polling).
func (d *DiskBackend) HealthCheck(ctx context.Context) error {
	if _, err := d.root.Stat("."); err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	return nil
}

// Close releases resources held by the backend.
func (d *DiskBackend) Close() error {
	return d.root.Close()
}

// normalizeDir strips the trailing slash account directories carry so the
// name is usable with os.Root operations.
func normalizeDir(dir string) string {
	return strings.TrimSuffix(dir, "/")
}
