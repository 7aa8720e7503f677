package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/liamg/memoryfs"
)

// MemoryBackend implements Backend using an in-memory filesystem.
// Useful for integration testing without disk I/O.
// Thread-safe for concurrent use.
type MemoryBackend struct {
	fs *memoryfs.FS
	mu sync.RWMutex // Protects fs operations
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		fs: memoryfs.New(),
	}
}

// EnsureDir creates an account directory if absent.
func (m *MemoryBackend) EnsureDir(ctx context.Context, dir string) error {
	m.mu.Lock()
	err := m.fs.MkdirAll(normalizeDir(dir), 0755)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to create account directory: %w", err)
	}
	return nil
}

// Save writes content to dir/storedName.
func (m *MemoryBackend) Save(ctx context.Context, r io.Reader, dir, storedName string) (int64, error) {
	if err := m.EnsureDir(ctx, dir); err != nil {
		return 0, err
	}

	// memoryfs.WriteFile requires complete content, so buffer the reader.
	var buf bytes.Buffer
	copyBuf := make([]byte, copyBufferSize)
	size, err := io.CopyBuffer(&buf, r, copyBuf)
	if err != nil {
		return 0, fmt.Errorf("failed to read content: %w", err)
	}

	relPath := path.Join(normalizeDir(dir), storedName)

	m.mu.Lock()
	err = m.fs.WriteFile(relPath, buf.Bytes(), 0644)
	m.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	return size, nil
}

// Open returns a reader for the file at the given relative path.
func (m *MemoryBackend) Open(ctx context.Context, relPath string) (io.ReadCloser, error) {
	m.mu.RLock()
	content, err := m.fs.ReadFile(relPath)
	m.mu.RUnlock()
	if err != nil {
		if isNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return io.NopCloser(bytes.NewReader(content)), nil
}

// Stat returns file metadata without opening it.
func (m *MemoryBackend) Stat(ctx context.Context, relPath string) (FileInfo, error) {
	m.mu.RLock()
	info, err := m.fs.Stat(relPath)
	m.mu.RUnlock()
	if err != nil {
		if isNotExist(err) {
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
func (m *MemoryBackend) Delete(ctx context.Context, relPath string) error {
	m.mu.Lock()
	err := m.fs.Remove(relPath)
	m.mu.Unlock()
	if err != nil && !isNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// RemoveAll recursively removes an account directory and its contents.
func (m *MemoryBackend) RemoveAll(ctx context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeTree(normalizeDir(dir))
}

// removeTree removes files depth-first under dir. Caller holds the lock.
func (m *MemoryBackend) removeTree(dir string) error {
	entries, err := m.fs.ReadDir(dir)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to list account directory: %w", err)
	}

	for _, entry := range entries {
		child := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := m.removeTree(child); err != nil {
				return err
			}
			continue
		}
		if err := m.fs.Remove(child); err != nil && !isNotExist(err) {
			return fmt.Errorf("failed to purge file: %w", err)
		}
	}

	// Leave the empty directory node behind: memoryfs has no directory
	// removal, and an empty dir is indistinguishable from a purged one
	// for every caller of this backend.
	return nil
}

// HealthCheck verifies the backend is reachable.
// For memory backend, always returns nil (no external dependencies).
func (m *MemoryBackend) HealthCheck(ctx context.Context) error {
	return nil
}

// Close releases resources held by the backend. No-op for memory.
func (m *MemoryBackend) Close() error {
	return nil
}

// Clear removes all files from the memory backend.
// Useful for test cleanup.
func (m *MemoryBackend) Clear() {
	m.mu.Lock()
	m.fs = memoryfs.New()
	m.mu.Unlock()
}

// FileCount returns the number of files currently stored across all
// account directories. Useful for testing.
func (m *MemoryBackend) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countFiles(".")
}

func (m *MemoryBackend) countFiles(dir string) int {
	entries, err := m.fs.ReadDir(dir)
	if err != nil {
		return 0
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			count += m.countFiles(path.Join(dir, entry.Name()))
		} else {
			count++
		}
	}
	return count
}

// isNotExist checks if an error indicates the file doesn't exist.
func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	// memoryfs wraps errors, so check the error message
	errStr := err.Error()
	return strings.Contains(errStr, "file does not exist") ||
		strings.Contains(errStr, "no such file")
}
