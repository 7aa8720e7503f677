package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the requested file does not exist in the backend.
var ErrNotFound = errors.New("file not found in storage")

// copyBufferSize is the buffer size used for file copies (8MB aligns with S3 multipart upload parts)
const copyBufferSize = 8 * 1024 * 1024

// Backend is the physical side of the storage addressing scheme. Every
// account owns one directory under the root; every file lives at
// dir/storedName. Implementations must treat EnsureDir and Delete as
// idempotent: an already-existing directory and an already-missing file
// are both clean states, not errors.
type Backend interface {
	// EnsureDir creates the account directory if absent.
	EnsureDir(ctx context.Context, dir string) error
	// Save writes the reader's content to dir/storedName, creating the
	// parent on demand. A partial file left by a failed write is removed
	// before the error is returned.
	Save(ctx context.Context, r io.Reader, dir, storedName string) (int64, error)
	// Open returns a reader for the file at the given relative path.
	Open(ctx context.Context, relPath string) (io.ReadCloser, error)
	// Stat returns file metadata without opening it.
	Stat(ctx context.Context, relPath string) (FileInfo, error)
	// Delete removes a file. Absence is not an error.
	Delete(ctx context.Context, relPath string) error
	// RemoveAll recursively removes an account directory and everything
	// under it, tracked by a record or not. Any I/O failure is surfaced.
	RemoveAll(ctx context.Context, dir string) error
	// HealthCheck verifies the backend is reachable (cheap, safe for frequent polling).
	HealthCheck(ctx context.Context) error
	// Close releases resources held by the backend.
	Close() error
}

// FileInfo describes a stored file.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// NewAccountDir generates a unique storage directory name for an account.
// The username prefix keeps the layout inspectable; the random suffix
// guarantees uniqueness (enforced again by the accounts unique index).
// The trailing slash makes relative paths a plain concatenation.
func NewAccountDir(username string) string {
	return username + "_" + uuid.New().String() + "/"
}

// StoredName generates a unique physical filename preserving the original
// file's extension, lower-cased. Uniqueness is enforced by the files
// unique index; callers retry on a collision.
func StoredName(originalName string) string {
	u := uuid.New()
	ext := strings.ToLower(filepath.Ext(originalName))
	return hex.EncodeToString(u[:]) + ext
}

// JoinRel builds the relative path of a stored file from the owner's
// directory and the stored name.
func JoinRel(dir, storedName string) string {
	return path.Join(dir, storedName)
}
