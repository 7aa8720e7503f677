// Package core holds the error taxonomy shared by the account and file
// services. Handlers translate these into HTTP statuses; the services
// return them before any mutation happens, so a non-nil error always
// means no partial state.
package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrForbidden means the acting account is not authorized. It
	// carries no detail about what exists.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means the target account, file, token, or physical
	// bytes are absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the operation would remove the last superuser.
	ErrConflict = errors.New("conflict")
	// ErrBadRequest means a malformed or missing field.
	ErrBadRequest = errors.New("bad request")
)

// ValidationError carries per-field error messages from registration
// validation. It is returned instead of ErrBadRequest when the caller
// needs the field breakdown.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

// Add appends a message to a field's error list.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// HasErrors reports whether any field failed.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OperationalError marks an I/O failure during a physical step (purge,
// write, unlink). The wrapped error keeps the cause for logs; clients
// only see that the operation failed.
type OperationalError struct {
	Op  string
	Err error
}

func (e *OperationalError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OperationalError) Unwrap() error {
	return e.Err
}

// IsDuplicateKey reports whether the record store rejected a write for a
// unique-constraint collision. Generated identifiers (storage paths,
// stored names, share tokens) are retried on this condition.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
