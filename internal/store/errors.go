package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/margin/internal/model"
)

var (
	// ErrNotFound means no sidecar exists for the source file.
	ErrNotFound = errors.New("sidecar not found")
	// ErrOutsideRoot means a path resolves outside the project root or into
	// the sidecar directory.
	ErrOutsideRoot = errors.New("path is outside the project root")
)

// LockTimeoutError is returned when a lock cannot be acquired in time. It is
// retryable.
type LockTimeoutError struct {
	Path      string
	Exclusive bool
	Timeout   time.Duration
}

func (e *LockTimeoutError) Error() string {
	kind := "shared"
	if e.Exclusive {
		kind = "exclusive"
	}
	return fmt.Sprintf("timed out after %s waiting for %s lock on %s; retry", e.Timeout, kind, e.Path)
}

// ConflictError is returned by Save when the sidecar changed since the caller
// read it.
type ConflictError struct {
	Path     string
	Expected string
	Actual   string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sidecar %s changed since it was read (%s); re-read and retry", e.Path, e.Reason)
}

// CorruptRecordError is returned when a sidecar cannot be decoded or fails
// validation. The store refuses to operate on that file until it is repaired.
type CorruptRecordError struct {
	Path     string
	Err      error
	Problems []model.ValidationError
}

func (e *CorruptRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sidecar %s is corrupt: %v", e.Path, e.Err)
	}
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return fmt.Sprintf("sidecar %s is corrupt: %s", e.Path, strings.Join(msgs, "; "))
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsLockTimeout reports whether err is a LockTimeoutError.
func IsLockTimeout(err error) bool {
	var target *LockTimeoutError
	return errors.As(err, &target)
}

// IsCorrupt reports whether err is a CorruptRecordError.
func IsCorrupt(err error) bool {
	var target *CorruptRecordError
	return errors.As(err, &target)
}

// IsRetryable reports whether the operation may succeed if attempted again.
func IsRetryable(err error) bool {
	return IsConflict(err) || IsLockTimeout(err)
}
