package store

import (
	"context"
	"errors"
	"fmt"

	"codecraft-hq/codecraft/pkg/policy"
)

// errNilProfile guards Put against incomplete profiles.
var errNilProfile = errors.New("profile is nil or has no id")

// Store is the append-only policy profile catalog.
type Store interface {
	// Put inserts a new profile. It fails with an AlreadyExistsError if a
	// profile with the same id is already present; profiles are immutable
	// and are never replaced in place.
	Put(ctx context.Context, profile *policy.Profile) error

	// Get returns the profile with the given id, or a NotFoundError.
	Get(ctx context.Context, id string) (*policy.Profile, error)

	// List returns all profiles ordered by creation time, oldest first.
	List(ctx context.Context) ([]*policy.Profile, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// NotFoundError indicates a profile id that does not exist in the catalog.
type NotFoundError struct {
	ProfileID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("policy profile %q not found", e.ProfileID)
}

// AlreadyExistsError indicates an attempt to insert a profile whose id is
// already present. The catalog is append-only; this is always a caller bug.
type AlreadyExistsError struct {
	ProfileID string
}

// Error implements the error interface.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("policy profile %q already exists", e.ProfileID)
}

// StorageError represents a backend failure.
type StorageError struct {
	Backend   string // "memory", "sqlite"
	Operation string // "put", "get", "list", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("policy storage error [backend=%s, operation=%s]: %v",
		e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}
