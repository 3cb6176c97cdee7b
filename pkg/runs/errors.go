package runs

import (
	"errors"
	"fmt"
)

// ErrNoFiles rejects a submission with an empty file set. No run is created.
var ErrNoFiles = errors.New("submission contains no files")

// ErrNoPolicies rejects a submission that selects no policy profiles.
var ErrNoPolicies = errors.New("submission selects no policy profiles")

// NotFoundError indicates an unknown run id.
type NotFoundError struct {
	RunID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("run %q not found", e.RunID)
}

// InvalidTransitionError indicates an attempted status change the state
// machine forbids. Terminal runs are immutable.
type InvalidTransitionError struct {
	RunID string
	From  Status
	To    Status
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("run %s: invalid status transition %s → %s", e.RunID, e.From, e.To)
}

// FatalPipelineError indicates a non-file-scoped infrastructure failure.
// The run transitions to failed; findings gathered before the failure are
// retained for diagnostics.
type FatalPipelineError struct {
	Stage string // "resolve_policies", "test_runner", "persist", ...
	Cause error
}

// Error implements the error interface.
func (e *FatalPipelineError) Error() string {
	return fmt.Sprintf("fatal pipeline error [stage=%s]: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *FatalPipelineError) Unwrap() error {
	return e.Cause
}

// NewFatalPipelineError creates a FatalPipelineError.
func NewFatalPipelineError(stage string, cause error) *FatalPipelineError {
	return &FatalPipelineError{
		Stage: stage,
		Cause: cause,
	}
}

// StorageError represents a run store backend failure.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("run storage error [backend=%s, operation=%s]: %v",
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
