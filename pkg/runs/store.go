package runs

import (
	"context"
	"time"

	"codecraft-hq/codecraft/pkg/scan"
)

// Store persists runs and the findings, metrics, and artifacts they own.
// Implementations must enforce the status state machine: UpdateStatus fails
// with an *InvalidTransitionError for any move CanTransition forbids, which
// makes terminal runs immutable at the storage boundary.
//
// Implementations live in pkg/runs/store.
type Store interface {
	// CreateRun inserts a new run in its initial state.
	CreateRun(ctx context.Context, run *Run) error

	// GetRun returns the run with the given id, or a *NotFoundError.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns all runs, newest first.
	ListRuns(ctx context.Context) ([]*Run, error)

	// UpdateStatus transitions a run. finishedAt must be non-nil exactly
	// when the target status is terminal; score must be non-nil exactly
	// when the target status is done.
	UpdateStatus(ctx context.Context, id string, to Status, finishedAt *time.Time, score *float64) error

	// AddFindings appends findings to a run.
	AddFindings(ctx context.Context, runID string, findings []scan.Finding) error

	// ListFindings returns a run's findings ordered by (file, line, rule key).
	ListFindings(ctx context.Context, runID string) ([]scan.Finding, error)

	// AddMetrics appends metric records to a run.
	AddMetrics(ctx context.Context, metrics []Metric) error

	// ListMetrics returns a run's metrics.
	ListMetrics(ctx context.Context, runID string) ([]Metric, error)

	// AddArtifacts appends artifact records to a run.
	AddArtifacts(ctx context.Context, artifacts []Artifact) error

	// ListArtifacts returns a run's artifacts.
	ListArtifacts(ctx context.Context, runID string) ([]Artifact, error)

	// DeleteRun removes a run and everything it owns. The core never calls
	// this; it exists for the retention collaborator.
	DeleteRun(ctx context.Context, runID string) error

	// ListTerminalRunsBefore returns terminal runs that finished before the
	// cutoff, oldest first. Used by the retention collaborator.
	ListTerminalRunsBefore(ctx context.Context, cutoff time.Time) ([]*Run, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
