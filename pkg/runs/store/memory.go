package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"codecraft-hq/codecraft/pkg/runs"
	"codecraft-hq/codecraft/pkg/scan"
)

// MemoryStore is an in-memory runs.Store. All state is lost when the process
// exits.
type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[string]*runs.Run
	findings  map[string][]scan.Finding
	metrics   map[string][]runs.Metric
	artifacts map[string][]runs.Artifact
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:      make(map[string]*runs.Run),
		findings:  make(map[string][]scan.Finding),
		metrics:   make(map[string][]runs.Metric),
		artifacts: make(map[string][]runs.Artifact),
	}
}

// CreateRun inserts a new run.
func (s *MemoryStore) CreateRun(_ context.Context, run *runs.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

// GetRun returns the run with the given id.
func (s *MemoryStore) GetRun(_ context.Context, id string) (*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, &runs.NotFoundError{RunID: id}
	}
	copied := *run
	return &copied, nil
}

// ListRuns returns all runs, newest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*runs.Run, 0, len(s.runs))
	for _, run := range s.runs {
		copied := *run
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// UpdateStatus transitions a run, enforcing the state machine.
func (s *MemoryStore) UpdateStatus(_ context.Context, id string, to runs.Status, finishedAt *time.Time, score *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return &runs.NotFoundError{RunID: id}
	}
	if err := validateUpdate(id, run.Status, to, finishedAt, score); err != nil {
		return err
	}

	run.Status = to
	run.FinishedAt = finishedAt
	run.ComplianceScore = score
	return nil
}

// AddFindings appends findings to a run.
func (s *MemoryStore) AddFindings(_ context.Context, runID string, findings []scan.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return &runs.NotFoundError{RunID: runID}
	}
	s.findings[runID] = append(s.findings[runID], findings...)
	return nil
}

// ListFindings returns a run's findings ordered by (file, line, rule key).
func (s *MemoryStore) ListFindings(_ context.Context, runID string) ([]scan.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, &runs.NotFoundError{RunID: runID}
	}
	out := append([]scan.Finding(nil), s.findings[runID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].RuleKey < out[j].RuleKey
	})
	return out, nil
}

// AddMetrics appends metric records.
func (s *MemoryStore) AddMetrics(_ context.Context, metrics []runs.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range metrics {
		if _, ok := s.runs[m.RunID]; !ok {
			return &runs.NotFoundError{RunID: m.RunID}
		}
		s.metrics[m.RunID] = append(s.metrics[m.RunID], m)
	}
	return nil
}

// ListMetrics returns a run's metrics.
func (s *MemoryStore) ListMetrics(_ context.Context, runID string) ([]runs.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, &runs.NotFoundError{RunID: runID}
	}
	return append([]runs.Metric(nil), s.metrics[runID]...), nil
}

// AddArtifacts appends artifact records.
func (s *MemoryStore) AddArtifacts(_ context.Context, artifacts []runs.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range artifacts {
		if _, ok := s.runs[a.RunID]; !ok {
			return &runs.NotFoundError{RunID: a.RunID}
		}
		s.artifacts[a.RunID] = append(s.artifacts[a.RunID], a)
	}
	return nil
}

// ListArtifacts returns a run's artifacts.
func (s *MemoryStore) ListArtifacts(_ context.Context, runID string) ([]runs.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, &runs.NotFoundError{RunID: runID}
	}
	return append([]runs.Artifact(nil), s.artifacts[runID]...), nil
}

// DeleteRun removes a run and everything it owns.
func (s *MemoryStore) DeleteRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return &runs.NotFoundError{RunID: runID}
	}
	delete(s.runs, runID)
	delete(s.findings, runID)
	delete(s.metrics, runID)
	delete(s.artifacts, runID)
	return nil
}

// ListTerminalRunsBefore returns terminal runs finished before the cutoff,
// oldest first.
func (s *MemoryStore) ListTerminalRunsBefore(_ context.Context, cutoff time.Time) ([]*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*runs.Run
	for _, run := range s.runs {
		if !run.Status.Terminal() || run.FinishedAt == nil {
			continue
		}
		if run.FinishedAt.Before(cutoff) {
			copied := *run
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FinishedAt.Before(*out[j].FinishedAt)
	})
	return out, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
