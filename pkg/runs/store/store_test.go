package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"codecraft-hq/codecraft/pkg/policy"
	"codecraft-hq/codecraft/pkg/runs"
	"codecraft-hq/codecraft/pkg/scan"
)

// storeFactories builds a fresh store per backend so every test exercises
// both implementations.
var storeFactories = map[string]func(t *testing.T) runs.Store{
	"memory": func(t *testing.T) runs.Store {
		return NewMemoryStore()
	},
	"sqlite": func(t *testing.T) runs.Store {
		store, err := NewSQLiteStore(SQLiteConfig{
			Path: filepath.Join(t.TempDir(), "runs.db"),
		})
		if err != nil {
			t.Fatalf("NewSQLiteStore failed: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	},
}

func testRun(startedAt time.Time) *runs.Run {
	return &runs.Run{
		ID:           uuid.NewString(),
		Status:       runs.StatusQueued,
		Language:     "python",
		ModelVersion: "stub-v1",
		Mode:         runs.ModeSuggest,
		PolicyIDs:    []string{uuid.NewString()},
		SubmittedBy:  "tester",
		StartedAt:    startedAt,
	}
}

func testFinding(filePath string, line int, ruleKey string) scan.Finding {
	return scan.Finding{
		ID:       uuid.NewString(),
		RuleID:   uuid.NewString(),
		RuleKey:  ruleKey,
		FilePath: filePath,
		Line:     line,
		Severity: policy.SeverityHigh,
		Status:   scan.StatusOpen,
		Evidence: "eval(data)",
	}
}

// mustFinish drives a run to the given terminal status through the legal
// transition path.
func mustFinish(t *testing.T, store runs.Store, run *runs.Run, to runs.Status, finishedAt time.Time) {
	t.Helper()
	ctx := context.Background()

	if err := store.UpdateStatus(ctx, run.ID, runs.StatusRunning, nil, nil); err != nil {
		t.Fatalf("transition to running failed: %v", err)
	}
	var score *float64
	if to == runs.StatusDone {
		v := 0.75
		score = &v
	}
	if err := store.UpdateStatus(ctx, run.ID, to, &finishedAt, score); err != nil {
		t.Fatalf("transition to %s failed: %v", to, err)
	}
}

// TestCreateAndGetRun verifies the basic round trip.
func TestCreateAndGetRun(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			run := testRun(time.Now().UTC().Truncate(time.Millisecond))
			if err := store.CreateRun(ctx, run); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}

			got, err := store.GetRun(ctx, run.ID)
			if err != nil {
				t.Fatalf("GetRun failed: %v", err)
			}
			if got.ID != run.ID || got.Status != runs.StatusQueued {
				t.Errorf("got run %+v", got)
			}
			if got.Language != "python" || got.Mode != runs.ModeSuggest {
				t.Errorf("run fields lost: %+v", got)
			}
			if len(got.PolicyIDs) != 1 || got.PolicyIDs[0] != run.PolicyIDs[0] {
				t.Errorf("policy ids = %v, want %v", got.PolicyIDs, run.PolicyIDs)
			}
			if !got.StartedAt.Equal(run.StartedAt) {
				t.Errorf("started_at = %v, want %v", got.StartedAt, run.StartedAt)
			}
			if got.FinishedAt != nil || got.ComplianceScore != nil {
				t.Errorf("queued run should have no finished_at or score: %+v", got)
			}
		})
	}
}

// TestGetRunNotFound verifies the typed error for unknown ids.
func TestGetRunNotFound(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)

			_, err := store.GetRun(context.Background(), uuid.NewString())
			var notFound *runs.NotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("expected NotFoundError, got %v", err)
			}
		})
	}
}

// TestListRunsNewestFirst verifies list ordering.
func TestListRunsNewestFirst(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			base := time.Now().UTC().Truncate(time.Millisecond)
			oldest := testRun(base.Add(-2 * time.Hour))
			middle := testRun(base.Add(-1 * time.Hour))
			newest := testRun(base)
			for _, run := range []*runs.Run{middle, newest, oldest} {
				if err := store.CreateRun(ctx, run); err != nil {
					t.Fatalf("CreateRun failed: %v", err)
				}
			}

			listed, err := store.ListRuns(ctx)
			if err != nil {
				t.Fatalf("ListRuns failed: %v", err)
			}
			if len(listed) != 3 {
				t.Fatalf("got %d runs, want 3", len(listed))
			}
			want := []string{newest.ID, middle.ID, oldest.ID}
			for i, run := range listed {
				if run.ID != want[i] {
					t.Errorf("position %d: got %s, want %s", i, run.ID, want[i])
				}
			}
		})
	}
}

// TestStatusLifecycle walks the legal state machine for both terminal
// outcomes.
func TestStatusLifecycle(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			finishedAt := time.Now().UTC().Truncate(time.Millisecond)

			done := testRun(finishedAt.Add(-time.Minute))
			if err := store.CreateRun(ctx, done); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}
			mustFinish(t, store, done, runs.StatusDone, finishedAt)

			got, err := store.GetRun(ctx, done.ID)
			if err != nil {
				t.Fatalf("GetRun failed: %v", err)
			}
			if got.Status != runs.StatusDone {
				t.Errorf("status = %s, want done", got.Status)
			}
			if got.FinishedAt == nil || !got.FinishedAt.Equal(finishedAt) {
				t.Errorf("finished_at = %v, want %v", got.FinishedAt, finishedAt)
			}
			if got.ComplianceScore == nil || *got.ComplianceScore != 0.75 {
				t.Errorf("compliance_score = %v, want 0.75", got.ComplianceScore)
			}

			failed := testRun(finishedAt.Add(-time.Minute))
			if err := store.CreateRun(ctx, failed); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}
			mustFinish(t, store, failed, runs.StatusFailed, finishedAt)

			got, err = store.GetRun(ctx, failed.ID)
			if err != nil {
				t.Fatalf("GetRun failed: %v", err)
			}
			if got.Status != runs.StatusFailed {
				t.Errorf("status = %s, want failed", got.Status)
			}
			if got.FinishedAt == nil {
				t.Error("failed run should have finished_at")
			}
			if got.ComplianceScore != nil {
				t.Errorf("failed run should have no score, got %v", *got.ComplianceScore)
			}
		})
	}
}

// TestInvalidTransitions verifies every forbidden status move is rejected
// and leaves the run untouched.
func TestInvalidTransitions(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)
			score := 1.0

			queued := testRun(now)
			if err := store.CreateRun(ctx, queued); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}
			// Skipping the running state is forbidden.
			err := store.UpdateStatus(ctx, queued.ID, runs.StatusDone, &now, &score)
			var invalid *runs.InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("queued→done: expected InvalidTransitionError, got %v", err)
			}

			running := testRun(now)
			if err := store.CreateRun(ctx, running); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}
			if err := store.UpdateStatus(ctx, running.ID, runs.StatusRunning, nil, nil); err != nil {
				t.Fatalf("transition to running failed: %v", err)
			}
			if err := store.UpdateStatus(ctx, running.ID, runs.StatusQueued, nil, nil); !errors.As(err, &invalid) {
				t.Errorf("running→queued: expected InvalidTransitionError, got %v", err)
			}

			terminal := testRun(now)
			if err := store.CreateRun(ctx, terminal); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}
			mustFinish(t, store, terminal, runs.StatusDone, now)
			for _, to := range []runs.Status{runs.StatusQueued, runs.StatusRunning, runs.StatusFailed} {
				if err := store.UpdateStatus(ctx, terminal.ID, to, &now, nil); !errors.As(err, &invalid) {
					t.Errorf("done→%s: expected InvalidTransitionError, got %v", to, err)
				}
			}

			// A rejected transition must not dirty the run.
			got, err := store.GetRun(ctx, terminal.ID)
			if err != nil {
				t.Fatalf("GetRun failed: %v", err)
			}
			if got.Status != runs.StatusDone || got.ComplianceScore == nil {
				t.Errorf("run mutated by rejected transition: %+v", got)
			}
		})
	}
}

// TestUpdateStatusFieldInvariants verifies finished_at and score are
// accepted exactly where the target status requires them.
func TestUpdateStatusFieldInvariants(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)
			score := 0.5

			run := testRun(now)
			if err := store.CreateRun(ctx, run); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}

			// finished_at on a non-terminal target.
			if err := store.UpdateStatus(ctx, run.ID, runs.StatusRunning, &now, nil); err == nil {
				t.Error("running with finished_at should be rejected")
			}
			if err := store.UpdateStatus(ctx, run.ID, runs.StatusRunning, nil, nil); err != nil {
				t.Fatalf("transition to running failed: %v", err)
			}

			// done requires both finished_at and score.
			if err := store.UpdateStatus(ctx, run.ID, runs.StatusDone, nil, &score); err == nil {
				t.Error("done without finished_at should be rejected")
			}
			if err := store.UpdateStatus(ctx, run.ID, runs.StatusDone, &now, nil); err == nil {
				t.Error("done without score should be rejected")
			}

			// failed takes finished_at but never a score.
			if err := store.UpdateStatus(ctx, run.ID, runs.StatusFailed, &now, &score); err == nil {
				t.Error("failed with score should be rejected")
			}
			if err := store.UpdateStatus(ctx, run.ID, runs.StatusFailed, &now, nil); err != nil {
				t.Errorf("legal failed transition rejected: %v", err)
			}
		})
	}
}

// TestUpdateStatusUnknownRun verifies NotFoundError from UpdateStatus.
func TestUpdateStatusUnknownRun(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)

			err := store.UpdateStatus(context.Background(), uuid.NewString(), runs.StatusRunning, nil, nil)
			var notFound *runs.NotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("expected NotFoundError, got %v", err)
			}
		})
	}
}

// TestFindingsOrdering verifies findings come back ordered by file path,
// line, and rule key regardless of insertion order.
func TestFindingsOrdering(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			run := testRun(time.Now().UTC())
			if err := store.CreateRun(ctx, run); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}

			unordered := []scan.Finding{
				testFinding("b.py", 1, "no_eval"),
				testFinding("a.py", 9, "no_eval"),
				testFinding("a.py", 2, "no_print"),
				testFinding("a.py", 2, "no_eval"),
			}
			for i := range unordered {
				unordered[i].RunID = run.ID
			}
			if err := store.AddFindings(ctx, run.ID, unordered); err != nil {
				t.Fatalf("AddFindings failed: %v", err)
			}

			listed, err := store.ListFindings(ctx, run.ID)
			if err != nil {
				t.Fatalf("ListFindings failed: %v", err)
			}
			want := [][3]any{
				{"a.py", 2, "no_eval"},
				{"a.py", 2, "no_print"},
				{"a.py", 9, "no_eval"},
				{"b.py", 1, "no_eval"},
			}
			if len(listed) != len(want) {
				t.Fatalf("got %d findings, want %d", len(listed), len(want))
			}
			for i, f := range listed {
				got := [3]any{f.FilePath, f.Line, f.RuleKey}
				if got != want[i] {
					t.Errorf("position %d: got %v, want %v", i, got, want[i])
				}
			}
			if listed[0].Severity != policy.SeverityHigh || listed[0].Evidence != "eval(data)" {
				t.Errorf("finding fields lost: %+v", listed[0])
			}
		})
	}
}

// TestAddFindingsUnknownRun verifies findings cannot attach to a missing run.
func TestAddFindingsUnknownRun(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)

			err := store.AddFindings(context.Background(), uuid.NewString(),
				[]scan.Finding{testFinding("a.py", 1, "no_eval")})
			var notFound *runs.NotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("expected NotFoundError, got %v", err)
			}
		})
	}
}

// TestMetricsRoundTrip verifies metric persistence including nil before and
// after values.
func TestMetricsRoundTrip(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			run := testRun(time.Now().UTC())
			if err := store.CreateRun(ctx, run); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}

			before := 12.0
			after := 9.5
			score := 0.8
			records := []runs.Metric{
				{ID: uuid.NewString(), RunID: run.ID, Name: runs.MetricComplexity, Before: &before, After: &after},
				{ID: uuid.NewString(), RunID: run.ID, Name: runs.MetricPolicyScore, After: &score},
			}
			if err := store.AddMetrics(ctx, records); err != nil {
				t.Fatalf("AddMetrics failed: %v", err)
			}

			listed, err := store.ListMetrics(ctx, run.ID)
			if err != nil {
				t.Fatalf("ListMetrics failed: %v", err)
			}
			if len(listed) != 2 {
				t.Fatalf("got %d metrics, want 2", len(listed))
			}
			byName := map[string]runs.Metric{}
			for _, m := range listed {
				byName[m.Name] = m
			}
			complexity := byName[runs.MetricComplexity]
			if complexity.Before == nil || *complexity.Before != 12.0 || complexity.After == nil || *complexity.After != 9.5 {
				t.Errorf("complexity metric = %+v", complexity)
			}
			policyScore := byName[runs.MetricPolicyScore]
			if policyScore.Before != nil {
				t.Errorf("policy score should have no before value, got %v", *policyScore.Before)
			}
			if policyScore.After == nil || *policyScore.After != 0.8 {
				t.Errorf("policy score metric = %+v", policyScore)
			}
		})
	}
}

// TestArtifactsRoundTrip verifies artifact persistence.
func TestArtifactsRoundTrip(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			run := testRun(time.Now().UTC())
			if err := store.CreateRun(ctx, run); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}

			createdAt := time.Now().UTC().Truncate(time.Millisecond)
			artifact := runs.Artifact{
				ID:        uuid.NewString(),
				RunID:     run.ID,
				Type:      runs.ArtifactReportJSON,
				URI:       "file://artifacts/" + run.ID + "/report.json",
				Checksum:  "deadbeef",
				CreatedAt: createdAt,
			}
			if err := store.AddArtifacts(ctx, []runs.Artifact{artifact}); err != nil {
				t.Fatalf("AddArtifacts failed: %v", err)
			}

			listed, err := store.ListArtifacts(ctx, run.ID)
			if err != nil {
				t.Fatalf("ListArtifacts failed: %v", err)
			}
			if len(listed) != 1 {
				t.Fatalf("got %d artifacts, want 1", len(listed))
			}
			got := listed[0]
			if got.Type != runs.ArtifactReportJSON || got.URI != artifact.URI || got.Checksum != "deadbeef" {
				t.Errorf("artifact = %+v", got)
			}
			if !got.CreatedAt.Equal(createdAt) {
				t.Errorf("created_at = %v, want %v", got.CreatedAt, createdAt)
			}
		})
	}
}

// TestDeleteRunCascades verifies deletion removes the run and everything
// attached to it.
func TestDeleteRunCascades(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			run := testRun(time.Now().UTC())
			if err := store.CreateRun(ctx, run); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}
			if err := store.AddFindings(ctx, run.ID, []scan.Finding{testFinding("a.py", 1, "no_eval")}); err != nil {
				t.Fatalf("AddFindings failed: %v", err)
			}
			after := 1.0
			if err := store.AddMetrics(ctx, []runs.Metric{
				{ID: uuid.NewString(), RunID: run.ID, Name: runs.MetricPolicyScore, After: &after},
			}); err != nil {
				t.Fatalf("AddMetrics failed: %v", err)
			}

			if err := store.DeleteRun(ctx, run.ID); err != nil {
				t.Fatalf("DeleteRun failed: %v", err)
			}

			var notFound *runs.NotFoundError
			if _, err := store.GetRun(ctx, run.ID); !errors.As(err, &notFound) {
				t.Errorf("expected NotFoundError after delete, got %v", err)
			}
			if _, err := store.ListFindings(ctx, run.ID); !errors.As(err, &notFound) {
				t.Errorf("findings should be gone with the run, got %v", err)
			}
		})
	}
}

// TestListTerminalRunsBefore verifies retention candidate selection.
func TestListTerminalRunsBefore(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)

			old := testRun(now.Add(-48 * time.Hour))
			if err := store.CreateRun(ctx, old); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}
			mustFinish(t, store, old, runs.StatusDone, now.Add(-47*time.Hour))

			recent := testRun(now.Add(-time.Hour))
			if err := store.CreateRun(ctx, recent); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}
			mustFinish(t, store, recent, runs.StatusFailed, now.Add(-time.Hour))

			active := testRun(now)
			if err := store.CreateRun(ctx, active); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}

			expired, err := store.ListTerminalRunsBefore(ctx, now.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("ListTerminalRunsBefore failed: %v", err)
			}
			if len(expired) != 1 || expired[0].ID != old.ID {
				t.Errorf("expired runs = %v, want just %s", expired, old.ID)
			}
		})
	}
}

// TestPing verifies backend health checks.
func TestPing(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			if err := store.Ping(context.Background()); err != nil {
				t.Errorf("Ping failed: %v", err)
			}
		})
	}
}
