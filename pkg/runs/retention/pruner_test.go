package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"codecraft-hq/codecraft/pkg/runs"
	"codecraft-hq/codecraft/pkg/runs/store"
)

// seedRun inserts a run and optionally drives it to a terminal state with
// the given finish time.
func seedRun(t *testing.T, s runs.Store, status runs.Status, finishedAt time.Time) *runs.Run {
	t.Helper()
	ctx := context.Background()

	run := &runs.Run{
		ID:        uuid.NewString(),
		Status:    runs.StatusQueued,
		Mode:      runs.ModeSuggest,
		PolicyIDs: []string{uuid.NewString()},
		StartedAt: finishedAt.Add(-time.Minute),
	}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if status == runs.StatusQueued {
		return run
	}
	if err := s.UpdateStatus(ctx, run.ID, runs.StatusRunning, nil, nil); err != nil {
		t.Fatalf("transition to running failed: %v", err)
	}
	if status == runs.StatusRunning {
		return run
	}
	var score *float64
	if status == runs.StatusDone {
		v := 1.0
		score = &v
	}
	if err := s.UpdateStatus(ctx, run.ID, status, &finishedAt, score); err != nil {
		t.Fatalf("transition to %s failed: %v", status, err)
	}
	return run
}

// TestPruneDeletesExpiredRuns verifies only terminal runs past the cutoff
// are removed.
func TestPruneDeletesExpiredRuns(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Now().UTC()

	expired := seedRun(t, s, runs.StatusDone, now.AddDate(0, 0, -10))
	expiredFailed := seedRun(t, s, runs.StatusFailed, now.AddDate(0, 0, -8))
	recent := seedRun(t, s, runs.StatusDone, now.Add(-time.Hour))
	active := seedRun(t, s, runs.StatusRunning, now)

	pruner := NewPruner(s, nil, &Config{RetentionDays: 7})
	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	var notFound *runs.NotFoundError
	for _, id := range []string{expired.ID, expiredFailed.ID} {
		if _, err := s.GetRun(context.Background(), id); !errors.As(err, &notFound) {
			t.Errorf("expired run %s still present (err=%v)", id, err)
		}
	}
	for _, id := range []string{recent.ID, active.ID} {
		if _, err := s.GetRun(context.Background(), id); err != nil {
			t.Errorf("run %s should survive pruning: %v", id, err)
		}
	}
}

// TestPruneDisabled verifies a zero retention period keeps everything.
func TestPruneDisabled(t *testing.T) {
	s := store.NewMemoryStore()
	old := seedRun(t, s, runs.StatusDone, time.Now().UTC().AddDate(0, 0, -365))

	pruner := NewPruner(s, nil, &Config{RetentionDays: 0})
	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
	if _, err := s.GetRun(context.Background(), old.ID); err != nil {
		t.Errorf("run pruned despite disabled retention: %v", err)
	}
}

// TestPruneDefaults verifies the nil-config fallback.
func TestPruneDefaults(t *testing.T) {
	pruner := NewPruner(store.NewMemoryStore(), nil, nil)
	if pruner.RetentionDays() != 90 {
		t.Errorf("default retention = %d days, want 90", pruner.RetentionDays())
	}
}

// TestSchedulerRejectsBadExpression verifies Start fails on an invalid cron
// expression.
func TestSchedulerRejectsBadExpression(t *testing.T) {
	pruner := NewPruner(store.NewMemoryStore(), nil, &Config{
		RetentionDays: 7,
		PruneSchedule: "not a cron expression",
	})
	scheduler := NewScheduler(pruner)
	if err := scheduler.Start(context.Background()); err == nil {
		t.Error("invalid cron expression should be rejected")
	}
	if scheduler.IsRunning() {
		t.Error("scheduler should not be running after a rejected Start")
	}
}

// TestSchedulerNoSchedule verifies an empty schedule disables the scheduler
// without error.
func TestSchedulerNoSchedule(t *testing.T) {
	pruner := NewPruner(store.NewMemoryStore(), nil, &Config{RetentionDays: 7})
	scheduler := NewScheduler(pruner)
	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if scheduler.IsRunning() {
		t.Error("scheduler should stay idle without a schedule")
	}
	if scheduler.NextRun() != nil {
		t.Error("NextRun should be nil without a schedule")
	}
}

// TestSchedulerLifecycle verifies start, next-run reporting, and stop.
func TestSchedulerLifecycle(t *testing.T) {
	pruner := NewPruner(store.NewMemoryStore(), nil, DefaultConfig())
	scheduler := NewScheduler(pruner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !scheduler.IsRunning() {
		t.Error("scheduler should report running after Start")
	}
	if next := scheduler.NextRun(); next == nil {
		t.Error("NextRun should be set while running")
	}

	scheduler.Stop()
	if scheduler.IsRunning() {
		t.Error("scheduler should report stopped after Stop")
	}
}
