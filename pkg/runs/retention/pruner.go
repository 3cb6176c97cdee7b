package retention

import (
	"context"
	"log/slog"
	"time"

	"codecraft-hq/codecraft/pkg/runs"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain terminal runs.
	// 0 means keep runs forever (no pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduled pruning.
	// Example: "0 3 * * *" (daily at 3 AM).
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration: 90 days,
// pruned daily at 3 AM.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
	}
}

// Pruner deletes terminal runs older than the retention period.
type Pruner struct {
	store     runs.Store
	artifacts *runs.ArtifactWriter
	config    *Config
	logger    *slog.Logger
}

// NewPruner creates a retention pruner. The artifact writer may be nil when
// artifacts are not persisted to disk.
func NewPruner(store runs.Store, artifacts *runs.ArtifactWriter, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Pruner{
		store:     store,
		artifacts: artifacts,
		config:    config,
		logger:    slog.Default().With("component", "runs.retention"),
	}
}

// Prune deletes terminal runs that finished before the retention cutoff and
// returns how many were removed. With RetentionDays of 0 it does nothing.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -p.config.RetentionDays)
	expired, err := p.store.ListTerminalRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, run := range expired {
		if ctx.Err() != nil {
			return deleted, ctx.Err()
		}
		if err := p.store.DeleteRun(ctx, run.ID); err != nil {
			p.logger.Error("failed to delete expired run",
				"run_id", run.ID,
				"error", err,
			)
			continue
		}
		if p.artifacts != nil {
			if err := p.artifacts.Remove(run.ID); err != nil {
				p.logger.Warn("failed to remove artifact directory",
					"run_id", run.ID,
					"error", err,
				)
			}
		}
		deleted++
	}

	if deleted > 0 {
		p.logger.Info("expired runs pruned",
			"deleted_count", deleted,
			"cutoff", cutoff,
		)
	}
	return deleted, nil
}

// RetentionDays returns the configured retention period.
func (p *Pruner) RetentionDays() int {
	return p.config.RetentionDays
}
