// Package retention prunes old refactor runs.
//
// The pruner deletes terminal runs (done or failed) whose finished_at is
// older than the configured retention period, along with the findings,
// metrics, and artifact files they own. Runs still queued or running are
// never touched.
//
// Pruning can be triggered manually:
//
//	pruner := retention.NewPruner(store, artifacts, &retention.Config{
//	    RetentionDays: 90,
//	})
//	deleted, err := pruner.Prune(ctx)
//
// or scheduled with a cron expression:
//
//	scheduler := retention.NewScheduler(pruner)
//	if err := scheduler.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer scheduler.Stop()
//
// A retention period of 0 days disables pruning entirely, and an empty
// PruneSchedule leaves the scheduler inert.
package retention
