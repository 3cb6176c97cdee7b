package store

import (
	"fmt"
	"time"

	"codecraft-hq/codecraft/pkg/runs"
)

// validateUpdate checks a status transition and its payload invariants:
// finishedAt accompanies exactly the terminal statuses, and a score
// accompanies exactly the done status.
func validateUpdate(runID string, from, to runs.Status, finishedAt *time.Time, score *float64) error {
	if !runs.CanTransition(from, to) {
		return &runs.InvalidTransitionError{RunID: runID, From: from, To: to}
	}
	if to.Terminal() != (finishedAt != nil) {
		return fmt.Errorf("run %s: finished_at must be set exactly for terminal statuses (to=%s)", runID, to)
	}
	if (to == runs.StatusDone) != (score != nil) {
		return fmt.Errorf("run %s: compliance score must be set exactly for status done (to=%s)", runID, to)
	}
	return nil
}
