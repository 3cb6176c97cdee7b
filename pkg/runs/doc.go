// Package runs implements the refactor orchestrator: the state machine that
// drives a submission through scan, transform, rescan, and scoring, and
// persists the outcome.
//
// A run moves through queued → running → {done, failed}; the terminal states
// are absorbing and transitions never regress. Invariants maintained for
// every run:
//
//   - finished_at is set if and only if the status is terminal
//   - compliance_score is non-nil if and only if the status is done
//   - the compliance summary is computed and persisted as a unit before the
//     run is marked done
//
// Failure semantics: a single file's scan error degrades that file and the
// run continues; an adapter failure or any non-file-scoped error fails the
// whole run, retaining the findings gathered so far for diagnostics. The
// orchestrator never retries; retry policy belongs to the scheduler driving
// Execute.
package runs
