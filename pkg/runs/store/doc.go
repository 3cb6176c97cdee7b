// Package store provides persistence backends for refactor runs.
//
// Two implementations of runs.Store are available:
//
//   - MemoryStore: in-memory maps, suitable for tests and ephemeral
//     deployments. All state is lost on restart.
//   - SQLiteStore: durable single-file storage with WAL journaling,
//     suitable for single-instance deployments.
//
// Both backends enforce the run status state machine on every update, so a
// terminal run can never be mutated regardless of which caller attempts it.
package store
