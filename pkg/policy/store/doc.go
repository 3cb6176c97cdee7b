// Package store provides the append-only policy profile catalog.
//
// The catalog is content-immutable: profiles are inserted once by the loader
// and never updated or deleted. Two backends are provided:
//
//   - MemoryStore: in-memory catalog for tests and ephemeral deployments
//   - SQLiteStore: durable catalog backed by SQLite
//
// Because profiles never change after import, reads require no copying or
// locking beyond the map access itself, and compiled rule patterns are shared
// across all concurrent readers.
package store
