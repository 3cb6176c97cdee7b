// Package telemetry groups the observability concerns of the engine.
//
//   - logging: structured slog setup (JSON or text)
//   - metrics: Prometheus collection and exposition
//
// Both are optional at wire-up time; every component takes a nil-safe
// collector and falls back to the default logger.
package telemetry
