// Package metrics provides Prometheus instrumentation for the service.
//
// A single Collector owns every metric: run submissions and completions,
// finding counts, policy imports, and HTTP request durations. All recording
// methods are safe on a nil *Collector, so components can take an optional
// collector without guarding each call site:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordRunSubmitted("suggest")
//
// The Prometheus exposition endpoint is served by Collector.Handler.
package metrics
