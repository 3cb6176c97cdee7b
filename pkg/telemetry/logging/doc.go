// Package logging configures the process-wide structured logger.
//
// The service logs through log/slog; each component derives its logger from
// the default with a "component" attribute:
//
//	logger := slog.Default().With("component", "runs.orchestrator")
//
// Setup installs a handler matching the configured level and format and
// returns the root logger:
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stdout)
package logging
