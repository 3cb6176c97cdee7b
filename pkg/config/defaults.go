package config

import "time"

// DefaultConfig returns a configuration populated entirely with defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in default values for any field left at its zero
// value. Explicitly configured values are never overwritten.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 10 << 20
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.PolicyDBPath == "" {
		cfg.Storage.PolicyDBPath = "data/policies.db"
	}
	if cfg.Storage.RunsDBPath == "" {
		cfg.Storage.RunsDBPath = "data/runs.db"
	}
	if cfg.Storage.ArtifactsDir == "" {
		cfg.Storage.ArtifactsDir = "data/artifacts"
	}

	if cfg.Policy.MaxDocumentSize == 0 {
		cfg.Policy.MaxDocumentSize = 1 << 20
	}

	if cfg.Transform.Backend == "" {
		cfg.Transform.Backend = "stub"
	}
	if cfg.Transform.Timeout == 0 {
		cfg.Transform.Timeout = 60 * time.Second
	}
	if cfg.Transform.MaxRetries == 0 {
		cfg.Transform.MaxRetries = 2
	}

	if cfg.Scoring.Weights == (WeightsConfig{}) {
		cfg.Scoring.Weights = WeightsConfig{Low: 1, Medium: 2, High: 3}
	}
	if cfg.Scoring.StaticTestPassRate == 0 {
		cfg.Scoring.StaticTestPassRate = 1.0
	}

	if cfg.Executor.Workers == 0 {
		cfg.Executor.Workers = 4
	}
	if cfg.Executor.QueueSize == 0 {
		cfg.Executor.QueueSize = 64
	}

	if cfg.Retention.RetentionDays == 0 {
		cfg.Retention.RetentionDays = 90
	}
	if cfg.Retention.PruneSchedule == "" {
		cfg.Retention.PruneSchedule = "0 3 * * *"
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = "/metrics"
		cfg.Telemetry.Metrics.Enabled = true
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = "codecraft"
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = "engine"
	}
}
