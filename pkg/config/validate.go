package config

import (
	"fmt"
	"strings"
)

// Validate checks a fully-loaded configuration for internal consistency.
// It returns the first problem found.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := validateTransform(&cfg.Transform); err != nil {
		return err
	}
	if err := validateScoring(&cfg.Scoring); err != nil {
		return err
	}
	if err := validateExecutor(&cfg.Executor); err != nil {
		return err
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.ListenAddress == "" {
		return fmt.Errorf("server.listen_address cannot be empty")
	}
	if !strings.Contains(cfg.ListenAddress, ":") {
		return fmt.Errorf("server.listen_address %q must be host:port", cfg.ListenAddress)
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		return fmt.Errorf("server timeouts cannot be negative")
	}
	if cfg.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	return nil
}

func validateStorage(cfg *StorageConfig) error {
	switch cfg.Backend {
	case "memory":
		return nil
	case "sqlite":
		if cfg.PolicyDBPath == "" {
			return fmt.Errorf("storage.policy_db_path is required for the sqlite backend")
		}
		if cfg.RunsDBPath == "" {
			return fmt.Errorf("storage.runs_db_path is required for the sqlite backend")
		}
		return nil
	default:
		return fmt.Errorf("storage.backend %q is not supported (use \"memory\" or \"sqlite\")", cfg.Backend)
	}
}

func validateTransform(cfg *TransformConfig) error {
	switch cfg.Backend {
	case "stub":
		return nil
	case "model":
		if cfg.Endpoint == "" {
			return fmt.Errorf("transform.endpoint is required for the model backend")
		}
		if cfg.MaxRetries < 0 {
			return fmt.Errorf("transform.max_retries cannot be negative")
		}
		return nil
	default:
		return fmt.Errorf("transform.backend %q is not supported (use \"stub\" or \"model\")", cfg.Backend)
	}
}

func validateScoring(cfg *ScoringConfig) error {
	w := cfg.Weights
	if w.Low <= 0 || w.Medium <= 0 || w.High <= 0 {
		return fmt.Errorf("scoring.weights must all be positive")
	}
	if w.Low > w.Medium || w.Medium > w.High {
		return fmt.Errorf("scoring.weights must be monotone: low ≤ medium ≤ high")
	}
	if cfg.StaticTestPassRate < 0 || cfg.StaticTestPassRate > 1 {
		return fmt.Errorf("scoring.static_test_pass_rate must be in [0, 1]")
	}
	return nil
}

func validateExecutor(cfg *ExecutorConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("executor.workers must be positive")
	}
	if cfg.QueueSize <= 0 {
		return fmt.Errorf("executor.queue_size must be positive")
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level %q is not supported", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format %q is not supported", cfg.Logging.Format)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		return fmt.Errorf("telemetry.metrics.path cannot be empty when metrics are enabled")
	}
	return nil
}
