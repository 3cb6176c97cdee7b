package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// Defaults are applied and the result is validated. Environment variables
// are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the naming convention
// CODECRAFT_SECTION_FIELD (e.g. CODECRAFT_SERVER_LISTEN_ADDRESS) and always
// take precedence over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies CODECRAFT_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("CODECRAFT_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("CODECRAFT_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("CODECRAFT_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("CODECRAFT_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Storage overrides
	if val := os.Getenv("CODECRAFT_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("CODECRAFT_STORAGE_POLICY_DB_PATH"); val != "" {
		cfg.Storage.PolicyDBPath = val
	}
	if val := os.Getenv("CODECRAFT_STORAGE_RUNS_DB_PATH"); val != "" {
		cfg.Storage.RunsDBPath = val
	}
	if val := os.Getenv("CODECRAFT_STORAGE_ARTIFACTS_DIR"); val != "" {
		cfg.Storage.ArtifactsDir = val
	}

	// Policy overrides
	if val := os.Getenv("CODECRAFT_POLICY_WATCH_DIR"); val != "" {
		cfg.Policy.WatchDir = val
	}
	if val := os.Getenv("CODECRAFT_POLICY_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Policy.Watch = b
		}
	}

	// Transform overrides
	if val := os.Getenv("CODECRAFT_TRANSFORM_BACKEND"); val != "" {
		cfg.Transform.Backend = val
	}
	if val := os.Getenv("CODECRAFT_TRANSFORM_ENDPOINT"); val != "" {
		cfg.Transform.Endpoint = val
	}
	if val := os.Getenv("CODECRAFT_TRANSFORM_MODEL_VERSION"); val != "" {
		cfg.Transform.ModelVersion = val
	}
	if val := os.Getenv("CODECRAFT_TRANSFORM_API_KEY"); val != "" {
		cfg.Transform.APIKey = val
	}
	if val := os.Getenv("CODECRAFT_TRANSFORM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Transform.Timeout = d
		}
	}

	// Executor overrides
	if val := os.Getenv("CODECRAFT_EXECUTOR_WORKERS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Executor.Workers = i
		}
	}
	if val := os.Getenv("CODECRAFT_EXECUTOR_QUEUE_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Executor.QueueSize = i
		}
	}

	// Retention overrides
	if val := os.Getenv("CODECRAFT_RETENTION_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Retention.Enabled = b
		}
	}
	if val := os.Getenv("CODECRAFT_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Retention.RetentionDays = i
		}
	}

	// Telemetry overrides
	if val := os.Getenv("CODECRAFT_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("CODECRAFT_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("CODECRAFT_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}
