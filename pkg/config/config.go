package config

import "time"

// Config is the root configuration for the CodeCraft service.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Storage contains persistence configuration for the policy catalog,
	// the runs database, and artifact files.
	Storage StorageConfig `yaml:"storage"`

	// Policy contains policy catalog configuration including the optional
	// watched policy directory.
	Policy PolicyConfig `yaml:"policy"`

	// Transform contains transform adapter configuration.
	Transform TransformConfig `yaml:"transform"`

	// Scoring contains compliance scoring configuration.
	Scoring ScoringConfig `yaml:"scoring"`

	// Executor contains the asynchronous run executor configuration.
	Executor ExecutorConfig `yaml:"executor"`

	// Retention contains run retention configuration.
	Retention RetentionConfig `yaml:"retention"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the host:port the server binds to.
	// Default: ":8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request on a
	// kept-alive connection.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits request body size.
	// Default: 10 MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// StorageConfig contains persistence configuration.
type StorageConfig struct {
	// Backend selects the storage backend.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// PolicyDBPath is the SQLite file holding the policy catalog.
	// Default: "data/policies.db"
	PolicyDBPath string `yaml:"policy_db_path"`

	// RunsDBPath is the SQLite file holding runs and their findings.
	// Default: "data/runs.db"
	RunsDBPath string `yaml:"runs_db_path"`

	// ArtifactsDir is the directory for run artifact files. Empty disables
	// artifact persistence.
	// Default: "data/artifacts"
	ArtifactsDir string `yaml:"artifacts_dir"`
}

// PolicyConfig contains policy catalog configuration.
type PolicyConfig struct {
	// WatchDir is a directory of policy documents to auto-import.
	// Empty disables watching.
	WatchDir string `yaml:"watch_dir"`

	// Watch enables hot-reload of the watch directory.
	// Default: false
	Watch bool `yaml:"watch"`

	// MaxDocumentSize limits the size of a policy document in bytes.
	// Default: 1 MB
	MaxDocumentSize int `yaml:"max_document_size"`
}

// TransformConfig contains transform adapter configuration.
type TransformConfig struct {
	// Backend selects the adapter.
	// Options: "stub", "model"
	// Default: "stub"
	Backend string `yaml:"backend"`

	// Endpoint is the model service URL. Required for the model backend.
	Endpoint string `yaml:"endpoint"`

	// ModelVersion identifies the model to request.
	ModelVersion string `yaml:"model_version"`

	// APIKey authenticates against the model service.
	APIKey string `yaml:"api_key"`

	// Timeout bounds a single model call.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries after a retryable failure.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`
}

// ScoringConfig contains compliance scoring configuration.
type ScoringConfig struct {
	// Weights are the severity weights used by the policy score.
	// Default: low=1, medium=2, high=3
	Weights WeightsConfig `yaml:"weights"`

	// StaticTestPassRate is the pass rate reported by the built-in test
	// runner when a submission requests test execution.
	// Default: 1.0
	StaticTestPassRate float64 `yaml:"static_test_pass_rate"`
}

// WeightsConfig mirrors score.Weights for YAML loading.
type WeightsConfig struct {
	Low    float64 `yaml:"low"`
	Medium float64 `yaml:"medium"`
	High   float64 `yaml:"high"`
}

// ExecutorConfig contains run executor configuration.
type ExecutorConfig struct {
	// Workers is the number of concurrent pipeline executions.
	// Default: 4
	Workers int `yaml:"workers"`

	// QueueSize bounds the number of queued runs awaiting a worker.
	// Default: 64
	QueueSize int `yaml:"queue_size"`
}

// RetentionConfig contains run retention configuration.
type RetentionConfig struct {
	// Enabled turns scheduled pruning on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// RetentionDays is how long terminal runs are kept. 0 keeps forever.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "codecraft"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "engine"
	Subsystem string `yaml:"subsystem"`
}
