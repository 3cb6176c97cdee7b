package runs

import (
	"time"
)

// Status is the lifecycle state of a run.
type Status string

const (
	// StatusQueued marks a submitted run awaiting execution.
	StatusQueued Status = "queued"
	// StatusRunning marks a run whose pipeline is executing.
	StatusRunning Status = "running"
	// StatusDone marks a successfully completed run. Terminal.
	StatusDone Status = "done"
	// StatusFailed marks a run that hit a fatal error. Terminal.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is absorbing.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Valid reports whether s is a recognized status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusDone, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a run may move from one status to another.
// The machine is queued → running → {done, failed}; nothing leaves a
// terminal state and statuses never regress.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusDone || to == StatusFailed
	default:
		return false
	}
}

// Mode governs what happens to the transform result.
type Mode string

const (
	// ModeSuggest records suggestions but leaves each file's current code
	// as the original; no patch artifact is written.
	ModeSuggest Mode = "suggest"
	// ModeAuto adopts the adapter's output as the new current code and
	// writes a patch artifact.
	ModeAuto Mode = "auto"
)

// Valid reports whether m is a recognized mode.
func (m Mode) Valid() bool {
	return m == ModeSuggest || m == ModeAuto
}

// Run is one execution of the refactor pipeline over a set of files and
// policies.
type Run struct {
	ID           string   `json:"run_id"`
	Status       Status   `json:"status"`
	Language     string   `json:"language"`
	ModelVersion string   `json:"model_version"`
	Mode         Mode     `json:"mode"`
	PolicyIDs    []string `json:"policy_ids"`
	SubmittedBy  string   `json:"submitted_by,omitempty"`

	// ComplianceScore is non-nil exactly when Status is done.
	ComplianceScore *float64 `json:"compliance_score"`

	StartedAt time.Time `json:"started_at"`

	// FinishedAt is non-nil exactly when Status is terminal.
	FinishedAt *time.Time `json:"finished_at"`
}

// Metric is one tracked quantity of a run, with optional before and after
// values.
type Metric struct {
	ID     string   `json:"metric_id"`
	RunID  string   `json:"run_id"`
	Name   string   `json:"name"`
	Before *float64 `json:"before"`
	After  *float64 `json:"after"`
}

// Metric names recorded for every completed run.
const (
	MetricComplexity         = "complexity"
	MetricViolationsWeighted = "violations_weighted"
	MetricPolicyScore        = "policy_score"
	MetricTestPassRate       = "test_pass_rate"
	MetricLatencyMS          = "latency_ms"
	MetricTokenUsage         = "token_usage"
)

// ArtifactType classifies run artifacts.
type ArtifactType string

const (
	// ArtifactReportHTML is a rendered compliance report.
	ArtifactReportHTML ArtifactType = "report_html"
	// ArtifactReportJSON is the machine-readable compliance report.
	ArtifactReportJSON ArtifactType = "report_json"
	// ArtifactPatch is the applied code change of an auto-mode run.
	ArtifactPatch ArtifactType = "patch"
	// ArtifactLog is diagnostic output, written on failure.
	ArtifactLog ArtifactType = "log"
)

// Artifact is a persisted run output. Checksum is the hex SHA-256 of the
// artifact content, enabling integrity verification.
type Artifact struct {
	ID        string       `json:"artifact_id"`
	RunID     string       `json:"run_id"`
	Type      ArtifactType `json:"type"`
	URI       string       `json:"uri"`
	Checksum  string       `json:"checksum"`
	CreatedAt time.Time    `json:"created_at"`
}
