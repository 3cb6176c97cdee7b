package scan

import (
	"codecraft-hq/codecraft/pkg/policy"
)

// File is one unit of code text submitted for scanning.
type File struct {
	// Path identifies the file within the submission. Used for finding
	// attribution and ordering; never read from disk by the matcher.
	Path string `json:"file_path"`

	// Content is the full code text.
	Content string `json:"content"`
}

// FindingStatus is the lifecycle state of a finding.
type FindingStatus string

const (
	// StatusOpen marks a finding that has not been resolved.
	StatusOpen FindingStatus = "open"
	// StatusFixed marks a finding resolved by a refactor.
	StatusFixed FindingStatus = "fixed"
	// StatusIgnored marks a finding suppressed by review.
	StatusIgnored FindingStatus = "ignored"
)

// Finding is one concrete rule match at a specific file and line.
//
// The matcher emits findings with empty ID and RunID; the orchestrator
// assigns both when it persists findings into a run. Keeping generated ids
// out of the matcher is what makes repeated scans of unchanged input
// bit-identical.
type Finding struct {
	ID       string          `json:"finding_id,omitempty"`
	RunID    string          `json:"run_id,omitempty"`
	RuleID   string          `json:"rule_id"`
	RuleKey  string          `json:"rule_key"`
	FilePath string          `json:"file_path"`
	Line     int             `json:"line"`
	Severity policy.Severity `json:"severity"`
	Status   FindingStatus   `json:"status"`

	// Evidence is the matched source line, trimmed and truncated.
	Evidence string `json:"evidence"`
}
