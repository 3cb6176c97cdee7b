package transform

import (
	"context"
	"fmt"

	"codecraft-hq/codecraft/pkg/policy"
	"codecraft-hq/codecraft/pkg/scan"
)

// Request carries one file's code and context into an adapter.
type Request struct {
	// FilePath identifies the file being transformed.
	FilePath string `json:"file_path"`

	// Code is the original code text. Adapters must not modify it; they
	// return new code in the Result.
	Code string `json:"code"`

	// Findings are the open findings from the before-scan of this file.
	Findings []scan.Finding `json:"findings"`

	// Rules are the active policy rules, provided as refactoring context.
	Rules []*policy.Rule `json:"rules"`

	// Language is the submission's declared language.
	Language string `json:"language"`
}

// Suggestion is one proposed code change with rationale and confidence.
type Suggestion struct {
	ID           string  `json:"suggestion_id"`
	FilePath     string  `json:"file_path"`
	StartLine    int     `json:"start_line"`
	EndLine      int     `json:"end_line"`
	OriginalCode string  `json:"original_code"`
	ProposedCode string  `json:"proposed_code"`
	Rationale    string  `json:"rationale"`
	Confidence   float64 `json:"confidence_score"`
}

// Result is the adapter's output for one file.
type Result struct {
	// RefactoredCode is the full proposed code text. Always a new value;
	// never the Request.Code string mutated in place.
	RefactoredCode string `json:"refactored_code"`

	// Suggestions are the individual proposed changes. Confidence must lie
	// in [0, 1] for every suggestion.
	Suggestions []Suggestion `json:"suggestions"`

	// TokensUsed is the adapter's resource usage for this proposal. Zero
	// for local implementations.
	TokensUsed int `json:"tokens_used"`
}

// Adapter is the code transformation capability. Implementations should be
// effectively deterministic for identical requests so re-invocation is safe
// for caching and testing.
type Adapter interface {
	// Name identifies the implementation ("stub", "model").
	Name() string

	// ModelVersion identifies the backing model, if any.
	ModelVersion() string

	// Propose returns refactored code and suggestions for the request.
	// Timeouts and retries are the implementation's own concern; callers
	// see either a Result or a *Failure.
	Propose(ctx context.Context, req *Request) (*Result, error)
}

// Failure indicates the adapter could not produce a result. The orchestrator
// maps it to a failed run with partial findings retained.
type Failure struct {
	Adapter  string
	FilePath string
	Cause    error
}

// Error implements the error interface.
func (e *Failure) Error() string {
	return fmt.Sprintf("transform failure [adapter=%s, file=%s]: %v",
		e.Adapter, e.FilePath, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *Failure) Unwrap() error {
	return e.Cause
}

// NewFailure creates a transform Failure.
func NewFailure(adapter, filePath string, cause error) *Failure {
	return &Failure{
		Adapter:  adapter,
		FilePath: filePath,
		Cause:    cause,
	}
}

// ValidateResult checks the adapter contract on a result: the result must be
// present and every suggestion confidence must lie in [0, 1].
func ValidateResult(adapterName string, req *Request, result *Result) error {
	if result == nil {
		return NewFailure(adapterName, req.FilePath, fmt.Errorf("adapter returned nil result"))
	}
	for _, s := range result.Suggestions {
		if s.Confidence < 0 || s.Confidence > 1 {
			return NewFailure(adapterName, req.FilePath,
				fmt.Errorf("suggestion %s confidence %f outside [0,1]", s.ID, s.Confidence))
		}
	}
	if result.TokensUsed < 0 {
		return NewFailure(adapterName, req.FilePath,
			fmt.Errorf("negative token usage %d", result.TokensUsed))
	}
	return nil
}
