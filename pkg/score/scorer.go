package score

import (
	"fmt"
	"log/slog"

	"codecraft-hq/codecraft/pkg/policy"
	"codecraft-hq/codecraft/pkg/scan"
)

// Weights are the severity weights applied to findings when computing the
// policy score.
type Weights struct {
	Low    float64 `yaml:"low"`
	Medium float64 `yaml:"medium"`
	High   float64 `yaml:"high"`
}

// DefaultWeights returns the default severity weighting (low=1, medium=2,
// high=3).
func DefaultWeights() Weights {
	return Weights{Low: 1, Medium: 2, High: 3}
}

// Validate checks that the weights are positive and monotone. Monotone
// weights guarantee the policy score never decreases when the weighted
// violation count decreases.
func (w Weights) Validate() error {
	if w.Low <= 0 || w.Medium <= 0 || w.High <= 0 {
		return fmt.Errorf("severity weights must be positive (low=%v, medium=%v, high=%v)",
			w.Low, w.Medium, w.High)
	}
	if w.Low > w.Medium || w.Medium > w.High {
		return fmt.Errorf("severity weights must be monotone: low ≤ medium ≤ high")
	}
	return nil
}

// weight returns the weight for one severity level.
func (w Weights) weight(s policy.Severity) float64 {
	switch s {
	case policy.SeverityHigh:
		return w.High
	case policy.SeverityMedium:
		return w.Medium
	default:
		return w.Low
	}
}

// Summary is the compliance summary of one completed run. All fields are
// computed together before the run is marked done; a partial summary is
// never persisted.
type Summary struct {
	// PolicyScore is the severity-weighted violation reduction in [0, 1].
	PolicyScore float64 `json:"policy_score"`

	// ComplexityDelta is complexity(after) − complexity(before).
	ComplexityDelta float64 `json:"complexity_delta"`

	// TestPassRate is set only when the submission requested test
	// execution; absent otherwise.
	TestPassRate *float64 `json:"test_pass_rate,omitempty"`

	// LatencyMS is the wall-clock duration of the scan, transform, and
	// rescan phases in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// TokenUsage is the total adapter resource usage; zero for the stub.
	TokenUsage int `json:"token_usage"`
}

// Scorer computes compliance summaries.
type Scorer struct {
	weights Weights
	logger  *slog.Logger
}

// NewScorer creates a scorer with the given weights. Invalid weights are an
// error; use DefaultWeights for the standard 1/2/3 weighting.
func NewScorer(weights Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{
		weights: weights,
		logger:  slog.Default().With("component", "score.scorer"),
	}, nil
}

// WeightedCount sums the severity weights of all findings.
func (s *Scorer) WeightedCount(findings []scan.Finding) float64 {
	var total float64
	for _, f := range findings {
		total += s.weights.weight(f.Severity)
	}
	return total
}

// PolicyScore computes 1 − afterWeight/beforeWeight, clamped to [0, 1]. When
// the before-scan found nothing there was nothing to violate, and the score
// is 1.
func (s *Scorer) PolicyScore(before, after []scan.Finding) float64 {
	beforeWeight := s.WeightedCount(before)
	if beforeWeight == 0 {
		return 1.0
	}
	score := 1.0 - s.WeightedCount(after)/beforeWeight
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Summarize assembles the full compliance summary.
func (s *Scorer) Summarize(before, after []scan.Finding, complexityDelta float64, testPassRate *float64, latencyMS int64, tokenUsage int) *Summary {
	summary := &Summary{
		PolicyScore:     s.PolicyScore(before, after),
		ComplexityDelta: complexityDelta,
		TestPassRate:    testPassRate,
		LatencyMS:       latencyMS,
		TokenUsage:      tokenUsage,
	}

	s.logger.Debug("compliance summary computed",
		"policy_score", summary.PolicyScore,
		"complexity_delta", summary.ComplexityDelta,
		"latency_ms", summary.LatencyMS,
		"token_usage", summary.TokenUsage,
	)

	return summary
}
