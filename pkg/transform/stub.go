package transform

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// StubConfidence is the fixed confidence score the stub attaches to its
// whitespace-normalization suggestion.
const StubConfidence = 0.65

// StubAdapter is a local, deterministic Adapter used for development and
// testing. It normalizes whitespace (trailing spaces, surrounding blank
// lines, final newline) and makes no semantic change. Identical input always
// produces identical output, and token usage is always zero.
type StubAdapter struct {
	logger *slog.Logger
}

// NewStubAdapter creates the stub adapter.
func NewStubAdapter() *StubAdapter {
	return &StubAdapter{
		logger: slog.Default().With("component", "transform.stub"),
	}
}

// Name identifies the implementation.
func (a *StubAdapter) Name() string {
	return "stub"
}

// ModelVersion reports the stub pseudo-version.
func (a *StubAdapter) ModelVersion() string {
	return "stub-1"
}

// Propose normalizes whitespace in the request's code. When normalization
// changes nothing, the code is returned as-is with no suggestions.
func (a *StubAdapter) Propose(ctx context.Context, req *Request) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, NewFailure(a.Name(), req.FilePath, ctx.Err())
	default:
	}

	normalized := normalizeWhitespace(req.Code)
	if normalized == req.Code {
		return &Result{RefactoredCode: req.Code}, nil
	}

	rationale := "Normalized trailing whitespace"
	if len(req.Rules) > 0 {
		rationale = fmt.Sprintf("%s; considered %d policy rules", rationale, len(req.Rules))
	}

	lineCount := strings.Count(normalized, "\n")
	if lineCount == 0 {
		lineCount = 1
	}

	result := &Result{
		RefactoredCode: normalized,
		Suggestions: []Suggestion{
			{
				ID:           uuid.NewString(),
				FilePath:     req.FilePath,
				StartLine:    1,
				EndLine:      lineCount,
				OriginalCode: req.Code,
				ProposedCode: normalized,
				Rationale:    rationale,
				Confidence:   StubConfidence,
			},
		},
		TokensUsed: 0,
	}

	a.logger.Debug("stub proposal generated",
		"file", req.FilePath,
		"findings", len(req.Findings),
	)

	return result, nil
}

// normalizeWhitespace strips trailing whitespace from every line, drops
// leading and trailing blank lines, and guarantees a final newline.
func normalizeWhitespace(code string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	normalized := strings.Trim(strings.Join(lines, "\n"), "\n")
	return normalized + "\n"
}
