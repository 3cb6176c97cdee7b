package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"codecraft-hq/codecraft/pkg/policy"
)

// MaxEvidenceLength is the maximum number of bytes of the matched line kept
// as finding evidence.
const MaxEvidenceLength = 200

// MalformedRuleError indicates a rule supplied to the matcher without a
// compiled pattern. Rules reach the matcher only through the loader or a
// catalog store, both of which compile expressions, so this is a caller bug
// rather than a runtime condition.
type MalformedRuleError struct {
	RuleKey string
}

// Error implements the error interface.
func (e *MalformedRuleError) Error() string {
	return fmt.Sprintf("rule %q has no compiled pattern", e.RuleKey)
}

// Matcher scans code text against compiled policy rules.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher creates a rule matcher.
func NewMatcher() *Matcher {
	return &Matcher{
		logger: slog.Default().With("component", "scan.matcher"),
	}
}

// Scan evaluates every rule against every line of every file and returns the
// findings ordered by (file path, line, rule key). Multiple rules matching
// the same line each produce their own finding. An empty result is not an
// error; the only error conditions are context cancellation and malformed
// rule data.
func (m *Matcher) Scan(ctx context.Context, files []File, rules []*policy.Rule) ([]Finding, error) {
	for _, rule := range rules {
		if rule.Pattern() == nil {
			return nil, &MalformedRuleError{RuleKey: rule.Key}
		}
	}

	var findings []Finding
	for i := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		fileFindings := m.scanFile(&files[i], rules)
		findings = append(findings, fileFindings...)
	}

	sortFindings(findings)

	m.logger.Debug("scan completed",
		"files", len(files),
		"rules", len(rules),
		"findings", len(findings),
	)

	return findings, nil
}

// ScanFile scans a single file. Findings are ordered by (line, rule key).
func (m *Matcher) ScanFile(ctx context.Context, file File, rules []*policy.Rule) ([]Finding, error) {
	return m.Scan(ctx, []File{file}, rules)
}

// scanFile matches every rule against every line of one file.
func (m *Matcher) scanFile(file *File, rules []*policy.Rule) []Finding {
	var findings []Finding

	lines := strings.Split(file.Content, "\n")
	for lineIdx, line := range lines {
		for _, rule := range rules {
			if !rule.Pattern().MatchString(line) {
				continue
			}
			findings = append(findings, Finding{
				RuleID:   rule.ID,
				RuleKey:  rule.Key,
				FilePath: file.Path,
				Line:     lineIdx + 1,
				Severity: rule.Severity,
				Status:   StatusOpen,
				Evidence: evidence(line),
			})
		}
	}

	return findings
}

// evidence trims and truncates a matched line for storage. Truncation
// backs off to a rune boundary so stored evidence is always valid UTF-8.
func evidence(line string) string {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) <= MaxEvidenceLength {
		return trimmed
	}
	cut := MaxEvidenceLength
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return trimmed[:cut]
}

// sortFindings orders findings by (file path, line, rule key). Rule key
// rather than rule id keeps the order stable across imports of the same
// document.
func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].FilePath != findings[j].FilePath {
			return findings[i].FilePath < findings[j].FilePath
		}
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].RuleKey < findings[j].RuleKey
	})
}
