package policy

import (
	"regexp"
	"time"
)

// Severity classifies how serious a rule violation is. It drives the
// severity weighting used by the compliance scorer.
type Severity string

const (
	// SeverityLow marks stylistic or informational rules.
	SeverityLow Severity = "low"
	// SeverityMedium marks rules whose violations should be fixed soon.
	SeverityMedium Severity = "medium"
	// SeverityHigh marks rules whose violations are unacceptable.
	SeverityHigh Severity = "high"
)

// DefaultSeverity is assigned when a rule omits the severity field.
const DefaultSeverity = SeverityMedium

// Valid reports whether s is one of the recognized severity levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Rule is a single pattern-based check. The Expression is a regular
// expression compiled once at import time; a rule whose expression does not
// compile invalidates the entire import.
type Rule struct {
	// ID uniquely identifies the rule. Generated at import time.
	ID string `json:"rule_id"`

	// ProfileID is the id of the owning profile.
	ProfileID string `json:"policy_profile_id"`

	// Key is the human-meaningful rule identifier within the profile
	// (e.g. "no_eval"). Required.
	Key string `json:"key"`

	// Description explains what the rule checks.
	Description string `json:"description"`

	// Category groups related rules (e.g. "security", "style").
	Category string `json:"category"`

	// Expression is the source regular expression matched against each
	// line of scanned code.
	Expression string `json:"expression"`

	// Severity is one of low, medium, high.
	Severity Severity `json:"severity"`

	// AutoFixable marks the rule's violations as eligible for automatic
	// correction. Defaults to false.
	AutoFixable bool `json:"auto_fixable"`

	// pattern is the compiled Expression. Never nil on a rule produced by
	// the Loader or loaded from a store.
	pattern *regexp.Regexp
}

// Pattern returns the compiled rule expression.
func (r *Rule) Pattern() *regexp.Regexp {
	return r.pattern
}

// compile compiles the rule expression. Used by the loader at import time and
// by storage backends when rehydrating persisted rules.
func (r *Rule) compile() error {
	p, err := regexp.Compile(r.Expression)
	if err != nil {
		return err
	}
	r.pattern = p
	return nil
}

// Compile rehydrates the compiled pattern on a rule loaded from persistent
// storage. Import-time validation guarantees the expression compiled once,
// so a failure here indicates stored data corruption.
func (r *Rule) Compile() error {
	return r.compile()
}

// Profile is an immutable, versioned set of rules for a target language.
// Profiles are append-only: "editing" a profile is always a new import that
// allocates a fresh id.
type Profile struct {
	// ID uniquely identifies the profile. Generated at import time.
	ID string `json:"policy_id"`

	// Name is the display name of the profile.
	Name string `json:"name"`

	// Language is the target language or domain the rules apply to.
	Language string `json:"language"`

	// Version is the document-declared profile version.
	Version string `json:"version"`

	// Rules are the profile's rules in document order.
	Rules []*Rule `json:"rules"`

	// CreatedAt is the import timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// RuleCount returns the number of rules in the profile.
func (p *Profile) RuleCount() int {
	return len(p.Rules)
}
