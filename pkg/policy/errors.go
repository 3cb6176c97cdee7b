package policy

import (
	"fmt"
	"strings"
)

// ParseError indicates a document that could not be decoded as YAML or JSON.
type ParseError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("policy document parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("policy document parse error: %s", e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ValidationError indicates a structurally valid document whose content
// failed validation. The import is all-or-nothing: when any rule is invalid
// no profile is created, and RuleKeys names every offending rule.
type ValidationError struct {
	// Message describes the failure.
	Message string

	// RuleKeys lists the keys of the rules that failed validation. Rules
	// missing a key entirely are reported by their document position, e.g.
	// "rules[3]".
	RuleKeys []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.RuleKeys) == 0 {
		return fmt.Sprintf("policy validation failed: %s", e.Message)
	}
	return fmt.Sprintf("policy validation failed: %s [rules: %s]",
		e.Message, strings.Join(e.RuleKeys, ", "))
}

// NewValidationError creates a ValidationError for the given rule keys.
func NewValidationError(message string, ruleKeys ...string) *ValidationError {
	return &ValidationError{
		Message:  message,
		RuleKeys: ruleKeys,
	}
}
