package policy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Document is the wire representation of a policy rule-set document.
// Documents may be written in YAML or JSON; both decode into this shape.
type Document struct {
	Profile ProfileMeta `yaml:"profile" json:"profile"`
	Rules   []RuleSpec  `yaml:"rules" json:"rules"`
}

// ProfileMeta is the profile header block of a policy document.
type ProfileMeta struct {
	Name string `yaml:"name" json:"name"`

	// Domain is the historical name for the target language field and is
	// still what most documents carry. Language takes precedence when both
	// are present.
	Domain   string `yaml:"domain" json:"domain"`
	Language string `yaml:"language" json:"language"`
	Version  string `yaml:"version" json:"version"`
}

// RuleSpec is a single rule entry in a policy document. Either Key or the
// legacy RuleKey field must be set.
type RuleSpec struct {
	Key         string `yaml:"key" json:"key"`
	RuleKey     string `yaml:"rule_key" json:"rule_key"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
	Expression  string `yaml:"expression" json:"expression"`
	Severity    string `yaml:"severity" json:"severity"`
	AutoFixable bool   `yaml:"auto_fixable" json:"auto_fixable"`
}

// Overrides are optional values applied over the document's profile block at
// import time. Empty fields leave the document value in place.
type Overrides struct {
	Name     string
	Language string
	Version  string
}

// LoaderConfig contains configuration for the policy loader.
type LoaderConfig struct {
	// MaxDocumentSize is the maximum accepted document size in bytes.
	// Default: 1MB
	MaxDocumentSize int
}

// DefaultLoaderConfig returns the default loader configuration.
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		MaxDocumentSize: 1024 * 1024,
	}
}

// Loader parses and validates policy documents, producing immutable
// profiles. Validation is all-or-nothing: if any rule fails, no profile is
// created and the returned ValidationError names every offending rule key.
type Loader struct {
	config *LoaderConfig
	logger *slog.Logger
}

// NewLoader creates a policy loader.
func NewLoader(config *LoaderConfig) *Loader {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	return &Loader{
		config: config,
		logger: slog.Default().With("component", "policy.loader"),
	}
}

// ParseDocument decodes a policy document from raw bytes. Documents starting
// with "{" are decoded as JSON, everything else as YAML.
func (l *Loader) ParseDocument(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, &ParseError{Message: "document is empty"}
	}
	if len(data) > l.config.MaxDocumentSize {
		return nil, &ParseError{
			Message: fmt.Sprintf("document size %d bytes exceeds maximum %d bytes",
				len(data), l.config.MaxDocumentSize),
		}
	}
	if !utf8.Valid(data) {
		return nil, &ParseError{Message: "document contains invalid UTF-8"}
	}

	var doc Document
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, &ParseError{Message: "invalid JSON", Cause: err}
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &ParseError{Message: "invalid YAML", Cause: err}
		}
	}

	return &doc, nil
}

// Import parses, validates, and materializes a policy document into a new
// Profile with a freshly generated id. The caller is responsible for
// persisting the profile in a catalog store.
func (l *Loader) Import(data []byte, overrides *Overrides) (*Profile, error) {
	doc, err := l.ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return l.Materialize(doc, overrides)
}

// Materialize validates a parsed document and produces a Profile. Every rule
// must carry a non-empty key (or legacy rule_key) and a compilable
// expression; severity, when present, must be low, medium, or high.
func (l *Loader) Materialize(doc *Document, overrides *Overrides) (*Profile, error) {
	if overrides == nil {
		overrides = &Overrides{}
	}
	if len(doc.Rules) == 0 {
		return nil, NewValidationError("document contains no rules")
	}

	profileID := uuid.NewString()
	profile := &Profile{
		ID:        profileID,
		Name:      firstNonEmpty(overrides.Name, doc.Profile.Name, "Unnamed Policy"),
		Language:  firstNonEmpty(overrides.Language, doc.Profile.Language, doc.Profile.Domain, "general"),
		Version:   firstNonEmpty(overrides.Version, doc.Profile.Version, "1.0.0"),
		Rules:     make([]*Rule, 0, len(doc.Rules)),
		CreatedAt: time.Now().UTC(),
	}

	var invalid []string
	for i, spec := range doc.Rules {
		rule, err := materializeRule(profileID, &spec)
		if err != nil {
			key := firstNonEmpty(spec.Key, spec.RuleKey, fmt.Sprintf("rules[%d]", i))
			invalid = append(invalid, key)
			l.logger.Debug("rule failed validation",
				"rule_key", key,
				"error", err,
			)
			continue
		}
		profile.Rules = append(profile.Rules, rule)
	}

	if len(invalid) > 0 {
		return nil, NewValidationError("one or more rules are invalid", invalid...)
	}

	l.logger.Info("policy document imported",
		"policy_id", profile.ID,
		"name", profile.Name,
		"language", profile.Language,
		"rule_count", len(profile.Rules),
	)

	return profile, nil
}

// materializeRule validates a single rule spec and builds the Rule with its
// compiled pattern.
func materializeRule(profileID string, spec *RuleSpec) (*Rule, error) {
	key := firstNonEmpty(spec.Key, spec.RuleKey)
	if key == "" {
		return nil, fmt.Errorf("rule must include 'key' or 'rule_key'")
	}

	severity := Severity(spec.Severity)
	if spec.Severity == "" {
		severity = DefaultSeverity
	}
	if !severity.Valid() {
		return nil, fmt.Errorf("severity %q is not one of low, medium, high", spec.Severity)
	}

	if spec.Expression == "" {
		return nil, fmt.Errorf("rule expression is empty")
	}
	if _, err := regexp.Compile(spec.Expression); err != nil {
		return nil, fmt.Errorf("expression does not compile: %w", err)
	}

	rule := &Rule{
		ID:          uuid.NewString(),
		ProfileID:   profileID,
		Key:         key,
		Description: firstNonEmpty(spec.Description, "No description provided"),
		Category:    firstNonEmpty(spec.Category, "style"),
		Expression:  spec.Expression,
		Severity:    severity,
		AutoFixable: spec.AutoFixable,
	}

	// Cannot fail: the expression compiled above.
	if err := rule.compile(); err != nil {
		return nil, err
	}

	return rule, nil
}

// firstNonEmpty returns the first non-empty string from values.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
