package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"codecraft-hq/codecraft/pkg/policy"
)

// SQLiteConfig contains configuration for the SQLite policy catalog.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite catalog configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/policies.db",
		MaxOpenConns: 10,
		BusyTimeout:  5 * time.Second,
	}
}

// policySchema creates the catalog tables. Profiles and rules are append-only;
// there are no UPDATE paths.
const policySchema = `
CREATE TABLE IF NOT EXISTS policy_profiles (
    policy_id  TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    language   TEXT NOT NULL,
    version    TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS policy_rules (
    rule_id      TEXT PRIMARY KEY,
    policy_id    TEXT NOT NULL REFERENCES policy_profiles(policy_id),
    rule_key     TEXT NOT NULL,
    description  TEXT NOT NULL,
    category     TEXT NOT NULL,
    expression   TEXT NOT NULL,
    severity     TEXT NOT NULL,
    auto_fixable BOOLEAN NOT NULL DEFAULT 0,
    position     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policy_rules_policy_id ON policy_rules(policy_id);
`

// SQLiteStore is a durable policy catalog backed by SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens (and if necessary initializes) a SQLite policy catalog.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL",
		config.Path, config.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "policy.store.sqlite"),
	}

	if _, err := db.Exec(policySchema); err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "initialize", err)
	}

	s.logger.Info("policy catalog initialized", "path", config.Path)
	return s, nil
}

// Put inserts a profile and its rules in a single transaction.
func (s *SQLiteStore) Put(ctx context.Context, profile *policy.Profile) error {
	if profile == nil || profile.ID == "" {
		return NewStorageError("sqlite", "put", errNilProfile)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("sqlite", "put", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM policy_profiles WHERE policy_id = ?`, profile.ID).Scan(&exists)
	if err != nil {
		return NewStorageError("sqlite", "put", err)
	}
	if exists > 0 {
		return &AlreadyExistsError{ProfileID: profile.ID}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO policy_profiles (policy_id, name, language, version, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		profile.ID, profile.Name, profile.Language, profile.Version, profile.CreatedAt)
	if err != nil {
		return NewStorageError("sqlite", "put", err)
	}

	for i, rule := range profile.Rules {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO policy_rules
			 (rule_id, policy_id, rule_key, description, category, expression, severity, auto_fixable, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rule.ID, profile.ID, rule.Key, rule.Description, rule.Category,
			rule.Expression, string(rule.Severity), rule.AutoFixable, i)
		if err != nil {
			return NewStorageError("sqlite", "put", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("sqlite", "put", err)
	}
	return nil
}

// Get returns the profile with the given id, rules in document order with
// recompiled patterns.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*policy.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT policy_id, name, language, version, created_at
		 FROM policy_profiles WHERE policy_id = ?`, id)

	profile := &policy.Profile{}
	err := row.Scan(&profile.ID, &profile.Name, &profile.Language, &profile.Version, &profile.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ProfileID: id}
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get", err)
	}

	rules, err := s.loadRules(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	profile.Rules = rules
	return profile, nil
}

// List returns all profiles ordered by creation time, oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]*policy.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT policy_id, name, language, version, created_at
		 FROM policy_profiles ORDER BY created_at ASC, policy_id ASC`)
	if err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	var profiles []*policy.Profile
	for rows.Next() {
		profile := &policy.Profile{}
		if err := rows.Scan(&profile.ID, &profile.Name, &profile.Language,
			&profile.Version, &profile.CreatedAt); err != nil {
			return nil, NewStorageError("sqlite", "list", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}

	for _, profile := range profiles {
		rules, err := s.loadRules(ctx, profile.ID)
		if err != nil {
			return nil, err
		}
		profile.Rules = rules
	}
	return profiles, nil
}

// loadRules loads and recompiles a profile's rules.
func (s *SQLiteStore) loadRules(ctx context.Context, profileID string) ([]*policy.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rule_id, policy_id, rule_key, description, category, expression, severity, auto_fixable
		 FROM policy_rules WHERE policy_id = ? ORDER BY position ASC`, profileID)
	if err != nil {
		return nil, NewStorageError("sqlite", "get", err)
	}
	defer rows.Close()

	var rules []*policy.Rule
	for rows.Next() {
		rule := &policy.Rule{}
		var severity string
		if err := rows.Scan(&rule.ID, &rule.ProfileID, &rule.Key, &rule.Description,
			&rule.Category, &rule.Expression, &severity, &rule.AutoFixable); err != nil {
			return nil, NewStorageError("sqlite", "get", err)
		}
		rule.Severity = policy.Severity(severity)

		// The expression compiled at import time; a failure here means the
		// stored row was corrupted.
		if err := rule.Compile(); err != nil {
			return nil, NewStorageError("sqlite", "get",
				fmt.Errorf("stored rule %s has invalid expression: %w", rule.ID, err))
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "get", err)
	}
	return rules, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
