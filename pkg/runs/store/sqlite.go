package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"codecraft-hq/codecraft/pkg/policy"
	"codecraft-hq/codecraft/pkg/runs"
	"codecraft-hq/codecraft/pkg/scan"
)

// SQLiteStore is a durable runs.Store backed by a single SQLite file. It uses
// WAL journaling for concurrent reads and serializes writes through a single
// connection.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// SQLiteConfig configures the SQLite runs store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

const runsSchema = `
CREATE TABLE IF NOT EXISTS refactor_runs (
	run_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	language TEXT NOT NULL,
	model_version TEXT NOT NULL,
	mode TEXT NOT NULL,
	policy_ids TEXT NOT NULL,
	submitted_by TEXT NOT NULL DEFAULT '',
	compliance_score REAL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON refactor_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON refactor_runs(status);

CREATE TABLE IF NOT EXISTS run_findings (
	finding_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES refactor_runs(run_id) ON DELETE CASCADE,
	rule_id TEXT NOT NULL,
	rule_key TEXT NOT NULL,
	file_path TEXT NOT NULL,
	line INTEGER NOT NULL,
	severity TEXT NOT NULL,
	status TEXT NOT NULL,
	evidence TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_findings_run ON run_findings(run_id);

CREATE TABLE IF NOT EXISTS run_metrics (
	metric_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES refactor_runs(run_id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	before_value REAL,
	after_value REAL
);

CREATE INDEX IF NOT EXISTS idx_metrics_run ON run_metrics(run_id);

CREATE TABLE IF NOT EXISTS run_artifacts (
	artifact_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES refactor_runs(run_id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	uri TEXT NOT NULL,
	checksum TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_run ON run_artifacts(run_id);
`

// NewSQLiteStore opens (creating if necessary) the runs database.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, runs.NewStorageError("sqlite", "open", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, runs.NewStorageError("sqlite", "pragma", err)
	}
	if _, err := db.Exec(runsSchema); err != nil {
		db.Close()
		return nil, runs.NewStorageError("sqlite", "init_schema", err)
	}

	return &SQLiteStore{db: db, path: cfg.Path}, nil
}

// CreateRun inserts a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *runs.Run) error {
	policyIDs, err := json.Marshal(run.PolicyIDs)
	if err != nil {
		return runs.NewStorageError("sqlite", "create_run", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO refactor_runs
			(run_id, status, language, model_version, mode, policy_ids, submitted_by, compliance_score, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.Language, run.ModelVersion, string(run.Mode),
		string(policyIDs), run.SubmittedBy, run.ComplianceScore,
		run.StartedAt.UnixMilli(), nullableMilli(run.FinishedAt),
	)
	if err != nil {
		return runs.NewStorageError("sqlite", "create_run", err)
	}
	return nil
}

// GetRun returns the run with the given id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*runs.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, status, language, model_version, mode, policy_ids, submitted_by, compliance_score, started_at, finished_at
		FROM refactor_runs WHERE run_id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, &runs.NotFoundError{RunID: id}
	}
	if err != nil {
		return nil, runs.NewStorageError("sqlite", "get_run", err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]*runs.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, status, language, model_version, mode, policy_ids, submitted_by, compliance_score, started_at, finished_at
		FROM refactor_runs ORDER BY started_at DESC, run_id DESC`)
	if err != nil {
		return nil, runs.NewStorageError("sqlite", "list_runs", err)
	}
	defer rows.Close()

	var out []*runs.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, runs.NewStorageError("sqlite", "list_runs", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, runs.NewStorageError("sqlite", "list_runs", err)
	}
	return out, nil
}

// UpdateStatus transitions a run inside a transaction, enforcing the state
// machine against the currently stored status.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, to runs.Status, finishedAt *time.Time, score *float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return runs.NewStorageError("sqlite", "update_status", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM refactor_runs WHERE run_id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return &runs.NotFoundError{RunID: id}
	}
	if err != nil {
		return runs.NewStorageError("sqlite", "update_status", err)
	}

	if err := validateUpdate(id, runs.Status(current), to, finishedAt, score); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE refactor_runs SET status = ?, finished_at = ?, compliance_score = ?
		WHERE run_id = ?`,
		string(to), nullableMilli(finishedAt), score, id)
	if err != nil {
		return runs.NewStorageError("sqlite", "update_status", err)
	}

	if err := tx.Commit(); err != nil {
		return runs.NewStorageError("sqlite", "update_status", err)
	}
	return nil
}

// AddFindings appends findings to a run.
func (s *SQLiteStore) AddFindings(ctx context.Context, runID string, findings []scan.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	if err := s.requireRun(ctx, runID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return runs.NewStorageError("sqlite", "add_findings", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_findings (finding_id, run_id, rule_id, rule_key, file_path, line, severity, status, evidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return runs.NewStorageError("sqlite", "add_findings", err)
	}
	defer stmt.Close()

	for _, f := range findings {
		if _, err := stmt.ExecContext(ctx, f.ID, runID, f.RuleID, f.RuleKey,
			f.FilePath, f.Line, string(f.Severity), string(f.Status), f.Evidence); err != nil {
			return runs.NewStorageError("sqlite", "add_findings", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return runs.NewStorageError("sqlite", "add_findings", err)
	}
	return nil
}

// ListFindings returns a run's findings ordered by (file, line, rule key).
func (s *SQLiteStore) ListFindings(ctx context.Context, runID string) ([]scan.Finding, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT finding_id, run_id, rule_id, rule_key, file_path, line, severity, status, evidence
		FROM run_findings WHERE run_id = ?
		ORDER BY file_path, line, rule_key`, runID)
	if err != nil {
		return nil, runs.NewStorageError("sqlite", "list_findings", err)
	}
	defer rows.Close()

	var out []scan.Finding
	for rows.Next() {
		var f scan.Finding
		var severity, status string
		if err := rows.Scan(&f.ID, &f.RunID, &f.RuleID, &f.RuleKey,
			&f.FilePath, &f.Line, &severity, &status, &f.Evidence); err != nil {
			return nil, runs.NewStorageError("sqlite", "list_findings", err)
		}
		f.Severity = policy.Severity(severity)
		f.Status = scan.FindingStatus(status)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, runs.NewStorageError("sqlite", "list_findings", err)
	}
	return out, nil
}

// AddMetrics appends metric records.
func (s *SQLiteStore) AddMetrics(ctx context.Context, metrics []runs.Metric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return runs.NewStorageError("sqlite", "add_metrics", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_metrics (metric_id, run_id, name, before_value, after_value)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return runs.NewStorageError("sqlite", "add_metrics", err)
	}
	defer stmt.Close()

	for _, m := range metrics {
		if _, err := stmt.ExecContext(ctx, m.ID, m.RunID, m.Name, m.Before, m.After); err != nil {
			return runs.NewStorageError("sqlite", "add_metrics", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return runs.NewStorageError("sqlite", "add_metrics", err)
	}
	return nil
}

// ListMetrics returns a run's metrics.
func (s *SQLiteStore) ListMetrics(ctx context.Context, runID string) ([]runs.Metric, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT metric_id, run_id, name, before_value, after_value
		FROM run_metrics WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, runs.NewStorageError("sqlite", "list_metrics", err)
	}
	defer rows.Close()

	var out []runs.Metric
	for rows.Next() {
		var m runs.Metric
		if err := rows.Scan(&m.ID, &m.RunID, &m.Name, &m.Before, &m.After); err != nil {
			return nil, runs.NewStorageError("sqlite", "list_metrics", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, runs.NewStorageError("sqlite", "list_metrics", err)
	}
	return out, nil
}

// AddArtifacts appends artifact records.
func (s *SQLiteStore) AddArtifacts(ctx context.Context, artifacts []runs.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return runs.NewStorageError("sqlite", "add_artifacts", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_artifacts (artifact_id, run_id, type, uri, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return runs.NewStorageError("sqlite", "add_artifacts", err)
	}
	defer stmt.Close()

	for _, a := range artifacts {
		if _, err := stmt.ExecContext(ctx, a.ID, a.RunID, string(a.Type),
			a.URI, a.Checksum, a.CreatedAt.UnixMilli()); err != nil {
			return runs.NewStorageError("sqlite", "add_artifacts", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return runs.NewStorageError("sqlite", "add_artifacts", err)
	}
	return nil
}

// ListArtifacts returns a run's artifacts.
func (s *SQLiteStore) ListArtifacts(ctx context.Context, runID string) ([]runs.Artifact, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT artifact_id, run_id, type, uri, checksum, created_at
		FROM run_artifacts WHERE run_id = ? ORDER BY created_at, artifact_id`, runID)
	if err != nil {
		return nil, runs.NewStorageError("sqlite", "list_artifacts", err)
	}
	defer rows.Close()

	var out []runs.Artifact
	for rows.Next() {
		var a runs.Artifact
		var artifactType string
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.RunID, &artifactType, &a.URI, &a.Checksum, &createdAt); err != nil {
			return nil, runs.NewStorageError("sqlite", "list_artifacts", err)
		}
		a.Type = runs.ArtifactType(artifactType)
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, runs.NewStorageError("sqlite", "list_artifacts", err)
	}
	return out, nil
}

// DeleteRun removes a run; findings, metrics, and artifacts go with it via
// foreign-key cascade.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM refactor_runs WHERE run_id = ?`, runID)
	if err != nil {
		return runs.NewStorageError("sqlite", "delete_run", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return runs.NewStorageError("sqlite", "delete_run", err)
	}
	if affected == 0 {
		return &runs.NotFoundError{RunID: runID}
	}
	return nil
}

// ListTerminalRunsBefore returns terminal runs finished before the cutoff,
// oldest first.
func (s *SQLiteStore) ListTerminalRunsBefore(ctx context.Context, cutoff time.Time) ([]*runs.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, status, language, model_version, mode, policy_ids, submitted_by, compliance_score, started_at, finished_at
		FROM refactor_runs
		WHERE status IN (?, ?) AND finished_at < ?
		ORDER BY finished_at`,
		string(runs.StatusDone), string(runs.StatusFailed), cutoff.UnixMilli())
	if err != nil {
		return nil, runs.NewStorageError("sqlite", "list_terminal_runs", err)
	}
	defer rows.Close()

	var out []*runs.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, runs.NewStorageError("sqlite", "list_terminal_runs", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, runs.NewStorageError("sqlite", "list_terminal_runs", err)
	}
	return out, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return runs.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// requireRun fails with a NotFoundError when the run does not exist.
func (s *SQLiteStore) requireRun(ctx context.Context, runID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM refactor_runs WHERE run_id = ?`, runID).Scan(&one)
	if err == sql.ErrNoRows {
		return &runs.NotFoundError{RunID: runID}
	}
	if err != nil {
		return runs.NewStorageError("sqlite", "require_run", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun decodes one refactor_runs row.
func scanRun(row rowScanner) (*runs.Run, error) {
	var run runs.Run
	var status, mode, policyIDs string
	var score sql.NullFloat64
	var startedAt int64
	var finishedAt sql.NullInt64

	if err := row.Scan(&run.ID, &status, &run.Language, &run.ModelVersion, &mode,
		&policyIDs, &run.SubmittedBy, &score, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	run.Status = runs.Status(status)
	run.Mode = runs.Mode(mode)
	if err := json.Unmarshal([]byte(policyIDs), &run.PolicyIDs); err != nil {
		return nil, fmt.Errorf("decode policy ids: %w", err)
	}
	if score.Valid {
		run.ComplianceScore = &score.Float64
	}
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64).UTC()
		run.FinishedAt = &t
	}
	return &run, nil
}

// nullableMilli converts an optional time to a nullable millisecond column.
func nullableMilli(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
