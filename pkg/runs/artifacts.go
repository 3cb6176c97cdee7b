package runs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ArtifactWriter stores artifact content on the local filesystem and builds
// the Artifact records pointing at it. Each run's artifacts live under
// <dir>/<run_id>/.
type ArtifactWriter struct {
	dir    string
	logger *slog.Logger
}

// NewArtifactWriter creates an artifact writer rooted at dir, creating the
// directory if needed.
func NewArtifactWriter(dir string) (*ArtifactWriter, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory %q: %w", dir, err)
	}
	return &ArtifactWriter{
		dir:    dir,
		logger: slog.Default().With("component", "runs.artifacts"),
	}, nil
}

// Write stores content under the run's artifact directory and returns the
// artifact record. The checksum is the hex SHA-256 of the content.
func (w *ArtifactWriter) Write(runID string, typ ArtifactType, name string, content []byte) (*Artifact, error) {
	runDir := filepath.Join(w.dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run artifact directory: %w", err)
	}

	path := filepath.Join(runDir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("write artifact %q: %w", path, err)
	}

	artifact := &Artifact{
		ID:        uuid.NewString(),
		RunID:     runID,
		Type:      typ,
		URI:       path,
		Checksum:  HashContent(content),
		CreatedAt: time.Now().UTC(),
	}

	w.logger.Debug("artifact written",
		"run_id", runID,
		"type", typ,
		"uri", path,
		"bytes", len(content),
	)

	return artifact, nil
}

// Remove deletes a run's artifact directory. Used by the retention
// collaborator, never by the core.
func (w *ArtifactWriter) Remove(runID string) error {
	return os.RemoveAll(filepath.Join(w.dir, runID))
}
