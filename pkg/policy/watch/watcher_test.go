package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"codecraft-hq/codecraft/pkg/policy"
	"codecraft-hq/codecraft/pkg/policy/store"
)

const watchPolicyDoc = `
profile:
  name: Python Security Baseline
  domain: python
  version: 1.0.0
rules:
  - key: no_eval
    description: Do not call eval on dynamic input
    expression: 'eval\('
    severity: high
    category: security
`

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

// TestImportDir verifies the initial sweep imports every policy document and
// skips everything else.
func TestImportDir(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "baseline.yaml", watchPolicyDoc)
	writeDoc(t, dir, "notes.txt", "not a policy")
	writeDoc(t, dir, "broken.yaml", "rules: [")

	catalog := store.NewMemoryStore()
	watcher, err := NewWatcher(policy.NewLoader(nil), catalog, DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	imported, err := watcher.ImportDir(context.Background())
	if err != nil {
		t.Fatalf("ImportDir failed: %v", err)
	}
	if imported != 1 {
		t.Errorf("imported = %d, want 1", imported)
	}

	profiles, err := catalog.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Name != "Python Security Baseline" {
		t.Errorf("catalog = %+v", profiles)
	}
}

// TestImportDirDedupe verifies re-sweeping the same directory does not
// duplicate profiles.
func TestImportDirDedupe(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "baseline.yaml", watchPolicyDoc)

	catalog := store.NewMemoryStore()
	watcher, err := NewWatcher(policy.NewLoader(nil), catalog, DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	for i := 0; i < 2; i++ {
		if _, err := watcher.ImportDir(context.Background()); err != nil {
			t.Fatalf("ImportDir sweep %d failed: %v", i, err)
		}
	}

	profiles, err := catalog.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 1 {
		t.Errorf("catalog holds %d profiles after re-sweep, want 1", len(profiles))
	}
}

// TestNewWatcherMissingDir verifies construction fails for an absent
// directory.
func TestNewWatcherMissingDir(t *testing.T) {
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "absent"))
	if _, err := NewWatcher(policy.NewLoader(nil), store.NewMemoryStore(), cfg); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

// TestShouldProcessFiltering verifies the event filter.
func TestShouldProcessFiltering(t *testing.T) {
	dir := t.TempDir()
	watcher, err := NewWatcher(policy.NewLoader(nil), store.NewMemoryStore(), DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	if !watcher.isPolicyDocument("baseline.yaml") || !watcher.isPolicyDocument("rules.JSON") {
		t.Error("policy extensions should be accepted")
	}
	if watcher.isPolicyDocument("readme.md") || watcher.isPolicyDocument("archive.tar") {
		t.Error("non-policy extensions should be rejected")
	}
}
