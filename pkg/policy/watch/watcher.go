package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"codecraft-hq/codecraft/pkg/policy"
	"codecraft-hq/codecraft/pkg/policy/store"
)

// Config contains configuration for the directory watcher.
type Config struct {
	// Dir is the directory of policy documents to watch.
	Dir string

	// DebounceInterval is the quiet period after a file event before the
	// file is imported. Default: 200ms.
	DebounceInterval time.Duration

	// Extensions is the list of file extensions treated as policy
	// documents. Default: .yaml, .yml, .json.
	Extensions []string
}

// DefaultConfig returns the default watcher configuration for a directory.
func DefaultConfig(dir string) *Config {
	return &Config{
		Dir:              dir,
		DebounceInterval: 200 * time.Millisecond,
		Extensions:       []string{".yaml", ".yml", ".json"},
	}
}

// Watcher imports policy documents from a directory as they appear.
type Watcher struct {
	loader  *policy.Loader
	catalog store.Store
	watcher *fsnotify.Watcher
	config  *Config
	logger  *slog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewWatcher creates a directory watcher. The directory must exist.
func NewWatcher(loader *policy.Loader, catalog store.Store, config *Config) (*Watcher, error) {
	if config == nil || config.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	if config.DebounceInterval == 0 {
		config.DebounceInterval = 200 * time.Millisecond
	}
	if len(config.Extensions) == 0 {
		config.Extensions = []string{".yaml", ".yml", ".json"}
	}

	info, err := os.Stat(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory %q: %w", config.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path %q is not a directory", config.Dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		loader:  loader,
		catalog: catalog,
		watcher: fsw,
		config:  config,
		logger:  slog.Default().With("component", "policy.watch"),
		timers:  make(map[string]*time.Timer),
	}, nil
}

// ImportDir imports every policy document currently in the directory. It
// returns the number imported; individual document failures are logged and
// skipped.
func (w *Watcher) ImportDir(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		return 0, fmt.Errorf("read watch directory: %w", err)
	}

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() || !w.isPolicyDocument(entry.Name()) {
			continue
		}
		if err := w.importFile(ctx, filepath.Join(w.config.Dir, entry.Name())); err == nil {
			imported++
		}
	}
	return imported, nil
}

// Watch processes filesystem events until the context is cancelled or Stop
// is called.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.watcher.Add(w.config.Dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.config.Dir, err)
	}

	w.logger.Info("policy directory watcher started",
		"dir", w.config.Dir,
		"debounce_ms", w.config.DebounceInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("policy directory watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.shouldProcess(event) {
				continue
			}
			w.scheduleImport(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			// Keep watching despite transient errors.
			w.logger.Error("policy watcher error", "error", err)
		}
	}
}

// Stop closes the watcher and cancels pending imports.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	w.stopped = true
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

// shouldProcess filters events down to writes and creations of policy
// documents.
func (w *Watcher) shouldProcess(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return w.isPolicyDocument(base)
}

// isPolicyDocument checks the file extension against the configured list.
func (w *Watcher) isPolicyDocument(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range w.config.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// scheduleImport debounces imports per path.
func (w *Watcher) scheduleImport(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.config.DebounceInterval, func() {
		w.mu.Lock()
		delete(w.timers, path)
		stopped := w.stopped
		w.mu.Unlock()
		if stopped || ctx.Err() != nil {
			return
		}
		if err := w.importFile(ctx, path); err != nil {
			w.logger.Error("policy document import failed",
				"path", path,
				"error", err,
			)
		}
	})
}

// importFile loads one document and puts the resulting profile in the
// catalog. A profile that already exists is left untouched.
func (w *Watcher) importFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy document: %w", err)
	}

	profile, err := w.loader.Import(data, nil)
	if err != nil {
		return err
	}

	// Imports assign fresh profile ids, so dedupe re-imports of the same
	// document by name and version.
	existing, err := w.catalog.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range existing {
		if p.Name == profile.Name && p.Version == profile.Version {
			w.logger.Debug("policy profile already imported",
				"path", path,
				"policy_id", p.ID,
			)
			return nil
		}
	}

	if err := w.catalog.Put(ctx, profile); err != nil {
		var exists *store.AlreadyExistsError
		if errors.As(err, &exists) {
			w.logger.Debug("policy profile already imported",
				"path", path,
				"policy_id", profile.ID,
			)
			return nil
		}
		return err
	}

	w.logger.Info("policy document imported",
		"path", path,
		"policy_id", profile.ID,
		"name", profile.Name,
		"rules", len(profile.Rules),
	)
	return nil
}
