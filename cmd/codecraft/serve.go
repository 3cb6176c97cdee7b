package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codecraft-hq/codecraft/pkg/config"
	"codecraft-hq/codecraft/pkg/policy"
	policystore "codecraft-hq/codecraft/pkg/policy/store"
	"codecraft-hq/codecraft/pkg/policy/watch"
	"codecraft-hq/codecraft/pkg/runs"
	"codecraft-hq/codecraft/pkg/runs/retention"
	runstore "codecraft-hq/codecraft/pkg/runs/store"
	"codecraft-hq/codecraft/pkg/score"
	"codecraft-hq/codecraft/pkg/server"
	"codecraft-hq/codecraft/pkg/telemetry/logging"
	"codecraft-hq/codecraft/pkg/telemetry/metrics"
	"codecraft-hq/codecraft/pkg/transform"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CodeCraft service",
	Long: `Start the CodeCraft service with the specified configuration.

The service exposes the policy catalog, refactor run, and synchronous
refactor APIs over HTTP, backed by the configured storage and transform
adapter.

Examples:
  # Start with default config
  codecraft serve

  # Start with custom config
  codecraft serve --config /etc/codecraft/config.yaml

  # Override listen address
  codecraft serve --listen 0.0.0.0:8080

  # Validate config without starting the service
  codecraft serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting the service")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(cfg.Telemetry.Logging, os.Stdout); err != nil {
		return err
	}

	if serveFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("CodeCraft v%s\n", Version)

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	loader := policy.NewLoader(&policy.LoaderConfig{
		MaxDocumentSize: cfg.Policy.MaxDocumentSize,
	})

	catalog, runStore, err := buildStores(cfg)
	if err != nil {
		return err
	}
	defer catalog.Close()
	defer runStore.Close()

	var artifacts *runs.ArtifactWriter
	if cfg.Storage.ArtifactsDir != "" {
		artifacts, err = runs.NewArtifactWriter(cfg.Storage.ArtifactsDir)
		if err != nil {
			return err
		}
	}

	adapter, err := buildAdapter(cfg)
	if err != nil {
		return err
	}

	scorer, err := score.NewScorer(score.Weights{
		Low:    cfg.Scoring.Weights.Low,
		Medium: cfg.Scoring.Weights.Medium,
		High:   cfg.Scoring.Weights.High,
	})
	if err != nil {
		return err
	}

	orchestrator, err := runs.NewOrchestrator(&runs.Config{
		Policies:   catalog,
		Store:      runStore,
		Adapter:    adapter,
		Scorer:     scorer,
		TestRunner: score.NewStaticTestRunner(cfg.Scoring.StaticTestPassRate),
		Artifacts:  artifacts,
		Metrics:    collector,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	executor := runs.NewExecutor(orchestrator, &runs.ExecutorConfig{
		Workers:   cfg.Executor.Workers,
		QueueSize: cfg.Executor.QueueSize,
	})
	executor.Start(ctx)
	defer executor.Stop()

	if cfg.Policy.Watch && cfg.Policy.WatchDir != "" {
		watcher, err := watch.NewWatcher(loader, catalog, watch.DefaultConfig(cfg.Policy.WatchDir))
		if err != nil {
			return err
		}
		if imported, err := watcher.ImportDir(ctx); err == nil && imported > 0 {
			slog.Info("policy directory imported", "count", imported)
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Error("policy watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	if cfg.Retention.Enabled {
		pruner := retention.NewPruner(runStore, artifacts, &retention.Config{
			RetentionDays: cfg.Retention.RetentionDays,
			PruneSchedule: cfg.Retention.PruneSchedule,
		})
		scheduler := retention.NewScheduler(pruner)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	srv, err := server.NewServer(&cfg.Server, server.Deps{
		Loader:       loader,
		Catalog:      catalog,
		Orchestrator: orchestrator,
		Executor:     executor,
		RunStore:     runStore,
		Metrics:      collector,
		MetricsPath:  cfg.Telemetry.Metrics.Path,
	})
	if err != nil {
		return err
	}

	fmt.Printf("✓ Listening on %s\n", cfg.Server.ListenAddress)
	return srv.Start(ctx)
}

// loadConfig loads the configuration file, falling back to defaults when the
// default path does not exist.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		if cfgFile != "config.yaml" {
			return nil, fmt.Errorf("config file %q not found", cfgFile)
		}
		return config.DefaultConfig(), nil
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

// buildStores creates the policy catalog and run store for the configured
// backend.
func buildStores(cfg *config.Config) (policystore.Store, runs.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return policystore.NewMemoryStore(), runstore.NewMemoryStore(), nil
	case "sqlite":
		for _, path := range []string{cfg.Storage.PolicyDBPath, cfg.Storage.RunsDBPath} {
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, nil, fmt.Errorf("create storage directory: %w", err)
				}
			}
		}
		catalog, err := policystore.NewSQLiteStore(&policystore.SQLiteConfig{
			Path: cfg.Storage.PolicyDBPath,
		})
		if err != nil {
			return nil, nil, err
		}
		runStore, err := runstore.NewSQLiteStore(runstore.SQLiteConfig{
			Path: cfg.Storage.RunsDBPath,
		})
		if err != nil {
			catalog.Close()
			return nil, nil, err
		}
		return catalog, runStore, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildAdapter creates the configured transform adapter.
func buildAdapter(cfg *config.Config) (transform.Adapter, error) {
	switch cfg.Transform.Backend {
	case "stub":
		return transform.NewStubAdapter(), nil
	case "model":
		return transform.NewModelAdapter(&transform.ModelConfig{
			Endpoint:     cfg.Transform.Endpoint,
			ModelVersion: cfg.Transform.ModelVersion,
			APIKey:       cfg.Transform.APIKey,
			Timeout:      cfg.Transform.Timeout,
			MaxRetries:   cfg.Transform.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("unknown transform backend %q", cfg.Transform.Backend)
	}
}
