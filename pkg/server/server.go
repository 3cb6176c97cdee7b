package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"codecraft-hq/codecraft/pkg/config"
	"codecraft-hq/codecraft/pkg/policy"
	policystore "codecraft-hq/codecraft/pkg/policy/store"
	"codecraft-hq/codecraft/pkg/runs"
	"codecraft-hq/codecraft/pkg/telemetry/metrics"
)

// Server is the CodeCraft HTTP API server.
type Server struct {
	config       *config.ServerConfig
	loader       *policy.Loader
	catalog      policystore.Store
	orchestrator *runs.Orchestrator
	executor     *runs.Executor
	runStore     runs.Store
	metrics      *metrics.Collector
	metricsPath  string

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Deps bundles the server's collaborators.
type Deps struct {
	Loader       *policy.Loader
	Catalog      policystore.Store
	Orchestrator *runs.Orchestrator
	Executor     *runs.Executor
	RunStore     runs.Store

	// Metrics is optional; without it /metrics returns 404.
	Metrics *metrics.Collector

	// MetricsPath is where the exposition endpoint is mounted.
	// Default: "/metrics".
	MetricsPath string
}

// NewServer creates the API server.
func NewServer(cfg *config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Loader == nil || deps.Catalog == nil || deps.Orchestrator == nil ||
		deps.Executor == nil || deps.RunStore == nil {
		return nil, fmt.Errorf("server requires loader, catalog, orchestrator, executor, and run store")
	}
	metricsPath := deps.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Server{
		config:       cfg,
		loader:       deps.Loader,
		catalog:      deps.Catalog,
		orchestrator: deps.Orchestrator,
		executor:     deps.Executor,
		runStore:     deps.RunStore,
		metrics:      deps.Metrics,
		metricsPath:  metricsPath,
	}, nil
}

// Start starts the HTTP server and blocks until shutdown, a fatal listen
// error, or a SIGINT/SIGTERM signal.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting api server",
			"address", s.config.ListenAddress,
		)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// up to the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown",
			"timeout", s.config.ShutdownTimeout.String(),
		)

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("api server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured route and middleware stack.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/policies/import", s.handleImportPolicy)
	mux.HandleFunc("GET /v1/policies", s.handleListPolicies)
	mux.HandleFunc("GET /v1/policies/{id}", s.handleGetPolicy)
	mux.HandleFunc("POST /v1/runs", s.handleSubmitRun)
	mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /v1/refactor", s.handleRefactor)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET "+s.metricsPath, s.metrics.Handler())

	var handler http.Handler = mux
	handler = loggingMiddleware(s.metrics)(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(handler)
	return handler
}

// decodeJSON decodes a JSON request body, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return err
	}
	return nil
}
