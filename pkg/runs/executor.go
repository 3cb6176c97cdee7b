package runs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ExecutorConfig controls the asynchronous run executor.
type ExecutorConfig struct {
	// Workers is the number of concurrent pipeline executions.
	Workers int

	// QueueSize bounds the number of runs waiting for a worker. Enqueue
	// fails when the queue is full rather than blocking submission.
	QueueSize int
}

// DefaultExecutorConfig returns conservative executor defaults.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		Workers:   4,
		QueueSize: 64,
	}
}

// Executor drains queued runs through the orchestrator with a fixed pool of
// workers. A run rejected by a full queue stays queued in storage and is
// reported to the submitter.
type Executor struct {
	orchestrator *Orchestrator
	queue        chan string
	workers      int
	logger       *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ErrQueueFull is returned by Enqueue when the executor cannot accept more
// work.
var ErrQueueFull = fmt.Errorf("run queue is full")

// NewExecutor creates an executor for the given orchestrator.
func NewExecutor(orchestrator *Orchestrator, cfg *ExecutorConfig) *Executor {
	if cfg == nil {
		cfg = DefaultExecutorConfig()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}

	return &Executor{
		orchestrator: orchestrator,
		queue:        make(chan string, queueSize),
		workers:      workers,
		logger:       slog.Default().With("component", "runs.executor"),
	}
}

// Start launches the worker pool. Safe to call once; subsequent calls are
// no-ops.
func (e *Executor) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true

	ctx, e.cancel = context.WithCancel(ctx)
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx, i)
	}

	e.logger.Info("executor started",
		"workers", e.workers,
		"queue_size", cap(e.queue),
	)
}

// Enqueue hands a queued run to the worker pool.
func (e *Executor) Enqueue(runID string) error {
	select {
	case e.queue <- runID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop cancels the workers and waits for in-flight executions to finish.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.logger.Info("executor stopped")
}

func (e *Executor) worker(ctx context.Context, id int) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case runID := <-e.queue:
			if _, err := e.orchestrator.Execute(ctx, runID); err != nil {
				e.logger.Warn("run execution failed",
					"worker", id,
					"run_id", runID,
					"error", err,
				)
			}
		}
	}
}
