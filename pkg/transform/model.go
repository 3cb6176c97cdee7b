package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// ModelConfig contains configuration for the model-backed adapter.
type ModelConfig struct {
	// Endpoint is the URL of the code-generation backend's propose API.
	Endpoint string

	// ModelVersion is the model identifier sent with each request and
	// recorded on runs.
	ModelVersion string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout is the per-attempt request timeout.
	// Default: 60s
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Default: 2
	MaxRetries int
}

// DefaultModelConfig returns the default model adapter configuration.
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		ModelVersion: "unknown",
		Timeout:      60 * time.Second,
		MaxRetries:   2,
	}
}

// ModelAdapter calls an external code-generation backend over HTTP. Retries
// with exponential backoff and timeouts are handled here; the orchestrator
// only ever sees success or a *Failure.
type ModelAdapter struct {
	config *ModelConfig
	client *http.Client
	logger *slog.Logger
}

// NewModelAdapter creates a model-backed adapter.
func NewModelAdapter(config *ModelConfig) (*ModelAdapter, error) {
	if config == nil {
		config = DefaultModelConfig()
	}
	if config.Endpoint == "" {
		return nil, fmt.Errorf("model adapter endpoint is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &ModelAdapter{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: slog.Default().With("component", "transform.model"),
	}, nil
}

// Name identifies the implementation.
func (a *ModelAdapter) Name() string {
	return "model"
}

// ModelVersion identifies the backing model.
func (a *ModelAdapter) ModelVersion() string {
	return a.config.ModelVersion
}

// proposeRequest is the wire request to the backend.
type proposeRequest struct {
	Model   string   `json:"model"`
	Request *Request `json:"request"`
}

// Propose sends the request to the backend, retrying transient failures.
func (a *ModelAdapter) Propose(ctx context.Context, req *Request) (*Result, error) {
	body, err := json.Marshal(&proposeRequest{
		Model:   a.config.ModelVersion,
		Request: req,
	})
	if err != nil {
		return nil, NewFailure(a.Name(), req.FilePath, fmt.Errorf("encode request: %w", err))
	}

	var lastErr error
	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			a.logger.Debug("retrying propose request",
				"attempt", attempt,
				"max_retries", a.config.MaxRetries,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return nil, NewFailure(a.Name(), req.FilePath, ctx.Err())
			case <-time.After(backoff):
			}
		}

		result, retryable, err := a.doPropose(ctx, req.FilePath, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		a.logger.Warn("propose request failed, will retry",
			"file", req.FilePath,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return nil, NewFailure(a.Name(), req.FilePath, lastErr)
}

// doPropose performs one HTTP attempt. The second return value reports
// whether the failure is retryable (network errors and 5xx responses).
func (a *ModelAdapter) doPropose(ctx context.Context, filePath string, body []byte) (*Result, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, respBody)
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	return &result, false, nil
}
