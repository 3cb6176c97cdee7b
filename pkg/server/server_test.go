package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codecraft-hq/codecraft/pkg/config"
	"codecraft-hq/codecraft/pkg/policy"
	policystore "codecraft-hq/codecraft/pkg/policy/store"
	"codecraft-hq/codecraft/pkg/runs"
	runstore "codecraft-hq/codecraft/pkg/runs/store"
	"codecraft-hq/codecraft/pkg/score"
	"codecraft-hq/codecraft/pkg/transform"
)

const serverPolicyDoc = `
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

func newTestServer(t *testing.T) *Server {
	t.Helper()

	catalog := policystore.NewMemoryStore()
	runStore := runstore.NewMemoryStore()
	loader := policy.NewLoader(nil)

	scorer, err := score.NewScorer(score.DefaultWeights())
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}
	orchestrator, err := runs.NewOrchestrator(&runs.Config{
		Policies: catalog,
		Store:    runStore,
		Adapter:  transform.NewStubAdapter(),
		Scorer:   scorer,
	})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}

	executor := runs.NewExecutor(orchestrator, &runs.ExecutorConfig{Workers: 1, QueueSize: 8})
	ctx, cancel := context.WithCancel(context.Background())
	executor.Start(ctx)
	t.Cleanup(func() {
		cancel()
		executor.Stop()
	})

	cfg := config.DefaultConfig()
	srv, err := NewServer(&cfg.Server, Deps{
		Loader:       loader,
		Catalog:      catalog,
		Orchestrator: orchestrator,
		Executor:     executor,
		RunStore:     runStore,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return srv
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func importPolicy(t *testing.T, handler http.Handler) string {
	t.Helper()

	rec := doRequest(t, handler, http.MethodPost, "/v1/policies/import", serverPolicyDoc)
	if rec.Code != http.StatusCreated {
		t.Fatalf("import status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		PolicyProfileID string `json:"policy_profile_id"`
		Name            string `json:"name"`
	}
	decodeBody(t, rec, &resp)
	if resp.PolicyProfileID == "" {
		t.Fatal("import response has no policy_profile_id")
	}
	return resp.PolicyProfileID
}

// TestImportPolicyEndpoint covers import, listing, and fetch by id.
func TestImportPolicyEndpoint(t *testing.T) {
	handler := newTestServer(t).Handler()

	id := importPolicy(t, handler)

	rec := doRequest(t, handler, http.MethodGet, "/v1/policies", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listResp struct {
		Policies []policy.Profile `json:"policies"`
	}
	decodeBody(t, rec, &listResp)
	if len(listResp.Policies) != 1 || listResp.Policies[0].ID != id {
		t.Errorf("listed policies = %+v", listResp.Policies)
	}

	rec = doRequest(t, handler, http.MethodGet, "/v1/policies/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var profile policy.Profile
	decodeBody(t, rec, &profile)
	if profile.Name != "Python Security Baseline" || len(profile.Rules) != 1 {
		t.Errorf("profile = %+v", profile)
	}
}

// TestImportPolicyValidationError verifies a 400 naming the offending rule
// keys.
func TestImportPolicyValidationError(t *testing.T) {
	handler := newTestServer(t).Handler()

	doc := strings.Replace(serverPolicyDoc, `expression: 'eval\('`, `expression: '[unclosed'`, 1)
	rec := doRequest(t, handler, http.MethodPost, "/v1/policies/import", doc)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp struct {
		Error struct {
			Message  string   `json:"message"`
			RuleKeys []string `json:"rule_keys"`
		} `json:"error"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Error.RuleKeys) != 1 || resp.Error.RuleKeys[0] != "no_eval" {
		t.Errorf("rule_keys = %v, want [no_eval]", resp.Error.RuleKeys)
	}
}

// TestGetPolicyNotFound verifies unknown profile ids map to 404.
func TestGetPolicyNotFound(t *testing.T) {
	handler := newTestServer(t).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/v1/policies/no-such-id", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestSubmitAndPollRun covers the asynchronous flow: submit, poll until
// terminal, inspect the detail.
func TestSubmitAndPollRun(t *testing.T) {
	handler := newTestServer(t).Handler()
	policyID := importPolicy(t, handler)

	submission, err := json.Marshal(map[string]any{
		"files": []map[string]string{
			{"file_path": "a.py", "content": "eval(data)\n"},
		},
		"policy_ids": []string{policyID},
		"mode":       "suggest",
		"language":   "python",
	})
	if err != nil {
		t.Fatalf("encoding submission: %v", err)
	}

	rec := doRequest(t, handler, http.MethodPost, "/v1/runs", string(submission))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var submitResp struct {
		RunID  string `json:"run_id"`
		Status string `json:"status"`
	}
	decodeBody(t, rec, &submitResp)
	if submitResp.Status != string(runs.StatusQueued) {
		t.Errorf("submit status = %q, want queued", submitResp.Status)
	}

	var detail runs.RunDetail
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = doRequest(t, handler, http.MethodGet, "/v1/runs/"+submitResp.RunID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("poll status = %d", rec.Code)
		}
		decodeBody(t, rec, &detail)
		if detail.Run.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run still %s after deadline", detail.Run.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if detail.Run.Status != runs.StatusDone {
		t.Fatalf("run status = %s, want done", detail.Run.Status)
	}
	if detail.Run.ComplianceScore == nil || detail.Run.FinishedAt == nil {
		t.Errorf("terminal fields missing: %+v", detail.Run)
	}
	if len(detail.Findings) != 1 || detail.Findings[0].RuleKey != "no_eval" {
		t.Errorf("findings = %+v", detail.Findings)
	}
	if len(detail.Metrics) == 0 {
		t.Error("detail has no metrics")
	}

	rec = doRequest(t, handler, http.MethodGet, "/v1/runs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listResp struct {
		Runs []runs.Run `json:"runs"`
	}
	decodeBody(t, rec, &listResp)
	if len(listResp.Runs) != 1 || listResp.Runs[0].ID != submitResp.RunID {
		t.Errorf("listed runs = %+v", listResp.Runs)
	}
}

// TestSubmitRunValidationErrors verifies submission failures map to 400.
func TestSubmitRunValidationErrors(t *testing.T) {
	handler := newTestServer(t).Handler()
	policyID := importPolicy(t, handler)

	cases := []struct {
		name string
		body string
		want int
	}{
		{
			name: "no files",
			body: `{"policy_ids": ["` + policyID + `"]}`,
			want: http.StatusBadRequest,
		},
		{
			name: "no policies",
			body: `{"files": [{"file_path": "a.py", "content": "x = 1"}]}`,
			want: http.StatusBadRequest,
		},
		{
			name: "unknown policy",
			body: `{"files": [{"file_path": "a.py", "content": "x = 1"}], "policy_ids": ["missing"]}`,
			want: http.StatusNotFound,
		},
		{
			name: "malformed json",
			body: `{"files": [`,
			want: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, handler, http.MethodPost, "/v1/runs", tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

// TestGetRunNotFoundEndpoint verifies unknown run ids map to 404.
func TestGetRunNotFoundEndpoint(t *testing.T) {
	handler := newTestServer(t).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/v1/runs/no-such-run", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestRefactorEndpoint covers the synchronous single-snippet path.
func TestRefactorEndpoint(t *testing.T) {
	handler := newTestServer(t).Handler()
	policyID := importPolicy(t, handler)

	body, err := json.Marshal(map[string]any{
		"code":              "eval(data)   \n",
		"language":          "python",
		"policy_profile_id": policyID,
	})
	if err != nil {
		t.Fatalf("encoding request: %v", err)
	}

	rec := doRequest(t, handler, http.MethodPost, "/v1/refactor", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result runs.SyncResult
	decodeBody(t, rec, &result)
	if result.Run.Status != runs.StatusDone {
		t.Errorf("run status = %s, want done", result.Run.Status)
	}
	if result.RefactoredCode != "eval(data)\n" {
		t.Errorf("refactored code = %q", result.RefactoredCode)
	}
	if len(result.Violations) != 1 || result.Violations[0].RuleKey != "no_eval" {
		t.Errorf("violations = %+v", result.Violations)
	}
	if result.Summary == nil || result.Summary.PolicyScore != 0.0 {
		t.Errorf("summary = %+v", result.Summary)
	}
}

// TestHealthEndpoint verifies the health report with live backends.
func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(t).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeBody(t, rec, &resp)
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Checks["policy_store"] != "ok" || resp.Checks["run_store"] != "ok" {
		t.Errorf("checks = %v", resp.Checks)
	}
}

// TestRequestIDPropagation verifies a caller-supplied request id is echoed
// and one is generated otherwise.
func TestRequestIDPropagation(t *testing.T) {
	handler := newTestServer(t).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("request id = %q, want echo of req-123", got)
	}

	rec = doRequest(t, handler, http.MethodGet, "/health", "")
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("request id should be generated when absent")
	}
}

// TestMetricsEndpointWithoutCollector verifies /metrics 404s when no
// collector is wired.
func TestMetricsEndpointWithoutCollector(t *testing.T) {
	handler := newTestServer(t).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestRecoveryMiddleware verifies a panicking handler yields a 500 instead
// of tearing down the server.
func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()
	recoveryMiddleware(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
