package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"codecraft-hq/codecraft/pkg/config"
)

func testCollector() (*Collector, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	c := NewCollector(&config.MetricsConfig{Enabled: true}, registry)
	return c, registry
}

// TestCollectorRecordsMetrics verifies recorded values reach the registry
// under the default namespace.
func TestCollectorRecordsMetrics(t *testing.T) {
	c, registry := testCollector()

	c.RecordRunSubmitted("suggest")
	c.RecordRunSubmitted("suggest")
	c.RecordRunFinished("done", 1.5)
	c.RecordFindings("high", 3)
	c.RecordPolicyImport("imported")
	c.SetPoliciesLoaded(7)
	c.RecordHTTPRequest("POST", "/v1/runs", "202", 20*time.Millisecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	byName := map[string]bool{}
	for _, f := range families {
		byName[f.GetName()] = true
	}
	for _, want := range []string{
		"codecraft_engine_runs_submitted_total",
		"codecraft_engine_runs_finished_total",
		"codecraft_engine_run_duration_seconds",
		"codecraft_engine_findings_total",
		"codecraft_engine_policy_imports_total",
		"codecraft_engine_policies_loaded",
		"codecraft_engine_http_requests_total",
	} {
		if !byName[want] {
			t.Errorf("metric family %q not gathered", want)
		}
	}
}

// TestNilCollectorIsSafe verifies every method is a no-op on a nil receiver.
func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector

	c.RecordRunSubmitted("suggest")
	c.RecordRunFinished("done", 1.0)
	c.RecordFindings("low", 1)
	c.RecordPolicyImport("rejected")
	c.SetPoliciesLoaded(0)
	c.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
}

// TestDisabledCollectorRecordsNothing verifies the enabled flag gates
// recording.
func TestDisabledCollectorRecordsNothing(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(&config.MetricsConfig{Enabled: false}, registry)

	c.RecordRunSubmitted("suggest")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "codecraft_engine_runs_submitted_total" {
			for _, m := range f.GetMetric() {
				if m.GetCounter().GetValue() != 0 {
					t.Errorf("disabled collector recorded %v", m.GetCounter().GetValue())
				}
			}
		}
	}
}

// TestHandlerServesExposition verifies the exposition endpoint.
func TestHandlerServesExposition(t *testing.T) {
	c, _ := testCollector()
	c.RecordRunSubmitted("auto")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "codecraft_engine_runs_submitted_total") {
		t.Error("exposition output missing run counter")
	}
}
