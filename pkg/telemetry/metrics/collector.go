package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"codecraft-hq/codecraft/pkg/config"
)

// Collector owns all Prometheus metrics for the service. A nil *Collector is
// valid and records nothing, which lets telemetry be optional everywhere.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	runsSubmitted   *prometheus.CounterVec
	runsFinished    *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	findingsTotal   *prometheus.CounterVec
	policyImports   *prometheus.CounterVec
	policiesLoaded  prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewCollector creates a metrics collector registered against the given
// registry. A nil registry creates a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "codecraft"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "engine"
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		runsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "runs_submitted_total",
				Help:      "Total number of refactor runs submitted",
			},
			[]string{"mode"},
		),

		runsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "runs_finished_total",
				Help:      "Total number of refactor runs reaching a terminal state",
			},
			[]string{"status"},
		),

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "run_duration_seconds",
				Help:      "Duration of refactor runs from submission to terminal state",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 300.0},
			},
			[]string{"status"},
		),

		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "findings_total",
				Help:      "Total number of policy findings detected",
			},
			[]string{"severity"},
		),

		policyImports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_imports_total",
				Help:      "Total number of policy document imports",
			},
			[]string{"outcome"},
		),

		policiesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policies_loaded",
				Help:      "Number of policy profiles currently in the catalog",
			},
		),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		c.runsSubmitted,
		c.runsFinished,
		c.runDuration,
		c.findingsTotal,
		c.policyImports,
		c.policiesLoaded,
		c.httpRequests,
		c.requestDuration,
	)

	return c
}

// enabled reports whether this collector should record.
func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordRunSubmitted counts a run submission.
func (c *Collector) RecordRunSubmitted(mode string) {
	if !c.enabled() {
		return
	}
	c.runsSubmitted.WithLabelValues(mode).Inc()
}

// RecordRunFinished counts a terminal run and observes its duration.
func (c *Collector) RecordRunFinished(status string, seconds float64) {
	if !c.enabled() {
		return
	}
	c.runsFinished.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(seconds)
}

// RecordFindings counts detected findings by severity.
func (c *Collector) RecordFindings(severity string, count int) {
	if !c.enabled() || count <= 0 {
		return
	}
	c.findingsTotal.WithLabelValues(severity).Add(float64(count))
}

// RecordPolicyImport counts a policy import attempt by outcome
// ("imported", "rejected").
func (c *Collector) RecordPolicyImport(outcome string) {
	if !c.enabled() {
		return
	}
	c.policyImports.WithLabelValues(outcome).Inc()
}

// SetPoliciesLoaded records the current catalog size.
func (c *Collector) SetPoliciesLoaded(count int) {
	if !c.enabled() {
		return
	}
	c.policiesLoaded.Set(float64(count))
}

// RecordHTTPRequest counts a served request and observes its duration.
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.httpRequests.WithLabelValues(method, path, status).Inc()
	c.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
