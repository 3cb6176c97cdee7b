package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"codecraft-hq/codecraft/pkg/policy"
	policystore "codecraft-hq/codecraft/pkg/policy/store"
	"codecraft-hq/codecraft/pkg/scan"
	"codecraft-hq/codecraft/pkg/score"
	"codecraft-hq/codecraft/pkg/telemetry/metrics"
	"codecraft-hq/codecraft/pkg/transform"
)

// SubmitRequest is a refactor run submission.
type SubmitRequest struct {
	Files       []scan.File `json:"files"`
	PolicyIDs   []string    `json:"policy_ids"`
	Mode        Mode        `json:"mode"`
	RunTests    bool        `json:"run_tests"`
	Language    string      `json:"language"`
	SubmittedBy string      `json:"submitted_by"`
}

// FileOutcome is the per-file result of a pipeline execution.
type FileOutcome struct {
	Path string `json:"file_path"`

	// OriginalCode is the submitted code.
	OriginalCode string `json:"original_code"`

	// RefactoredCode is the adapter's proposal.
	RefactoredCode string `json:"refactored_code"`

	// CurrentCode is what the run records as the file's current content:
	// the original in suggest mode, the proposal in auto mode.
	CurrentCode string `json:"current_code"`

	// Degraded marks a file whose scan failed; the file was skipped and
	// the run continued.
	Degraded bool `json:"degraded,omitempty"`

	// DegradedReason explains why the file was skipped.
	DegradedReason string `json:"degraded_reason,omitempty"`
}

// PipelineResult is the in-memory outcome of one pipeline execution.
// Everything in it is persisted before the run reaches a terminal state;
// callers of the synchronous path additionally receive it inline.
type PipelineResult struct {
	Summary     *score.Summary         `json:"summary"`
	Findings    []scan.Finding         `json:"findings"`
	Violations  []scan.Finding         `json:"violations"`
	Suggestions []transform.Suggestion `json:"suggestions"`
	Files       []FileOutcome          `json:"files"`
}

// RunDetail is everything persisted for one run.
type RunDetail struct {
	Run       *Run           `json:"run"`
	Findings  []scan.Finding `json:"findings"`
	Metrics   []Metric       `json:"metrics"`
	Artifacts []Artifact     `json:"artifacts"`
}

// Config wires the orchestrator's collaborators.
type Config struct {
	// Policies is the policy catalog used to resolve submissions.
	Policies policystore.Store

	// Store persists runs, findings, metrics, and artifacts.
	Store Store

	// Adapter is the transform capability (stub or model-backed).
	Adapter transform.Adapter

	// Scorer computes the compliance summary.
	Scorer *score.Scorer

	// Analyzer is the static-analysis collaborator.
	Analyzer score.Analyzer

	// TestRunner is the test-execution collaborator. Consulted only when a
	// submission requests test execution.
	TestRunner score.TestRunner

	// Artifacts writes artifact content. Optional; without it runs persist
	// no artifacts.
	Artifacts *ArtifactWriter

	// Metrics records telemetry. Optional.
	Metrics *metrics.Collector
}

// Orchestrator sequences the refactor pipeline and owns every run mutation.
// Runs are created by Submit and driven to a terminal state by Execute; no
// other code path touches run status.
type Orchestrator struct {
	policies   policystore.Store
	store      Store
	matcher    *scan.Matcher
	adapter    transform.Adapter
	scorer     *score.Scorer
	analyzer   score.Analyzer
	testRunner score.TestRunner
	artifacts  *ArtifactWriter
	metrics    *metrics.Collector
	logger     *slog.Logger

	// pending holds submission payloads between Submit and Execute. File
	// content is deliberately not persisted; if the process restarts, the
	// scheduler resubmits.
	pending sync.Map // map[runID]*SubmitRequest
}

// NewOrchestrator creates an orchestrator from its collaborators.
func NewOrchestrator(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("orchestrator config is required")
	}
	if cfg.Policies == nil || cfg.Store == nil || cfg.Adapter == nil || cfg.Scorer == nil {
		return nil, fmt.Errorf("orchestrator requires policies, store, adapter, and scorer")
	}

	analyzer := cfg.Analyzer
	if analyzer == nil {
		analyzer = score.NewHeuristicAnalyzer()
	}
	testRunner := cfg.TestRunner
	if testRunner == nil {
		testRunner = score.NewStaticTestRunner(1.0)
	}

	return &Orchestrator{
		policies:   cfg.Policies,
		store:      cfg.Store,
		matcher:    scan.NewMatcher(),
		adapter:    cfg.Adapter,
		scorer:     cfg.Scorer,
		analyzer:   analyzer,
		testRunner: testRunner,
		artifacts:  cfg.Artifacts,
		metrics:    cfg.Metrics,
		logger:     slog.Default().With("component", "runs.orchestrator"),
	}, nil
}

// Submit validates a submission and creates a run in queued state. Both
// preconditions fail fast before anything is created: the file set must be
// non-empty and every selected policy id must resolve.
func (o *Orchestrator) Submit(ctx context.Context, req *SubmitRequest) (*Run, error) {
	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}
	if len(req.PolicyIDs) == 0 {
		return nil, ErrNoPolicies
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeSuggest
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", req.Mode)
	}
	req.Mode = mode

	for _, id := range req.PolicyIDs {
		if _, err := o.policies.Get(ctx, id); err != nil {
			return nil, err
		}
	}

	run := &Run{
		ID:           uuid.NewString(),
		Status:       StatusQueued,
		Language:     req.Language,
		ModelVersion: o.adapter.ModelVersion(),
		Mode:         mode,
		PolicyIDs:    append([]string(nil), req.PolicyIDs...),
		SubmittedBy:  req.SubmittedBy,
		StartedAt:    time.Now().UTC(),
	}

	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	o.pending.Store(run.ID, req)

	o.metrics.RecordRunSubmitted(string(mode))
	o.logger.Info("run submitted",
		"run_id", run.ID,
		"mode", mode,
		"files", len(req.Files),
		"policies", len(req.PolicyIDs),
	)

	return run, nil
}

// Execute drives a queued run to a terminal state. It is called by the
// executor's workers (or inline by the synchronous path) and returns the
// pipeline result on success. Any fatal error leaves the run failed with its
// partial findings persisted, never stuck in running.
func (o *Orchestrator) Execute(ctx context.Context, runID string) (*PipelineResult, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != StatusQueued {
		return nil, &InvalidTransitionError{RunID: runID, From: run.Status, To: StatusRunning}
	}

	payload, ok := o.pending.LoadAndDelete(runID)
	if err := o.store.UpdateStatus(ctx, runID, StatusRunning, nil, nil); err != nil {
		return nil, err
	}
	if !ok {
		return nil, o.fail(ctx, run, nil,
			NewFatalPipelineError("payload", fmt.Errorf("submission payload unavailable for run %s", runID)))
	}
	req := payload.(*SubmitRequest)

	result, err := o.executePipeline(ctx, run, req)
	if err != nil {
		partial := []scan.Finding(nil)
		if result != nil {
			partial = result.Findings
		}
		return nil, o.fail(ctx, run, partial, err)
	}

	if err := o.persistResult(ctx, run, result); err != nil {
		return nil, o.fail(ctx, run, result.Findings, NewFatalPipelineError("persist", err))
	}

	finishedAt := time.Now().UTC()
	scoreValue := result.Summary.PolicyScore
	if err := o.store.UpdateStatus(ctx, runID, StatusDone, &finishedAt, &scoreValue); err != nil {
		return nil, err
	}

	o.metrics.RecordRunFinished(string(StatusDone), finishedAt.Sub(run.StartedAt).Seconds())
	o.logger.Info("run completed",
		"run_id", runID,
		"compliance_score", scoreValue,
		"findings", len(result.Findings),
		"latency_ms", result.Summary.LatencyMS,
	)

	return result, nil
}

// executePipeline runs scan → transform → rescan per file and assembles the
// compliance summary. It returns a partial result alongside the error when a
// fatal condition interrupts the pipeline, so the caller can retain findings.
func (o *Orchestrator) executePipeline(ctx context.Context, run *Run, req *SubmitRequest) (*PipelineResult, error) {
	rules, err := o.resolveRules(ctx, run.PolicyIDs)
	if err != nil {
		return nil, NewFatalPipelineError("resolve_policies", err)
	}

	result := &PipelineResult{}
	start := time.Now()

	var complexityBefore, complexityAfter float64
	tokens := 0
	degraded := 0

	for i := range req.Files {
		file := req.Files[i]
		outcome := FileOutcome{
			Path:         file.Path,
			OriginalCode: file.Content,
			CurrentCode:  file.Content,
		}

		before, err := o.matcher.ScanFile(ctx, file, rules)
		if err != nil {
			if ctx.Err() != nil {
				return result, NewFatalPipelineError("scan", ctx.Err())
			}
			// Per-file degradation: record and move on.
			degraded++
			outcome.Degraded = true
			outcome.DegradedReason = err.Error()
			outcome.RefactoredCode = file.Content
			result.Files = append(result.Files, outcome)
			o.logger.Warn("file scan failed, continuing",
				"run_id", run.ID,
				"file", file.Path,
				"error", err,
			)
			continue
		}

		proposal, err := o.adapter.Propose(ctx, &transform.Request{
			FilePath: file.Path,
			Code:     file.Content,
			Findings: before,
			Rules:    rules,
			Language: run.Language,
		})
		if err != nil {
			result.Findings = append(result.Findings, before...)
			return result, err
		}
		if err := transform.ValidateResult(o.adapter.Name(), &transform.Request{FilePath: file.Path}, proposal); err != nil {
			result.Findings = append(result.Findings, before...)
			return result, err
		}

		after, err := o.matcher.ScanFile(ctx, scan.File{Path: file.Path, Content: proposal.RefactoredCode}, rules)
		if err != nil {
			if ctx.Err() != nil {
				result.Findings = append(result.Findings, before...)
				return result, NewFatalPipelineError("rescan", ctx.Err())
			}
			degraded++
			outcome.Degraded = true
			outcome.DegradedReason = err.Error()
			outcome.RefactoredCode = proposal.RefactoredCode
			result.Files = append(result.Files, outcome)
			continue
		}

		markFixed(before, after)

		outcome.RefactoredCode = proposal.RefactoredCode
		if run.Mode == ModeAuto {
			outcome.CurrentCode = proposal.RefactoredCode
		}

		result.Findings = append(result.Findings, before...)
		result.Violations = append(result.Violations, after...)
		result.Suggestions = append(result.Suggestions, proposal.Suggestions...)
		result.Files = append(result.Files, outcome)

		complexityBefore += o.analyzer.Complexity(file.Content)
		complexityAfter += o.analyzer.Complexity(proposal.RefactoredCode)
		tokens += proposal.TokensUsed
	}

	if degraded == len(req.Files) {
		return result, NewFatalPipelineError("scan", fmt.Errorf("all %d files failed to scan", degraded))
	}

	var passRate *float64
	if req.RunTests {
		current := make([]scan.File, 0, len(result.Files))
		for _, f := range result.Files {
			current = append(current, scan.File{Path: f.Path, Content: f.CurrentCode})
		}
		rate, err := o.testRunner.Run(ctx, current, run.Language)
		if err != nil {
			return result, NewFatalPipelineError("test_runner", err)
		}
		passRate = &rate
	}

	latencyMS := time.Since(start).Milliseconds()
	complexityDelta := math.Round((complexityAfter-complexityBefore)*100) / 100
	result.Summary = o.scorer.Summarize(result.Findings, result.Violations,
		complexityDelta, passRate, latencyMS, tokens)

	o.recordFindingMetrics(result.Findings)
	return result, nil
}

// resolveRules loads the selected profiles and unions their rules in
// selection order.
func (o *Orchestrator) resolveRules(ctx context.Context, policyIDs []string) ([]*policy.Rule, error) {
	var rules []*policy.Rule
	for _, id := range policyIDs {
		profile, err := o.policies.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		rules = append(rules, profile.Rules...)
	}
	return rules, nil
}

// markFixed flips before-findings to fixed when the after scan no longer
// reports their (file, rule) pair. Line-based matching is unreliable after a
// refactor shifts code around.
func markFixed(before, after []scan.Finding) {
	remaining := make(map[string]bool, len(after))
	for _, f := range after {
		remaining[f.FilePath+"\x00"+f.RuleID] = true
	}
	for i := range before {
		if !remaining[before[i].FilePath+"\x00"+before[i].RuleID] {
			before[i].Status = scan.StatusFixed
		}
	}
}

// persistResult writes findings, metrics, and artifacts. Called only after
// the full summary exists, so a partial summary is never persisted.
func (o *Orchestrator) persistResult(ctx context.Context, run *Run, result *PipelineResult) error {
	assignFindingIDs(run.ID, result.Findings)
	if len(result.Findings) > 0 {
		if err := o.store.AddFindings(ctx, run.ID, result.Findings); err != nil {
			return err
		}
	}

	if err := o.store.AddMetrics(ctx, o.buildMetrics(run, result)); err != nil {
		return err
	}

	artifacts, err := o.buildArtifacts(run, result)
	if err != nil {
		return err
	}
	if len(artifacts) > 0 {
		if err := o.store.AddArtifacts(ctx, artifacts); err != nil {
			return err
		}
	}

	return nil
}

// buildMetrics converts the summary into persisted metric records.
func (o *Orchestrator) buildMetrics(run *Run, result *PipelineResult) []Metric {
	summary := result.Summary
	beforeWeight := o.scorer.WeightedCount(result.Findings)
	afterWeight := o.scorer.WeightedCount(result.Violations)
	complexityBefore := 0.0
	for _, f := range result.Files {
		if f.Degraded {
			continue
		}
		complexityBefore += o.analyzer.Complexity(f.OriginalCode)
	}
	complexityAfter := math.Round((complexityBefore+summary.ComplexityDelta)*100) / 100

	metricRow := func(name string, before, after *float64) Metric {
		return Metric{
			ID:     uuid.NewString(),
			RunID:  run.ID,
			Name:   name,
			Before: before,
			After:  after,
		}
	}
	f64 := func(v float64) *float64 { return &v }

	rows := []Metric{
		metricRow(MetricComplexity, f64(math.Round(complexityBefore*100)/100), f64(complexityAfter)),
		metricRow(MetricViolationsWeighted, f64(beforeWeight), f64(afterWeight)),
		metricRow(MetricPolicyScore, nil, f64(summary.PolicyScore)),
		metricRow(MetricLatencyMS, nil, f64(float64(summary.LatencyMS))),
		metricRow(MetricTokenUsage, nil, f64(float64(summary.TokenUsage))),
	}
	if summary.TestPassRate != nil {
		rows = append(rows, metricRow(MetricTestPassRate, nil, f64(*summary.TestPassRate)))
	}
	return rows
}

// buildArtifacts writes the report artifact and, for auto-mode runs that
// changed code, the patch artifact.
func (o *Orchestrator) buildArtifacts(run *Run, result *PipelineResult) ([]Artifact, error) {
	if o.artifacts == nil {
		return nil, nil
	}

	report, err := json.MarshalIndent(map[string]any{
		"run_id":      run.ID,
		"summary":     result.Summary,
		"suggestions": result.Suggestions,
		"violations":  result.Violations,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	reportArtifact, err := o.artifacts.Write(run.ID, ArtifactReportJSON, "report.json", report)
	if err != nil {
		return nil, err
	}
	artifacts := []Artifact{*reportArtifact}

	if run.Mode == ModeAuto {
		type patchEntry struct {
			FilePath   string `json:"file_path"`
			Original   string `json:"original_code"`
			Refactored string `json:"refactored_code"`
		}
		var entries []patchEntry
		for _, f := range result.Files {
			if f.Degraded || f.RefactoredCode == f.OriginalCode {
				continue
			}
			entries = append(entries, patchEntry{
				FilePath:   f.Path,
				Original:   f.OriginalCode,
				Refactored: f.RefactoredCode,
			})
		}
		if len(entries) > 0 {
			patch, err := json.MarshalIndent(map[string]any{"files": entries}, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("encode patch: %w", err)
			}
			patchArtifact, err := o.artifacts.Write(run.ID, ArtifactPatch, "changes.patch.json", patch)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, *patchArtifact)
		}
	}

	return artifacts, nil
}

// fail transitions a run to failed, retaining any findings gathered before
// the failure and recording the error as a log artifact. The original error
// is always returned.
func (o *Orchestrator) fail(ctx context.Context, run *Run, findings []scan.Finding, cause error) error {
	o.logger.Error("run failed",
		"run_id", run.ID,
		"error", cause,
	)

	if len(findings) > 0 {
		assignFindingIDs(run.ID, findings)
		if err := o.store.AddFindings(ctx, run.ID, findings); err != nil {
			o.logger.Error("failed to retain partial findings",
				"run_id", run.ID,
				"error", err,
			)
		}
	}

	if o.artifacts != nil {
		logArtifact, err := o.artifacts.Write(run.ID, ArtifactLog, "failure.log", []byte(cause.Error()))
		if err == nil {
			if err := o.store.AddArtifacts(ctx, []Artifact{*logArtifact}); err != nil {
				o.logger.Error("failed to persist failure log artifact",
					"run_id", run.ID,
					"error", err,
				)
			}
		}
	}

	finishedAt := time.Now().UTC()
	if err := o.store.UpdateStatus(ctx, run.ID, StatusFailed, &finishedAt, nil); err != nil {
		o.logger.Error("failed to mark run failed",
			"run_id", run.ID,
			"error", err,
		)
	}

	o.metrics.RecordRunFinished(string(StatusFailed), finishedAt.Sub(run.StartedAt).Seconds())
	return cause
}

// assignFindingIDs stamps generated ids and the owning run onto findings
// produced by the matcher.
func assignFindingIDs(runID string, findings []scan.Finding) {
	for i := range findings {
		if findings[i].ID == "" {
			findings[i].ID = uuid.NewString()
		}
		findings[i].RunID = runID
	}
}

// recordFindingMetrics feeds finding counts into telemetry.
func (o *Orchestrator) recordFindingMetrics(findings []scan.Finding) {
	counts := map[policy.Severity]int{}
	for _, f := range findings {
		counts[f.Severity]++
	}
	for severity, count := range counts {
		o.metrics.RecordFindings(string(severity), count)
	}
}

// GetRun returns one run.
func (o *Orchestrator) GetRun(ctx context.Context, runID string) (*Run, error) {
	return o.store.GetRun(ctx, runID)
}

// ListRuns returns all runs, newest first.
func (o *Orchestrator) ListRuns(ctx context.Context) ([]*Run, error) {
	return o.store.ListRuns(ctx)
}

// Detail returns a run with its findings, metrics, and artifacts.
func (o *Orchestrator) Detail(ctx context.Context, runID string) (*RunDetail, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	findings, err := o.store.ListFindings(ctx, runID)
	if err != nil {
		return nil, err
	}
	metricRows, err := o.store.ListMetrics(ctx, runID)
	if err != nil {
		return nil, err
	}
	artifacts, err := o.store.ListArtifacts(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &RunDetail{
		Run:       run,
		Findings:  findings,
		Metrics:   metricRows,
		Artifacts: artifacts,
	}, nil
}

// SyncRequest is the legacy single-snippet synchronous submission: one code
// blob, one policy profile, results returned inline instead of via polling.
type SyncRequest struct {
	Code            string `json:"code"`
	Language        string `json:"language"`
	FilePath        string `json:"file_path"`
	PolicyProfileID string `json:"policy_profile_id"`
	RunTests        bool   `json:"run_tests"`
	SubmittedBy     string `json:"submitted_by"`
}

// SyncResult is the inline response of the synchronous path.
type SyncResult struct {
	Run            *Run                   `json:"run"`
	Summary        *score.Summary         `json:"compliance"`
	Suggestions    []transform.Suggestion `json:"suggestions"`
	Violations     []scan.Finding         `json:"violations"`
	OriginalCode   string                 `json:"original_code"`
	RefactoredCode string                 `json:"refactored_code"`
}

// RefactorSync runs the pipeline inline for a single snippet and returns the
// full compliance summary, suggestions, and violations. The run is persisted
// exactly like an asynchronous one.
func (o *Orchestrator) RefactorSync(ctx context.Context, req *SyncRequest) (*SyncResult, error) {
	filePath := req.FilePath
	if filePath == "" {
		filePath = "submission." + firstNonEmptyString(req.Language, "txt")
	}

	run, err := o.Submit(ctx, &SubmitRequest{
		Files:       []scan.File{{Path: filePath, Content: req.Code}},
		PolicyIDs:   []string{req.PolicyProfileID},
		Mode:        ModeSuggest,
		RunTests:    req.RunTests,
		Language:    req.Language,
		SubmittedBy: req.SubmittedBy,
	})
	if err != nil {
		return nil, err
	}

	result, err := o.Execute(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	finished, err := o.store.GetRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	refactored := req.Code
	if len(result.Files) > 0 {
		refactored = result.Files[0].RefactoredCode
	}

	return &SyncResult{
		Run:            finished,
		Summary:        result.Summary,
		Suggestions:    result.Suggestions,
		Violations:     result.Violations,
		OriginalCode:   req.Code,
		RefactoredCode: refactored,
	}, nil
}

// firstNonEmptyString returns the first non-empty value.
func firstNonEmptyString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
