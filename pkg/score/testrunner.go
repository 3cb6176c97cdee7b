package score

import (
	"context"

	"codecraft-hq/codecraft/pkg/scan"
)

// TestRunner is the test-execution collaborator contract: it runs the test
// suite relevant to the submitted files and reports the pass rate in [0, 1].
// The engine only consumes the rate; runner internals (frameworks, sandboxes)
// live behind this interface.
type TestRunner interface {
	Run(ctx context.Context, files []scan.File, language string) (float64, error)
}

// StaticTestRunner reports a fixed pass rate without executing anything.
// It stands in for a real runner in deployments that have none wired.
type StaticTestRunner struct {
	// PassRate is the rate reported for every invocation.
	PassRate float64
}

// NewStaticTestRunner creates a static runner reporting the given rate.
func NewStaticTestRunner(passRate float64) *StaticTestRunner {
	return &StaticTestRunner{PassRate: passRate}
}

// Run implements TestRunner.
func (r *StaticTestRunner) Run(ctx context.Context, files []scan.File, language string) (float64, error) {
	return r.PassRate, nil
}
