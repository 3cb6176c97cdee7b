// Package transform defines the code transformation capability used by the
// refactor pipeline.
//
// The capability is a single interface with one method: Propose takes
// original code plus the findings and policy context, and returns refactored
// code with suggestions. Two interchangeable implementations are provided:
//
//   - StubAdapter: deterministic, local, no semantic change (whitespace
//     normalization only). Reports zero token usage.
//   - ModelAdapter: HTTP client for an external code-generation model
//     backend, with its own timeout and retry handling.
//
// The implementation is selected by configuration, never by type dispatch.
// Any adapter failure is surfaced to the orchestrator as a *Failure.
package transform
