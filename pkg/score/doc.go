// Package score computes the compliance summary for a refactor run.
//
// The summary combines five values computed as a unit: a severity-weighted
// policy score in [0, 1], the complexity delta between original and
// refactored code, the test pass rate when test execution was requested,
// pipeline latency, and adapter token usage. The severity weights are
// configuration, not constants, but must stay monotone (low ≤ medium ≤ high)
// so that reducing weighted violations never reduces the score.
//
// Complexity and test execution are external collaborator concerns; this
// package defines their interfaces and ships built-in heuristic
// implementations.
package score
