// Package scan implements the rule matcher: it evaluates compiled policy
// rules against code text and emits findings.
//
// The matcher is pure. It performs no I/O, mutates nothing, and produces a
// deterministic result: findings are ordered by (file path, line, rule key),
// so scanning unchanged input with the same rules always yields an identical
// sequence. That determinism is what makes before/after scans diffable and
// repeated scans idempotent.
package scan
