// CodeCraft is a policy evaluation and refactor orchestration service.
//
// It evaluates source code against versioned policy rule sets, drives
// refactor runs through an explicit state machine, and scores the results:
//   - Policy rule-set import, validation, and cataloging
//   - Regex-based policy scanning with deterministic findings
//   - Pluggable transform adapters (built-in stub or model-backed)
//   - Compliance scoring with severity-weighted violation reduction
//   - Asynchronous refactor runs with polling, plus a synchronous path
//
// Usage:
//
//	# Start the service with default configuration
//	codecraft serve
//
//	# Start with a custom configuration file
//	codecraft serve --config /path/to/config.yaml
//
//	# Validate policy documents
//	codecraft lint --file policies.yaml
//
//	# Import a policy document into the catalog
//	codecraft policy import --file policies.yaml
//
//	# Show version information
//	codecraft version
package main

func main() {
	Execute()
}
