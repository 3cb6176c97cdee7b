// Package server provides the HTTP API for the CodeCraft service.
//
// Endpoints:
//
//	POST /v1/policies/import  import a policy document (YAML or JSON)
//	GET  /v1/policies         list policy profiles
//	GET  /v1/policies/{id}    fetch one policy profile
//	POST /v1/runs             submit an asynchronous refactor run
//	GET  /v1/runs             list runs, newest first
//	GET  /v1/runs/{id}        fetch one run with findings, metrics, artifacts
//	POST /v1/refactor         synchronous single-snippet refactor
//	GET  /health              liveness and storage health
//	GET  /metrics             Prometheus exposition (configurable path)
//
// Every request passes through a middleware chain of panic recovery, request
// id propagation, and structured request logging. Shutdown is graceful: the
// server stops accepting connections and waits for in-flight requests up to
// the configured timeout.
package server
