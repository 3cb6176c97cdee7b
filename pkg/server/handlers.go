package server

import (
	"io"
	"net/http"

	"codecraft-hq/codecraft/pkg/policy"
	"codecraft-hq/codecraft/pkg/runs"
)

// handleImportPolicy imports a policy document. The request body is the raw
// document (YAML or JSON); the name, language, and version query parameters
// override the document's profile metadata.
func (s *Server) handleImportPolicy(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	overrides := &policy.Overrides{
		Name:     r.URL.Query().Get("name"),
		Language: r.URL.Query().Get("language"),
		Version:  r.URL.Query().Get("version"),
	}

	profile, err := s.loader.Import(body, overrides)
	if err != nil {
		s.metrics.RecordPolicyImport("rejected")
		writeDomainError(w, err)
		return
	}

	if err := s.catalog.Put(r.Context(), profile); err != nil {
		s.metrics.RecordPolicyImport("rejected")
		writeDomainError(w, err)
		return
	}

	s.metrics.RecordPolicyImport("imported")
	if profiles, err := s.catalog.List(r.Context()); err == nil {
		s.metrics.SetPoliciesLoaded(len(profiles))
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"policy_profile_id": profile.ID,
		"name":              profile.Name,
	})
}

// handleListPolicies lists all policy profiles with their rules.
func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.catalog.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": profiles})
}

// handleGetPolicy fetches one policy profile.
func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	profile, err := s.catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleSubmitRun validates and queues an asynchronous refactor run.
func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req runs.SubmitRequest
	if err := decodeJSON(w, r, s.config.MaxBodyBytes, &req); err != nil {
		return
	}

	run, err := s.orchestrator.Submit(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.executor.Enqueue(run.ID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": run.ID,
		"status": string(run.Status),
	})
}

// handleListRuns lists runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	list, err := s.orchestrator.ListRuns(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": list})
}

// handleGetRun fetches a run with its findings, metrics, and artifacts.
// Clients poll this endpoint while the run status is non-terminal.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	detail, err := s.orchestrator.Detail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleRefactor is the legacy synchronous path: one code snippet, one policy
// profile, results returned inline.
func (s *Server) handleRefactor(w http.ResponseWriter, r *http.Request) {
	var req runs.SyncRequest
	if err := decodeJSON(w, r, s.config.MaxBodyBytes, &req); err != nil {
		return
	}

	result, err := s.orchestrator.RefactorSync(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleHealth reports liveness and storage reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	if err := s.catalog.Ping(r.Context()); err != nil {
		checks["policy_store"] = err.Error()
		healthy = false
	} else {
		checks["policy_store"] = "ok"
	}
	if err := s.runStore.Ping(r.Context()); err != nil {
		checks["run_store"] = err.Error()
		healthy = false
	} else {
		checks["run_store"] = "ok"
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}
	writeJSON(w, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}
