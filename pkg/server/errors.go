package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"codecraft-hq/codecraft/pkg/policy"
	policystore "codecraft-hq/codecraft/pkg/policy/store"
	"codecraft-hq/codecraft/pkg/runs"
	"codecraft-hq/codecraft/pkg/transform"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	// RuleKeys names the offending rules on policy validation failures.
	RuleKeys []string `json:"rule_keys,omitempty"`
}

// writeError writes a JSON error with the given status.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Message: message}})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps a domain error to an HTTP response.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		parseErr      *policy.ParseError
		validationErr *policy.ValidationError
		policyMissing *policystore.NotFoundError
		policyExists  *policystore.AlreadyExistsError
		runMissing    *runs.NotFoundError
		transformErr  *transform.Failure
	)

	switch {
	case errors.As(err, &validationErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: errorBody{
			Message:  validationErr.Error(),
			RuleKeys: validationErr.RuleKeys,
		}})
	case errors.As(err, &parseErr):
		writeError(w, http.StatusBadRequest, parseErr.Error())
	case errors.Is(err, runs.ErrNoFiles), errors.Is(err, runs.ErrNoPolicies):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &policyMissing):
		writeError(w, http.StatusNotFound, policyMissing.Error())
	case errors.As(err, &runMissing):
		writeError(w, http.StatusNotFound, runMissing.Error())
	case errors.As(err, &policyExists):
		writeError(w, http.StatusConflict, policyExists.Error())
	case errors.Is(err, runs.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &transformErr):
		writeError(w, http.StatusBadGateway, transformErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
