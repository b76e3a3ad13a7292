package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/o11y"
)

// envelope is the `{ success, data?, error? }` shape every REST control
// surface response uses, per spec.md §6.
type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeData writes a successful envelope with the given HTTP status.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeError maps err to an HTTP status via errs.Error.HTTPStatus, with one
// override: a circuit breaker rejection is a 503 at this boundary (spec.md
// §6's "503 on breaker open"), not the 502 errs.HTTPStatus gives
// UpstreamTransient generally, since from the REST caller's point of view
// the orchestrator itself is unavailable, not a proxied upstream.
func writeError(ctx context.Context, logger *o11y.Logger, w http.ResponseWriter, err error) {
	appErr := errs.As(err)
	if appErr == nil {
		logger.Error(ctx, "unclassified error reached REST boundary", "error", err)
		writeJSON(w, http.StatusInternalServerError, envelope{Error: &apiError{Message: err.Error()}})
		return
	}

	status := appErr.HTTPStatus()
	if appErr.Code == errs.CodeBreakerOpen {
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		logger.Error(ctx, "REST request failed", "op", appErr.Op, "kind", appErr.Kind, "error", err)
	}
	writeJSON(w, status, envelope{Error: &apiError{Code: appErr.Code, Message: appErr.Error()}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Error: &apiError{Message: message}})
}
