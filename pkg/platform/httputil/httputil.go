// Package httputil centralizes JSON encoding and domain error translation so
// every handler returns the same envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"chainsense/internal/telemetry"
	"chainsense/internal/token"
	"chainsense/pkg/platform/sentinel"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope. Internal
// errors omit the description so infrastructure details never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	status, code := classify(err)

	body := map[string]string{"error": code}
	if status != http.StatusInternalServerError {
		body["error_description"] = err.Error()
	}
	WriteJSON(w, status, body)
}

// Decode parses the request body into T. On failure it writes a bad_request
// response and returns false; the handler should simply return.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "bad_request",
			"error_description": "invalid request body",
		})
		return v, false
	}
	return v, true
}

func classify(err error) (int, string) {
	var (
		merr *telemetry.MalformedTelemetryError
		verr *token.TokenValidationError
		rerr *token.RelationValidationError
		serr *token.InvalidStateTransitionError
	)
	switch {
	case errors.As(err, &merr):
		return http.StatusBadRequest, "malformed_telemetry"
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, "token_validation_failed"
	case errors.As(err, &rerr):
		return http.StatusUnprocessableEntity, "relation_validation_failed"
	case errors.As(err, &serr):
		return http.StatusConflict, "invalid_state_transition"
	case errors.Is(err, sentinel.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, sentinel.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, sentinel.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, sentinel.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
