package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chainsense/internal/telemetry"
	"chainsense/internal/token"
	"chainsense/pkg/platform/sentinel"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, fmt.Errorf("query tokens: connection refused"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("malformed telemetry includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, &telemetry.MalformedTelemetryError{Field: "latitude", Reason: "missing"})

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "malformed_telemetry" {
			t.Fatalf("expected error code malformed_telemetry, got %q", body["error"])
		}
		if body["error_description"] == "" {
			t.Fatalf("expected error_description for malformed telemetry")
		}
	})

	t.Run("wrapped sentinel maps to status", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{fmt.Errorf("load token: %w", sentinel.ErrNotFound), http.StatusNotFound, "not_found"},
			{fmt.Errorf("persist: %w", sentinel.ErrConflict), http.StatusConflict, "conflict"},
			{fmt.Errorf("redis: %w", sentinel.ErrUnavailable), http.StatusServiceUnavailable, "unavailable"},
			{fmt.Errorf("parse id: %w", sentinel.ErrInvalidInput), http.StatusBadRequest, "bad_request"},
		}
		for _, tc := range cases {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)
			if w.Code != tc.status {
				t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, w.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body["error"] != tc.code {
				t.Fatalf("%v: expected error code %q, got %q", tc.err, tc.code, body["error"])
			}
		}
	})

	t.Run("token errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, &token.InvalidStateTransitionError{From: token.StateDelivered, To: token.StateCreated})
		if w.Code != http.StatusConflict {
			t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
		}

		w = httptest.NewRecorder()
		WriteError(w, &token.TokenValidationError{Field: "carrier_id", Reason: "missing"})
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
		}
	})
}

func TestDecode(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
		v, ok := Decode[payload](w, r)
		if !ok {
			t.Fatalf("expected decode to succeed")
		}
		if v.Name != "x" {
			t.Fatalf("expected name x, got %q", v.Name)
		}
	})

	t.Run("invalid body writes bad request", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
		if _, ok := Decode[payload](w, r); ok {
			t.Fatalf("expected decode to fail")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}
