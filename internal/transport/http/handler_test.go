package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"chainsense/internal/consistency"
	constore "chainsense/internal/consistency/store"
	"chainsense/internal/geofence"
	"chainsense/internal/milestone"
	"chainsense/internal/pipeline"
	"chainsense/internal/token"
	tokenstore "chainsense/internal/token/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := consistency.Config{MaxClockSkew: 100 * 365 * 24 * time.Hour}
	svc := pipeline.New(
		consistency.NewEngine(constore.NewInMemoryLastRecordStore(), cfg),
		geofence.NewEngine(geofence.NewInMemoryMembershipStore()),
		milestone.NewBuilder(),
		tokenstore.NewInMemoryStore(),
		token.NewSigner([]byte("test-secret")),
	)
	return NewRouter(NewHandler(svc, logger), logger)
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerShipment(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := postJSON(t, router, "/shipments", map[string]any{
		"shipment_id": "SHIP-1",
		"origin":      "Chicago, IL",
		"destination": "Milwaukee, WI",
		"carrier_id":  "CARR-77",
		"geofences": []map[string]any{
			{
				"id":            "GF-PICKUP",
				"kind":          "SHIPPER_PICKUP",
				"center":        map[string]float64{"latitude": 41.8781, "longitude": -87.6298},
				"radius_meters": 200,
			},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering shipment, got %d: %s", rec.Code, rec.Body.String())
	}

	var root struct {
		TokenID uuid.UUID `json:"token_id"`
		State   string    `json:"state"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&root); err != nil {
		t.Fatalf("decode registration response: %v", err)
	}
	if root.TokenID == uuid.Nil {
		t.Fatalf("expected token_id in registration response")
	}
	if root.State != "CREATED" {
		t.Fatalf("expected root state CREATED, got %q", root.State)
	}
	return root.TokenID.String()
}

func TestRegisterAndIngestFlow(t *testing.T) {
	router := newTestRouter(t)
	rootID := registerShipment(t, router)

	sample := map[string]any{
		"device_id":   "DEV-1",
		"shipment_id": "SHIP-1",
		"timestamp":   "2024-06-01T12:00:00Z",
		"latitude":    41.8781,
		"longitude":   -87.6298,
		"speed":       0,
		"ignition":    true,
	}
	rec := postJSON(t, router, "/telemetry", sample)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 ingesting sample, got %d: %s", rec.Code, rec.Body.String())
	}

	var out IngestResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode ingest response: %v", err)
	}
	if len(out.Milestones) != 1 || string(out.Milestones[0].Type) != "PICKUP_ARRIVED" {
		t.Fatalf("expected PICKUP_ARRIVED milestone, got %+v", out.Milestones)
	}
	if len(out.Tokens) != 1 {
		t.Fatalf("expected one minted token, got %d", len(out.Tokens))
	}

	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, httptest.NewRequest(http.MethodGet, "/shipments/SHIP-1/tokens", nil))
	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing tokens, got %d", listRec.Code)
	}
	var list TokenListResponse
	if err := json.NewDecoder(listRec.Body).Decode(&list); err != nil {
		t.Fatalf("decode token list: %v", err)
	}
	if len(list.Tokens) != 2 {
		t.Fatalf("expected root plus milestone token, got %d", len(list.Tokens))
	}

	tokenRec := httptest.NewRecorder()
	router.ServeHTTP(tokenRec, httptest.NewRequest(http.MethodGet, "/tokens/"+rootID, nil))
	if tokenRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching root token, got %d", tokenRec.Code)
	}
	var root token.Token
	if err := json.NewDecoder(tokenRec.Body).Decode(&root); err != nil {
		t.Fatalf("decode root token: %v", err)
	}
	if root.State != token.StateDispatched {
		t.Fatalf("expected root DISPATCHED after first sample, got %s", root.State)
	}
}

func TestIngestMalformedSampleReturns400(t *testing.T) {
	router := newTestRouter(t)
	registerShipment(t, router)

	rec := postJSON(t, router, "/telemetry", map[string]any{
		"device_id":   "DEV-1",
		"shipment_id": "SHIP-1",
		"timestamp":   "2024-06-01T12:00:00Z",
		"latitude":    91.0,
		"longitude":   -87.6298,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range latitude, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] != "malformed_telemetry" {
		t.Fatalf("expected malformed_telemetry, got %q", body["error"])
	}
}

func TestBatchReportsPerSampleOutcomes(t *testing.T) {
	router := newTestRouter(t)
	registerShipment(t, router)

	good := map[string]any{
		"device_id":   "DEV-1",
		"shipment_id": "SHIP-1",
		"timestamp":   "2024-06-01T12:00:00Z",
		"latitude":    41.8781,
		"longitude":   -87.6298,
		"ignition":    true,
	}
	bad := map[string]any{
		"device_id":   "DEV-1",
		"shipment_id": "SHIP-1",
		"timestamp":   "2024-06-01T12:01:00Z",
		"latitude":    91.0,
		"longitude":   -87.6298,
	}
	rec := postJSON(t, router, "/telemetry/batch", []map[string]any{good, bad})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for batch, got %d", rec.Code)
	}

	var out []IngestResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode batch response: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected one outcome per sample, got %d", len(out))
	}
	if out[0].Error != "" {
		t.Fatalf("expected first sample to succeed, got error %q", out[0].Error)
	}
	if out[1].Error == "" {
		t.Fatalf("expected second sample to carry its error")
	}
}

func TestGetTokenErrors(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tokens/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid token id, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tokens/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown token, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", rec.Code)
	}
	var body HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %q", body.Status)
	}
}
