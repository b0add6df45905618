// Package httptransport is the thin HTTP layer over the telemetry pipeline.
// Handlers decode, delegate and encode; business logic stays in the services.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"chainsense/internal/pipeline"
	"chainsense/internal/telemetry"
	"chainsense/internal/token"
	"chainsense/pkg/domain"
	"chainsense/pkg/platform/httputil"
	"chainsense/pkg/requestcontext"
)

// Service defines the pipeline operations the transport needs.
type Service interface {
	RegisterShipment(ctx context.Context, reg pipeline.ShipmentRegistration) (*token.Token, error)
	Process(ctx context.Context, raw telemetry.RawTelemetry) pipeline.Result
	ProcessBatch(ctx context.Context, raws []telemetry.RawTelemetry) []pipeline.Result
	Token(ctx context.Context, id domain.TokenID) (*token.Token, error)
	TokensByShipment(ctx context.Context, shipmentID domain.ShipmentID) ([]*token.Token, error)
}

// Handler wires pipeline endpoints to the pipeline service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// NewHandler constructs the transport handler.
func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the pipeline endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/shipments", h.handleRegisterShipment)
	r.Get("/shipments/{shipmentID}/tokens", h.handleListTokens)
	r.Post("/telemetry", h.handleIngest)
	r.Post("/telemetry/batch", h.handleIngestBatch)
	r.Get("/tokens/{tokenID}", h.handleGetToken)
}

func (h *Handler) handleRegisterShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[RegisterShipmentRequest](w, r)
	if !ok {
		return
	}
	shipmentID, err := domain.ParseShipmentID(req.ShipmentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	root, err := h.service.RegisterShipment(ctx, req.toRegistration(shipmentID))
	if err != nil {
		h.logger.ErrorContext(ctx, "shipment registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"shipment_id", req.ShipmentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "shipment registered",
		"request_id", requestcontext.RequestID(ctx),
		"shipment_id", req.ShipmentID,
		"token_id", root.ID,
		"geofences", len(req.Geofences),
	)
	httputil.WriteJSON(w, http.StatusCreated, root)
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, ok := httputil.Decode[telemetry.RawTelemetry](w, r)
	if !ok {
		return
	}

	result := h.service.Process(ctx, raw)
	if result.Err != nil && result.Record == nil {
		httputil.WriteError(w, result.Err)
		return
	}

	// A sample can stand while minting failed; the caller sees both the
	// derived outcome and the inline error.
	httputil.WriteJSON(w, http.StatusAccepted, FromResult(result))
}

func (h *Handler) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raws, ok := httputil.Decode[[]telemetry.RawTelemetry](w, r)
	if !ok {
		return
	}

	results := h.service.ProcessBatch(ctx, raws)
	out := make([]IngestResponse, len(results))
	for i, res := range results {
		out[i] = FromResult(res)
	}
	httputil.WriteJSON(w, http.StatusAccepted, out)
}

func (h *Handler) handleGetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseTokenID(chi.URLParam(r, "tokenID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tok, err := h.service.Token(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tok)
}

func (h *Handler) handleListTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	shipmentID, err := domain.ParseShipmentID(chi.URLParam(r, "shipmentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tokens, err := h.service.TokensByShipment(ctx, shipmentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TokenListResponse{
		ShipmentID: shipmentID.String(),
		Tokens:     tokens,
	})
}

// handleHealth reports liveness with the request-scoped time.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   requestcontext.Now(r.Context()).UTC().Truncate(time.Second),
	})
}
