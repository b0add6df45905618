package httptransport

import (
	"time"

	"chainsense/internal/consistency"
	"chainsense/internal/geo"
	"chainsense/internal/geofence"
	"chainsense/internal/milestone"
	"chainsense/internal/pipeline"
	"chainsense/internal/token"
	"chainsense/pkg/domain"
)

// RegisterShipmentRequest declares a shipment and its lane geofences.
type RegisterShipmentRequest struct {
	ShipmentID  string            `json:"shipment_id"`
	Origin      string            `json:"origin"`
	Destination string            `json:"destination"`
	CarrierID   string            `json:"carrier_id"`
	Geofences   []GeofenceRequest `json:"geofences,omitempty"`
}

// GeofenceRequest is one zone in the registration payload. Circles carry
// center and radius; polygons carry the ring.
type GeofenceRequest struct {
	ID           string      `json:"id"`
	Kind         string      `json:"kind"`
	Name         string      `json:"name,omitempty"`
	Center       *geo.Point  `json:"center,omitempty"`
	RadiusMeters float64     `json:"radius_meters,omitempty"`
	Ring         []geo.Point `json:"ring,omitempty"`
}

func (r RegisterShipmentRequest) toRegistration(shipmentID domain.ShipmentID) pipeline.ShipmentRegistration {
	reg := pipeline.ShipmentRegistration{
		ShipmentID:  shipmentID,
		Origin:      r.Origin,
		Destination: r.Destination,
		CarrierID:   r.CarrierID,
	}
	for _, g := range r.Geofences {
		def := geofence.Definition{
			ID:           domain.GeofenceID(g.ID),
			ShipmentID:   shipmentID,
			Kind:         domain.GeofenceKind(g.Kind),
			Name:         g.Name,
			RadiusMeters: g.RadiusMeters,
			Ring:         g.Ring,
		}
		if g.Center != nil {
			def.Center = *g.Center
		}
		reg.Geofences = append(reg.Geofences, def)
	}
	return reg
}

// FlagResponse is the advisory-flag view returned to callers; the full record
// pair stays internal.
type FlagResponse struct {
	Code     consistency.FlagCode `json:"code"`
	Severity consistency.Severity `json:"severity"`
	Detail   string               `json:"detail"`
}

// IngestResponse is the per-sample pipeline outcome.
type IngestResponse struct {
	DeviceID   string            `json:"device_id,omitempty"`
	ShipmentID string            `json:"shipment_id,omitempty"`
	Flags      []FlagResponse    `json:"flags,omitempty"`
	Events     []geofence.Event  `json:"geofence_events,omitempty"`
	Milestones []milestone.Draft `json:"milestones,omitempty"`
	Tokens     []*token.Token    `json:"tokens,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// FromResult converts a pipeline result for the wire. Errors are inlined so
// batch responses can report per-sample outcomes.
func FromResult(res pipeline.Result) IngestResponse {
	out := IngestResponse{}
	if res.Record != nil {
		out.DeviceID = res.Record.DeviceID.String()
		out.ShipmentID = res.Record.ShipmentID.String()
	}
	for _, f := range res.Flags {
		out.Flags = append(out.Flags, FlagResponse{Code: f.Code, Severity: f.Severity, Detail: f.Detail})
	}
	out.Events = res.Events
	out.Milestones = res.Milestones
	out.Tokens = res.Tokens
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// TokenListResponse wraps a shipment's lineage.
type TokenListResponse struct {
	ShipmentID string         `json:"shipment_id"`
	Tokens     []*token.Token `json:"tokens"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}
