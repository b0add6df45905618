package geofence

import (
	"time"

	"chainsense/internal/geo"
	"chainsense/pkg/domain"
)

// Definition is one zone in a shipment's geofence catalogue. Geometry is
// either a circle (Center + RadiusMeters > 0) or a polygon ring; circle wins
// when both are set.
type Definition struct {
	ID           domain.GeofenceID   `json:"id"`
	ShipmentID   domain.ShipmentID   `json:"shipment_id"`
	Kind         domain.GeofenceKind `json:"kind"`
	Name         string              `json:"name,omitempty"`
	Center       geo.Point           `json:"center,omitempty"`
	RadiusMeters float64             `json:"radius_meters,omitempty"`
	Ring         []geo.Point         `json:"ring,omitempty"`
}

// Contains reports whether p falls inside the zone. Boundary ties count as
// inside for both geometries.
func (d Definition) Contains(p geo.Point) bool {
	if d.RadiusMeters > 0 {
		return geo.Distance(d.Center, p) <= d.RadiusMeters
	}
	return geo.PolygonContains(d.Ring, p)
}

// Transition is the direction of a membership change.
type Transition string

const (
	TransitionEnter Transition = "ENTER"
	TransitionExit  Transition = "EXIT"
)

// Event records a single boundary crossing. Events are transient; they feed
// the milestone builder and are not persisted on their own.
type Event struct {
	GeofenceID domain.GeofenceID   `json:"geofence_id"`
	Kind       domain.GeofenceKind `json:"kind"`
	Transition Transition          `json:"transition"`
	DeviceID   domain.DeviceID     `json:"device_id"`
	ShipmentID domain.ShipmentID   `json:"shipment_id"`
	At         time.Time           `json:"at"`
}
