package geofence

import (
	"context"
	"fmt"

	"chainsense/internal/geo"
	"chainsense/internal/telemetry"
	"chainsense/pkg/domain"
)

// Engine turns positions into boundary-crossing events against a caller
// supplied catalogue of zones. Steady state is silent: a device parked inside
// a consignee fence produces one ENTER, not one per sample.
type Engine struct {
	memberships MembershipStore
}

// NewEngine constructs a geofence engine over the given membership store.
func NewEngine(memberships MembershipStore) *Engine {
	return &Engine{memberships: memberships}
}

// Evaluate checks rec against every definition and returns the crossings, in
// catalogue order. Each (device, geofence) membership swap is atomic, so
// concurrent samples for the same device and zone cannot double-report a
// crossing.
func (e *Engine) Evaluate(ctx context.Context, rec telemetry.NormalizedRecord, defs []Definition) ([]Event, error) {
	pos := geo.Point{Latitude: rec.Latitude, Longitude: rec.Longitude}

	var events []Event
	for _, def := range defs {
		inside := def.Contains(pos)
		wasInside, err := e.memberships.Swap(ctx, membershipKey(rec.DeviceID, def.ID), inside)
		if err != nil {
			return nil, fmt.Errorf("swap membership for geofence %s: %w", def.ID, err)
		}
		if inside == wasInside {
			continue
		}

		transition := TransitionEnter
		if !inside {
			transition = TransitionExit
		}
		events = append(events, Event{
			GeofenceID: def.ID,
			Kind:       def.Kind,
			Transition: transition,
			DeviceID:   rec.DeviceID,
			ShipmentID: rec.ShipmentID,
			At:         rec.EventTime,
		})
	}
	return events, nil
}

func membershipKey(device domain.DeviceID, fence domain.GeofenceID) string {
	return string(device) + "|" + string(fence)
}
