package milestone

import (
	"strings"
	"time"

	"chainsense/internal/geofence"
	"chainsense/internal/telemetry"
	"chainsense/pkg/domain"
)

// Draft is a derived milestone ready to become an MT-01 token. The builder
// performs no token validation; it only decides that a milestone happened.
type Draft struct {
	Type       domain.MilestoneType `json:"milestone_type"`
	ShipmentID domain.ShipmentID    `json:"shipment_id"`
	DeviceID   domain.DeviceID      `json:"device_id"`
	At         time.Time            `json:"at"`
	Latitude   float64              `json:"latitude"`
	Longitude  float64              `json:"longitude"`
	GeofenceID domain.GeofenceID    `json:"geofence_id,omitempty"`
}

// Builder derives milestones from geofence crossings and movement. The same
// record and events always yield the same drafts for a fresh context.
type Builder struct {
	// stationaryMPH is the speed at or below which a vehicle counts as
	// stopped for delivery purposes.
	stationaryMPH float64
	// movingMPH is the sustained speed above which a shipment counts as
	// underway without any geofence evidence.
	movingMPH float64
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithStationarySpeed overrides the stopped-vehicle threshold in mph.
func WithStationarySpeed(mph float64) BuilderOption {
	return func(b *Builder) {
		if mph >= 0 {
			b.stationaryMPH = mph
		}
	}
}

// WithMovingSpeed overrides the underway threshold in mph.
func WithMovingSpeed(mph float64) BuilderOption {
	return func(b *Builder) {
		if mph > 0 {
			b.movingMPH = mph
		}
	}
}

// NewBuilder constructs a milestone builder with default speed thresholds.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		stationaryMPH: 1.0,
		movingMPH:     5.0,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Build derives milestone drafts for one sample. Geofence events drive the
// arrival and departure milestones; sustained movement with no events
// re-affirms IN_TRANSIT once per shipment.
func (b *Builder) Build(ctx *Context, rec telemetry.NormalizedRecord, events []geofence.Event) []Draft {
	var drafts []Draft

	for _, ev := range events {
		typ, ok := b.milestoneFor(ev, rec)
		if !ok {
			continue
		}
		if !ctx.markIfNew(firedKey(typ, ev.GeofenceID)) {
			continue
		}
		drafts = append(drafts, Draft{
			Type:       typ,
			ShipmentID: rec.ShipmentID,
			DeviceID:   rec.DeviceID,
			At:         ev.At,
			Latitude:   rec.Latitude,
			Longitude:  rec.Longitude,
			GeofenceID: ev.GeofenceID,
		})
	}

	if len(events) == 0 && rec.SpeedMPH >= b.movingMPH && rec.Ignition {
		if ctx.markIfNew(firedKey(domain.MilestoneInTransit, "")) {
			drafts = append(drafts, Draft{
				Type:       domain.MilestoneInTransit,
				ShipmentID: rec.ShipmentID,
				DeviceID:   rec.DeviceID,
				At:         rec.EventTime,
				Latitude:   rec.Latitude,
				Longitude:  rec.Longitude,
			})
		}
	}

	return drafts
}

func (b *Builder) milestoneFor(ev geofence.Event, rec telemetry.NormalizedRecord) (domain.MilestoneType, bool) {
	switch ev.Kind {
	case domain.GeofenceShipperPickup:
		if ev.Transition == geofence.TransitionEnter {
			return domain.MilestonePickupArrived, true
		}
		// Leaving the pickup fence only means underway when the vehicle is
		// actually driving; a GPS blip outside the fence while parked is not
		// a departure.
		if rec.SpeedMPH > b.stationaryMPH && rec.Ignition {
			return domain.MilestoneInTransit, true
		}
	case domain.GeofenceConsignee:
		if ev.Transition == geofence.TransitionEnter && rec.SpeedMPH <= b.stationaryMPH && !rec.Ignition {
			return domain.MilestoneDelivered, true
		}
	case domain.GeofenceTerminal:
		if ev.Transition == geofence.TransitionEnter {
			return domain.MilestoneTerminalArrived, true
		}
		return domain.MilestoneTerminalDeparted, true
	case domain.GeofencePort, domain.GeofenceBorder:
		if ev.Transition == geofence.TransitionEnter {
			return domain.MilestoneCheckpointArrived, true
		}
	}
	return "", false
}

// firedKey scopes arrival milestones to their geofence so multi-stop trips
// report each terminal, while IN_TRANSIT and DELIVERED are once per shipment
// however they were derived.
func firedKey(typ domain.MilestoneType, fence domain.GeofenceID) string {
	if fence == "" || typ == domain.MilestoneInTransit || typ == domain.MilestoneDelivered {
		return string(typ)
	}
	return string(typ) + "|" + string(fence)
}

func milestoneTypeOf(key string) domain.MilestoneType {
	if i := strings.IndexByte(key, '|'); i >= 0 {
		return domain.MilestoneType(key[:i])
	}
	return domain.MilestoneType(key)
}
