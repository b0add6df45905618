package milestone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainsense/internal/geofence"
	"chainsense/internal/telemetry"
	"chainsense/pkg/domain"
)

var eventTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func movingRecord(speedMPH float64, ignition bool) telemetry.NormalizedRecord {
	return telemetry.NormalizedRecord{
		DeviceID:   "DEV-1",
		ShipmentID: "SHIP-1",
		EventTime:  eventTime,
		Latitude:   41.8781,
		Longitude:  -87.6298,
		SpeedMPH:   speedMPH,
		Ignition:   ignition,
	}
}

func crossing(kind domain.GeofenceKind, transition geofence.Transition, fence domain.GeofenceID) geofence.Event {
	return geofence.Event{
		GeofenceID: fence,
		Kind:       kind,
		Transition: transition,
		DeviceID:   "DEV-1",
		ShipmentID: "SHIP-1",
		At:         eventTime,
	}
}

func TestBuild_PickupExitWhileDrivingDerivesInTransit(t *testing.T) {
	builder := NewBuilder()
	ctx := NewContext("SHIP-1")

	drafts := builder.Build(ctx, movingRecord(8, true), []geofence.Event{
		crossing(domain.GeofenceShipperPickup, geofence.TransitionExit, "GF-PICKUP"),
	})

	require.Len(t, drafts, 1)
	assert.Equal(t, domain.MilestoneInTransit, drafts[0].Type)
	assert.Equal(t, domain.ShipmentID("SHIP-1"), drafts[0].ShipmentID)
	assert.Equal(t, eventTime, drafts[0].At)
}

func TestBuild_PickupExitWhileParkedIsNotDeparture(t *testing.T) {
	builder := NewBuilder()
	ctx := NewContext("SHIP-1")

	// A stationary GPS blip outside the fence.
	drafts := builder.Build(ctx, movingRecord(0, false), []geofence.Event{
		crossing(domain.GeofenceShipperPickup, geofence.TransitionExit, "GF-PICKUP"),
	})
	assert.Empty(t, drafts)
}

func TestBuild_ConsigneeEnterStoppedDerivesDelivered(t *testing.T) {
	builder := NewBuilder()
	ctx := NewContext("SHIP-1")

	drafts := builder.Build(ctx, movingRecord(0, false), []geofence.Event{
		crossing(domain.GeofenceConsignee, geofence.TransitionEnter, "GF-CONSIGNEE"),
	})

	require.Len(t, drafts, 1)
	assert.Equal(t, domain.MilestoneDelivered, drafts[0].Type)
	assert.Equal(t, domain.GeofenceID("GF-CONSIGNEE"), drafts[0].GeofenceID)
}

func TestBuild_ConsigneeEnterStillMovingIsNotDelivered(t *testing.T) {
	builder := NewBuilder()
	ctx := NewContext("SHIP-1")

	// Driving through the consignee yard is not a delivery.
	drafts := builder.Build(ctx, movingRecord(25, true), []geofence.Event{
		crossing(domain.GeofenceConsignee, geofence.TransitionEnter, "GF-CONSIGNEE"),
	})
	assert.Empty(t, drafts)
}

func TestBuild_PickupEnterDerivesPickupArrived(t *testing.T) {
	builder := NewBuilder()
	ctx := NewContext("SHIP-1")

	drafts := builder.Build(ctx, movingRecord(3, true), []geofence.Event{
		crossing(domain.GeofenceShipperPickup, geofence.TransitionEnter, "GF-PICKUP"),
	})

	require.Len(t, drafts, 1)
	assert.Equal(t, domain.MilestonePickupArrived, drafts[0].Type)
}

func TestBuild_TerminalCrossings(t *testing.T) {
	builder := NewBuilder()
	ctx := NewContext("SHIP-1")

	drafts := builder.Build(ctx, movingRecord(10, true), []geofence.Event{
		crossing(domain.GeofenceTerminal, geofence.TransitionEnter, "GF-TERM-A"),
	})
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.MilestoneTerminalArrived, drafts[0].Type)

	drafts = builder.Build(ctx, movingRecord(10, true), []geofence.Event{
		crossing(domain.GeofenceTerminal, geofence.TransitionExit, "GF-TERM-A"),
	})
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.MilestoneTerminalDeparted, drafts[0].Type)

	// A second terminal on the same shipment still reports.
	drafts = builder.Build(ctx, movingRecord(10, true), []geofence.Event{
		crossing(domain.GeofenceTerminal, geofence.TransitionEnter, "GF-TERM-B"),
	})
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.MilestoneTerminalArrived, drafts[0].Type)
}

func TestBuild_BorderEnterDerivesCheckpointArrived(t *testing.T) {
	builder := NewBuilder()
	ctx := NewContext("SHIP-1")

	drafts := builder.Build(ctx, movingRecord(10, true), []geofence.Event{
		crossing(domain.GeofenceBorder, geofence.TransitionEnter, "GF-BORDER"),
	})
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.MilestoneCheckpointArrived, drafts[0].Type)
}

func TestBuild_SustainedSpeedReaffirmsInTransitOnce(t *testing.T) {
	builder := NewBuilder()
	ctx := NewContext("SHIP-1")

	drafts := builder.Build(ctx, movingRecord(55, true), nil)
	require.Len(t, drafts, 1)
	assert.Equal(t, domain.MilestoneInTransit, drafts[0].Type)

	// Every later sample at highway speed is suppressed.
	for i := 0; i < 3; i++ {
		drafts = builder.Build(ctx, movingRecord(60, true), nil)
		assert.Empty(t, drafts)
	}
	assert.True(t, ctx.Fired(domain.MilestoneInTransit))
}

func TestBuild_MovementAfterPickupExitDoesNotDuplicateInTransit(t *testing.T) {
	builder := NewBuilder()
	ctx := NewContext("SHIP-1")

	drafts := builder.Build(ctx, movingRecord(8, true), []geofence.Event{
		crossing(domain.GeofenceShipperPickup, geofence.TransitionExit, "GF-PICKUP"),
	})
	require.Len(t, drafts, 1)

	drafts = builder.Build(ctx, movingRecord(55, true), nil)
	assert.Empty(t, drafts)
}

func TestBuild_SlowOrIgnitionOffMovementIsSilent(t *testing.T) {
	builder := NewBuilder()
	ctx := NewContext("SHIP-1")

	assert.Empty(t, builder.Build(ctx, movingRecord(3, true), nil))
	assert.Empty(t, builder.Build(ctx, movingRecord(55, false), nil))
}

func TestBuild_DeterministicForFreshContexts(t *testing.T) {
	builder := NewBuilder()
	rec := movingRecord(8, true)
	events := []geofence.Event{
		crossing(domain.GeofenceShipperPickup, geofence.TransitionExit, "GF-PICKUP"),
	}

	first := builder.Build(NewContext("SHIP-1"), rec, events)
	second := builder.Build(NewContext("SHIP-1"), rec, events)
	assert.Equal(t, first, second)
}
