package telemetry

import (
	"fmt"
	"time"

	"chainsense/pkg/domain"
)

// MalformedTelemetryError marks a sample that cannot be normalized. The sample
// is dropped and logged by the caller; it is never repaired or retried.
type MalformedTelemetryError struct {
	Field  string
	Reason string
}

func (e *MalformedTelemetryError) Error() string {
	return fmt.Sprintf("malformed telemetry: field %s: %s", e.Field, e.Reason)
}

const mpsToMPH = 2.2369362920544

// Normalize converts a raw sample into a canonical record. Pure function of
// its inputs: device state may supply defaults for fields the sample omits
// (battery voltage, engine state), nothing else is filled in.
func Normalize(raw RawTelemetry, state DeviceState) (NormalizedRecord, error) {
	deviceID, err := domain.ParseDeviceID(raw.DeviceID)
	if err != nil {
		return NormalizedRecord{}, &MalformedTelemetryError{Field: "device_id", Reason: "missing or too short"}
	}
	shipmentID, err := domain.ParseShipmentID(raw.ShipmentID)
	if err != nil {
		return NormalizedRecord{}, &MalformedTelemetryError{Field: "shipment_id", Reason: "missing or too short"}
	}
	if raw.Timestamp.IsZero() {
		return NormalizedRecord{}, &MalformedTelemetryError{Field: "timestamp", Reason: "missing"}
	}
	if raw.Latitude == nil {
		return NormalizedRecord{}, &MalformedTelemetryError{Field: "latitude", Reason: "missing"}
	}
	if raw.Longitude == nil {
		return NormalizedRecord{}, &MalformedTelemetryError{Field: "longitude", Reason: "missing"}
	}
	lat, lon := *raw.Latitude, *raw.Longitude
	if lat < -90 || lat > 90 {
		return NormalizedRecord{}, &MalformedTelemetryError{Field: "latitude", Reason: fmt.Sprintf("%v outside [-90, 90]", lat)}
	}
	if lon < -180 || lon > 180 {
		return NormalizedRecord{}, &MalformedTelemetryError{Field: "longitude", Reason: fmt.Sprintf("%v outside [-180, 180]", lon)}
	}
	if raw.Speed < 0 {
		return NormalizedRecord{}, &MalformedTelemetryError{Field: "speed", Reason: "negative"}
	}
	if raw.Heading < 0 || raw.Heading > 360 {
		return NormalizedRecord{}, &MalformedTelemetryError{Field: "heading", Reason: fmt.Sprintf("%v outside [0, 360]", raw.Heading)}
	}

	speedMPH := raw.Speed
	switch raw.SpeedUnit {
	case SpeedMetersPerSecond:
		speedMPH = raw.Speed * mpsToMPH
	case SpeedMilesPerHour, "":
		// already mph; empty unit defaults to mph per the device contract
	default:
		return NormalizedRecord{}, &MalformedTelemetryError{Field: "speed_unit", Reason: fmt.Sprintf("unknown unit %q", raw.SpeedUnit)}
	}

	rec := NormalizedRecord{
		DeviceID:    deviceID,
		ShipmentID:  shipmentID,
		EventTime:   raw.Timestamp.UTC(),
		Latitude:    lat,
		Longitude:   lon,
		SpeedMPH:    speedMPH,
		Heading:     raw.Heading,
		EngineState: raw.EngineState,
		IdleTime:    secondsToDuration(raw.IdleTimeSeconds),
		Ignition:    raw.Ignition,
	}

	if raw.BatteryVoltage != nil {
		rec.BatteryVoltage = *raw.BatteryVoltage
		rec.BatteryKnown = true
	} else if state.BatteryKnown {
		rec.BatteryVoltage = state.LastBatteryVoltage
		rec.BatteryKnown = true
	}
	if rec.EngineState == "" {
		rec.EngineState = state.LastEngineState
	}

	return rec, nil
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
