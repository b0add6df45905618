package telemetry

import (
	"time"

	"chainsense/pkg/domain"
)

// SpeedUnit tags the unit of the raw speed reading. Devices in the field
// report either mph (ELD units) or m/s (raw GPS modules).
type SpeedUnit string

const (
	SpeedMilesPerHour    SpeedUnit = "mph"
	SpeedMetersPerSecond SpeedUnit = "mps"
)

// RawTelemetry is the ingestion-boundary payload, exactly as submitted by a
// device gateway. Pointer fields distinguish "absent" from "zero" so the
// normalizer can reject missing required fields instead of guessing.
type RawTelemetry struct {
	DeviceID        string    `json:"device_id"`
	ShipmentID      string    `json:"shipment_id"`
	Timestamp       time.Time `json:"timestamp"`
	Latitude        *float64  `json:"latitude"`
	Longitude       *float64  `json:"longitude"`
	Speed           float64   `json:"speed"`
	SpeedUnit       SpeedUnit `json:"speed_unit,omitempty"`
	Heading         float64   `json:"heading"`
	EngineState     string    `json:"engine_state,omitempty"`
	Ignition        bool      `json:"ignition"`
	IdleTimeSeconds int       `json:"idle_time_seconds,omitempty"`
	BatteryVoltage  *float64  `json:"battery_voltage,omitempty"`
}

// DeviceState carries last-known device facts that may fill fields a raw
// sample omits. It never overrides a field the sample supplies.
type DeviceState struct {
	LastBatteryVoltage float64
	BatteryKnown       bool
	LastEngineState    string
}

// NormalizedRecord is the canonical telemetry record consumed by the
// consistency and geofence engines. Immutable once produced.
type NormalizedRecord struct {
	DeviceID       domain.DeviceID   `json:"device_id"`
	ShipmentID     domain.ShipmentID `json:"shipment_id"`
	EventTime      time.Time         `json:"event_time"` // always UTC
	Latitude       float64           `json:"latitude"`
	Longitude      float64           `json:"longitude"`
	SpeedMPH       float64           `json:"speed_mph"`
	Heading        float64           `json:"heading"`
	EngineState    string            `json:"engine_state,omitempty"`
	IdleTime       time.Duration     `json:"idle_time,omitempty"`
	Ignition       bool              `json:"ignition"`
	BatteryVoltage float64           `json:"battery_voltage,omitempty"`
	BatteryKnown   bool              `json:"battery_known,omitempty"`
}

// Key identifies the consistency-engine state slot this record belongs to.
func (r NormalizedRecord) Key() string {
	return r.DeviceID.String() + "|" + r.ShipmentID.String()
}
