package consistency

import "chainsense/internal/telemetry"

// FlagCode enumerates the physically-implausible transitions the engine can
// detect. Codes are part of the downstream risk contract; add new codes here
// and in the engine, never ad hoc strings.
type FlagCode string

const (
	FlagImpossibleSpeed     FlagCode = "IMPOSSIBLE_SPEED"
	FlagTimestampDuplicate  FlagCode = "TIMESTAMP_DUPLICATE"
	FlagReversedTimeOrder   FlagCode = "REVERSED_TIME_ORDER"
	FlagStaleDeviceClock    FlagCode = "STALE_DEVICE_CLOCK"
	FlagBatteryDepletion    FlagCode = "BATTERY_DEPLETION_ANOMALY"
)

// Severity grades a flag for downstream risk consumers. The pipeline itself
// never gates on severity; flags are advisory.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Flag is an advisory signal produced when a record transition breaks a
// plausibility threshold. It carries both records so risk and audit consumers
// can reconstruct the transition without another lookup. Never mutated.
type Flag struct {
	Code     FlagCode
	Severity Severity
	Detail   string
	Previous telemetry.NormalizedRecord
	Current  telemetry.NormalizedRecord
}
