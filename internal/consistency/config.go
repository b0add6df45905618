package consistency

import (
	"time"

	"chainsense/pkg/domain"
)

// Config holds the plausibility thresholds. Zero-value fields are replaced by
// defaults in Normalize so partially-populated configs from env stay usable.
type Config struct {
	// SpeedCeilingsMPH is the maximum plausible sustained speed per transport
	// mode, before the safety margin is applied.
	SpeedCeilingsMPH map[domain.TransportMode]float64

	// SpeedSafetyMargin scales the ceiling before comparison so momentary GPS
	// jitter near the ceiling does not flag (e.g. 1.25 allows 25% headroom).
	SpeedSafetyMargin float64

	// GPSNoiseEpsilonMeters is the displacement below which two simultaneous
	// reports are considered the same position.
	GPSNoiseEpsilonMeters float64

	// MaxClockSkew is how far behind wall clock an event time may sit before
	// the device clock is flagged stale.
	MaxClockSkew time.Duration

	// MaxBatteryDropVoltsPerHour flags implausible battery depletion between
	// consecutive samples.
	MaxBatteryDropVoltsPerHour float64
}

// DefaultConfig returns thresholds tuned for over-the-road freight.
func DefaultConfig() Config {
	return Config{
		SpeedCeilingsMPH: map[domain.TransportMode]float64{
			domain.TransportRoad: 85,
			domain.TransportRail: 125,
			domain.TransportSea:  35,
			domain.TransportAir:  600,
		},
		SpeedSafetyMargin:          1.25,
		GPSNoiseEpsilonMeters:      25,
		MaxClockSkew:               30 * time.Minute,
		MaxBatteryDropVoltsPerHour: 2.0,
	}
}

// Normalize fills zero-value fields from the defaults.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if len(c.SpeedCeilingsMPH) == 0 {
		c.SpeedCeilingsMPH = def.SpeedCeilingsMPH
	}
	if c.SpeedSafetyMargin <= 0 {
		c.SpeedSafetyMargin = def.SpeedSafetyMargin
	}
	if c.GPSNoiseEpsilonMeters <= 0 {
		c.GPSNoiseEpsilonMeters = def.GPSNoiseEpsilonMeters
	}
	if c.MaxClockSkew <= 0 {
		c.MaxClockSkew = def.MaxClockSkew
	}
	if c.MaxBatteryDropVoltsPerHour <= 0 {
		c.MaxBatteryDropVoltsPerHour = def.MaxBatteryDropVoltsPerHour
	}
	return c
}

// CeilingFor returns the flagging threshold (ceiling × margin) for a mode.
// Unknown modes fall back to the road ceiling, the most conservative default.
func (c Config) CeilingFor(mode domain.TransportMode) float64 {
	ceiling, ok := c.SpeedCeilingsMPH[mode]
	if !ok {
		ceiling = c.SpeedCeilingsMPH[domain.TransportRoad]
	}
	return ceiling * c.SpeedSafetyMargin
}
