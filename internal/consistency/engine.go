package consistency

import (
	"context"
	"fmt"
	"time"

	"chainsense/internal/consistency/store"
	"chainsense/internal/geo"
	"chainsense/internal/telemetry"
	"chainsense/pkg/domain"
)

// ModeResolver maps a shipment to its transport mode so the speed ceiling can
// differ between a truckload and an air charter. Pipelines without shipment
// context use the default (road).
type ModeResolver func(domain.ShipmentID) domain.TransportMode

// Engine compares each record against the last accepted record for its
// (device, shipment) key and emits advisory flags for implausible transitions.
// The new record always replaces the stored one; flags never gate ingestion.
type Engine struct {
	store store.LastRecordStore
	cfg   Config
	mode  ModeResolver
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithModeResolver supplies per-shipment transport modes.
func WithModeResolver(r ModeResolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.mode = r
		}
	}
}

// WithClock overrides wall-clock reads for the stale-clock check in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine constructs a consistency engine over the given state store.
func NewEngine(st store.LastRecordStore, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store: st,
		cfg:   cfg.Normalize(),
		mode:  func(domain.ShipmentID) domain.TransportMode { return domain.TransportRoad },
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Evaluate checks rec against the stored last record for its key, replaces the
// stored record, and returns any flags. The first record for a key stores and
// returns nothing, stale clocks included: a fresh key has no baseline worth
// flagging against.
func (e *Engine) Evaluate(ctx context.Context, rec telemetry.NormalizedRecord) ([]Flag, error) {
	prev, existed, err := e.store.Swap(ctx, rec.Key(), rec)
	if err != nil {
		return nil, fmt.Errorf("swap last record: %w", err)
	}
	if !existed {
		return nil, nil
	}

	var flags []Flag
	if skew := e.now().Sub(rec.EventTime); skew > e.cfg.MaxClockSkew {
		flags = append(flags, Flag{
			Code:     FlagStaleDeviceClock,
			Severity: SeverityWarning,
			Detail:   fmt.Sprintf("event time lags wall clock by %s (max %s)", skew.Round(time.Second), e.cfg.MaxClockSkew),
			Previous: prev,
			Current:  rec,
		})
	}
	flags = append(flags, e.compareToPrevious(prev, rec)...)
	return flags, nil
}

func (e *Engine) compareToPrevious(prev, rec telemetry.NormalizedRecord) []Flag {
	var flags []Flag

	dt := rec.EventTime.Sub(prev.EventTime)
	displacement := geo.Distance(
		geo.Point{Latitude: prev.Latitude, Longitude: prev.Longitude},
		geo.Point{Latitude: rec.Latitude, Longitude: rec.Longitude},
	)

	switch {
	case dt < 0:
		flags = append(flags, Flag{
			Code:     FlagReversedTimeOrder,
			Severity: SeverityWarning,
			Detail:   fmt.Sprintf("event time moved backwards by %s", (-dt).Round(time.Millisecond)),
			Previous: prev,
			Current:  rec,
		})
	case dt == 0:
		if displacement > e.cfg.GPSNoiseEpsilonMeters {
			flags = append(flags, Flag{
				Code:     FlagTimestampDuplicate,
				Severity: SeverityCritical,
				Detail:   fmt.Sprintf("simultaneous reports %.0fm apart (epsilon %.0fm)", displacement, e.cfg.GPSNoiseEpsilonMeters),
				Previous: prev,
				Current:  rec,
			})
		}
	default:
		impliedMPH := (displacement / metersPerMile) / dt.Hours()
		ceiling := e.cfg.CeilingFor(e.mode(rec.ShipmentID))
		if impliedMPH > ceiling {
			flags = append(flags, Flag{
				Code:     FlagImpossibleSpeed,
				Severity: SeverityCritical,
				Detail:   fmt.Sprintf("implied speed %.0f mph exceeds ceiling %.0f mph", impliedMPH, ceiling),
				Previous: prev,
				Current:  rec,
			})
		}
		if prev.BatteryKnown && rec.BatteryKnown {
			drop := prev.BatteryVoltage - rec.BatteryVoltage
			if drop > 0 && drop/dt.Hours() > e.cfg.MaxBatteryDropVoltsPerHour {
				flags = append(flags, Flag{
					Code:     FlagBatteryDepletion,
					Severity: SeverityWarning,
					Detail:   fmt.Sprintf("battery fell %.2fV over %s", drop, dt.Round(time.Second)),
					Previous: prev,
					Current:  rec,
				})
			}
		}
	}

	return flags
}

const metersPerMile = 1609.344
