package consistency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"chainsense/internal/consistency/store"
	"chainsense/internal/telemetry"
	"chainsense/pkg/domain"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func record(device, shipment string, at time.Time, lat, lon float64) telemetry.NormalizedRecord {
	return telemetry.NormalizedRecord{
		DeviceID:   domain.DeviceID(device),
		ShipmentID: domain.ShipmentID(shipment),
		EventTime:  at,
		Latitude:   lat,
		Longitude:  lon,
		SpeedMPH:   55,
		Ignition:   true,
	}
}

type EngineSuite struct {
	suite.Suite
	engine *Engine
}

func (s *EngineSuite) SetupTest() {
	// Pin the clock to the sample times so the stale-clock check stays quiet
	// unless a test wants it.
	s.engine = NewEngine(
		store.NewInMemoryLastRecordStore(),
		DefaultConfig(),
		WithClock(func() time.Time { return baseTime.Add(10 * time.Minute) }),
	)
}

func (s *EngineSuite) evaluate(rec telemetry.NormalizedRecord) []Flag {
	flags, err := s.engine.Evaluate(context.Background(), rec)
	require.NoError(s.T(), err)
	return flags
}

func (s *EngineSuite) codes(flags []Flag) []FlagCode {
	out := make([]FlagCode, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.Code)
	}
	return out
}

func (s *EngineSuite) TestFirstRecordProducesNoFlags() {
	flags := s.evaluate(record("DEV-1", "SHIP-1", baseTime, 41.8781, -87.6298))
	assert.Empty(s.T(), flags)
}

func (s *EngineSuite) TestImpossibleSpeed() {
	s.evaluate(record("DEV-1", "SHIP-1", baseTime, 41.8781, -87.6298))

	// ~50 miles due north in 5 minutes needs roughly 600 mph by road.
	flags := s.evaluate(record("DEV-1", "SHIP-1", baseTime.Add(5*time.Minute), 42.6031, -87.6298))
	assert.Contains(s.T(), s.codes(flags), FlagImpossibleSpeed)

	// The teleport does not poison the stream: a plausible follow-up from the
	// new position is clean.
	flags = s.evaluate(record("DEV-1", "SHIP-1", baseTime.Add(10*time.Minute), 42.6100, -87.6310))
	assert.Empty(s.T(), flags)
}

func (s *EngineSuite) TestTimestampDuplicate() {
	s.evaluate(record("DEV-1", "SHIP-1", baseTime, 41.8781, -87.6298))

	// Same instant, ~5 km apart: conflicting simultaneous reports.
	flags := s.evaluate(record("DEV-1", "SHIP-1", baseTime, 41.9200, -87.6298))
	assert.Contains(s.T(), s.codes(flags), FlagTimestampDuplicate)
}

func (s *EngineSuite) TestTimestampDuplicateWithinEpsilonIsQuiet() {
	s.evaluate(record("DEV-1", "SHIP-1", baseTime, 41.8781, -87.6298))

	// Same instant, a few meters of GPS noise: not a conflict.
	flags := s.evaluate(record("DEV-1", "SHIP-1", baseTime, 41.87815, -87.62985))
	assert.Empty(s.T(), flags)
}

func (s *EngineSuite) TestReversedTimeOrder() {
	s.evaluate(record("DEV-1", "SHIP-1", baseTime, 41.8781, -87.6298))

	flags := s.evaluate(record("DEV-1", "SHIP-1", baseTime.Add(-time.Minute), 41.8785, -87.6300))
	assert.Contains(s.T(), s.codes(flags), FlagReversedTimeOrder)
}

func (s *EngineSuite) TestStaleDeviceClock() {
	engine := NewEngine(
		store.NewInMemoryLastRecordStore(),
		DefaultConfig(),
		WithClock(func() time.Time { return baseTime.Add(2 * time.Hour) }),
	)
	ctx := context.Background()

	// A fresh key is silent even when the clock already lags.
	flags, err := engine.Evaluate(ctx, record("DEV-1", "SHIP-1", baseTime, 41.8781, -87.6298))
	require.NoError(s.T(), err)
	assert.Empty(s.T(), flags)

	flags, err = engine.Evaluate(ctx, record("DEV-1", "SHIP-1", baseTime.Add(time.Minute), 41.8785, -87.6300))
	require.NoError(s.T(), err)
	assert.Contains(s.T(), s.codes(flags), FlagStaleDeviceClock)
}

func (s *EngineSuite) TestBatteryDepletionAnomaly() {
	first := record("DEV-1", "SHIP-1", baseTime, 41.8781, -87.6298)
	first.BatteryVoltage = 12.8
	first.BatteryKnown = true
	s.evaluate(first)

	second := record("DEV-1", "SHIP-1", baseTime.Add(10*time.Minute), 41.8900, -87.6300)
	second.BatteryVoltage = 9.0 // 3.8V in 10 minutes
	second.BatteryKnown = true
	flags := s.evaluate(second)
	assert.Contains(s.T(), s.codes(flags), FlagBatteryDepletion)
}

func (s *EngineSuite) TestStateDoesNotLeakAcrossKeys() {
	s.evaluate(record("DEV-1", "SHIP-1", baseTime, 41.8781, -87.6298))

	// Same device, different shipment: fresh key, no flags even though the
	// position jump would be impossible for SHIP-1.
	flags := s.evaluate(record("DEV-1", "SHIP-2", baseTime.Add(time.Minute), 42.6031, -87.6298))
	assert.Empty(s.T(), flags)
}

func (s *EngineSuite) TestModeResolverRaisesCeiling() {
	engine := NewEngine(
		store.NewInMemoryLastRecordStore(),
		DefaultConfig(),
		WithClock(func() time.Time { return baseTime.Add(10 * time.Minute) }),
		WithModeResolver(func(domain.ShipmentID) domain.TransportMode { return domain.TransportAir }),
	)
	ctx := context.Background()

	_, err := engine.Evaluate(ctx, record("DEV-1", "SHIP-AIR", baseTime, 41.8781, -87.6298))
	require.NoError(s.T(), err)

	// ~600 mph is implausible by road but fine for air freight.
	flags, err := engine.Evaluate(ctx, record("DEV-1", "SHIP-AIR", baseTime.Add(5*time.Minute), 42.6031, -87.6298))
	require.NoError(s.T(), err)
	assert.Empty(s.T(), flags)
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

// TestEvaluate_ConcurrentKeysDoNotRace drives many goroutines across disjoint
// keys; the race detector is the assertion here.
func TestEvaluate_ConcurrentKeysDoNotRace(t *testing.T) {
	engine := NewEngine(store.NewInMemoryLastRecordStore(), DefaultConfig(),
		WithClock(func() time.Time { return baseTime }))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			device := domain.DeviceID('A' + rune(n%26))
			for j := 0; j < 50; j++ {
				rec := record(string(device)+"-dev", "SHIP-1", baseTime.Add(time.Duration(j)*time.Minute), 41.8781, -87.6298)
				if _, err := engine.Evaluate(ctx, rec); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
