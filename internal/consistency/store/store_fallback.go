package store

import (
	"context"
	"log/slog"
	"sync/atomic"

	"chainsense/internal/telemetry"
	"chainsense/pkg/platform/circuit"
)

// probeEvery is how often an open circuit retries the primary so it can heal.
const probeEvery = 10

// FallbackLastRecordStore keeps the consistency engine running through a
// shared-store outage. While the breaker is closed every swap goes to the
// primary; after repeated failures it trips and swaps land in the in-process
// fallback instead. Records written during the outage are not migrated back,
// so the first comparison after recovery may miss one transition. That is
// acceptable for advisory flags.
type FallbackLastRecordStore struct {
	primary  LastRecordStore
	fallback LastRecordStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
	calls    atomic.Uint64
}

// FallbackOption configures a FallbackLastRecordStore.
type FallbackOption func(*FallbackLastRecordStore)

// WithFallbackLogger sets the logger for breaker state changes.
func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(s *FallbackLastRecordStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFallbackBreaker overrides breaker thresholds.
func WithFallbackBreaker(b *circuit.Breaker) FallbackOption {
	return func(s *FallbackLastRecordStore) {
		if b != nil {
			s.breaker = b
		}
	}
}

// NewFallbackLastRecordStore wraps primary with a breaker-guarded fallback.
func NewFallbackLastRecordStore(primary, fallback LastRecordStore, opts ...FallbackOption) *FallbackLastRecordStore {
	s := &FallbackLastRecordStore{
		primary:  primary,
		fallback: fallback,
		breaker:  circuit.New("last-record-store"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *FallbackLastRecordStore) Swap(ctx context.Context, key string, rec telemetry.NormalizedRecord) (telemetry.NormalizedRecord, bool, error) {
	if s.breaker.IsOpen() && s.calls.Add(1)%probeEvery != 0 {
		return s.fallback.Swap(ctx, key, rec)
	}

	prev, existed, err := s.primary.Swap(ctx, key, rec)
	if err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "last-record store degraded, using in-process state",
				"breaker", s.breaker.Name(), "error", err)
		}
		return s.fallback.Swap(ctx, key, rec)
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "last-record store recovered",
			"breaker", s.breaker.Name())
	}
	return prev, existed, nil
}

func (s *FallbackLastRecordStore) Clear(ctx context.Context, key string) error {
	// Clear both so a degraded-mode record cannot resurface after recovery.
	ferr := s.fallback.Clear(ctx, key)
	if s.breaker.IsOpen() {
		return ferr
	}
	if err := s.primary.Clear(ctx, key); err != nil {
		s.breaker.RecordFailure()
		return err
	}
	s.breaker.RecordSuccess()
	return ferr
}
