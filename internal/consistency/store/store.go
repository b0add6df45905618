package store

import (
	"context"

	"chainsense/internal/telemetry"
)

// LastRecordStore keeps the last accepted record per (device, shipment) key.
//
// Error Contract:
// - Swap returns existed=false when the key had no prior record
// - infrastructure failures are wrapped with sentinel.ErrUnavailable so the
//   pipeline can treat them as retryable
type LastRecordStore interface {
	// Swap stores rec under key and returns the record it replaced. The
	// read-and-replace is atomic per key; that atomicity is what serializes
	// concurrent evaluations for the same key.
	Swap(ctx context.Context, key string, rec telemetry.NormalizedRecord) (prev telemetry.NormalizedRecord, existed bool, err error)

	// Clear evicts a key, e.g. when a shipment closes out.
	Clear(ctx context.Context, key string) error
}
