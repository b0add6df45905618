package domain

import (
	"fmt"

	"github.com/google/uuid"

	"chainsense/pkg/platform/sentinel"
)

// TokenID identifies a single token in the lineage graph.
// Invariant: must be a valid, non-nil UUID.
//
// Usage: construct via NewTokenID for fresh tokens, or ParseTokenID at trust
// boundaries; direct casting bypasses validation.
type TokenID uuid.UUID

// NewTokenID returns a fresh random token identifier.
func NewTokenID() TokenID {
	return TokenID(uuid.New())
}

// ParseTokenID constructs a TokenID from external input.
func ParseTokenID(s string) (TokenID, error) {
	if s == "" {
		return TokenID{}, fmt.Errorf("token id cannot be empty: %w", sentinel.ErrInvalidInput)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return TokenID{}, fmt.Errorf("token id %q is not a valid uuid: %w", s, sentinel.ErrInvalidInput)
	}
	if u == uuid.Nil {
		return TokenID{}, fmt.Errorf("token id cannot be the nil uuid: %w", sentinel.ErrInvalidInput)
	}
	return TokenID(u), nil
}

func (id TokenID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id TokenID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText renders the canonical UUID string so JSON payloads carry token
// ids as strings, not byte arrays.
func (id TokenID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *TokenID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return fmt.Errorf("token id %q is not a valid uuid: %w", b, sentinel.ErrInvalidInput)
	}
	*id = TokenID(u)
	return nil
}

// minIdentifierLength matches the ingestion contract: identifiers shorter than
// this are treated as malformed rather than guessed at.
const minIdentifierLength = 3

// DeviceID identifies a telemetry-emitting device. Device identifiers come
// from carrier hardware and are opaque strings, not UUIDs.
type DeviceID string

// ParseDeviceID constructs a DeviceID from external input.
func ParseDeviceID(s string) (DeviceID, error) {
	if len(s) < minIdentifierLength {
		return "", fmt.Errorf("device id %q too short: %w", s, sentinel.ErrInvalidInput)
	}
	return DeviceID(s), nil
}

func (id DeviceID) String() string { return string(id) }

// ShipmentID identifies the root shipment (the ST-01 lineage anchor).
type ShipmentID string

// ParseShipmentID constructs a ShipmentID from external input.
func ParseShipmentID(s string) (ShipmentID, error) {
	if len(s) < minIdentifierLength {
		return "", fmt.Errorf("shipment id %q too short: %w", s, sentinel.ErrInvalidInput)
	}
	return ShipmentID(s), nil
}

func (id ShipmentID) String() string { return string(id) }

// GeofenceID identifies a registered geofence definition.
type GeofenceID string

func (id GeofenceID) String() string { return string(id) }
