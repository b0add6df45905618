// Package audit records what the pipeline did with each sample and token.
// Events flow publisher -> store; the Postgres store writes a transactional
// outbox that the relay ships to Kafka.
package audit

import (
	"context"
	"time"

	"chainsense/pkg/domain"
)

// Action names one observable pipeline outcome.
type Action string

const (
	ActionSampleIngested    Action = "sample_ingested"
	ActionSampleRejected    Action = "sample_rejected"
	ActionFlagRaised        Action = "flag_raised"
	ActionGeofenceCrossed   Action = "geofence_crossed"
	ActionMilestoneDerived  Action = "milestone_derived"
	ActionTokenCreated      Action = "token_created"
	ActionTokenTransitioned Action = "token_transitioned"
)

// Event is emitted from pipeline logic. Keep it transport-agnostic so stores
// and sinks can fan out.
type Event struct {
	Action     Action
	Timestamp  time.Time
	DeviceID   domain.DeviceID
	ShipmentID domain.ShipmentID
	TokenID    domain.TokenID
	TokenType  domain.TokenType
	Detail     string
}

// Store persists audit events, append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
}
