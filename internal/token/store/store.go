// Package store persists tokens. The substantive payload (type, metadata,
// relations, parent shipment) is frozen on first persist; re-persisting the
// same id only refreshes state, signature and updated_at.
package store

import (
	"context"
	"time"

	"chainsense/internal/token"
	"chainsense/pkg/domain"
)

// TokenRecord is the persistence projection of a token.
type TokenRecord struct {
	ID             domain.TokenID
	TokenType      domain.TokenType
	Version        int
	State          token.State
	RootShipmentID domain.ShipmentID
	Payload        []byte
	Signature      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store is the token registry.
//
// Error Contract:
// - Load returns sentinel.ErrNotFound when the id is unknown
// - infrastructure failures are wrapped with sentinel.ErrUnavailable
type Store interface {
	// Persist upserts by token id. First persist freezes the payload; later
	// persists of the same id update only state, signature and updated_at.
	Persist(ctx context.Context, t *token.Token) (TokenRecord, error)

	// Load rebuilds a token from its record.
	Load(ctx context.Context, id domain.TokenID) (*token.Token, error)

	// ListByShipment returns every token rooted at the shipment, oldest first.
	ListByShipment(ctx context.Context, shipmentID domain.ShipmentID) ([]*token.Token, error)

	// Exists satisfies token.RelationResolver so the factory can enforce
	// forward-only lineage against the registry.
	Exists(ctx context.Context, id domain.TokenID) (bool, error)
}
