package token

import (
	"context"
	"fmt"
	"time"

	"chainsense/pkg/domain"
)

// RelationResolver answers whether a token id is already registered. The
// token stores implement it.
type RelationResolver interface {
	Exists(ctx context.Context, id domain.TokenID) (bool, error)
}

// Factory constructs tokens, enforcing each variant's declarative schema.
// Lineage is forward-only by construction: every referenced id must already
// be resolvable, so a token can never point at something created after it.
type Factory struct {
	resolver RelationResolver
	now      func() time.Time
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithFactoryClock overrides creation timestamps in tests.
func WithFactoryClock(now func() time.Time) FactoryOption {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFactory constructs a token factory over the given resolver.
func NewFactory(resolver RelationResolver, opts ...FactoryOption) *Factory {
	f := &Factory{resolver: resolver, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Create validates and builds a token. All variants start in CREATED at
// version 1. Malformed metadata fails with *TokenValidationError; missing or
// dangling relations fail with *RelationValidationError. No defaulting:
// absent required fields are never filled in.
func (f *Factory) Create(
	ctx context.Context,
	typ domain.TokenType,
	parentShipment domain.ShipmentID,
	metadata map[string]any,
	relations map[string]domain.TokenID,
) (*Token, error) {
	sch, ok := schemaFor(typ)
	if !ok {
		return nil, &TokenValidationError{TokenType: typ, Field: "token_type", Reason: "unknown token_type"}
	}
	if parentShipment == "" {
		return nil, &TokenValidationError{TokenType: typ, Field: "parent_shipment_id", Reason: "required"}
	}

	for _, spec := range sch.metadata {
		v, present := metadata[spec.key]
		if !present || v == nil {
			return nil, &TokenValidationError{TokenType: typ, Field: spec.key, Reason: "required metadata key missing"}
		}
		if !kindSatisfied(spec.kind, v) {
			return nil, &TokenValidationError{
				TokenType: typ,
				Field:     spec.key,
				Reason:    fmt.Sprintf("expected %s, got %T", spec.kind, v),
			}
		}
	}

	for _, role := range sch.relations {
		if _, present := relations[role]; !present {
			return nil, &RelationValidationError{TokenType: typ, Role: role, Reason: "required relation role missing"}
		}
	}
	// Every provided reference must resolve, required role or not.
	for role, ref := range relations {
		if ref.IsNil() {
			return nil, &RelationValidationError{TokenType: typ, Role: role, Reason: "nil token id"}
		}
		exists, err := f.resolver.Exists(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("resolve relation %s: %w", role, err)
		}
		if !exists {
			return nil, &RelationValidationError{TokenType: typ, Role: role, Ref: ref, Reason: "referenced token not in registry"}
		}
	}

	now := f.now().UTC()
	t := &Token{
		ID:               domain.NewTokenID(),
		Type:             typ,
		Version:          1,
		State:            StateCreated,
		ParentShipmentID: parentShipment,
		Metadata:         copyMetadata(metadata),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if len(relations) > 0 {
		t.Relations = make(map[string]domain.TokenID, len(relations))
		for role, ref := range relations {
			t.Relations[role] = ref
		}
	}
	return t, nil
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
