package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chainsense/internal/token"
	"chainsense/pkg/domain"
	"chainsense/pkg/platform/sentinel"
)

// InMemoryStore is the registry backend for tests and single-node runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.TokenID]TokenRecord
	now     func() time.Time
}

// InMemoryStoreOption configures an InMemoryStore.
type InMemoryStoreOption func(*InMemoryStore)

// WithStoreClock overrides persistence timestamps in tests.
func WithStoreClock(now func() time.Time) InMemoryStoreOption {
	return func(s *InMemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewInMemoryStore constructs an empty in-memory token registry.
func NewInMemoryStore(opts ...InMemoryStoreOption) *InMemoryStore {
	s := &InMemoryStore{
		records: make(map[domain.TokenID]TokenRecord),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *InMemoryStore) Persist(_ context.Context, t *token.Token) (TokenRecord, error) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[t.ID]; ok {
		// Payload is frozen at first persist; only the mutable projection
		// refreshes.
		existing.State = t.State
		existing.Signature = t.Signature
		existing.UpdatedAt = now
		s.records[t.ID] = existing
		return existing, nil
	}

	blob, err := encodePayload(t)
	if err != nil {
		return TokenRecord{}, err
	}
	rec := TokenRecord{
		ID:             t.ID,
		TokenType:      t.Type,
		Version:        t.Version,
		State:          t.State,
		RootShipmentID: t.ParentShipmentID,
		Payload:        blob,
		Signature:      t.Signature,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.records[t.ID] = rec
	return rec, nil
}

func (s *InMemoryStore) Load(_ context.Context, id domain.TokenID) (*token.Token, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("token %s: %w", id, sentinel.ErrNotFound)
	}
	return decodeToken(rec)
}

func (s *InMemoryStore) ListByShipment(_ context.Context, shipmentID domain.ShipmentID) ([]*token.Token, error) {
	s.mu.RLock()
	var matched []TokenRecord
	for _, rec := range s.records {
		if rec.RootShipmentID == shipmentID {
			matched = append(matched, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	tokens := make([]*token.Token, 0, len(matched))
	for _, rec := range matched {
		t, err := decodeToken(rec)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

func (s *InMemoryStore) Exists(_ context.Context, id domain.TokenID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok, nil
}
