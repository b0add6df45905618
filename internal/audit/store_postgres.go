package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chainsense/pkg/platform/sentinel"
)

// PostgresStore implements Store using the transactional outbox pattern.
// Events land in the outbox table; the relay publishes them to Kafka and
// marks them done. Kafka is the downstream source of truth.
//
// Expected schema:
//
//	CREATE TABLE audit_outbox (
//	    id           UUID PRIMARY KEY,
//	    aggregate_id TEXT NOT NULL,
//	    action       TEXT NOT NULL,
//	    payload      JSONB NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    published_at TIMESTAMPTZ
//	);
//	CREATE INDEX idx_audit_outbox_unpublished ON audit_outbox (created_at) WHERE published_at IS NULL;
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs an outbox-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	Timestamp  string `json:"timestamp"`
	DeviceID   string `json:"device_id,omitempty"`
	ShipmentID string `json:"shipment_id,omitempty"`
	TokenID    string `json:"token_id,omitempty"`
	TokenType  string `json:"token_type,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	eventID := uuid.New()

	payload := outboxPayload{
		ID:         eventID.String(),
		Action:     string(event.Action),
		Timestamp:  event.Timestamp.Format(time.RFC3339Nano),
		DeviceID:   string(event.DeviceID),
		ShipmentID: string(event.ShipmentID),
		TokenType:  string(event.TokenType),
		Detail:     event.Detail,
	}
	if !event.TokenID.IsNil() {
		payload.TokenID = event.TokenID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Aggregate on the shipment so consumers can partition by lineage root.
	aggregateID := string(event.ShipmentID)
	if aggregateID == "" {
		aggregateID = eventID.String()
	}

	query := `
		INSERT INTO audit_outbox (id, aggregate_id, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.ExecContext(ctx, query,
		eventID, aggregateID, string(event.Action), payloadBytes, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("insert outbox entry: %w", sentinel.ErrUnavailable)
	}
	return nil
}
