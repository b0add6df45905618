package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chainsense/internal/token"
	"chainsense/pkg/domain"
	"chainsense/pkg/platform/sentinel"
	"chainsense/pkg/platform/tx"
)

// PostgresStore is the production token registry. Payload is a JSONB column
// frozen by the upsert's conflict clause; tokens table is indexed on
// root_shipment_id for lineage queries.
//
// Expected schema:
//
//	CREATE TABLE tokens (
//	    id               UUID PRIMARY KEY,
//	    token_type       TEXT NOT NULL,
//	    version          INT NOT NULL,
//	    state            TEXT NOT NULL,
//	    root_shipment_id TEXT NOT NULL,
//	    payload          JSONB NOT NULL,
//	    signature        TEXT NOT NULL DEFAULT '',
//	    created_at       TIMESTAMPTZ NOT NULL,
//	    updated_at       TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX idx_tokens_root_shipment ON tokens (root_shipment_id, created_at);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a Postgres-backed token registry.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier joins a caller-managed transaction when one is carried in ctx, so a
// milestone token and its root transition can commit atomically.
func (s *PostgresStore) querier(ctx context.Context) interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
} {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) Persist(ctx context.Context, t *token.Token) (TokenRecord, error) {
	blob, err := encodePayload(t)
	if err != nil {
		return TokenRecord{}, err
	}
	now := time.Now().UTC()

	// The conflict clause deliberately leaves token_type, version,
	// root_shipment_id and payload alone: the substantive content is
	// immutable once written.
	query := `
		INSERT INTO tokens (id, token_type, version, state, root_shipment_id, payload, signature, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (id) DO UPDATE
		SET state = EXCLUDED.state,
		    signature = EXCLUDED.signature,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, token_type, version, state, root_shipment_id, payload, signature, created_at, updated_at
	`
	var rec TokenRecord
	var idStr string
	err = s.querier(ctx).QueryRowContext(ctx, query,
		t.ID.String(), string(t.Type), t.Version, string(t.State),
		t.ParentShipmentID.String(), blob, t.Signature, now,
	).Scan(&idStr, &rec.TokenType, &rec.Version, &rec.State, &rec.RootShipmentID,
		&rec.Payload, &rec.Signature, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("upsert token %s: %w", t.ID, sentinel.ErrUnavailable)
	}
	rec.ID, err = domain.ParseTokenID(idStr)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("scan token id: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Load(ctx context.Context, id domain.TokenID) (*token.Token, error) {
	query := `
		SELECT id, token_type, version, state, root_shipment_id, payload, signature, created_at, updated_at
		FROM tokens
		WHERE id = $1
	`
	rec, err := s.scanRecord(s.querier(ctx).QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("token %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load token %s: %w", id, sentinel.ErrUnavailable)
	}
	return decodeToken(rec)
}

func (s *PostgresStore) ListByShipment(ctx context.Context, shipmentID domain.ShipmentID) ([]*token.Token, error) {
	query := `
		SELECT id, token_type, version, state, root_shipment_id, payload, signature, created_at, updated_at
		FROM tokens
		WHERE root_shipment_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.querier(ctx).QueryContext(ctx, query, shipmentID.String())
	if err != nil {
		return nil, fmt.Errorf("list tokens for shipment %s: %w", shipmentID, sentinel.ErrUnavailable)
	}
	defer rows.Close()

	var tokens []*token.Token
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		t, err := decodeToken(rec)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens for shipment %s: %w", shipmentID, sentinel.ErrUnavailable)
	}
	return tokens, nil
}

func (s *PostgresStore) Exists(ctx context.Context, id domain.TokenID) (bool, error) {
	var exists bool
	err := s.querier(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tokens WHERE id = $1)`, id.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check token %s: %w", id, sentinel.ErrUnavailable)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanRecord(row rowScanner) (TokenRecord, error) {
	var rec TokenRecord
	var idStr string
	if err := row.Scan(&idStr, &rec.TokenType, &rec.Version, &rec.State, &rec.RootShipmentID,
		&rec.Payload, &rec.Signature, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return TokenRecord{}, err
	}
	id, err := domain.ParseTokenID(idStr)
	if err != nil {
		return TokenRecord{}, err
	}
	rec.ID = id
	return rec, nil
}
