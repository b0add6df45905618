package store

import (
	"encoding/json"
	"fmt"

	"chainsense/internal/token"
	"chainsense/pkg/domain"
)

// payload is the frozen substantive content of a token. State, signature and
// updated_at live outside it because they are the only mutable projection
// columns.
type payload struct {
	TokenType        domain.TokenType          `json:"token_type"`
	Version          int                       `json:"version"`
	ParentShipmentID domain.ShipmentID         `json:"parent_shipment_id"`
	Metadata         map[string]any            `json:"metadata"`
	Relations        map[string]domain.TokenID `json:"relations,omitempty"`
}

func encodePayload(t *token.Token) ([]byte, error) {
	b, err := json.Marshal(payload{
		TokenType:        t.Type,
		Version:          t.Version,
		ParentShipmentID: t.ParentShipmentID,
		Metadata:         t.Metadata,
		Relations:        t.Relations,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal token payload: %w", err)
	}
	return b, nil
}

func decodeToken(rec TokenRecord) (*token.Token, error) {
	var p payload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal token payload %s: %w", rec.ID, err)
	}
	return &token.Token{
		ID:               rec.ID,
		Type:             p.TokenType,
		Version:          p.Version,
		State:            rec.State,
		ParentShipmentID: p.ParentShipmentID,
		Metadata:         p.Metadata,
		Relations:        p.Relations,
		Signature:        rec.Signature,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}, nil
}
