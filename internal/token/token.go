// Package token implements the typed token system: a closed set of variants
// with declarative schemas, forward-only lineage, per-type lifecycle graphs
// and HMAC tamper signatures.
package token

import (
	"time"

	"chainsense/pkg/domain"
)

// State is a lifecycle tag. Which states a token can hold, and in what order,
// is fixed per token type.
type State string

const (
	StateCreated       State = "CREATED"
	StateDispatched    State = "DISPATCHED"
	StateInTransit     State = "IN_TRANSIT"
	StateArrived       State = "ARRIVED"
	StateDelivered     State = "DELIVERED"
	StateSettled       State = "SETTLED"
	StateConfirmed     State = "CONFIRMED"
	StateProofAttached State = "PROOF_ATTACHED"
	StateVerified      State = "VERIFIED"
	StateIssued        State = "ISSUED"
	StatePaid          State = "PAID"
	StateAccepted      State = "ACCEPTED"
	StateComplete      State = "COMPLETE"
)

// Token is one instance of a typed variant. Created once by the Factory;
// afterwards only State (via Transition), Signature and UpdatedAt may change.
type Token struct {
	ID               domain.TokenID            `json:"token_id"`
	Type             domain.TokenType          `json:"token_type"`
	Version          int                       `json:"version"`
	State            State                     `json:"state"`
	ParentShipmentID domain.ShipmentID         `json:"parent_shipment_id"`
	Metadata         map[string]any            `json:"metadata"`
	Relations        map[string]domain.TokenID `json:"relations,omitempty"`
	Signature        string                    `json:"signature,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

// Transition moves the token one step along its type's lifecycle graph.
// Out-of-order moves, including skipping a state, fail with
// *InvalidStateTransitionError.
func (t *Token) Transition(to State, at time.Time) error {
	sch, ok := schemaFor(t.Type)
	if !ok {
		return &InvalidStateTransitionError{TokenType: t.Type, From: t.State, To: to}
	}
	if next, allowed := sch.lifecycle[t.State]; !allowed || next != to {
		return &InvalidStateTransitionError{TokenType: t.Type, From: t.State, To: to}
	}
	t.State = to
	t.UpdatedAt = at.UTC()
	return nil
}

// Relation returns the referenced id for a role, or false when absent.
func (t *Token) Relation(role string) (domain.TokenID, bool) {
	id, ok := t.Relations[role]
	return id, ok
}
