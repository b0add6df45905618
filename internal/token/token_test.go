package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainsense/pkg/domain"
)

func mustCreate(t *testing.T, typ domain.TokenType, metadata map[string]any, relations map[string]domain.TokenID, resolver RelationResolver) *Token {
	t.Helper()
	tok, err := newFactory(resolver).Create(context.Background(), typ, "SHIP-1", metadata, relations)
	require.NoError(t, err)
	return tok
}

func TestTransition_ShipmentWalksFullLifecycle(t *testing.T) {
	tok := mustCreate(t, domain.TokenTypeShipment, shipmentMetadata(), nil, newStubResolver())
	at := creationTime

	for _, next := range []State{StateDispatched, StateInTransit, StateArrived, StateDelivered, StateSettled} {
		at = at.Add(time.Hour)
		require.NoError(t, tok.Transition(next, at))
		assert.Equal(t, next, tok.State)
		assert.Equal(t, at, tok.UpdatedAt)
	}
}

func TestTransition_SkippingAStateFails(t *testing.T) {
	tok := mustCreate(t, domain.TokenTypeShipment, shipmentMetadata(), nil, newStubResolver())

	err := tok.Transition(StateInTransit, creationTime)

	var terr *InvalidStateTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StateCreated, terr.From)
	assert.Equal(t, StateInTransit, terr.To)
	assert.Equal(t, StateCreated, tok.State, "failed transition leaves state untouched")
}

func TestTransition_BackwardsFails(t *testing.T) {
	tok := mustCreate(t, domain.TokenTypeShipment, shipmentMetadata(), nil, newStubResolver())
	require.NoError(t, tok.Transition(StateDispatched, creationTime))

	err := tok.Transition(StateCreated, creationTime)

	var terr *InvalidStateTransitionError
	require.ErrorAs(t, err, &terr)
}

func TestTransition_TerminalStateHasNoMoves(t *testing.T) {
	tok := mustCreate(t, domain.TokenTypePayment, map[string]any{
		"payment_reference": "PAY-1",
		"currency":          "USD",
		"amount":            100.0,
	}, map[string]domain.TokenID{RoleInvoice: knownInvoiceID()}, newStubResolver(knownInvoiceID()))

	require.NoError(t, tok.Transition(StateComplete, creationTime))
	err := tok.Transition(StateComplete, creationTime)

	var terr *InvalidStateTransitionError
	require.ErrorAs(t, err, &terr)
}

func TestTransition_AccessorialProofChain(t *testing.T) {
	resolver := newStubResolver(knownInvoiceID())
	tok := mustCreate(t, domain.TokenTypeAccessorial, map[string]any{
		"accessorial_type": "DETENTION",
		"amount":           150.0,
		"timestamp":        "2024-06-01T12:00:00Z",
		"currency":         "USD",
	}, map[string]domain.TokenID{RoleMilestone: knownInvoiceID()}, resolver)

	require.NoError(t, tok.Transition(StateProofAttached, creationTime))
	require.NoError(t, tok.Transition(StateVerified, creationTime))

	err := tok.Transition(StateVerified, creationTime)
	var terr *InvalidStateTransitionError
	require.ErrorAs(t, err, &terr)
}

var invoiceID = domain.NewTokenID()

func knownInvoiceID() domain.TokenID { return invoiceID }
