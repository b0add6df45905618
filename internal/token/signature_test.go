package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainsense/pkg/domain"
)

func TestSignAndVerify(t *testing.T) {
	signer := NewSigner([]byte("test-secret"))
	tok := mustCreate(t, domain.TokenTypeShipment, shipmentMetadata(), nil, newStubResolver())

	sig := signer.Sign(tok)
	require.NotEmpty(t, sig)
	assert.Equal(t, sig, tok.Signature)
	assert.True(t, signer.Verify(tok))
}

func TestVerify_FailsAfterTamper(t *testing.T) {
	signer := NewSigner([]byte("test-secret"))
	tok := mustCreate(t, domain.TokenTypeShipment, shipmentMetadata(), nil, newStubResolver())
	signer.Sign(tok)

	tok.ParentShipmentID = "SHIP-FORGED"
	assert.False(t, signer.Verify(tok))
}

func TestVerify_FailsAfterStateChangeUntilResigned(t *testing.T) {
	signer := NewSigner([]byte("test-secret"))
	tok := mustCreate(t, domain.TokenTypeShipment, shipmentMetadata(), nil, newStubResolver())
	signer.Sign(tok)

	require.NoError(t, tok.Transition(StateDispatched, creationTime))
	assert.False(t, signer.Verify(tok), "stale signature no longer covers the state")

	signer.Sign(tok)
	assert.True(t, signer.Verify(tok))
}

func TestVerify_UnsignedTokenNeverVerifies(t *testing.T) {
	signer := NewSigner([]byte("test-secret"))
	tok := mustCreate(t, domain.TokenTypeShipment, shipmentMetadata(), nil, newStubResolver())
	assert.False(t, signer.Verify(tok))
}

func TestVerify_WrongSecretFails(t *testing.T) {
	tok := mustCreate(t, domain.TokenTypeShipment, shipmentMetadata(), nil, newStubResolver())
	NewSigner([]byte("secret-a")).Sign(tok)
	assert.False(t, NewSigner([]byte("secret-b")).Verify(tok))
}
