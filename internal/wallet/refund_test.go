package wallet

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefundTransactionIDIsDeterministic(t *testing.T) {
	transferID := uuid.NewString()

	first := RefundTransactionID(transferID)
	second := RefundTransactionID(transferID)

	assert.Equal(t, first, second)
}

func TestRefundTransactionIDIsValidUUID(t *testing.T) {
	id := RefundTransactionID(uuid.NewString())
	_, err := uuid.Parse(id)
	require.NoError(t, err)
}

func TestRefundTransactionIDDiffersFromTransferID(t *testing.T) {
	transferID := uuid.NewString()
	assert.NotEqual(t, transferID, RefundTransactionID(transferID))
}

func TestRefundTransactionIDDiffersAcrossTransfers(t *testing.T) {
	a := RefundTransactionID(uuid.NewString())
	b := RefundTransactionID(uuid.NewString())
	assert.NotEqual(t, a, b)
}
