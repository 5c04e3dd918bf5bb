package wallet

import (
	"github.com/google/uuid"
)

// refundNamespace is the fixed UUID namespace for refund transaction ids.
// It must never change: deduplication of retries, redeliveries, DLQ replays
// and timeout-driven compensation all depend on the derivation below being
// stable.
var refundNamespace = uuid.MustParse("8f14e7b3-2c51-4f6a-9d0e-5b7a1c3d9e42")

// RefundTransactionID derives the deterministic transaction id used for the
// compensating REFUND entry of a transfer. It differs from the transfer id
// (the original debit's transaction id), so a refund never collides with the
// debit under the (walletId, transactionId) uniqueness constraint, while any
// number of refund attempts for the same transfer collide with each other.
func RefundTransactionID(transferID string) string {
	return uuid.NewSHA1(refundNamespace, []byte("refund:"+transferID)).String()
}
