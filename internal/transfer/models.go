package transfer

import (
	"time"
)

// Transfer is the saga record. It is the single authoritative source for a
// transfer's lifecycle; wallet-side effects live in the ledger service and are
// correlated only by the transfer id.
type Transfer struct {
	ID               string    `json:"transferId"`
	SenderWalletID   string    `json:"senderWalletId"`
	ReceiverWalletID string    `json:"receiverWalletId"`
	Amount           int64     `json:"amount"` // integer minor units
	Status           string    `json:"status"`
	FailureReason    *string   `json:"failureReason,omitempty"`
	TimeoutAt        time.Time `json:"timeoutAt"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Saga states. COMPLETED and FAILED are absorbing: no transition leaves them.
const (
	StatusPending   = "PENDING"
	StatusDebited   = "DEBITED"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// CreateTransferRequest is the POST /transfers body.
type CreateTransferRequest struct {
	SenderWalletID   string `json:"senderWalletId"`
	ReceiverWalletID string `json:"receiverWalletId"`
	Amount           int64  `json:"amount"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
