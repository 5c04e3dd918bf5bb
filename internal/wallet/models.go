package wallet

import (
	"time"
)

// Wallet is the ledger-side balance row. The balance is mutated only through
// the ledger engine's Apply, never directly.
type Wallet struct {
	ID        string    `json:"walletId"`
	UserID    string    `json:"userId"`
	Balance   int64     `json:"balance"` // integer minor units, >= 0
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LedgerEntry is one append-only mutation record. The (walletId,
// transactionId) pair is unique and serves as the idempotency key for
// wallet-side effects.
type LedgerEntry struct {
	ID            string    `json:"entryId"`
	WalletID      string    `json:"walletId"`
	TransactionID string    `json:"transactionId"`
	EntryType     string    `json:"type"`
	Amount        int64     `json:"amount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Ledger entry types.
const (
	EntryTypeDebit  = "DEBIT"
	EntryTypeCredit = "CREDIT"
	EntryTypeRefund = "REFUND"
)

// CreateWalletRequest is the POST /wallets body. One wallet per user.
type CreateWalletRequest struct {
	UserID string `json:"userId"`
}

// LedgerEntriesResponse lists a wallet's ledger history.
type LedgerEntriesResponse struct {
	WalletID string        `json:"walletId"`
	Entries  []LedgerEntry `json:"entries"`
	Total    int           `json:"total"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
