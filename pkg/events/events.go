// Package events defines the closed set of saga events exchanged between the
// coordinator and the ledger. Both services marshal these exact shapes; the
// event type string doubles as the broker topic name.
package events

import (
	"fmt"
	"time"
)

// Broker topics. The set is closed: an outbox record with any other event
// type is rejected at write time.
const (
	TopicTransferInitiated  = "transfer.initiated"
	TopicTransferCompleted  = "transfer.completed"
	TopicTransferFailed     = "transfer.failed"
	TopicWalletDebited      = "wallet.debited"
	TopicWalletDebitFailed  = "wallet.debit-failed"
	TopicWalletCredited     = "wallet.credited"
	TopicWalletCreditFailed = "wallet.credit-failed"
	TopicWalletRefunded     = "wallet.refunded"
)

var topics = map[string]struct{}{
	TopicTransferInitiated:  {},
	TopicTransferCompleted:  {},
	TopicTransferFailed:     {},
	TopicWalletDebited:      {},
	TopicWalletDebitFailed:  {},
	TopicWalletCredited:     {},
	TopicWalletCreditFailed: {},
	TopicWalletRefunded:     {},
}

// TopicFor maps an outbox event type to its broker topic. Event types are
// topic names, so this is an identity map that rejects unknown values.
func TopicFor(eventType string) (string, error) {
	if _, ok := topics[eventType]; !ok {
		return "", fmt.Errorf("unknown event type %q", eventType)
	}
	return eventType, nil
}

// CoordinatorTopics are the topics the coordinator consumes.
func CoordinatorTopics() []string {
	return []string{
		TopicWalletDebited,
		TopicWalletDebitFailed,
		TopicWalletCredited,
		TopicWalletCreditFailed,
		TopicWalletRefunded,
	}
}

// LedgerTopics are the topics the ledger consumes.
func LedgerTopics() []string {
	return []string{
		TopicTransferInitiated,
		TopicWalletDebited,
		TopicWalletCreditFailed,
	}
}

// TransferInitiated starts the saga; the ledger reacts by debiting the sender.
type TransferInitiated struct {
	TransferID       string    `json:"transferId"`
	SenderWalletID   string    `json:"senderWalletId"`
	ReceiverWalletID string    `json:"receiverWalletId"`
	Amount           int64     `json:"amount"`
	Timestamp        time.Time `json:"timestamp"`
}

// WalletDebited reports a successful sender debit. It carries the receiver
// and amount so the ledger can credit without another lookup.
type WalletDebited struct {
	TransferID       string    `json:"transferId"`
	SenderWalletID   string    `json:"senderWalletId"`
	ReceiverWalletID string    `json:"receiverWalletId"`
	Amount           int64     `json:"amount"`
	Timestamp        time.Time `json:"timestamp"`
}

// WalletDebitFailed reports a debit that could not be applied. No ledger state
// changed, so the saga fails with no compensation.
type WalletDebitFailed struct {
	TransferID string    `json:"transferId"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// WalletCredited reports a successful receiver credit.
type WalletCredited struct {
	TransferID       string    `json:"transferId"`
	ReceiverWalletID string    `json:"receiverWalletId"`
	Amount           int64     `json:"amount"`
	Timestamp        time.Time `json:"timestamp"`
}

// WalletCreditFailed reports a credit failure after a successful debit. It
// carries everything the refund path needs; the timeout recoverer emits a
// synthetic one with reason "saga timeout".
type WalletCreditFailed struct {
	TransferID     string    `json:"transferId"`
	SenderWalletID string    `json:"senderWalletId"`
	Amount         int64     `json:"amount"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// WalletRefunded reports a completed compensation. The coordinator observes it
// for audit only.
type WalletRefunded struct {
	TransferID          string    `json:"transferId"`
	SenderWalletID      string    `json:"senderWalletId"`
	RefundTransactionID string    `json:"refundTransactionId"`
	Amount              int64     `json:"amount"`
	Timestamp           time.Time `json:"timestamp"`
}

// TransferCompleted is the saga's happy terminal event.
type TransferCompleted struct {
	TransferID string    `json:"transferId"`
	Timestamp  time.Time `json:"timestamp"`
}

// TransferFailed is the saga's failure terminal event.
type TransferFailed struct {
	TransferID string    `json:"transferId"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}
