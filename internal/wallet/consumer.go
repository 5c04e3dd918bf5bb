package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kmassidik/payflow/internal/common/kafka"
	"github.com/kmassidik/payflow/internal/common/logger"
	"github.com/kmassidik/payflow/pkg/events"
	"github.com/kmassidik/payflow/pkg/outbox"
)

// DeadLetterSink records a message that exhausted its retry budget, along
// with how many attempts were burned. The ledger binary wires this to the
// dead letter store.
type DeadLetterSink interface {
	Record(ctx context.Context, originalTopic string, payload []byte, attempts int, cause error) error
}

// Consumer handles the ledger side of the saga: it debits on
// transfer.initiated, credits on wallet.debited, and refunds on
// wallet.credit-failed. Every handler is idempotent, so broker redelivery is
// harmless.
type Consumer struct {
	service     *Service
	deadLetters DeadLetterSink
	retry       RetryPolicy
	logger      *logger.Logger
}

func NewConsumer(service *Service, deadLetters DeadLetterSink, retry RetryPolicy, log *logger.Logger) *Consumer {
	return &Consumer{
		service:     service,
		deadLetters: deadLetters,
		retry:       retry,
		logger:      log,
	}
}

// HandlerFor returns the message handler for one of the ledger's subscribed
// topics.
func (c *Consumer) HandlerFor(topic string) kafka.MessageHandler {
	switch topic {
	case events.TopicTransferInitiated:
		return c.HandleTransferInitiated
	case events.TopicWalletDebited:
		return c.HandleWalletDebited
	case events.TopicWalletCreditFailed:
		return c.HandleWalletCreditFailed
	default:
		return func(ctx context.Context, key, value []byte) error {
			c.logger.Warnf("No ledger handler for topic %s, dropping message", topic)
			return nil
		}
	}
}

// HandleTransferInitiated debits the sender wallet. Success emits
// wallet.debited; a business failure emits wallet.debit-failed; a transient
// failure is returned so the consumer retries the delivery.
func (c *Consumer) HandleTransferInitiated(ctx context.Context, key, value []byte) error {
	var evt events.TransferInitiated
	if err := kafka.UnmarshalEvent(value, &evt); err != nil {
		c.logger.Errorf("Malformed transfer.initiated payload (key=%s): %v", key, err)
		return nil
	}

	debited, err := outbox.NewEvent(aggregateType, evt.TransferID, events.TopicWalletDebited, events.WalletDebited{
		TransferID:       evt.TransferID,
		SenderWalletID:   evt.SenderWalletID,
		ReceiverWalletID: evt.ReceiverWalletID,
		Amount:           evt.Amount,
		Timestamp:        time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	_, err = c.service.Apply(ctx, ApplyRequest{
		WalletID:      evt.SenderWalletID,
		TransactionID: evt.TransferID,
		Amount:        evt.Amount,
		EntryType:     EntryTypeDebit,
		OutboxEvent:   debited,
	})
	if err == nil {
		return nil
	}
	if !IsBusinessError(err) {
		return err
	}

	c.logger.Warnf("Debit rejected for transfer %s: %v", evt.TransferID, err)
	return c.emitFailure(ctx, evt.TransferID, events.TopicWalletDebitFailed, events.WalletDebitFailed{
		TransferID: evt.TransferID,
		Reason:     failureReason(err, evt.SenderWalletID),
		Timestamp:  time.Now().UTC(),
	})
}

// HandleWalletDebited credits the receiver wallet. A business failure emits
// wallet.credit-failed, carrying the sender and amount the refund will need.
func (c *Consumer) HandleWalletDebited(ctx context.Context, key, value []byte) error {
	var evt events.WalletDebited
	if err := kafka.UnmarshalEvent(value, &evt); err != nil {
		c.logger.Errorf("Malformed wallet.debited payload (key=%s): %v", key, err)
		return nil
	}

	credited, err := outbox.NewEvent(aggregateType, evt.TransferID, events.TopicWalletCredited, events.WalletCredited{
		TransferID:       evt.TransferID,
		ReceiverWalletID: evt.ReceiverWalletID,
		Amount:           evt.Amount,
		Timestamp:        time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	_, err = c.service.Apply(ctx, ApplyRequest{
		WalletID:      evt.ReceiverWalletID,
		TransactionID: evt.TransferID,
		Amount:        evt.Amount,
		EntryType:     EntryTypeCredit,
		OutboxEvent:   credited,
	})
	if err == nil {
		return nil
	}
	if !IsBusinessError(err) {
		return err
	}

	c.logger.Warnf("Credit rejected for transfer %s: %v", evt.TransferID, err)
	return c.emitFailure(ctx, evt.TransferID, events.TopicWalletCreditFailed, events.WalletCreditFailed{
		TransferID:     evt.TransferID,
		SenderWalletID: evt.SenderWalletID,
		Amount:         evt.Amount,
		Reason:         failureReason(err, evt.ReceiverWalletID),
		Timestamp:      time.Now().UTC(),
	})
}

// HandleWalletCreditFailed refunds the sender, retrying transient failures
// in-process. A refund that still cannot land goes to the dead letter store
// and the message is acknowledged so the partition keeps moving.
func (c *Consumer) HandleWalletCreditFailed(ctx context.Context, key, value []byte) error {
	var evt events.WalletCreditFailed
	if err := kafka.UnmarshalEvent(value, &evt); err != nil {
		c.logger.Errorf("Malformed wallet.credit-failed payload (key=%s): %v", key, err)
		return nil
	}

	err := c.retry.Run(ctx, func(ctx context.Context) error {
		return c.ProcessRefund(ctx, &evt)
	})
	if err == nil {
		return nil
	}

	c.logger.Errorf("Refund for transfer %s exhausted retries: %v", evt.TransferID, err)
	if dlqErr := c.deadLetters.Record(ctx, events.TopicWalletCreditFailed, value, c.retry.MaxAttempts, err); dlqErr != nil {
		// Keep the message unacked; losing the refund is worse than
		// another delivery attempt.
		return fmt.Errorf("failed to dead-letter refund for transfer %s: %w", evt.TransferID, dlqErr)
	}

	return nil
}

// ProcessRefund applies the compensating REFUND entry for a failed credit.
// The transaction id is derived deterministically from the transfer id, so
// retries, redeliveries and replays all converge on one ledger entry.
func (c *Consumer) ProcessRefund(ctx context.Context, evt *events.WalletCreditFailed) error {
	refundID := RefundTransactionID(evt.TransferID)

	refunded, err := outbox.NewEvent(aggregateType, evt.TransferID, events.TopicWalletRefunded, events.WalletRefunded{
		TransferID:          evt.TransferID,
		SenderWalletID:      evt.SenderWalletID,
		RefundTransactionID: refundID,
		Amount:              evt.Amount,
		Timestamp:           time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	res, err := c.service.Apply(ctx, ApplyRequest{
		WalletID:      evt.SenderWalletID,
		TransactionID: refundID,
		Amount:        evt.Amount,
		EntryType:     EntryTypeRefund,
		OutboxEvent:   refunded,
	})
	if err != nil {
		return err
	}

	if res.Duplicate {
		c.logger.Debugf("Refund for transfer %s already applied", evt.TransferID)
	} else {
		c.logger.Infof("Refunded %d to wallet %s for transfer %s", evt.Amount, evt.SenderWalletID, evt.TransferID)
	}

	return nil
}

// Replay re-runs a dead-lettered message exactly once, without the retry
// loop. It backs the admin replay endpoint.
func (c *Consumer) Replay(ctx context.Context, topic string, payload []byte) error {
	switch topic {
	case events.TopicWalletCreditFailed:
		var evt events.WalletCreditFailed
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("malformed dead letter payload: %w", err)
		}
		return c.ProcessRefund(ctx, &evt)
	default:
		return fmt.Errorf("no replay handler for topic %s", topic)
	}
}

// emitFailure writes a *Failed event to the outbox in its own transaction.
func (c *Consumer) emitFailure(ctx context.Context, transferID, eventType string, payload interface{}) error {
	ev, err := outbox.NewEvent(aggregateType, transferID, eventType, payload)
	if err != nil {
		return err
	}
	return c.service.EmitEvent(ctx, ev)
}

// failureReason renders the event-facing reason for a business failure.
func failureReason(err error, walletID string) string {
	var insufficient *InsufficientBalanceError
	if errors.As(err, &insufficient) {
		return fmt.Sprintf("Insufficient balance: have %d, need %d", insufficient.Current, insufficient.Required)
	}
	if errors.Is(err, ErrWalletNotFound) {
		return fmt.Sprintf("Wallet not found: %s", walletID)
	}
	return err.Error()
}
