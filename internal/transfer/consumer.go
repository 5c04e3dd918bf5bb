package transfer

import (
	"context"
	"fmt"

	"github.com/kmassidik/payflow/internal/common/kafka"
	"github.com/kmassidik/payflow/internal/common/logger"
	"github.com/kmassidik/payflow/pkg/events"
)

// Consumer applies wallet events to the saga state machine. Handlers are
// idempotent: a lost conditional transition is logged and acknowledged, never
// retried, because the broker delivers at-least-once.
type Consumer struct {
	service *Service
	logger  *logger.Logger
}

func NewConsumer(service *Service, log *logger.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  log,
	}
}

// HandlerFor dispatches a topic to its handler. Unknown topics are a wiring
// bug and return an error so they surface loudly.
func (c *Consumer) HandlerFor(topic string) kafka.MessageHandler {
	switch topic {
	case events.TopicWalletDebited:
		return c.HandleWalletDebited
	case events.TopicWalletDebitFailed:
		return c.HandleWalletDebitFailed
	case events.TopicWalletCredited:
		return c.HandleWalletCredited
	case events.TopicWalletCreditFailed:
		return c.HandleWalletCreditFailed
	case events.TopicWalletRefunded:
		return c.HandleWalletRefunded
	default:
		return func(ctx context.Context, key, value []byte) error {
			return fmt.Errorf("no coordinator handler for topic %q", topic)
		}
	}
}

func (c *Consumer) HandleWalletDebited(ctx context.Context, key, value []byte) error {
	var event events.WalletDebited
	if err := kafka.UnmarshalEvent(value, &event); err != nil {
		c.logger.Errorf("Malformed wallet.debited payload (key=%s): %v", string(key), err)
		return nil // poison payload, nothing to retry
	}

	_, err := c.service.MarkDebited(ctx, event.TransferID)
	return err
}

func (c *Consumer) HandleWalletDebitFailed(ctx context.Context, key, value []byte) error {
	var event events.WalletDebitFailed
	if err := kafka.UnmarshalEvent(value, &event); err != nil {
		c.logger.Errorf("Malformed wallet.debit-failed payload (key=%s): %v", string(key), err)
		return nil
	}

	_, err := c.service.FailFromDebit(ctx, event.TransferID, event.Reason)
	return err
}

func (c *Consumer) HandleWalletCredited(ctx context.Context, key, value []byte) error {
	var event events.WalletCredited
	if err := kafka.UnmarshalEvent(value, &event); err != nil {
		c.logger.Errorf("Malformed wallet.credited payload (key=%s): %v", string(key), err)
		return nil
	}

	_, err := c.service.Complete(ctx, event.TransferID)
	return err
}

func (c *Consumer) HandleWalletCreditFailed(ctx context.Context, key, value []byte) error {
	var event events.WalletCreditFailed
	if err := kafka.UnmarshalEvent(value, &event); err != nil {
		c.logger.Errorf("Malformed wallet.credit-failed payload (key=%s): %v", string(key), err)
		return nil
	}

	_, err := c.service.FailFromCredit(ctx, event.TransferID, event.Reason)
	return err
}

// HandleWalletRefunded records the compensation for audit; the saga is already
// FAILED by the time the refund lands.
func (c *Consumer) HandleWalletRefunded(ctx context.Context, key, value []byte) error {
	var event events.WalletRefunded
	if err := kafka.UnmarshalEvent(value, &event); err != nil {
		c.logger.Errorf("Malformed wallet.refunded payload (key=%s): %v", string(key), err)
		return nil
	}

	c.logger.Infof("Refund observed for transfer %s: wallet %s restored %d", event.TransferID, event.SenderWalletID, event.Amount)
	return nil
}
