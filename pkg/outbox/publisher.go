package outbox

import (
	"context"
	"time"

	"github.com/kmassidik/payflow/internal/common/logger"
	"github.com/kmassidik/payflow/pkg/events"
)

// EventPublisher is the broker-facing side of the publisher loop.
// kafka.Producer satisfies it; tests substitute an in-memory broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event interface{}) error
}

// Publisher drains unpublished outbox records to the broker on a fixed tick.
// Selection uses FOR UPDATE SKIP LOCKED, so multiple replicas cooperate
// without blocking or double-publishing within one commit window.
type Publisher struct {
	repo      *Repository
	producer  EventPublisher
	logger    *logger.Logger
	interval  time.Duration
	batchSize int
}

func NewPublisher(repo *Repository, producer EventPublisher, log *logger.Logger, interval time.Duration, batchSize int) *Publisher {
	return &Publisher{
		repo:      repo,
		producer:  producer,
		logger:    log,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start runs the publisher loop until the context is cancelled.
func (p *Publisher) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Infof("Outbox publisher started (interval=%s batch=%d)", p.interval, p.batchSize)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox publisher stopped")
			return
		case <-ticker.C:
			if n, err := p.Tick(ctx); err != nil {
				p.logger.Errorf("Outbox tick failed: %v", err)
			} else if n > 0 {
				p.logger.Debugf("Published %d outbox events", n)
			}
		}
	}
}

// Tick publishes one batch. Records whose emission fails keep a NULL
// published_at and are retried on the next tick; successes are stamped in a
// single bulk update before commit.
func (p *Publisher) Tick(ctx context.Context) (int, error) {
	tx, err := p.repo.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	pending, err := p.repo.LockUnpublishedTx(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, tx.Commit()
	}

	published := make([]string, 0, len(pending))
	for _, ev := range pending {
		topic, err := events.TopicFor(ev.EventType)
		if err != nil {
			// Should be unreachable: SaveEvent validates the type.
			p.logger.Errorf("Outbox record %s has unknown event type %q", ev.ID, ev.EventType)
			continue
		}

		if err := p.producer.PublishEvent(ctx, topic, ev.AggregateID, ev.Payload); err != nil {
			p.logger.Warnf("Failed to publish outbox event %s to %s: %v", ev.ID, topic, err)
			// Stop at the first failure for this aggregate's batch to
			// preserve per-aggregate ordering on the wire.
			break
		}
		published = append(published, ev.ID)
	}

	if err := p.repo.MarkPublishedTx(ctx, tx, published); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return len(published), nil
}
