// Package outbox implements the transactional outbox pattern: domain writes
// and their event-emission intent commit in one local database transaction,
// and a polling publisher ships pending records to the broker afterwards.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kmassidik/payflow/internal/common/logger"
	"github.com/kmassidik/payflow/pkg/events"
)

// Event is one row of the outbox table. PublishedAt is NULL until the
// publisher has delivered the record to the broker; it is set exactly once.
type Event struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	PublishedAt   *time.Time      `json:"published_at"`
}

// NewEvent builds an outbox event, validating the event type against the
// closed topic set and marshalling the payload. AggregateID becomes the broker
// message key, so saga events must pass the transfer id here.
func NewEvent(aggregateType, aggregateID, eventType string, payload interface{}) (*Event, error) {
	if _, err := events.TopicFor(eventType); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}

type Repository struct {
	db     *sql.DB
	logger *logger.Logger
}

func NewRepository(database *sql.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     database,
		logger: log,
	}
}

// SaveEvent inserts an outbox record inside the caller's transaction. This is
// the only write path: producers never talk to the broker directly.
func (r *Repository) SaveEvent(ctx context.Context, tx *sql.Tx, event *Event) error {
	if _, err := events.TopicFor(event.EventType); err != nil {
		return err
	}

	query := `
		INSERT INTO outbox (aggregate_type, aggregate_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := tx.QueryRowContext(
		ctx,
		query,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		[]byte(event.Payload),
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}

// LockUnpublishedTx selects up to limit unpublished records in insertion
// order, skipping rows locked by concurrent publisher replicas.
func (r *Repository) LockUnpublishedTx(ctx context.Context, tx *sql.Tx, limit int) ([]Event, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select unpublished events: %w", err)
	}
	defer rows.Close()

	var pending []Event
	for rows.Next() {
		var ev Event
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		ev.Payload = json.RawMessage(payload)
		pending = append(pending, ev)
	}

	return pending, rows.Err()
}

// MarkPublishedTx stamps published_at for the given ids in one bulk update.
func (r *Repository) MarkPublishedTx(ctx context.Context, tx *sql.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE outbox
		SET published_at = CURRENT_TIMESTAMP
		WHERE id = ANY($1) AND published_at IS NULL
	`

	if _, err := tx.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark events published: %w", err)
	}

	return nil
}

// GetEventsByAggregate returns all outbox records for one aggregate in
// insertion order. Used by admin inspection and tests.
func (r *Repository) GetEventsByAggregate(ctx context.Context, aggregateID string) ([]Event, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at, published_at
		FROM outbox
		WHERE aggregate_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events by aggregate: %w", err)
	}
	defer rows.Close()

	var list []Event
	for rows.Next() {
		var ev Event
		var payload []byte
		var publishedAt sql.NullTime
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType, &payload, &ev.CreatedAt, &publishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		ev.Payload = json.RawMessage(payload)
		if publishedAt.Valid {
			t := publishedAt.Time
			ev.PublishedAt = &t
		}
		list = append(list, ev)
	}

	return list, rows.Err()
}

// UnpublishedCount returns the number of records not yet delivered.
func (r *Repository) UnpublishedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unpublished events: %w", err)
	}
	return count, nil
}
