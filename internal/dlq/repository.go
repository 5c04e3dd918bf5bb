package dlq

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kmassidik/payflow/internal/common/db"
	"github.com/kmassidik/payflow/internal/common/logger"
)

type Repository struct {
	db     *db.DB
	logger *logger.Logger
}

func NewRepository(database *db.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     database,
		logger: log,
	}
}

// Insert stores a new dead letter in PENDING state.
func (r *Repository) Insert(ctx context.Context, d *DeadLetter) error {
	query := `
		INSERT INTO dead_letter_queue (original_topic, original_payload, error_message, error_stack, attempt_count, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		d.OriginalTopic,
		[]byte(d.OriginalPayload),
		d.ErrorMessage,
		d.ErrorStack,
		d.AttemptCount,
		d.Status,
	).Scan(&d.ID, &d.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}

	return nil
}

const deadLetterSelect = `
	SELECT id, original_topic, original_payload, error_message, error_stack, attempt_count, status, created_at, processed_at
	FROM dead_letter_queue`

// Get retrieves one dead letter by id.
func (r *Repository) Get(ctx context.Context, id string) (*DeadLetter, error) {
	return scanDeadLetter(r.db.QueryRowContext(ctx, deadLetterSelect+` WHERE id = $1`, id))
}

// List returns dead letters newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status string, limit, offset int) ([]DeadLetter, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if status != "" {
		rows, err = r.db.QueryContext(ctx,
			deadLetterSelect+` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			status, limit, offset)
	} else {
		rows, err = r.db.QueryContext(ctx,
			deadLetterSelect+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []DeadLetter
	for rows.Next() {
		d, err := scanDeadLetterRow(rows)
		if err != nil {
			return nil, err
		}
		letters = append(letters, *d)
	}

	return letters, rows.Err()
}

// MarkProcessed stamps a dead letter as successfully replayed.
func (r *Repository) MarkProcessed(ctx context.Context, id string) error {
	query := `
		UPDATE dead_letter_queue
		SET status = $1, processed_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, StatusProcessed, id)
	if err != nil {
		return fmt.Errorf("failed to mark dead letter processed: %w", err)
	}
	return requireOneRow(result, id)
}

// MarkFailed records a failed replay attempt, bumping the attempt counter.
func (r *Repository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE dead_letter_queue
		SET status = $1, error_message = $2, attempt_count = attempt_count + 1
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, StatusFailed, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to mark dead letter failed: %w", err)
	}
	return requireOneRow(result, id)
}

func requireOneRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDeadLetterNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeadLetter(row *sql.Row) (*DeadLetter, error) {
	d, err := scanDeadLetterRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrDeadLetterNotFound
	}
	return d, err
}

func scanDeadLetterRow(row rowScanner) (*DeadLetter, error) {
	d := &DeadLetter{}
	var payload []byte
	var stack sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(&d.ID, &d.OriginalTopic, &payload, &d.ErrorMessage, &stack, &d.AttemptCount, &d.Status, &d.CreatedAt, &processedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan dead letter: %w", err)
	}

	d.OriginalPayload = json.RawMessage(payload)
	if stack.Valid {
		d.ErrorStack = stack.String
	}
	if processedAt.Valid {
		t := processedAt.Time
		d.ProcessedAt = &t
	}

	return d, nil
}
