package transfer

import (
	"context"
	"database/sql"
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

// CreateTransferTx inserts the saga record within the caller's transaction so
// the row and its transfer.initiated outbox record commit together.
func (r *Repository) CreateTransferTx(ctx context.Context, tx *sql.Tx, t *Transfer) error {
	query := `
		INSERT INTO transfers (id, sender_wallet_id, receiver_wallet_id, amount, status, timeout_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowContext(
		ctx,
		query,
		t.ID,
		t.SenderWalletID,
		t.ReceiverWalletID,
		t.Amount,
		t.Status,
		t.TimeoutAt,
	).Scan(&t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	return nil
}

// GetTransfer retrieves a transfer by id.
func (r *Repository) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	query := `
		SELECT id, sender_wallet_id, receiver_wallet_id, amount, status,
		       failure_reason, timeout_at, created_at, updated_at
		FROM transfers
		WHERE id = $1
	`

	t := &Transfer{}
	var failureReason sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.SenderWalletID,
		&t.ReceiverWalletID,
		&t.Amount,
		&t.Status,
		&failureReason,
		&t.TimeoutAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}

	if failureReason.Valid {
		t.FailureReason = &failureReason.String
	}

	return t, nil
}

// TransitionTx performs the conditional state transition
// `status = to WHERE id = $1 AND status = from`. The returned bool reports
// whether this caller won the transition; losers (duplicate deliveries,
// concurrent timeout ticks) see false with no error and must treat the event
// as a no-op.
func (r *Repository) TransitionTx(ctx context.Context, tx *sql.Tx, id, from, to string, reason *string) (bool, error) {
	query := `
		UPDATE transfers
		SET status = $1, failure_reason = COALESCE($2, failure_reason), updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND status = $4
	`

	result, err := tx.ExecContext(ctx, query, to, reason, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition transfer %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// FindExpired returns non-terminal transfers past their deadline, oldest
// deadline first, bounded by limit. Used by the timeout recoverer.
func (r *Repository) FindExpired(ctx context.Context, limit int) ([]Transfer, error) {
	query := `
		SELECT id, sender_wallet_id, receiver_wallet_id, amount, status,
		       failure_reason, timeout_at, created_at, updated_at
		FROM transfers
		WHERE status IN ($1, $2) AND timeout_at < CURRENT_TIMESTAMP
		ORDER BY timeout_at ASC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, StatusPending, StatusDebited, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired transfers: %w", err)
	}
	defer rows.Close()

	var expired []Transfer
	for rows.Next() {
		var t Transfer
		var failureReason sql.NullString
		err := rows.Scan(
			&t.ID,
			&t.SenderWalletID,
			&t.ReceiverWalletID,
			&t.Amount,
			&t.Status,
			&failureReason,
			&t.TimeoutAt,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		if failureReason.Valid {
			t.FailureReason = &failureReason.String
		}
		expired = append(expired, t)
	}

	return expired, rows.Err()
}
