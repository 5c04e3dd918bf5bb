package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/kmassidik/payflow/internal/common/db"
	"github.com/kmassidik/payflow/internal/common/logger"
)

// Postgres error code for unique constraint violations.
const pqUniqueViolation = "23505"

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

// CreateWalletTx inserts a wallet with zero balance. A second wallet for the
// same user violates the user_id unique constraint and maps to
// ErrDuplicateUser.
func (r *Repository) CreateWalletTx(ctx context.Context, tx *sql.Tx, w *Wallet) error {
	query := `
		INSERT INTO wallets (user_id, balance)
		VALUES ($1, 0)
		RETURNING id, balance, created_at, updated_at
	`

	err := tx.QueryRowContext(ctx, query, w.UserID).Scan(&w.ID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetWallet retrieves a wallet by id.
func (r *Repository) GetWallet(ctx context.Context, id string) (*Wallet, error) {
	return scanWallet(r.db.QueryRowContext(ctx, walletSelect+` WHERE id = $1`, id))
}

// GetWalletTx retrieves a wallet inside a transaction, observing its
// uncommitted writes.
func (r *Repository) GetWalletTx(ctx context.Context, tx *sql.Tx, id string) (*Wallet, error) {
	return scanWallet(tx.QueryRowContext(ctx, walletSelect+` WHERE id = $1`, id))
}

const walletSelect = `
	SELECT id, user_id, balance, created_at, updated_at
	FROM wallets`

func scanWallet(row *sql.Row) (*Wallet, error) {
	w := &Wallet{}
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// GetEntryTx looks up the ledger entry keyed by (walletId, transactionId).
// Returns (nil, nil) when absent; this is the idempotency probe.
func (r *Repository) GetEntryTx(ctx context.Context, tx *sql.Tx, walletID, transactionID string) (*LedgerEntry, error) {
	query := `
		SELECT id, wallet_id, transaction_id, entry_type, amount, created_at
		FROM wallet_ledger_entries
		WHERE wallet_id = $1 AND transaction_id = $2
	`

	e := &LedgerEntry{}
	err := tx.QueryRowContext(ctx, query, walletID, transactionID).Scan(
		&e.ID, &e.WalletID, &e.TransactionID, &e.EntryType, &e.Amount, &e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return e, nil
}

// DebitTx decrements the balance iff it stays non-negative. The predicate is
// evaluated under the row lock the UPDATE takes, so concurrent debits against
// one wallet linearize. Returns whether a row was updated.
func (r *Repository) DebitTx(ctx context.Context, tx *sql.Tx, walletID string, amount int64) (bool, error) {
	query := `
		UPDATE wallets
		SET balance = balance - $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND balance >= $1
	`

	result, err := tx.ExecContext(ctx, query, amount, walletID)
	if err != nil {
		return false, fmt.Errorf("failed to debit wallet %s: %w", walletID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// CreditTx increments the balance. Returns whether a row was updated (false
// means the wallet does not exist).
func (r *Repository) CreditTx(ctx context.Context, tx *sql.Tx, walletID string, amount int64) (bool, error) {
	query := `
		UPDATE wallets
		SET balance = balance + $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	result, err := tx.ExecContext(ctx, query, amount, walletID)
	if err != nil {
		return false, fmt.Errorf("failed to credit wallet %s: %w", walletID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// InsertEntryTx appends a ledger entry. A unique violation means a concurrent
// apply won the race for this (walletId, transactionId); the caller rolls
// back and treats the operation as a duplicate.
func (r *Repository) InsertEntryTx(ctx context.Context, tx *sql.Tx, e *LedgerEntry) error {
	query := `
		INSERT INTO wallet_ledger_entries (wallet_id, transaction_id, entry_type, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := tx.QueryRowContext(ctx, query, e.WalletID, e.TransactionID, e.EntryType, e.Amount).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return errDuplicateEntry
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	return nil
}

// GetEntry returns the entry for (walletId, transactionId) outside a
// transaction, or ErrWalletNotFound-style nil when absent.
func (r *Repository) GetEntry(ctx context.Context, walletID, transactionID string) (*LedgerEntry, error) {
	query := `
		SELECT id, wallet_id, transaction_id, entry_type, amount, created_at
		FROM wallet_ledger_entries
		WHERE wallet_id = $1 AND transaction_id = $2
	`

	e := &LedgerEntry{}
	err := r.db.QueryRowContext(ctx, query, walletID, transactionID).Scan(
		&e.ID, &e.WalletID, &e.TransactionID, &e.EntryType, &e.Amount, &e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return e, nil
}

// ListEntriesByWallet returns a wallet's ledger history, newest first.
func (r *Repository) ListEntriesByWallet(ctx context.Context, walletID string, limit, offset int) ([]LedgerEntry, error) {
	query := `
		SELECT id, wallet_id, transaction_id, entry_type, amount, created_at
		FROM wallet_ledger_entries
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListEntriesByTransaction returns every entry recorded for a transaction id.
func (r *Repository) ListEntriesByTransaction(ctx context.Context, transactionID string) ([]LedgerEntry, error) {
	query := `
		SELECT id, wallet_id, transaction_id, entry_type, amount, created_at
		FROM wallet_ledger_entries
		WHERE transaction_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]LedgerEntry, error) {
	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.TransactionID, &e.EntryType, &e.Amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
