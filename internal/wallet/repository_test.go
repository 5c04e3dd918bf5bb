package wallet

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kmassidik/payflow/internal/common/config"
	"github.com/kmassidik/payflow/internal/common/db"
	"github.com/kmassidik/payflow/internal/common/logger"
)

func setupTestDB(t *testing.T) (*Repository, *db.DB) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	cfg := config.DatabaseConfig{
		Host:            "localhost",
		Port:            "5432",
		User:            "postgres",
		Password:        "postgres",
		DBName:          "payflow_ledger_test",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}

	log := logger.New("test")
	database, err := db.Connect(cfg, log)
	if err != nil {
		t.Skipf("Cannot connect to database: %v", err)
		return nil, nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS wallets (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL UNIQUE,
		balance BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT non_negative_balance CHECK (balance >= 0)
	);

	CREATE TABLE IF NOT EXISTS wallet_ledger_entries (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		wallet_id UUID NOT NULL REFERENCES wallets(id),
		transaction_id UUID NOT NULL,
		entry_type VARCHAR(10) NOT NULL,
		amount BIGINT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT positive_entry_amount CHECK (amount > 0),
		CONSTRAINT unique_wallet_transaction UNIQUE (wallet_id, transaction_id)
	);

	CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(255) NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		published_at TIMESTAMP WITH TIME ZONE
	);

	TRUNCATE wallets, wallet_ledger_entries, outbox CASCADE;
	`

	if _, err := database.Exec(schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return NewRepository(database, log), database
}

func cleanupTestDB(_ *testing.T, database *db.DB) {
	if database == nil {
		return
	}
	database.Exec("TRUNCATE wallets, wallet_ledger_entries, outbox CASCADE")
	database.Close()
}

func createTestWallet(t *testing.T, repo *Repository, database *db.DB, balance int64) *Wallet {
	t.Helper()
	ctx := context.Background()

	w := &Wallet{UserID: uuid.NewString()}
	err := database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := repo.CreateWalletTx(ctx, tx, w); err != nil {
			return err
		}
		if balance > 0 {
			if _, err := repo.CreditTx(ctx, tx, w.ID, balance); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to create test wallet: %v", err)
	}
	w.Balance = balance
	return w
}

func TestCreateWalletDuplicateUser(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()
	userID := uuid.NewString()

	err := database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return repo.CreateWalletTx(ctx, tx, &Wallet{UserID: userID})
	})
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}

	err = database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return repo.CreateWalletTx(ctx, tx, &Wallet{UserID: userID})
	})
	if err != ErrDuplicateUser {
		t.Errorf("Expected ErrDuplicateUser, got %v", err)
	}
}

func TestGetWalletNotFound(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	_, err := repo.GetWallet(context.Background(), uuid.NewString())
	if err != ErrWalletNotFound {
		t.Errorf("Expected ErrWalletNotFound, got %v", err)
	}
}

func TestDebitRespectsBalance(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()
	w := createTestWallet(t, repo, database, 100)

	var updated bool
	database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		updated, err = repo.DebitTx(ctx, tx, w.ID, 60)
		return err
	})
	if !updated {
		t.Fatal("Expected debit within balance to succeed")
	}

	database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		updated, err = repo.DebitTx(ctx, tx, w.ID, 60)
		return err
	})
	if updated {
		t.Error("Expected debit past balance to be rejected")
	}

	found, _ := repo.GetWallet(ctx, w.ID)
	if found.Balance != 40 {
		t.Errorf("Expected balance 40, got %d", found.Balance)
	}
}

func TestDebitMissingWallet(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()
	var updated bool
	database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		updated, err = repo.DebitTx(ctx, tx, uuid.NewString(), 10)
		return err
	})
	if updated {
		t.Error("Expected debit of missing wallet to update no rows")
	}
}

func TestInsertEntryRejectsDuplicateKey(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()
	w := createTestWallet(t, repo, database, 100)
	txnID := uuid.NewString()

	entry := &LedgerEntry{WalletID: w.ID, TransactionID: txnID, EntryType: EntryTypeDebit, Amount: 10}
	err := database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return repo.InsertEntryTx(ctx, tx, entry)
	})
	if err != nil {
		t.Fatalf("Failed to insert entry: %v", err)
	}

	dup := &LedgerEntry{WalletID: w.ID, TransactionID: txnID, EntryType: EntryTypeCredit, Amount: 10}
	err = database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return repo.InsertEntryTx(ctx, tx, dup)
	})
	if err != errDuplicateEntry {
		t.Errorf("Expected errDuplicateEntry, got %v", err)
	}
}

func TestGetEntryAbsentIsNil(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	entry, err := repo.GetEntry(context.Background(), uuid.NewString(), uuid.NewString())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if entry != nil {
		t.Errorf("Expected nil entry, got %+v", entry)
	}
}

func TestListEntriesByWallet(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()
	w := createTestWallet(t, repo, database, 1000)

	for i := 0; i < 3; i++ {
		entry := &LedgerEntry{WalletID: w.ID, TransactionID: uuid.NewString(), EntryType: EntryTypeCredit, Amount: 10}
		database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return repo.InsertEntryTx(ctx, tx, entry)
		})
	}

	entries, err := repo.ListEntriesByWallet(ctx, w.ID, 10, 0)
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(entries))
	}
}
