package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/kmassidik/payflow/internal/common/config"
	"github.com/kmassidik/payflow/internal/common/logger"
)

func testConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:            "localhost",
		Port:            "5432",
		User:            "postgres",
		Password:        "postgres",
		DBName:          "payflow_common_test",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func connectTestDB(t *testing.T) *DB {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	log := logger.New("test")
	database, err := Connect(testConfig(), log)
	if err != nil {
		t.Skipf("Cannot connect to database: %v", err)
		return nil
	}
	return database
}

func TestConnectAndHealth(t *testing.T) {
	database := connectTestDB(t)
	if database == nil {
		return
	}
	defer database.Close()

	if err := database.Health(context.Background()); err != nil {
		t.Errorf("Health check failed: %v", err)
	}
}

func TestWithTransactionCommits(t *testing.T) {
	database := connectTestDB(t)
	if database == nil {
		return
	}
	defer database.Close()

	ctx := context.Background()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS tx_probe (id SERIAL PRIMARY KEY, note TEXT); TRUNCATE tx_probe`); err != nil {
		t.Fatalf("Failed to create probe table: %v", err)
	}

	err := database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO tx_probe (note) VALUES ('committed')`)
		return err
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	var count int
	database.QueryRow(`SELECT COUNT(*) FROM tx_probe`).Scan(&count)
	if count != 1 {
		t.Errorf("Expected 1 committed row, got %d", count)
	}
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	database := connectTestDB(t)
	if database == nil {
		return
	}
	defer database.Close()

	ctx := context.Background()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS tx_probe (id SERIAL PRIMARY KEY, note TEXT); TRUNCATE tx_probe`); err != nil {
		t.Fatalf("Failed to create probe table: %v", err)
	}

	boom := errors.New("boom")
	err := database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tx_probe (note) VALUES ('doomed')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected original error returned, got %v", err)
	}

	var count int
	database.QueryRow(`SELECT COUNT(*) FROM tx_probe`).Scan(&count)
	if count != 0 {
		t.Errorf("Expected rollback to discard the row, got %d rows", count)
	}
}
