package outbox

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kmassidik/payflow/internal/common/config"
	"github.com/kmassidik/payflow/internal/common/db"
	"github.com/kmassidik/payflow/internal/common/logger"
	"github.com/kmassidik/payflow/pkg/events"
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
		DBName:          "payflow_outbox_test",
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
	CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(255) NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		published_at TIMESTAMP WITH TIME ZONE
	);

	TRUNCATE outbox CASCADE;
	`

	if _, err := database.Exec(schema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return NewRepository(database.DB, log), database
}

func cleanupTestDB(_ *testing.T, database *db.DB) {
	if database == nil {
		return
	}
	database.Exec("TRUNCATE outbox CASCADE")
	database.Close()
}

func saveTestEvent(t *testing.T, repo *Repository, database *db.DB, aggregateID string) *Event {
	t.Helper()
	ctx := context.Background()

	event, err := NewEvent("transfer", aggregateID, events.TopicTransferInitiated, events.TransferInitiated{
		TransferID: aggregateID,
		Amount:     100,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Failed to build event: %v", err)
	}

	err = database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return repo.SaveEvent(ctx, tx, event)
	})
	if err != nil {
		t.Fatalf("Failed to save event: %v", err)
	}

	return event
}

func TestNewEventRejectsUnknownType(t *testing.T) {
	_, err := NewEvent("transfer", uuid.NewString(), "transfer.bogus", nil)
	if err == nil {
		t.Error("Expected error for unknown event type")
	}
}

func TestSaveEventSetsIDAndTimestamp(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	event := saveTestEvent(t, repo, database, uuid.NewString())

	if event.ID == "" {
		t.Error("Expected event ID to be set")
	}
	if event.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}
	if event.PublishedAt != nil {
		t.Error("Expected published_at to start NULL")
	}
}

func TestLockUnpublishedReturnsInsertionOrder(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()
	first := saveTestEvent(t, repo, database, uuid.NewString())
	second := saveTestEvent(t, repo, database, uuid.NewString())

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	pending, err := repo.LockUnpublishedTx(ctx, tx, 10)
	if err != nil {
		t.Fatalf("Failed to lock unpublished: %v", err)
	}

	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending events, got %d", len(pending))
	}
	if pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Error("Expected events in insertion order")
	}
}

func TestMarkPublishedRemovesFromPending(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()
	event := saveTestEvent(t, repo, database, uuid.NewString())

	err := database.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return repo.MarkPublishedTx(ctx, tx, []string{event.ID})
	})
	if err != nil {
		t.Fatalf("Failed to mark published: %v", err)
	}

	count, err := repo.UnpublishedCount(ctx)
	if err != nil {
		t.Fatalf("Failed to count unpublished: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 unpublished events, got %d", count)
	}
}

func TestSkipLockedHidesRowsFromConcurrentPublisher(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()
	saveTestEvent(t, repo, database, uuid.NewString())

	tx1, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to begin tx1: %v", err)
	}
	defer tx1.Rollback()

	locked, err := repo.LockUnpublishedTx(ctx, tx1, 10)
	if err != nil || len(locked) != 1 {
		t.Fatalf("Expected tx1 to lock 1 event, got %d (err=%v)", len(locked), err)
	}

	// A second replica must skip the locked row instead of blocking.
	tx2, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Failed to begin tx2: %v", err)
	}
	defer tx2.Rollback()

	skipped, err := repo.LockUnpublishedTx(ctx, tx2, 10)
	if err != nil {
		t.Fatalf("tx2 lock failed: %v", err)
	}
	if len(skipped) != 0 {
		t.Errorf("Expected tx2 to see 0 events, got %d", len(skipped))
	}
}

func TestGetEventsByAggregate(t *testing.T) {
	repo, database := setupTestDB(t)
	if repo == nil {
		return
	}
	defer cleanupTestDB(t, database)

	ctx := context.Background()
	aggregateID := uuid.NewString()
	saveTestEvent(t, repo, database, aggregateID)
	saveTestEvent(t, repo, database, uuid.NewString())

	list, err := repo.GetEventsByAggregate(ctx, aggregateID)
	if err != nil {
		t.Fatalf("Failed to get events: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected 1 event for aggregate, got %d", len(list))
	}
}
