package transfer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kmassidik/payflow/internal/common/config"
	"github.com/kmassidik/payflow/internal/common/db"
	"github.com/kmassidik/payflow/internal/common/logger"
	"github.com/kmassidik/payflow/pkg/events"
	"github.com/kmassidik/payflow/pkg/outbox"
)

const aggregateType = "transfer"

// Timeout failure reasons. The recoverer writes these verbatim.
const (
	reasonDebitTimeout  = "saga timeout: debit not processed"
	reasonCreditTimeout = "saga timeout: credit not processed"
	reasonSagaTimeout   = "saga timeout"
)

// Service owns the transfer state machine. Every transition and the outbox
// record it produces commit in one local database transaction; duplicate or
// stale events lose the conditional update and become no-ops.
type Service struct {
	repo        *Repository
	outboxRepo  *outbox.Repository
	db          *db.DB
	logger      *logger.Logger
	sagaTimeout time.Duration
}

func NewService(
	repo *Repository,
	outboxRepo *outbox.Repository,
	database *db.DB,
	log *logger.Logger,
	saga config.SagaConfig,
) *Service {
	return &Service{
		repo:        repo,
		outboxRepo:  outboxRepo,
		db:          database,
		logger:      log,
		sagaTimeout: saga.Timeout,
	}
}

// Initiate creates a PENDING transfer and its transfer.initiated outbox
// record. No network I/O happens in the request path; the ledger reacts once
// the publisher ships the event.
func (s *Service) Initiate(ctx context.Context, req *CreateTransferRequest) (*Transfer, error) {
	if err := ValidateCreateTransferRequest(req); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate transfer id: %w", err)
	}

	now := time.Now().UTC()
	t := &Transfer{
		ID:               id.String(),
		SenderWalletID:   req.SenderWalletID,
		ReceiverWalletID: req.ReceiverWalletID,
		Amount:           req.Amount,
		Status:           StatusPending,
		TimeoutAt:        now.Add(s.sagaTimeout),
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.repo.CreateTransferTx(ctx, tx, t); err != nil {
			return err
		}

		event, err := outbox.NewEvent(aggregateType, t.ID, events.TopicTransferInitiated, events.TransferInitiated{
			TransferID:       t.ID,
			SenderWalletID:   t.SenderWalletID,
			ReceiverWalletID: t.ReceiverWalletID,
			Amount:           t.Amount,
			Timestamp:        now,
		})
		if err != nil {
			return err
		}

		return s.outboxRepo.SaveEvent(ctx, tx, event)
	})

	if err != nil {
		return nil, err
	}

	s.logger.Infof("Transfer initiated: %s (%s -> %s, amount=%d)", t.ID, t.SenderWalletID, t.ReceiverWalletID, t.Amount)
	return t, nil
}

// GetTransfer returns the current saga record.
func (s *Service) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	if err := ValidateTransferID(id); err != nil {
		return nil, err
	}
	return s.repo.GetTransfer(ctx, id)
}

// MarkDebited applies wallet.debited: PENDING -> DEBITED, no outbox event.
func (s *Service) MarkDebited(ctx context.Context, transferID string) (bool, error) {
	var won bool
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		won, err = s.repo.TransitionTx(ctx, tx, transferID, StatusPending, StatusDebited, nil)
		return err
	})
	if err != nil {
		return false, err
	}
	if !won {
		s.logger.Debugf("Ignored wallet.debited for transfer %s (not PENDING)", transferID)
	}
	return won, nil
}

// FailFromDebit applies wallet.debit-failed: PENDING -> FAILED plus a
// transfer.failed outbox record. No ledger state changed, so no compensation.
func (s *Service) FailFromDebit(ctx context.Context, transferID, reason string) (bool, error) {
	return s.fail(ctx, transferID, StatusPending, reason)
}

// Complete applies wallet.credited: DEBITED -> COMPLETED plus
// transfer.completed.
func (s *Service) Complete(ctx context.Context, transferID string) (bool, error) {
	var won bool
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		won, err = s.repo.TransitionTx(ctx, tx, transferID, StatusDebited, StatusCompleted, nil)
		if err != nil || !won {
			return err
		}

		event, err := outbox.NewEvent(aggregateType, transferID, events.TopicTransferCompleted, events.TransferCompleted{
			TransferID: transferID,
			Timestamp:  time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return s.outboxRepo.SaveEvent(ctx, tx, event)
	})
	if err != nil {
		return false, err
	}
	if won {
		s.logger.Infof("Transfer completed: %s", transferID)
	}
	return won, nil
}

// FailFromCredit applies wallet.credit-failed: DEBITED -> FAILED plus
// transfer.failed. The refund itself is driven by the ledger.
func (s *Service) FailFromCredit(ctx context.Context, transferID, reason string) (bool, error) {
	return s.fail(ctx, transferID, StatusDebited, reason)
}

func (s *Service) fail(ctx context.Context, transferID, fromStatus, reason string) (bool, error) {
	var won bool
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		won, err = s.repo.TransitionTx(ctx, tx, transferID, fromStatus, StatusFailed, &reason)
		if err != nil || !won {
			return err
		}

		event, err := outbox.NewEvent(aggregateType, transferID, events.TopicTransferFailed, events.TransferFailed{
			TransferID: transferID,
			Reason:     reason,
			Timestamp:  time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return s.outboxRepo.SaveEvent(ctx, tx, event)
	})
	if err != nil {
		return false, err
	}
	if won {
		s.logger.Warnf("Transfer failed: %s (%s)", transferID, reason)
	}
	return won, nil
}

// RecoverPending fails a PENDING transfer that passed its deadline.
func (s *Service) RecoverPending(ctx context.Context, t Transfer) (bool, error) {
	return s.fail(ctx, t.ID, StatusPending, reasonDebitTimeout)
}

// RecoverDebited fails a DEBITED transfer that passed its deadline and emits a
// synthetic wallet.credit-failed so the ledger runs its normal refund path.
// The refund's deterministic transaction id makes this safe even if a real
// credit-failed event is still in flight.
func (s *Service) RecoverDebited(ctx context.Context, t Transfer) (bool, error) {
	var won bool
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		reason := reasonCreditTimeout
		var err error
		won, err = s.repo.TransitionTx(ctx, tx, t.ID, StatusDebited, StatusFailed, &reason)
		if err != nil || !won {
			return err
		}

		now := time.Now().UTC()

		failedEvent, err := outbox.NewEvent(aggregateType, t.ID, events.TopicTransferFailed, events.TransferFailed{
			TransferID: t.ID,
			Reason:     reason,
			Timestamp:  now,
		})
		if err != nil {
			return err
		}
		if err := s.outboxRepo.SaveEvent(ctx, tx, failedEvent); err != nil {
			return err
		}

		creditFailedEvent, err := outbox.NewEvent(aggregateType, t.ID, events.TopicWalletCreditFailed, events.WalletCreditFailed{
			TransferID:     t.ID,
			SenderWalletID: t.SenderWalletID,
			Amount:         t.Amount,
			Reason:         reasonSagaTimeout,
			Timestamp:      now,
		})
		if err != nil {
			return err
		}
		return s.outboxRepo.SaveEvent(ctx, tx, creditFailedEvent)
	})
	if err != nil {
		return false, err
	}
	if won {
		s.logger.Warnf("Transfer %s timed out after debit; compensation requested", t.ID)
	}
	return won, nil
}
