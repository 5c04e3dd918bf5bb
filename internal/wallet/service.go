package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kmassidik/payflow/internal/common/db"
	"github.com/kmassidik/payflow/internal/common/logger"
	"github.com/kmassidik/payflow/internal/common/redis"
	"github.com/kmassidik/payflow/pkg/outbox"
)

const aggregateType = "wallet"

const balanceCacheTTL = 10 * time.Minute

// ApplyRequest describes one idempotent ledger mutation. OutboxEvent, when
// set, is written in the same transaction as the balance change and the
// entry; on a duplicate it is NOT written, because the original apply already
// emitted it.
type ApplyRequest struct {
	WalletID      string
	TransactionID string
	Amount        int64
	EntryType     string
	OutboxEvent   *outbox.Event
}

// ApplyResult carries the entry, the wallet after the mutation, and whether
// the request was a duplicate short-circuit.
type ApplyResult struct {
	Entry     *LedgerEntry
	Wallet    *Wallet
	Duplicate bool
}

// Service is the ledger engine. All balance mutations funnel through Apply,
// which enforces the non-negative balance invariant and the (walletId,
// transactionId) at-most-once effect in one local database transaction.
type Service struct {
	repo       *Repository
	outboxRepo *outbox.Repository
	redis      *redis.Client
	db         *db.DB
	logger     *logger.Logger
}

// NewService builds the ledger engine. redisClient may be nil; caching then
// degrades to plain database reads.
func NewService(
	repo *Repository,
	outboxRepo *outbox.Repository,
	redisClient *redis.Client,
	database *db.DB,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		outboxRepo: outboxRepo,
		redis:      redisClient,
		db:         database,
		logger:     log,
	}
}

// CreateWallet creates a zero-balance wallet for a user. One wallet per user.
func (s *Service) CreateWallet(ctx context.Context, req *CreateWalletRequest) (*Wallet, error) {
	if err := ValidateCreateWalletRequest(req); err != nil {
		return nil, err
	}

	w := &Wallet{UserID: req.UserID}
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.repo.CreateWalletTx(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Wallet created: %s for user %s", w.ID, w.UserID)
	return w, nil
}

// GetWallet retrieves a wallet, serving the balance from cache when fresh.
func (s *Service) GetWallet(ctx context.Context, walletID string) (*Wallet, error) {
	if err := ValidateWalletID(walletID); err != nil {
		return nil, err
	}

	w, err := s.repo.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if cached, ok, cacheErr := s.redis.GetCachedWalletBalance(ctx, walletID); cacheErr == nil && ok {
			w.Balance = cached
			return w, nil
		} else if cacheErr != nil {
			s.logger.Warnf("Balance cache read failed for %s: %v", walletID, cacheErr)
		}

		if err := s.redis.CacheWalletBalance(ctx, walletID, w.Balance, balanceCacheTTL); err != nil {
			s.logger.Warnf("Failed to cache balance for %s: %v", walletID, err)
		}
	}

	return w, nil
}

// GetWalletEntries returns the ledger history for a wallet.
func (s *Service) GetWalletEntries(ctx context.Context, walletID string, limit, offset int) ([]LedgerEntry, error) {
	if err := ValidateWalletID(walletID); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}

	return s.repo.ListEntriesByWallet(ctx, walletID, limit, offset)
}

// Apply performs one idempotent ledger mutation:
//
//  1. If an entry for (walletId, transactionId) exists, return it with
//     Duplicate=true and write nothing, including the outbox event.
//  2. Atomically update the balance; a DEBIT requires balance >= amount.
//  3. Distinguish a missing wallet from an insufficient balance.
//  4. Append the ledger entry.
//  5. Write the outbox event, if any.
//
// All inside a single transaction; any failure rolls the whole step back.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("apply amount must be positive, got %d", req.Amount)
	}
	if req.EntryType != EntryTypeDebit && req.EntryType != EntryTypeCredit && req.EntryType != EntryTypeRefund {
		return nil, fmt.Errorf("unknown ledger entry type %q", req.EntryType)
	}

	result := &ApplyResult{}

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		existing, err := s.repo.GetEntryTx(ctx, tx, req.WalletID, req.TransactionID)
		if err != nil {
			return err
		}
		if existing != nil {
			w, err := s.repo.GetWalletTx(ctx, tx, req.WalletID)
			if err != nil {
				return err
			}
			result.Entry = existing
			result.Wallet = w
			result.Duplicate = true
			return nil
		}

		var updated bool
		if req.EntryType == EntryTypeDebit {
			updated, err = s.repo.DebitTx(ctx, tx, req.WalletID, req.Amount)
		} else {
			updated, err = s.repo.CreditTx(ctx, tx, req.WalletID, req.Amount)
		}
		if err != nil {
			return err
		}

		if !updated {
			w, err := s.repo.GetWalletTx(ctx, tx, req.WalletID)
			if errors.Is(err, ErrWalletNotFound) {
				return ErrWalletNotFound
			}
			if err != nil {
				return err
			}
			return &InsufficientBalanceError{
				WalletID: req.WalletID,
				Current:  w.Balance,
				Required: req.Amount,
			}
		}

		entry := &LedgerEntry{
			WalletID:      req.WalletID,
			TransactionID: req.TransactionID,
			EntryType:     req.EntryType,
			Amount:        req.Amount,
		}
		if err := s.repo.InsertEntryTx(ctx, tx, entry); err != nil {
			return err
		}

		w, err := s.repo.GetWalletTx(ctx, tx, req.WalletID)
		if err != nil {
			return err
		}

		if req.OutboxEvent != nil {
			if err := s.outboxRepo.SaveEvent(ctx, tx, req.OutboxEvent); err != nil {
				return err
			}
		}

		result.Entry = entry
		result.Wallet = w
		return nil
	})

	if errors.Is(err, errDuplicateEntry) {
		// Lost the insert race to a concurrent apply for the same key.
		// The winner's commit is the effect; report a duplicate.
		return s.duplicateResult(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	if !result.Duplicate && s.redis != nil {
		s.redis.InvalidateWalletBalance(ctx, req.WalletID)
	}

	if result.Duplicate {
		s.logger.Debugf("Duplicate %s apply for wallet %s txn %s", req.EntryType, req.WalletID, req.TransactionID)
	} else {
		s.logger.Infof("%s applied: wallet %s txn %s amount %d (balance=%d)",
			req.EntryType, req.WalletID, req.TransactionID, req.Amount, result.Wallet.Balance)
	}

	return result, nil
}

func (s *Service) duplicateResult(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	entry, err := s.repo.GetEntry(ctx, req.WalletID, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("ledger entry for wallet %s txn %s vanished after duplicate race", req.WalletID, req.TransactionID)
	}

	w, err := s.repo.GetWallet(ctx, req.WalletID)
	if err != nil {
		return nil, err
	}

	return &ApplyResult{Entry: entry, Wallet: w, Duplicate: true}, nil
}

// EmitEvent writes an outbox-only record in its own transaction. Used for
// *Failed events, which have no accompanying ledger mutation.
func (s *Service) EmitEvent(ctx context.Context, event *outbox.Event) error {
	return s.db.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.outboxRepo.SaveEvent(ctx, tx, event)
	})
}
