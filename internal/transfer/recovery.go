package transfer

import (
	"context"
	"time"

	"github.com/kmassidik/payflow/internal/common/logger"
)

const recoveryBatchSize = 100

// Recoverer periodically fails sagas stuck past their timeout_at deadline.
// It is the safety net for lost events: a PENDING transfer whose debit never
// arrived fails outright; a DEBITED one additionally requests compensation
// through a synthetic wallet.credit-failed event.
//
// The recoverer races the real event handlers by design. Both sides go
// through the same conditional transition, so exactly one wins and the loser
// is a no-op.
type Recoverer struct {
	service  *Service
	repo     *Repository
	logger   *logger.Logger
	interval time.Duration
}

func NewRecoverer(service *Service, repo *Repository, log *logger.Logger, interval time.Duration) *Recoverer {
	return &Recoverer{
		service:  service,
		repo:     repo,
		logger:   log,
		interval: interval,
	}
}

// Start runs the scanner loop until the context is cancelled. Missed ticks
// are harmless: RunOnce is idempotent.
func (rc *Recoverer) Start(ctx context.Context) {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	rc.logger.Infof("Timeout recoverer started (interval=%s)", rc.interval)

	for {
		select {
		case <-ctx.Done():
			rc.logger.Info("Timeout recoverer stopped")
			return
		case <-ticker.C:
			if n, err := rc.RunOnce(ctx); err != nil {
				rc.logger.Errorf("Timeout recovery failed: %v", err)
			} else if n > 0 {
				rc.logger.Warnf("Recovered %d stuck transfers", n)
			}
		}
	}
}

// RunOnce processes one batch of expired transfers and returns how many
// transitions it won.
func (rc *Recoverer) RunOnce(ctx context.Context) (int, error) {
	expired, err := rc.repo.FindExpired(ctx, recoveryBatchSize)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, t := range expired {
		var won bool
		var err error

		switch t.Status {
		case StatusPending:
			won, err = rc.service.RecoverPending(ctx, t)
		case StatusDebited:
			won, err = rc.service.RecoverDebited(ctx, t)
		default:
			continue
		}

		if err != nil {
			// Keep scanning; this transfer stays expired and the next
			// tick retries it.
			rc.logger.Errorf("Failed to recover transfer %s: %v", t.ID, err)
			continue
		}
		if won {
			recovered++
		}
	}

	return recovered, nil
}
