package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/kmassidik/payflow/internal/common/logger"
)

// ReplayFunc re-processes a dead letter's original payload against its
// original topic's handler, exactly once. The ledger binary injects it; the
// handlers themselves are idempotent, so repeated replays converge.
type ReplayFunc func(ctx context.Context, topic string, payload []byte) error

type Service struct {
	repo   *Repository
	replay ReplayFunc
	logger *logger.Logger
}

func NewService(repo *Repository, replay ReplayFunc, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		replay: replay,
		logger: log,
	}
}

// Record stores a message that exhausted its retries, preserving how many
// attempts the consumer burned before giving up. The stack captured here
// points at the recording site, which is enough to locate the consumer path
// that gave up.
func (s *Service) Record(ctx context.Context, originalTopic string, payload []byte, attempts int, cause error) error {
	if attempts < 1 {
		attempts = 1
	}

	d := &DeadLetter{
		OriginalTopic:   originalTopic,
		OriginalPayload: json.RawMessage(payload),
		ErrorMessage:    cause.Error(),
		ErrorStack:      string(debug.Stack()),
		AttemptCount:    attempts,
		Status:          StatusPending,
	}

	if err := s.repo.Insert(ctx, d); err != nil {
		return err
	}

	s.logger.Warnf("Dead-lettered message from %s as %s: %v", originalTopic, d.ID, cause)
	return nil
}

// List returns dead letters newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]DeadLetter, error) {
	if status != "" && status != StatusPending && status != StatusProcessed && status != StatusFailed {
		return nil, ErrUnknownStatus
	}
	return s.repo.List(ctx, status, limit, offset)
}

// Get retrieves one dead letter by id.
func (s *Service) Get(ctx context.Context, id string) (*DeadLetter, error) {
	return s.repo.Get(ctx, id)
}

// Replay re-runs a dead letter through its original handler. An already
// PROCESSED letter reports success without re-running anything; a failed
// attempt records the new error and leaves the letter replayable again.
func (s *Service) Replay(ctx context.Context, id string) error {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if d.Status == StatusProcessed {
		s.logger.Infof("Dead letter %s already processed, skipping replay", id)
		return nil
	}

	if err := s.replay(ctx, d.OriginalTopic, d.OriginalPayload); err != nil {
		replayErr := fmt.Errorf("replay failed: %w", err)
		if markErr := s.repo.MarkFailed(ctx, id, replayErr.Error()); markErr != nil {
			s.logger.Errorf("Failed to record replay failure for %s: %v", id, markErr)
		}
		return replayErr
	}

	if err := s.repo.MarkProcessed(ctx, id); err != nil {
		return err
	}

	s.logger.Infof("Dead letter %s replayed successfully", id)
	return nil
}
