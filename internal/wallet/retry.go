package wallet

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy drives the in-process retry loop for refund processing.
// Business errors abort immediately; transient errors back off
// exponentially until the attempt budget runs out.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Multiplier     float64
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy matches the configured refund retry defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		Multiplier:     2,
		MaxBackoff:     2 * time.Second,
	}
}

// Run executes op until it succeeds, returns a business error, or exhausts
// MaxAttempts. The returned error is the last attempt's error.
func (p RetryPolicy) Run(ctx context.Context, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxBackoff
	b.RandomizationFactor = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	wrapped := func() error {
		err := op(ctx)
		if err != nil && IsBusinessError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
}
