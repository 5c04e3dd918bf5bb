package wallet

import (
	"errors"
	"fmt"
)

var (
	// ErrWalletNotFound is returned when a wallet id does not exist. On the
	// event path it becomes the step's *Failed event, never a retry.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrDuplicateUser is returned when the user already has a wallet.
	ErrDuplicateUser = errors.New("user already has a wallet")

	// errDuplicateEntry signals a lost race on the (wallet_id,
	// transaction_id) unique constraint; the service converts it into a
	// duplicate short-circuit.
	errDuplicateEntry = errors.New("duplicate ledger entry")
)

// InsufficientBalanceError reports a debit rejected by the balance >= amount
// predicate. It is a business error: the saga fails deterministically and
// nothing retries it.
type InsufficientBalanceError struct {
	WalletID string
	Current  int64
	Required int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance in wallet %s: have %d, need %d", e.WalletID, e.Current, e.Required)
}

// IsBusinessError reports whether err is a deterministic domain failure as
// opposed to a transient store error. Business errors flow into *Failed
// events (or straight to the DLQ on the refund path); transient errors are
// retried by backoff or the consumer's in-place delivery retry.
func IsBusinessError(err error) bool {
	var insufficient *InsufficientBalanceError
	return errors.Is(err, ErrWalletNotFound) || errors.As(err, &insufficient)
}

// ValidationError marks request errors that surface as HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(msg string) error {
	return &ValidationError{Message: msg}
}
