package transfer

import "errors"

var (
	// ErrTransferNotFound is returned by lookups for unknown transfer ids.
	ErrTransferNotFound = errors.New("transfer not found")
)

// ValidationError marks request errors that must surface as HTTP 400 and never
// reach the saga core.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(msg string) error {
	return &ValidationError{Message: msg}
}
