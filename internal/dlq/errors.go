package dlq

import "errors"

var (
	// ErrDeadLetterNotFound is returned when a dead letter id does not exist.
	ErrDeadLetterNotFound = errors.New("dead letter not found")

	// ErrUnknownStatus is returned for a status filter outside the closed
	// PENDING/PROCESSED/FAILED set.
	ErrUnknownStatus = errors.New("unknown dead letter status")
)
