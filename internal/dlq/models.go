package dlq

import (
	"encoding/json"
	"time"
)

const (
	StatusPending   = "PENDING"
	StatusProcessed = "PROCESSED"
	StatusFailed    = "FAILED"
)

// DeadLetter is a message whose processing exhausted its retry budget. It
// keeps the original payload byte-for-byte so an operator can replay it once
// the underlying fault is fixed.
type DeadLetter struct {
	ID              string          `json:"id"`
	OriginalTopic   string          `json:"originalTopic"`
	OriginalPayload json.RawMessage `json:"originalPayload"`
	ErrorMessage    string          `json:"errorMessage"`
	ErrorStack      string          `json:"errorStack,omitempty"`
	AttemptCount    int             `json:"attemptCount"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	ProcessedAt     *time.Time      `json:"processedAt,omitempty"`
}

// ReplayResponse is the admin replay endpoint's body.
type ReplayResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
