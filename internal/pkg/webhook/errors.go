package webhook

import "errors"

// Failure classes of the ingestion pipeline. Handlers wrap them with %w so
// callers can branch with errors.Is.
var (
	ErrAuthFailure       = errors.New("webhook authentication failed")
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrEmptyBody         = errors.New("empty body")
	ErrMalformedBody     = errors.New("invalid JSON payload")
	ErrValidationFailure = errors.New("payload validation failed")
	ErrLedgerFailure     = errors.New("failed to record webhook event")
	ErrProjectionFailure = errors.New("projection failed")
)
