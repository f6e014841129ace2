package ai

import (
	"context"
	"errors"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrUnavailable indicates a provider-side failure (HTTP 5xx, connection refused).
var ErrUnavailable = errors.New("ai provider unavailable")

// Retryable reports whether the error is worth retrying on the same provider:
// rate limits, server errors, and per-call timeouts.
func Retryable(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
