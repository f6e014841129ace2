package analysis

import (
	"context"
	"errors"

	"github.com/complianceops/riskextract/internal/domain/documents"
)

// Error kinds surfaced in ErrorDetail.Kind. Callers render retry/support
// messaging off these strings, so they are part of the API contract.
const (
	KindUnsupportedFormat     = "UnsupportedFormat"
	KindCorruptDocument       = "CorruptDocument"
	KindExtractionUnavailable = "ExtractionUnavailable"
	KindMalformedAIResponse   = "MalformedAIResponse"
	KindJobTimeout            = "JobTimeout"
	KindCancelled             = "cancelled"
	KindInternal              = "Internal"
)

var (
	// ErrJobNotComplete is a caller error: result requested before the job
	// reached succeeded.
	ErrJobNotComplete = errors.New("job not complete")

	// ErrJobNotFound when the job id is unknown for the tenant.
	ErrJobNotFound = errors.New("job not found")

	// ErrExtractionUnavailable: all providers exhausted for a segment.
	ErrExtractionUnavailable = errors.New("extraction unavailable")

	// ErrMalformedAIResponse: provider replied but the payload does not parse
	// into candidates. Single-segment failure, not immediately fatal.
	ErrMalformedAIResponse = errors.New("malformed ai response")
)

// KindOf maps a pipeline error to its taxonomy kind for ErrorDetail.
func KindOf(err error) string {
	switch {
	case errors.Is(err, documents.ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, documents.ErrCorruptDocument):
		return KindCorruptDocument
	case errors.Is(err, ErrExtractionUnavailable):
		return KindExtractionUnavailable
	case errors.Is(err, ErrMalformedAIResponse):
		return KindMalformedAIResponse
	case errors.Is(err, context.DeadlineExceeded):
		return KindJobTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindInternal
	}
}
