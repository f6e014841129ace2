package extraction

import (
	"math"
	"math/rand"
	"time"
)

// Policy holds the retry/fallback constants for provider calls.
type Policy struct {
	MaxRetries     int           // retries per provider after the first attempt
	BackoffBase    time.Duration // delay before retry 1
	BackoffFactor  float64       // multiplier per retry
	JitterFraction float64       // +/- fraction applied to each delay

	// Rand powers jitter; nil uses the global source. Tests inject a seeded
	// source or set JitterFraction to zero.
	Rand *rand.Rand
}

// DefaultPolicy mirrors the service configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		BackoffBase:    time.Second,
		BackoffFactor:  2,
		JitterFraction: 0.2,
	}
}

// Attempt identifies one try in the retry/fallback machine.
type Attempt struct {
	Provider int // index into the configured provider list
	Retry    int // 0 = first attempt on this provider
}

// Decision is the machine's verdict after a failed attempt.
type Decision int

const (
	// DecideRetry: try the same provider again after the returned delay.
	DecideRetry Decision = iota
	// DecideNextProvider: move to the next configured provider.
	DecideNextProvider
	// DecideExhausted: no providers left; the segment fails.
	DecideExhausted
)

// Next advances the machine after a failure. Retryable failures burn retries
// on the current provider first; non-retryable ones skip straight to the next
// provider. When the last provider is spent the machine reports Exhausted.
func (p Policy) Next(a Attempt, retryable bool, providerCount int) (Decision, Attempt, time.Duration) {
	if retryable && a.Retry < p.MaxRetries {
		next := Attempt{Provider: a.Provider, Retry: a.Retry + 1}
		return DecideRetry, next, p.delay(a.Retry)
	}
	if a.Provider+1 < providerCount {
		return DecideNextProvider, Attempt{Provider: a.Provider + 1}, 0
	}
	return DecideExhausted, a, 0
}

// delay computes backoff for the given retry ordinal (0-based) with jitter.
func (p Policy) delay(retry int) time.Duration {
	base := float64(p.BackoffBase) * math.Pow(p.BackoffFactor, float64(retry))
	if p.JitterFraction > 0 {
		f := rand.Float64
		if p.Rand != nil {
			f = p.Rand.Float64
		}
		base *= 1 + p.JitterFraction*(2*f()-1)
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}
