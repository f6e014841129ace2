package extraction

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicyRetriesSameProviderFirst(t *testing.T) {
	p := Policy{MaxRetries: 3, BackoffBase: time.Second, BackoffFactor: 2}

	d, next, delay := p.Next(Attempt{Provider: 0, Retry: 0}, true, 2)
	assert.Equal(t, DecideRetry, d)
	assert.Equal(t, Attempt{Provider: 0, Retry: 1}, next)
	assert.Equal(t, time.Second, delay)

	d, next, delay = p.Next(next, true, 2)
	assert.Equal(t, DecideRetry, d)
	assert.Equal(t, Attempt{Provider: 0, Retry: 2}, next)
	assert.Equal(t, 2*time.Second, delay)

	d, next, delay = p.Next(next, true, 2)
	assert.Equal(t, DecideRetry, d)
	assert.Equal(t, Attempt{Provider: 0, Retry: 3}, next)
	assert.Equal(t, 4*time.Second, delay)
}

func TestPolicyFallsBackAfterRetriesSpent(t *testing.T) {
	p := Policy{MaxRetries: 1, BackoffBase: time.Second, BackoffFactor: 2}

	d, next, _ := p.Next(Attempt{Provider: 0, Retry: 1}, true, 2)
	assert.Equal(t, DecideNextProvider, d)
	// retry counter resets on the fresh provider
	assert.Equal(t, Attempt{Provider: 1, Retry: 0}, next)
}

func TestPolicyNonRetryableSkipsStraightToNextProvider(t *testing.T) {
	p := Policy{MaxRetries: 3, BackoffBase: time.Second, BackoffFactor: 2}

	d, next, _ := p.Next(Attempt{Provider: 0, Retry: 0}, false, 2)
	assert.Equal(t, DecideNextProvider, d)
	assert.Equal(t, Attempt{Provider: 1, Retry: 0}, next)
}

func TestPolicyExhaustedOnLastProvider(t *testing.T) {
	p := Policy{MaxRetries: 1, BackoffBase: time.Second, BackoffFactor: 2}

	d, _, _ := p.Next(Attempt{Provider: 1, Retry: 1}, true, 2)
	assert.Equal(t, DecideExhausted, d)

	d, _, _ = p.Next(Attempt{Provider: 1, Retry: 0}, false, 2)
	assert.Equal(t, DecideExhausted, d)
}

func TestPolicyJitterStaysWithinBounds(t *testing.T) {
	p := Policy{
		MaxRetries:     5,
		BackoffBase:    time.Second,
		BackoffFactor:  2,
		JitterFraction: 0.2,
		Rand:           rand.New(rand.NewSource(42)),
	}
	for retry := 0; retry < 4; retry++ {
		base := time.Duration(float64(time.Second) * pow2(retry))
		for i := 0; i < 50; i++ {
			d := p.delay(retry)
			assert.GreaterOrEqual(t, d, time.Duration(float64(base)*0.8))
			assert.LessOrEqual(t, d, time.Duration(float64(base)*1.2))
		}
	}
}

func pow2(n int) float64 {
	f := 1.0
	for i := 0; i < n; i++ {
		f *= 2
	}
	return f
}
