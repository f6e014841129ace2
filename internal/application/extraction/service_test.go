package extraction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complianceops/riskextract/internal/domain/ai"
	"github.com/complianceops/riskextract/internal/domain/analysis"
	"github.com/complianceops/riskextract/internal/domain/documents"
	"github.com/complianceops/riskextract/internal/infra/ai/prompt"
)

const validReply = `{"candidates":[{"kind":"risk","title":"Server room flooding","description":"water damage","category":"physical","likelihood_hint":2,"impact_hint":4,"confidence":66}]}`

// scriptedProvider answers from a fixed script, then keeps repeating the last entry.
type scriptedProvider struct {
	name   string
	script []func() (ai.RawResponse, error)

	mu    sync.Mutex
	calls int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Analyze(ctx context.Context, _ ai.Prompt) (ai.RawResponse, error) {
	p.mu.Lock()
	i := p.calls
	p.calls++
	p.mu.Unlock()
	if i >= len(p.script) {
		i = len(p.script) - 1
	}
	return p.script[i]()
}

func (p *scriptedProvider) Cost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn+tokensOut) / 1e6
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func ok() func() (ai.RawResponse, error) {
	return func() (ai.RawResponse, error) {
		return ai.RawResponse{Content: validReply, TokensIn: 120, TokensOut: 40}, nil
	}
}

func fail(err error) func() (ai.RawResponse, error) {
	return func() (ai.RawResponse, error) { return ai.RawResponse{}, err }
}

type recordingSink struct {
	mu     sync.Mutex
	events []ai.UsageEvent
}

func (s *recordingSink) Record(_ context.Context, ev ai.UsageEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func noSleep(c *Client) {
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
}

func seg() *documents.TextSegment {
	return &documents.TextSegment{ID: "seg-1", DocumentID: "doc-1", Ordinal: 1, Content: "the basement floods every spring"}
}

func TestAnalyzeSegmentFirstTrySuccess(t *testing.T) {
	p := &scriptedProvider{name: "openai", script: []func() (ai.RawResponse, error){ok()}}
	sink := &recordingSink{}
	c := New([]ai.Provider{p}, DefaultPolicy(), time.Second, sink)
	noSleep(c)

	raws, provider, err := c.AnalyzeSegment(context.Background(), seg(), prompt.Context{})
	require.NoError(t, err)
	assert.Equal(t, "openai", provider)
	require.Len(t, raws, 1)
	assert.Equal(t, "Server room flooding", raws[0].Title)
	// provenance stamped onto every candidate
	assert.Equal(t, "seg-1", raws[0].SegmentID)
	assert.Equal(t, 1, raws[0].SegmentOrdinal)

	require.Len(t, sink.events, 1)
	assert.Equal(t, "openai", sink.events[0].Provider)
	assert.Equal(t, 120, sink.events[0].TokensIn)
	assert.Equal(t, 40, sink.events[0].TokensOut)
}

func TestAnalyzeSegmentRetriesRetryableThenSucceeds(t *testing.T) {
	p := &scriptedProvider{name: "openai", script: []func() (ai.RawResponse, error){
		fail(ai.ErrUnavailable),
		fail(ai.ErrQuotaExceeded),
		ok(),
	}}
	c := New([]ai.Provider{p}, DefaultPolicy(), time.Second, &recordingSink{})
	noSleep(c)

	_, provider, err := c.AnalyzeSegment(context.Background(), seg(), prompt.Context{})
	require.NoError(t, err)
	assert.Equal(t, "openai", provider)
	assert.Equal(t, 3, p.callCount())
}

func TestAnalyzeSegmentFallsBackToNextProvider(t *testing.T) {
	primary := &scriptedProvider{name: "openai", script: []func() (ai.RawResponse, error){
		fail(errors.New("invalid request")), // non-retryable, skips retries
	}}
	backup := &scriptedProvider{name: "anthropic", script: []func() (ai.RawResponse, error){ok()}}
	c := New([]ai.Provider{primary, backup}, DefaultPolicy(), time.Second, &recordingSink{})
	noSleep(c)

	_, provider, err := c.AnalyzeSegment(context.Background(), seg(), prompt.Context{})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", provider)
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, backup.callCount())
}

func TestAnalyzeSegmentExhaustsAllProviders(t *testing.T) {
	pol := Policy{MaxRetries: 2, BackoffBase: time.Millisecond, BackoffFactor: 2}
	primary := &scriptedProvider{name: "openai", script: []func() (ai.RawResponse, error){fail(ai.ErrUnavailable)}}
	backup := &scriptedProvider{name: "anthropic", script: []func() (ai.RawResponse, error){fail(ai.ErrQuotaExceeded)}}
	sink := &recordingSink{}
	c := New([]ai.Provider{primary, backup}, pol, time.Second, sink)
	noSleep(c)

	_, _, err := c.AnalyzeSegment(context.Background(), seg(), prompt.Context{})
	require.ErrorIs(t, err, analysis.ErrExtractionUnavailable)
	// first attempt plus MaxRetries on each provider
	assert.Equal(t, 3, primary.callCount())
	assert.Equal(t, 3, backup.callCount())
	assert.Empty(t, sink.events)
}

func TestAnalyzeSegmentMalformedReplyNotRetried(t *testing.T) {
	p := &scriptedProvider{name: "openai", script: []func() (ai.RawResponse, error){
		func() (ai.RawResponse, error) {
			return ai.RawResponse{Content: "here are your risks: flooding, fire"}, nil
		},
	}}
	c := New([]ai.Provider{p}, DefaultPolicy(), time.Second, &recordingSink{})
	noSleep(c)

	_, provider, err := c.AnalyzeSegment(context.Background(), seg(), prompt.Context{})
	require.ErrorIs(t, err, analysis.ErrMalformedAIResponse)
	assert.Equal(t, "openai", provider)
	// re-asking would not change the reply
	assert.Equal(t, 1, p.callCount())
}

func TestAnalyzeSegmentHonorsCancellation(t *testing.T) {
	p := &scriptedProvider{name: "openai", script: []func() (ai.RawResponse, error){fail(ai.ErrUnavailable)}}
	c := New([]ai.Provider{p}, DefaultPolicy(), time.Second, &recordingSink{})
	c.sleep = sleepCtx // real sleep so cancellation lands mid-backoff

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.AnalyzeSegment(ctx, seg(), prompt.Context{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeSegmentNoProviders(t *testing.T) {
	c := New(nil, DefaultPolicy(), time.Second, &recordingSink{})
	_, _, err := c.AnalyzeSegment(context.Background(), seg(), prompt.Context{})
	require.ErrorIs(t, err, analysis.ErrExtractionUnavailable)
}
