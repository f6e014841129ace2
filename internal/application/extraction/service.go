package extraction

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/complianceops/riskextract/internal/domain/ai"
	"github.com/complianceops/riskextract/internal/domain/analysis"
	"github.com/complianceops/riskextract/internal/domain/documents"
	"github.com/complianceops/riskextract/internal/infra/ai/prompt"
)

// Client implements the per-segment AI extraction use-case: prompt build,
// provider call under the retry/fallback policy, response parsing, usage
// accounting. Safe for concurrent use.
type Client struct {
	Providers   []ai.Provider
	Policy      Policy
	CallTimeout time.Duration
	Usage       ai.UsageSink

	// sleep is swappable so tests do not wait out real backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(providers []ai.Provider, policy Policy, callTimeout time.Duration, usage ai.UsageSink) *Client {
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	if usage == nil {
		usage = LogSink{}
	}
	return &Client{
		Providers:   providers,
		Policy:      policy,
		CallTimeout: callTimeout,
		Usage:       usage,
		sleep:       sleepCtx,
	}
}

// AnalyzeSegment runs one segment through the provider chain and returns the
// parsed raw candidates plus the name of the provider that answered.
//
// Error contract: analysis.ErrMalformedAIResponse when a provider answered
// but the payload does not parse (not retried, the reply would not change);
// analysis.ErrExtractionUnavailable when every provider is exhausted.
func (c *Client) AnalyzeSegment(ctx context.Context, seg *documents.TextSegment, pc prompt.Context) ([]analysis.RawCandidate, string, error) {
	if len(c.Providers) == 0 {
		return nil, "", fmt.Errorf("%w: no providers configured", analysis.ErrExtractionUnavailable)
	}

	p := ai.Prompt{
		System: prompt.GetSystemPrompt(pc),
		User:   prompt.GetUserPrompt(seg.Ordinal, seg.Content),
	}

	attempt := Attempt{}
	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		provider := c.Providers[attempt.Provider]
		resp, err := c.call(ctx, provider, p)
		if err == nil {
			c.Usage.Record(ctx, ai.UsageEvent{
				Provider:     provider.Name(),
				TokensIn:     resp.TokensIn,
				TokensOut:    resp.TokensOut,
				CostEstimate: provider.Cost(resp.TokensIn, resp.TokensOut),
			})

			raws, perr := prompt.ParseCandidates(resp.Content)
			if perr != nil {
				return nil, provider.Name(), perr
			}
			for i := range raws {
				raws[i].SegmentID = seg.ID
				raws[i].SegmentOrdinal = seg.Ordinal
			}
			return raws, provider.Name(), nil
		}

		// parent cancelled mid-call; not a provider failure
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		lastErr = err

		decision, next, delay := c.Policy.Next(attempt, ai.Retryable(err), len(c.Providers))
		switch decision {
		case DecideRetry:
			log.Printf("extraction retry: provider=%s segment=%d retry=%d err=%v", provider.Name(), seg.Ordinal, next.Retry, err)
			if serr := c.sleep(ctx, delay); serr != nil {
				return nil, "", serr
			}
		case DecideNextProvider:
			log.Printf("extraction fallback: provider=%s -> %s segment=%d err=%v",
				provider.Name(), c.Providers[next.Provider].Name(), seg.Ordinal, err)
		case DecideExhausted:
			return nil, "", fmt.Errorf("%w: %v", analysis.ErrExtractionUnavailable, lastErr)
		}
		attempt = next
	}
}

// call runs one provider attempt under the per-call timeout.
func (c *Client) call(ctx context.Context, provider ai.Provider, p ai.Prompt) (ai.RawResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.CallTimeout)
	defer cancel()
	return provider.Analyze(callCtx, p)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LogSink writes usage events to the process log. Default sink when no
// collector is wired.
type LogSink struct{}

func (LogSink) Record(_ context.Context, ev ai.UsageEvent) {
	log.Printf("ai usage: provider=%s tokens_in=%d tokens_out=%d cost_estimate=%.6f",
		ev.Provider, ev.TokensIn, ev.TokensOut, ev.CostEstimate)
}
