package ai

import "context"

// Prompt is the provider-agnostic request body.
type Prompt struct {
	System string
	User   string
}

// RawResponse is the provider reply before parsing, with token accounting.
type RawResponse struct {
	Content   string
	TokensIn  int
	TokensOut int
}

// Provider wraps one AI vendor. Implementations adapt the provider-specific
// wire format; nothing outside the adapter layer branches on provider identity.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, p Prompt) (RawResponse, error)
	// Cost estimates USD for a call, per the provider's price sheet.
	Cost(tokensIn, tokensOut int) float64
}

// UsageEvent is emitted once per provider call for cost accounting.
type UsageEvent struct {
	Provider     string  `json:"provider"`
	TokensIn     int     `json:"tokens_in"`
	TokensOut    int     `json:"tokens_out"`
	CostEstimate float64 `json:"cost_estimate"`
}

// UsageSink receives usage events. Implementations must be safe for
// concurrent use.
type UsageSink interface {
	Record(ctx context.Context, ev UsageEvent)
}
