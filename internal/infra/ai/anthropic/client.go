// Package anthropic adapts the Anthropic Messages API to the Provider port.
// Small hand-rolled HTTP client; the wire shape is provider-defined.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	ai "github.com/complianceops/riskextract/internal/domain/ai"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	maxTokens      = 2048
)

const (
	defaultInputPerMTok  = 3.00
	defaultOutputPerMTok = 15.00
)

type Client struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client

	InputPerMTok  float64
	OutputPerMTok float64
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		APIKey:        apiKey,
		Model:         model,
		BaseURL:       defaultBaseURL,
		HTTP:          &http.Client{Timeout: 60 * time.Second},
		InputPerMTok:  defaultInputPerMTok,
		OutputPerMTok: defaultOutputPerMTok,
	}
}

func (c *Client) Name() string { return "anthropic" }

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *Client) Analyze(ctx context.Context, p ai.Prompt) (ai.RawResponse, error) {
	model := c.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	body, err := json.Marshal(messagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    p.System,
		Messages:  []message{{Role: "user", Content: p.User}},
	})
	if err != nil {
		return ai.RawResponse{}, err
	}

	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return ai.RawResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ai.RawResponse{}, ctx.Err()
		}
		return ai.RawResponse{}, fmt.Errorf("%w: %v", ai.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ai.RawResponse{}, fmt.Errorf("%w: read body: %v", ai.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ai.RawResponse{}, fmt.Errorf("%w: %s", ai.ErrQuotaExceeded, string(data))
	case resp.StatusCode >= 500:
		return ai.RawResponse{}, fmt.Errorf("%w: status %d", ai.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return ai.RawResponse{}, fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, string(data))
	}

	var mr messagesResponse
	if err := json.Unmarshal(data, &mr); err != nil {
		return ai.RawResponse{}, fmt.Errorf("anthropic: decode response: %w", err)
	}

	var text string
	for _, block := range mr.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return ai.RawResponse{
		Content:   text,
		TokensIn:  mr.Usage.InputTokens,
		TokensOut: mr.Usage.OutputTokens,
	}, nil
}

func (c *Client) Cost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)/1e6*c.InputPerMTok + float64(tokensOut)/1e6*c.OutputPerMTok
}
