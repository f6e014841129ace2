package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	ai "github.com/complianceops/riskextract/internal/domain/ai"
)

const maxTokens = 2048

// USD per 1M tokens; rough defaults, overridable per instance.
const (
	defaultInputPerMTok  = 2.50
	defaultOutputPerMTok = 10.00
)

type Client struct {
	*openai.Client
	Model string

	InputPerMTok  float64
	OutputPerMTok float64
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		Client:        openai.NewClient(apiKey),
		Model:         model,
		InputPerMTok:  defaultInputPerMTok,
		OutputPerMTok: defaultOutputPerMTok,
	}
}

func (c *Client) Name() string { return "openai" }

func (c *Client) Analyze(ctx context.Context, p ai.Prompt) (ai.RawResponse, error) {
	model := c.Model
	if model == "" {
		model = "o3-2025-04-16"
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return ai.RawResponse{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return ai.RawResponse{}, fmt.Errorf("%w: no choices in completion", ai.ErrUnavailable)
	}

	return ai.RawResponse{
		Content:   resp.Choices[0].Message.Content,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
	}, nil
}

func (c *Client) Cost(tokensIn, tokensOut int) float64 {
	return float64(tokensIn)/1e6*c.InputPerMTok + float64(tokensOut)/1e6*c.OutputPerMTok
}

// classify maps API errors onto the domain sentinels the retry policy keys on.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %v", ai.ErrUnavailable, err)
		}
	}
	return fmt.Errorf("failed to create chat completion: %w", err)
}
