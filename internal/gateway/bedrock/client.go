// Package bedrock is the Claude-on-Bedrock gateway provider.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arbes-ai/evaluator/internal/gateway"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

var anthropicVersion = "bedrock-2023-05-31"

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeMessageRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	System           string          `json:"system,omitempty"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Client holds one conversation stream against a Claude model. Not safe
// for concurrent use; callers wrap it in a gateway.Session.
type Client struct {
	runtime      *bedrockruntime.Client
	modelID      string
	system       string
	temperature  float64
	maxTokens    int
	conversation []claudeMessage
}

// New loads AWS config for the region and builds a provider with the
// given per-document configuration.
func New(ctx context.Context, region string, cfg gateway.Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Model == "" {
		return nil, errors.New("bedrock model ID is required")
	}
	return &Client{
		runtime:     bedrockruntime.NewFromConfig(awsCfg),
		modelID:     cfg.Model,
		system:      cfg.SystemInstructions,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// GenerateResponse appends the prompt to the running conversation,
// invokes the model and records the assistant turn.
func (c *Client) GenerateResponse(ctx context.Context, req gateway.Request) (string, error) {
	messages := append(c.conversation, claudeMessage{Role: "user", Content: req.Prompt})

	payload := claudeMessageRequest{
		AnthropicVersion: anthropicVersion,
		System:           c.system,
		MaxTokens:        c.maxTokens,
		Temperature:      c.temperature,
		Messages:         messages,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serialize claude request: %w", err)
	}

	modelID := c.modelID
	if req.Model != "" {
		modelID = req.Model
	}

	output, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &modelID,
		Body:        body,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", classify(err)
	}

	var response claudeMessageResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return "", fmt.Errorf("unmarshal bedrock response: %w", err)
	}

	var content string
	if len(response.Content) > 0 {
		content = response.Content[0].Text
	}

	c.conversation = append(messages, claudeMessage{Role: "assistant", Content: content})
	return content, nil
}

// ClearConversation drops the running message history. System
// instructions are kept; they are per-document, not per-turn.
func (c *Client) ClearConversation() {
	c.conversation = nil
}

// TokenCount estimates the token footprint of text.
func (c *Client) TokenCount(text string) int {
	return gateway.EstimateTokens(text)
}

// classify maps SDK errors onto the gateway taxonomy: throttling becomes
// a RateLimitError so the retry policy can see it without string
// matching.
func classify(err error) error {
	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return &gateway.RateLimitError{Cause: err}
	}
	var unavailable *types.ServiceUnavailableException
	if errors.As(err, &unavailable) {
		return &gateway.RateLimitError{Cause: err}
	}
	return fmt.Errorf("invoke claude model: %w", err)
}
