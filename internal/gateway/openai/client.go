// Package openai is the OpenAI chat-completions gateway provider.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/arbes-ai/evaluator/internal/gateway"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client holds one conversation stream against an OpenAI model. Not
// safe for concurrent use; callers wrap it in a gateway.Session.
type Client struct {
	api          openai.Client
	modelID      string
	system       string
	temperature  float64
	maxTokens    int
	conversation []openai.ChatCompletionMessageParamUnion
}

// New builds a provider with the given per-document configuration.
func New(apiKey string, cfg gateway.Config) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("OpenAI model ID is required")
	}
	return &Client{
		api:         openai.NewClient(option.WithAPIKey(apiKey)),
		modelID:     cfg.Model,
		system:      cfg.SystemInstructions,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// GenerateResponse appends the prompt to the running conversation,
// invokes the model and records the assistant turn.
func (c *Client) GenerateResponse(ctx context.Context, req gateway.Request) (string, error) {
	model := c.modelID
	if req.Model != "" {
		model = req.Model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(c.conversation)+2)
	if c.system != "" {
		messages = append(messages, openai.SystemMessage(c.system))
	}
	messages = append(messages, c.conversation...)
	messages = append(messages, openai.UserMessage(req.Prompt))

	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            messages,
		Temperature:         openai.Float(c.temperature),
		MaxCompletionTokens: openai.Int(int64(c.maxTokens)),
	})
	if err != nil {
		return "", classify(err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}

	content := completion.Choices[0].Message.Content
	c.conversation = append(c.conversation,
		openai.UserMessage(req.Prompt),
		openai.AssistantMessage(content),
	)
	return content, nil
}

// ClearConversation drops the running message history.
func (c *Client) ClearConversation() {
	c.conversation = nil
}

// TokenCount estimates the token footprint of text.
func (c *Client) TokenCount(text string) int {
	return gateway.EstimateTokens(text)
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			return &gateway.RateLimitError{Cause: err}
		}
	}
	return fmt.Errorf("openai completion: %w", err)
}
