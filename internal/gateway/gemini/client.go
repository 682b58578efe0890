// Package gemini is the Google Gemini gateway provider.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/arbes-ai/evaluator/internal/gateway"
	"google.golang.org/genai"
)

// Client holds one conversation stream against a Gemini model. Not safe
// for concurrent use; callers wrap it in a gateway.Session.
type Client struct {
	api          *genai.Client
	modelID      string
	config       *genai.GenerateContentConfig
	conversation []*genai.Content
}

// New creates a provider configured for the Gemini API backend.
func New(ctx context.Context, apiKey string, cfg gateway.Config) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini model ID is required")
	}

	api, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(cfg.Temperature)),
		MaxOutputTokens: int32(cfg.MaxTokens),
	}
	if cfg.SystemInstructions != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstructions}},
		}
	}

	return &Client{api: api, modelID: cfg.Model, config: genCfg}, nil
}

// GenerateResponse appends the prompt to the running conversation,
// invokes the model and records the model turn.
func (c *Client) GenerateResponse(ctx context.Context, req gateway.Request) (string, error) {
	model := c.modelID
	if req.Model != "" {
		model = req.Model
	}

	contents := append(c.conversation, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: req.Prompt}},
	})

	resp, err := c.api.Models.GenerateContent(ctx, model, contents, c.config)
	if err != nil {
		return "", classify(err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" {
				builder.WriteString(part.Text)
			}
		}
		break
	}
	content := builder.String()

	c.conversation = append(contents, &genai.Content{
		Role:  genai.RoleModel,
		Parts: []*genai.Part{{Text: content}},
	})
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
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return &gateway.RateLimitError{Cause: err}
		}
	}
	return fmt.Errorf("generate content: %w", err)
}
