// Package gateway defines the behavioral contract of the language-model
// backend: generation with conversation state, clearing, token counting,
// and the error classification that drives the retry policy.
package gateway

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"
)

// Request is one generation call.
type Request struct {
	Prompt     string
	Model      string
	PromptName string
}

// Client is the provider contract. Implementations keep a running
// conversation per instance and are not safe for concurrent use; wrap
// them in a Session when workers share one.
type Client interface {
	GenerateResponse(ctx context.Context, req Request) (string, error)
	ClearConversation()
	TokenCount(text string) int
}

// Config is the per-document provider configuration. System instructions
// carry the base prompt, the serialized rubric and the document text.
type Config struct {
	SystemInstructions string
	Model              string
	Temperature        float64
	MaxTokens          int
}

// RateLimitError marks a failure as throttling-shaped. Only these are
// eligible for backoff retry; every other gateway error fails fast.
type RateLimitError struct {
	Cause      error
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Cause)
}

func (e *RateLimitError) Unwrap() error { return e.Cause }

// EstimateTokens is the shared fallback token count: a character-based
// heuristic for providers whose SDK exposes no counter.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}
