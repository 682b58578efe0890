package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		MaxElapsed:   time.Second,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	out, err := fastPolicy().Do(context.Background(), newTestLogger(), func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if out != "ok" || calls != 1 {
		t.Errorf("expected one call returning ok, got %q after %d calls", out, calls)
	}
}

func TestRetry_RetriesRateLimitOnly(t *testing.T) {
	calls := 0
	out, err := fastPolicy().Do(context.Background(), newTestLogger(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", &RateLimitError{Cause: errors.New("throttled")}
		}
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if out != "done" || calls != 3 {
		t.Errorf("expected success on third call, got %q after %d calls", out, calls)
	}
}

func TestRetry_FatalErrorImmediate(t *testing.T) {
	calls := 0
	fatal := errors.New("bad request")
	_, err := fastPolicy().Do(context.Background(), newTestLogger(), func() (string, error) {
		calls++
		return "", fatal
	})
	if !errors.Is(err, fatal) {
		t.Errorf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("fatal error must not be retried, got %d calls", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := fastPolicy().Do(context.Background(), newTestLogger(), func() (string, error) {
		calls++
		return "", &RateLimitError{Cause: errors.New("throttled")}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Error("exhaustion error must wrap the rate-limit cause")
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fastPolicy().Do(ctx, newTestLogger(), func() (string, error) {
		return "", &RateLimitError{Cause: errors.New("throttled")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRateLimitError_Unwrap(t *testing.T) {
	cause := errors.New("root")
	err := fmt.Errorf("wrapped: %w", &RateLimitError{Cause: cause})

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatal("errors.As failed to find RateLimitError")
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap chain must reach the cause")
	}
}

// mockClient counts calls and fabricates responses.
type mockClient struct {
	mu        sync.Mutex
	generated int
	cleared   int
	response  string
	err       error
}

func (m *mockClient) GenerateResponse(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated++
	return m.response, m.err
}

func (m *mockClient) ClearConversation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
}

func (m *mockClient) TokenCount(text string) int { return EstimateTokens(text) }

func TestSession_GenerateClearedResetsFirst(t *testing.T) {
	client := &mockClient{response: "r"}
	session := NewSession(client)

	out, err := session.GenerateCleared(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("GenerateCleared failed: %v", err)
	}
	if out != "r" {
		t.Errorf("unexpected response %q", out)
	}
	if client.cleared != 1 || client.generated != 1 {
		t.Errorf("expected clear then generate, got cleared=%d generated=%d", client.cleared, client.generated)
	}
}

func TestSession_GenerateKeepsConversation(t *testing.T) {
	client := &mockClient{response: "r"}
	session := NewSession(client)

	if _, err := session.Generate(context.Background(), Request{Prompt: "p"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if client.cleared != 0 {
		t.Error("Generate must not clear the conversation")
	}
}

func TestRegistry_FallsThroughChain(t *testing.T) {
	registry := NewRegistry(newTestLogger())
	registry.Register("broken", func(ctx context.Context, cfg Config) (Client, error) {
		return nil, errors.New("no credentials")
	})
	working := &mockClient{response: "ok"}
	registry.Register("working", func(ctx context.Context, cfg Config) (Client, error) {
		return working, nil
	})

	client, err := registry.Build(context.Background(), []string{"missing", "broken", "working"}, Config{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if client != working {
		t.Error("expected the working provider to be selected")
	}
}

func TestRegistry_AllFail(t *testing.T) {
	registry := NewRegistry(newTestLogger())
	registry.Register("broken", func(ctx context.Context, cfg Config) (Client, error) {
		return nil, errors.New("no credentials")
	})

	if _, err := registry.Build(context.Background(), []string{"broken"}, Config{}); err == nil {
		t.Error("expected error when every provider fails")
	}
}

func TestRegistry_CaseInsensitiveNames(t *testing.T) {
	registry := NewRegistry(newTestLogger())
	registry.Register("Bedrock", func(ctx context.Context, cfg Config) (Client, error) {
		return &mockClient{}, nil
	})

	if _, err := registry.Build(context.Background(), []string{"bedrock"}, Config{}); err != nil {
		t.Errorf("expected case-insensitive lookup, got %v", err)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", got)
	}
	if got := EstimateTokens("abcdefgh"); got != 2 {
		t.Errorf("expected 2 tokens for 8 runes, got %d", got)
	}
}
