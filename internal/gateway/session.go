package gateway

import (
	"context"
	"sync"
)

// Session serializes access to a shared Client. Batch workers run
// concurrently, but each clear+generate pair must be atomic: a clear
// from one worker racing a generate from another corrupts the stream.
type Session struct {
	mu     sync.Mutex
	client Client
}

// NewSession wraps a client.
func NewSession(client Client) *Session {
	return &Session{client: client}
}

// GenerateCleared resets the conversation and generates in one critical
// section. Batches use this: each batch is self-contained.
func (s *Session) GenerateCleared(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.ClearConversation()
	return s.client.GenerateResponse(ctx, req)
}

// Generate calls the model under the session lock without clearing,
// preserving the incremental conversation for non-batchable rules.
func (s *Session) Generate(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.GenerateResponse(ctx, req)
}

// Clear resets the conversation on its own, for document boundaries.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.ClearConversation()
}

// TokenCount proxies the wrapped client's counter.
func (s *Session) TokenCount(text string) int {
	return s.client.TokenCount(text)
}
