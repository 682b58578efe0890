package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy bounds retries by attempt count and total wall-clock time.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxElapsed   time.Duration
}

// DefaultRetryPolicy matches the production retry budget: three
// attempts, five minutes total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		MaxElapsed:   5 * time.Minute,
	}
}

// Do runs fn, retrying with exponential backoff while the failure is
// rate-limit-shaped. Any other error returns immediately.
func (p RetryPolicy) Do(ctx context.Context, logger *zerolog.Logger, fn func() (string, error)) (string, error) {
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		response, err := fn()
		if err == nil {
			return response, nil
		}
		lastErr = err

		var rle *RateLimitError
		if !errors.As(err, &rle) {
			return "", err
		}
		if time.Since(start) > p.MaxElapsed {
			return "", fmt.Errorf("retry budget of %s exhausted: %w", p.MaxElapsed, lastErr)
		}

		delay := p.backoff(attempt)
		if rle.RetryAfter > delay {
			delay = rle.RetryAfter
		}
		logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("rate limited, backing off")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", fmt.Errorf("max retries %d exceeded: %w", p.MaxAttempts, lastErr)
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	backoff := float64(p.InitialDelay) * math.Pow(2, float64(attempt))
	if backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}
	jitter := backoff * 0.2 * (2*rand.Float64() - 1)
	return time.Duration(backoff + jitter)
}
