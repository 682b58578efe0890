// Package redis wires the shared Redis client used by the stream surfaces.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Connect dials Redis and verifies the connection with a ping, retrying
// with exponential backoff up to maxAttempts.
func Connect(ctx context.Context, addr, password string, maxAttempts int, logger *zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			logger.Info().Dur("backoff", backoff).Msg("waiting before Redis retry")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		logger.Info().Str("addr", addr).Int("attempt", attempt).Msg("connecting to Redis")
		if err = client.Ping(ctx).Err(); err == nil {
			logger.Info().Int("attempts", attempt).Msg("Redis connected")
			return client, nil
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("Redis ping failed")
	}

	return nil, fmt.Errorf("connect to Redis after %d attempts: %w", maxAttempts, err)
}
