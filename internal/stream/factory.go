package stream

import (
	"context"
	"fmt"

	"github.com/arbes-ai/evaluator/internal/engine"
	appredis "github.com/arbes-ai/evaluator/internal/redis"
	streamredis "github.com/arbes-ai/evaluator/internal/stream/redis"
	"github.com/rs/zerolog"
)

// Config selects the stream provider and its settings.
type Config struct {
	Provider string // only "redis" today
	Redis    *streamredis.Config
}

// NewConsumer builds the configured stream consumer. An empty provider
// falls back to redis.
func NewConsumer(ctx context.Context, cfg *Config, orch *engine.Orchestrator, logger *zerolog.Logger) (Consumer, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "redis"
	}

	switch provider {
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis config required")
		}
		client, err := appredis.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, 5, logger)
		if err != nil {
			return nil, err
		}
		return streamredis.NewConsumer(client, cfg.Redis, orch, logger), nil
	default:
		return nil, fmt.Errorf("unsupported stream provider: %s", provider)
	}
}
