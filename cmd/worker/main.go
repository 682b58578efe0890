package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/arbes-ai/evaluator/internal/setup"
	setuplogger "github.com/arbes-ai/evaluator/internal/setup/logger"
	"github.com/arbes-ai/evaluator/internal/stream"
	streamredis "github.com/arbes-ai/evaluator/internal/stream/redis"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = setuplogger.New(os.Getenv("LOG_LEVEL"))
	logger := log.Logger

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := setup.LoadEnv()
	deps, err := setup.Wire(env, &logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	consumerName := os.Getenv("HOSTNAME")
	if consumerName == "" {
		consumerName = "evaluator-worker"
	}

	streamCfg := &stream.Config{
		Provider: os.Getenv("STREAM_PROVIDER"),
		Redis: &streamredis.Config{
			Addr:         env.RedisAddr,
			Password:     os.Getenv("REDIS_PASSWORD"),
			Stream:       env.RedisStream,
			Group:        env.RedisGroup,
			ConsumerName: consumerName,
		},
	}

	consumer, err := stream.NewConsumer(ctx, streamCfg, deps.Orchestrator, &logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create stream consumer")
	}

	if err := consumer.Setup(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to setup consumer")
	}

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Consumer stopped with error")
	}

	if err := consumer.Stop(); err != nil {
		log.Warn().Err(err).Msg("Consumer shutdown error")
	}
	log.Info().Msg("Worker stopped")
}
