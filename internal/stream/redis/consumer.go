package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/arbes-ai/evaluator/internal/engine"
	"github.com/arbes-ai/evaluator/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Consumer reads evaluation requests from a Redis stream as part of a
// consumer group. Malformed messages are acknowledged so a poison
// message never blocks the group; failed evaluations are left pending
// for redelivery.
type Consumer struct {
	client       *redis.Client
	stream       string
	group        string
	consumerName string
	orchestrator *engine.Orchestrator
	logger       *zerolog.Logger
}

func NewConsumer(client *redis.Client, cfg *Config, orch *engine.Orchestrator, logger *zerolog.Logger) *Consumer {
	return &Consumer{
		client:       client,
		stream:       cfg.Stream,
		group:        cfg.Group,
		consumerName: cfg.ConsumerName,
		orchestrator: orch,
		logger:       logger,
	}
}

func (c *Consumer) Setup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().
		Str("stream", c.stream).
		Str("group", c.group).
		Str("consumer", c.consumerName).
		Msg("consumer started")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msgs, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumerName,
			Streams:  []string{c.stream, ">"},
			Count:    1,
			Block:    2 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error().Err(err).Msg("failed to read from stream")
			continue
		}

		for _, msg := range msgs[0].Messages {
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) Stop() error {
	return c.client.Close()
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	c.logger.Info().Str("id", msg.ID).Msg("message received")

	payload, ok := msg.Values["payload"].(string)
	if !ok {
		c.logger.Error().Str("id", msg.ID).Msg("missing payload field")
		c.ack(ctx, msg.ID)
		return
	}

	var req models.EvaluationRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("failed to decode message")
		c.ack(ctx, msg.ID)
		return
	}
	if req.DocumentText == "" {
		c.logger.Error().Str("id", msg.ID).Msg("empty document text")
		c.ack(ctx, msg.ID)
		return
	}

	source := req.SourceName
	if source == "" {
		source = req.DocumentID
	}

	combined, err := c.orchestrator.EvaluateText(ctx, req.DocumentText, source)
	if err != nil {
		c.logger.Error().Err(err).Str("id", msg.ID).Msg("evaluation failed")
		// failed evaluations stay pending for redelivery
		return
	}

	c.logger.Info().
		Str("id", msg.ID).
		Str("document_id", req.DocumentID).
		Float64("score", combined.OverallEvaluation.Score).
		Str("rating", combined.OverallEvaluation.Rating).
		Msg("evaluation complete")

	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	if err := c.client.XAck(ctx, c.stream, c.group, msgID).Err(); err != nil {
		c.logger.Error().Err(err).Str("id", msgID).Msg("failed to ACK message")
	}
}
