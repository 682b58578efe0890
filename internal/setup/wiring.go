package setup

import (
	"context"
	"os"

	"github.com/arbes-ai/evaluator/internal/config"
	"github.com/arbes-ai/evaluator/internal/engine"
	"github.com/arbes-ai/evaluator/internal/gateway"
	"github.com/arbes-ai/evaluator/internal/gateway/bedrock"
	"github.com/arbes-ai/evaluator/internal/gateway/gemini"
	"github.com/arbes-ai/evaluator/internal/gateway/openai"
	"github.com/arbes-ai/evaluator/internal/rubric"
	"github.com/rs/zerolog"
)

// Env carries the credentials and file locations that come from the
// environment rather than the YAML config.
type Env struct {
	AWSRegion   string
	OpenAIKey   string
	GeminiKey   string
	RulesPath   string
	StepsPath   string
	RedisAddr   string
	RedisStream string
	RedisGroup  string
	OutputDir   string
	InputDir    string
	ListenAddr  string
}

// Dependencies is everything a command surface needs.
type Dependencies struct {
	Orchestrator *engine.Orchestrator
	Repository   *rubric.Repository
	Config       *config.Config
	Env          *Env
	Logger       *zerolog.Logger
}

func LoadEnv() *Env {
	return &Env{
		AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
		OpenAIKey:   getEnv("OPEN_AI_KEY", ""),
		GeminiKey:   getEnv("GEMINI_API_KEY", ""),
		RulesPath:   getEnv("EVALUATOR_RULES_PATH", "configs/rules.json"),
		StepsPath:   getEnv("EVALUATOR_STEPS_PATH", "configs/steps.json"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisStream: getEnv("REDIS_STREAM", "evaluation-requests"),
		RedisGroup:  getEnv("REDIS_GROUP", "evaluators"),
		OutputDir:   getEnv("EVALUATOR_OUTPUT_DIR", "output"),
		InputDir:    getEnv("EVALUATOR_INPUT_DIR", "input"),
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
	}
}

// Wire loads the rubric and config and assembles the orchestrator with
// a fully populated provider registry.
func Wire(env *Env, logger *zerolog.Logger) (*Dependencies, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	repo, err := rubric.Load(env.RulesPath, env.StepsPath, logger)
	if err != nil {
		return nil, err
	}

	registry := NewProviderRegistry(env, cfg, logger)
	orch := engine.New(repo, registry, cfg, env.OutputDir, logger)

	return &Dependencies{
		Orchestrator: orch,
		Repository:   repo,
		Config:       cfg,
		Env:          env,
		Logger:       logger,
	}, nil
}

// NewProviderRegistry registers every gateway provider. Construction
// failures are handled by the registry's fallback chain at build time.
func NewProviderRegistry(env *Env, cfg *config.Config, logger *zerolog.Logger) *gateway.Registry {
	registry := gateway.NewRegistry(logger)

	registry.Register("bedrock", func(ctx context.Context, gcfg gateway.Config) (gateway.Client, error) {
		if cfg.Providers.Bedrock.Model != "" {
			gcfg.Model = cfg.Providers.Bedrock.Model
		}
		return bedrock.New(ctx, env.AWSRegion, gcfg)
	})
	registry.Register("openai", func(ctx context.Context, gcfg gateway.Config) (gateway.Client, error) {
		if cfg.Providers.OpenAI.Model != "" {
			gcfg.Model = cfg.Providers.OpenAI.Model
		}
		return openai.New(env.OpenAIKey, gcfg)
	})
	registry.Register("gemini", func(ctx context.Context, gcfg gateway.Config) (gateway.Client, error) {
		if cfg.Providers.Gemini.Model != "" {
			gcfg.Model = cfg.Providers.Gemini.Model
		}
		return gemini.New(ctx, env.GeminiKey, gcfg)
	})

	return registry
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	return value
}
