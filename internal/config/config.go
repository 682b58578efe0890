// Package config loads the engine configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML scalars like "2s" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete engine configuration.
type Config struct {
	Providers  ProvidersConfig  `yaml:"providers"`
	Generation GenerationConfig `yaml:"generation"`
	Pool       PoolConfig       `yaml:"pool"`
	Delays     DelaysConfig     `yaml:"delays"`
	Retry      RetryConfig      `yaml:"retry"`
}

// ProvidersConfig selects the gateway provider chain and per-provider
// model identifiers.
type ProvidersConfig struct {
	Chain        []string `yaml:"chain"`
	DefaultModel string   `yaml:"default_model"`
	Bedrock      struct {
		Region string `yaml:"region"`
		Model  string `yaml:"model"`
	} `yaml:"bedrock"`
	OpenAI struct {
		Model string `yaml:"model"`
	} `yaml:"openai"`
	Gemini struct {
		Model string `yaml:"model"`
	} `yaml:"gemini"`
}

// GenerationConfig tunes the model calls.
type GenerationConfig struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// PoolConfig bounds batch concurrency.
type PoolConfig struct {
	Workers int `yaml:"workers"`
}

// DelaysConfig spaces out calls as cooperative rate limiting. Not
// correctness-critical, but necessary to avoid upstream throttling.
type DelaysConfig struct {
	Batch Duration `yaml:"batch"`
	Rule  Duration `yaml:"rule"`
	Stage Duration `yaml:"stage"`
}

// RetryConfig bounds the rate-limit retry budget.
type RetryConfig struct {
	MaxAttempts  int      `yaml:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	MaxElapsed   Duration `yaml:"max_elapsed"`
}

// Load reads the config file. The path comes from EVALUATOR_CONFIG_PATH
// or defaults to configs/evaluator.yaml.
func Load() (*Config, error) {
	path := os.Getenv("EVALUATOR_CONFIG_PATH")
	if path == "" {
		path = "configs/evaluator.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.Providers.Chain) == 0 {
		cfg.Providers.Chain = []string{"bedrock", "openai", "gemini"}
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.5
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 16384
	}
	if cfg.Pool.Workers == 0 {
		cfg.Pool.Workers = 2
	}
	if cfg.Delays.Batch == 0 {
		cfg.Delays.Batch = Duration(2 * time.Second)
	}
	if cfg.Delays.Rule == 0 {
		cfg.Delays.Rule = Duration(1 * time.Second)
	}
	if cfg.Delays.Stage == 0 {
		cfg.Delays.Stage = Duration(3 * time.Second)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = Duration(2 * time.Second)
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = Duration(60 * time.Second)
	}
	if cfg.Retry.MaxElapsed == 0 {
		cfg.Retry.MaxElapsed = Duration(5 * time.Minute)
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Pool.Workers < 1 {
		return fmt.Errorf("pool.workers must be at least 1, got %d", c.Pool.Workers)
	}
	if c.Providers.DefaultModel == "" {
		return fmt.Errorf("providers.default_model is required")
	}
	return nil
}
