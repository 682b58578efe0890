package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Factory builds a provider client for one document's evaluation.
type Factory func(ctx context.Context, cfg Config) (Client, error)

// Registry maps provider names to factories. Construction failures fall
// through to the next name in the chain, so a missing credential for one
// provider degrades instead of aborting.
type Registry struct {
	factories map[string]Factory
	logger    *zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}
}

// Register adds a named provider factory.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[strings.ToLower(name)] = factory
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Build constructs the first provider in the chain that both exists and
// constructs successfully.
func (r *Registry) Build(ctx context.Context, chain []string, cfg Config) (Client, error) {
	var lastErr error
	for _, name := range chain {
		factory, ok := r.factories[strings.ToLower(name)]
		if !ok {
			r.logger.Warn().Str("provider", name).Msg("unknown provider in chain, skipping")
			continue
		}
		client, err := factory(ctx, cfg)
		if err != nil {
			r.logger.Warn().Err(err).Str("provider", name).Msg("provider construction failed, trying next")
			lastErr = err
			continue
		}
		r.logger.Info().Str("provider", name).Msg("gateway provider selected")
		return client, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("no provider in chain %v could be constructed: %w", chain, lastErr)
	}
	return nil, fmt.Errorf("no provider in chain %v is registered", chain)
}
