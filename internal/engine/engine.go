// Package engine orchestrates per-document evaluation: schedule,
// dispatch, aggregate, transform, export.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arbes-ai/evaluator/internal/aggregate"
	"github.com/arbes-ai/evaluator/internal/config"
	"github.com/arbes-ai/evaluator/internal/export"
	"github.com/arbes-ai/evaluator/internal/gateway"
	"github.com/arbes-ai/evaluator/internal/history"
	"github.com/arbes-ai/evaluator/internal/models"
	"github.com/arbes-ai/evaluator/internal/prompt"
	"github.com/arbes-ai/evaluator/internal/rubric"
	"github.com/arbes-ai/evaluator/internal/schedule"
	"github.com/arbes-ai/evaluator/internal/skills"
	"github.com/rs/zerolog"
)

// LoadError marks a document that could not be read. Directory runs
// skip such documents instead of aborting.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// DocumentLoader turns a path into evaluable text.
type DocumentLoader interface {
	Load(path string) (string, error)
	Supports(path string) bool
}

// TextLoader reads plain-text and markdown documents.
type TextLoader struct{}

func (TextLoader) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".text":
		return true
	}
	return false
}

func (TextLoader) Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &LoadError{Path: path, Err: err}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", &LoadError{Path: path, Err: fmt.Errorf("document is empty")}
	}
	return text, nil
}

// Orchestrator owns the per-document lifecycle. The rubric and the
// scheduler are shared across documents; session, history store and
// stage results are created fresh per document and never reused.
type Orchestrator struct {
	repo      *rubric.Repository
	scheduler *schedule.Scheduler
	registry  *gateway.Registry
	cfg       *config.Config
	loader    DocumentLoader
	writer    *export.Writer
	logger    *zerolog.Logger
	now       func() time.Time
}

// New builds an orchestrator. outputDir may be empty for callers that
// never export to disk (API, stream, MCP surfaces).
func New(repo *rubric.Repository, registry *gateway.Registry, cfg *config.Config, outputDir string, logger *zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		repo:      repo,
		scheduler: schedule.New(repo.Rules(), cfg.Providers.DefaultModel, logger),
		registry:  registry,
		cfg:       cfg,
		loader:    TextLoader{},
		writer:    export.NewWriter(outputDir, logger),
		logger:    logger,
		now:       time.Now,
	}
}

// EvaluateText runs the full evaluation pipeline over one document's
// text and returns the combined, skill-merged artifact.
func (o *Orchestrator) EvaluateText(ctx context.Context, documentText, sourceName string) (models.CombinedEvaluation, error) {
	started := o.now()
	log := o.logger.With().Str("document", sourceName).Logger()

	systemInstructions, err := o.repo.SystemInstructions(documentText, started)
	if err != nil {
		return models.CombinedEvaluation{}, err
	}

	client, err := o.registry.Build(ctx, o.cfg.Providers.Chain, gateway.Config{
		SystemInstructions: systemInstructions,
		Model:              o.cfg.Providers.DefaultModel,
		Temperature:        o.cfg.Generation.Temperature,
		MaxTokens:          o.cfg.Generation.MaxTokens,
	})
	if err != nil {
		return models.CombinedEvaluation{}, fmt.Errorf("build gateway client: %w", err)
	}

	store := history.NewStore(&log)
	e := &evaluator{
		repo:         o.repo,
		session:      gateway.NewSession(client),
		store:        store,
		compiler:     prompt.NewCompiler(store),
		results:      NewStageResults(),
		retry:        o.retryPolicy(),
		defaultModel: o.cfg.Providers.DefaultModel,
		delays: Delays{
			Batch: o.cfg.Delays.Batch.Std(),
			Rule:  o.cfg.Delays.Rule.Std(),
			Stage: o.cfg.Delays.Stage.Std(),
		},
		workers: o.cfg.Pool.Workers,
		logger:  &log,
	}

	// batched rules complete before individual rules within each stage
	strategies := []strategy{
		&batchStrategy{e: e},
		&individualStrategy{e: e},
	}

	for i, stage := range o.scheduler.Stages() {
		if err := ctx.Err(); err != nil {
			return models.CombinedEvaluation{}, err
		}
		if i > 0 {
			sleep(ctx, e.delays.Stage)
		}
		plan := o.scheduler.PlanStage(stage)
		log.Info().
			Int("stage", stage).
			Int("batches", len(plan.Batches)).
			Int("individual", len(plan.Individual)).
			Msg("stage started")

		for _, s := range strategies {
			s.process(ctx, plan)
		}

		log.Info().Int("stage", stage).Msg("stage complete")
	}

	aggregator := aggregate.New(o.scheduler.Sorted(), &log)
	combined := aggregator.Combined(e.results, sourceName, documentText, started)
	combined = skills.New(&log).Transform(combined)

	log.Info().
		Dur("elapsed", o.now().Sub(started)).
		Int("interactions", store.Len()).
		Msg("document evaluated")
	return combined, nil
}

// EvaluateFile loads, evaluates and exports one document, then moves
// the source into processed/.
func (o *Orchestrator) EvaluateFile(ctx context.Context, path string) (string, error) {
	text, err := o.loader.Load(path)
	if err != nil {
		return "", err
	}

	combined, err := o.EvaluateText(ctx, text, filepath.Base(path))
	if err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := aggregate.PreferredName(combined.Stage1, stem)

	artifact, err := o.writer.Write(combined, name)
	if err != nil {
		return "", err
	}
	if _, err := export.MoveToProcessed(path, o.logger); err != nil {
		return "", err
	}
	return artifact, nil
}

// Run evaluates every supported document in inputDir. Documents that
// fail to load are skipped; evaluation errors abort the run.
func (o *Orchestrator) Run(ctx context.Context, inputDir string) error {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return fmt.Errorf("read input dir: %w", err)
	}

	processed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(inputDir, entry.Name())
		if !o.loader.Supports(path) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		artifact, err := o.EvaluateFile(ctx, path)
		if err != nil {
			var loadErr *LoadError
			if errors.As(err, &loadErr) {
				o.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable document")
				continue
			}
			return err
		}
		processed++
		o.logger.Info().Str("artifact", artifact).Msg("document processed")
	}

	o.logger.Info().Int("documents", processed).Msg("run complete")
	return nil
}

func (o *Orchestrator) retryPolicy() gateway.RetryPolicy {
	return gateway.RetryPolicy{
		MaxAttempts:  o.cfg.Retry.MaxAttempts,
		InitialDelay: o.cfg.Retry.InitialDelay.Std(),
		MaxDelay:     o.cfg.Retry.MaxDelay.Std(),
		MaxElapsed:   o.cfg.Retry.MaxElapsed.Std(),
	}
}
