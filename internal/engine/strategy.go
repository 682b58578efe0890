package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arbes-ai/evaluator/internal/gateway"
	"github.com/arbes-ai/evaluator/internal/history"
	"github.com/arbes-ai/evaluator/internal/models"
	"github.com/arbes-ai/evaluator/internal/parser"
	"github.com/arbes-ai/evaluator/internal/prompt"
	"github.com/arbes-ai/evaluator/internal/rubric"
	"github.com/arbes-ai/evaluator/internal/schedule"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// evaluator carries one document's evaluation state: session, history
// store, compiler and accumulating results. Discarded after export.
type evaluator struct {
	repo         *rubric.Repository
	session      *gateway.Session
	store        *history.Store
	compiler     *prompt.Compiler
	results      *StageResults
	retry        gateway.RetryPolicy
	defaultModel string
	delays       Delays
	workers      int
	logger       *zerolog.Logger
}

// Delays space out gateway calls as cooperative rate limiting.
type Delays struct {
	Batch time.Duration
	Rule  time.Duration
	Stage time.Duration
}

// strategy is the shared contract of the batch and individual paths.
type strategy interface {
	process(ctx context.Context, plan schedule.Plan)
}

// batchStrategy submits pre-computed batches to a bounded worker pool.
// A failed batch degrades into individual evaluation of its rules; it
// never fails the stage.
type batchStrategy struct {
	e *evaluator
}

func (s *batchStrategy) process(ctx context.Context, plan schedule.Plan) {
	var g errgroup.Group
	g.SetLimit(s.e.workers)

	for i, batch := range plan.Batches {
		if i > 0 {
			sleep(ctx, s.e.delays.Batch)
		}
		s.e.logger.Debug().
			Int("stage", plan.Stage).
			Int("batch", i+1).
			Int("of", len(plan.Batches)).
			Int("rules", len(batch)).
			Msg("submitting batch")
		g.Go(func() error {
			s.e.evaluateBatch(ctx, batch)
			return nil
		})
	}
	// workers never return errors; failures degrade inside evaluateBatch
	_ = g.Wait()
}

// individualStrategy evaluates rules strictly one at a time, honoring
// each rule's own history handling and data dependencies.
type individualStrategy struct {
	e *evaluator
}

func (s *individualStrategy) process(ctx context.Context, plan schedule.Plan) {
	for i, rule := range plan.Individual {
		if i > 0 {
			sleep(ctx, s.e.delays.Rule)
		}
		if err := s.e.evaluateRule(ctx, rule, true, false); err != nil {
			s.e.results.AddCannotEvaluate(rule, fmt.Sprintf("individual evaluation failed: %v", err))
			s.e.logger.Warn().Err(err).Str("rule", rule.Name).Msg("rule cannot be evaluated")
		}
	}
}

// evaluateBatch runs one self-contained batch: conversation cleared and
// prompt generated as a single atomic unit on the shared session.
func (e *evaluator) evaluateBatch(ctx context.Context, batch []rubric.Rule) {
	names := make([]string, len(batch))
	var deps []string
	for i, rule := range batch {
		names[i] = rule.Name
		deps = append(deps, rule.DataDependencies...)
	}
	promptName := strings.Join(names, "+")
	promptText := e.compiler.Batch(batch)
	model := batch[0].PrimaryModel(e.defaultModel)

	response, err := e.retry.Do(ctx, e.logger, func() (string, error) {
		return e.generate(ctx, gateway.Request{
			Prompt:     promptText,
			Model:      model,
			PromptName: promptName,
		}, true)
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("batch", promptName).Msg("batch call failed, falling back to individual evaluation")
		e.fallback(ctx, batch)
		return
	}

	e.store.Add(model, promptText, response, promptName, deps)

	results, err := parser.Parse(response, e.repo.Rule)
	if err != nil {
		e.logger.Warn().Err(err).Str("batch", promptName).Msg("batch response unparseable, falling back to individual evaluation")
		e.fallback(ctx, batch)
		return
	}

	for _, rule := range batch {
		record, ok := results[rule.Name]
		if !ok {
			e.results.AddCannotEvaluate(rule, "no result in batch response")
			continue
		}
		e.record(model, rule, record)
	}
}

// fallback evaluates every rule of a failed batch individually, each on
// a freshly cleared conversation and with its own retry budget. The
// failed batch's residue is never inherited.
func (e *evaluator) fallback(ctx context.Context, batch []rubric.Rule) {
	for i, rule := range batch {
		if i > 0 {
			sleep(ctx, e.delays.Rule)
		}
		if err := e.evaluateRule(ctx, rule, false, true); err != nil {
			e.results.AddCannotEvaluate(rule, fmt.Sprintf("fallback evaluation failed: %v", err))
			e.logger.Warn().Err(err).Str("rule", rule.Name).Msg("fallback evaluation failed")
		}
	}
}

// evaluateRule runs one rule. useSteps substitutes a matching prompt
// template when the rubric has one; forceClear resets the conversation
// regardless of the rule's own history handling.
func (e *evaluator) evaluateRule(ctx context.Context, rule rubric.Rule, useSteps, forceClear bool) error {
	promptText := e.compiler.Single(rule)
	if useSteps {
		if step, ok := e.repo.PromptStep(rule.Stage, rule.Type); ok && step.Instruction != "" {
			// step instructions still carry the rule's dependency history
			promptText = e.compiler.WithHistory(rule.DataDependencies, step.Instruction)
		}
	}

	clear := forceClear || rule.Batchable()
	model := rule.PrimaryModel(e.defaultModel)

	response, err := e.retry.Do(ctx, e.logger, func() (string, error) {
		return e.generate(ctx, gateway.Request{
			Prompt:     promptText,
			Model:      model,
			PromptName: rule.Name,
		}, clear)
	})
	if err != nil {
		return err
	}

	e.store.Add(model, promptText, response, rule.Name, rule.DataDependencies)

	results, err := parser.Parse(response, e.repo.Rule)
	if err != nil {
		return err
	}

	record, ok := results[rule.Name]
	if !ok {
		// single-rule replies sometimes come back under a different key
		if len(results) == 1 {
			for _, only := range results {
				record = only
				ok = true
			}
		}
	}
	if !ok {
		return fmt.Errorf("response did not include a result for %q", rule.Name)
	}

	e.record(model, rule, record)
	return nil
}

func (e *evaluator) generate(ctx context.Context, req gateway.Request, clear bool) (string, error) {
	var response string
	var err error
	if clear {
		response, err = e.session.GenerateCleared(ctx, req)
	} else {
		response, err = e.session.Generate(ctx, req)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(response) == "" {
		return "", errors.New("empty response from model")
	}
	return response, nil
}

// record stores the result and mirrors it into the history store under
// the rule's own name, so later rules can declare it as a dependency.
func (e *evaluator) record(model string, rule rubric.Rule, record models.ResultRecord) {
	e.results.Record(rule.Stage, rule.Name, record)

	rendered, err := json.Marshal(record)
	if err != nil {
		e.logger.Warn().Err(err).Str("rule", rule.Name).Msg("could not render result for history")
		return
	}
	e.store.Add(model, rule.Name, string(rendered), rule.Name, rule.DataDependencies)

	e.logger.Info().
		Str("rule", rule.Name).
		Int("stage", rule.Stage).
		Msg("rule evaluated")
}

// sleep waits unless the context is done first.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
