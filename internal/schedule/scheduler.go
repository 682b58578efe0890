// Package schedule turns the rubric into an execution plan: rules sorted
// by (stage, order), partitioned into batchable groups and individually
// processed rules.
package schedule

import (
	"sort"

	"github.com/arbes-ai/evaluator/internal/rubric"
	"github.com/rs/zerolog"
)

// BatchSize is the maximum number of rules that share one model call.
const BatchSize = 4

// Plan is the execution plan for one stage.
type Plan struct {
	Stage      int
	Batches    [][]rubric.Rule
	Individual []rubric.Rule
}

// Scheduler sorts and partitions rules once; stage plans are derived
// views over the sorted slice.
type Scheduler struct {
	sorted       []rubric.Rule
	defaultModel string
	logger       *zerolog.Logger
}

// New builds a scheduler over the given rules. defaultModel is used to
// group rules that declare no model preference.
func New(rules []rubric.Rule, defaultModel string, logger *zerolog.Logger) *Scheduler {
	sorted := make([]rubric.Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Stage != sorted[j].Stage {
			return sorted[i].Stage < sorted[j].Stage
		}
		return sorted[i].Order < sorted[j].Order
	})
	return &Scheduler{sorted: sorted, defaultModel: defaultModel, logger: logger}
}

// Sorted returns all rules in (stage, order) order, stable on ties.
func (s *Scheduler) Sorted() []rubric.Rule {
	out := make([]rubric.Rule, len(s.sorted))
	copy(out, s.sorted)
	return out
}

// Stages returns the distinct stages present, ascending.
func (s *Scheduler) Stages() []int {
	seen := make(map[int]bool)
	var stages []int
	for _, r := range s.sorted {
		if !seen[r.Stage] {
			seen[r.Stage] = true
			stages = append(stages, r.Stage)
		}
	}
	sort.Ints(stages)
	return stages
}

// PlanStage partitions one stage's rules. Rules flagged pre_clear share
// model calls in batches of at most BatchSize, grouped by primary model;
// everything else runs one at a time to preserve incremental context.
func (s *Scheduler) PlanStage(stage int) Plan {
	plan := Plan{Stage: stage}

	var batchable []rubric.Rule
	for _, r := range s.sorted {
		if r.Stage != stage {
			continue
		}
		if r.Batchable() {
			batchable = append(batchable, r)
		} else {
			plan.Individual = append(plan.Individual, r)
		}
	}

	plan.Batches = s.chunkByModel(batchable)

	s.logger.Debug().
		Int("stage", stage).
		Int("batches", len(plan.Batches)).
		Int("individual", len(plan.Individual)).
		Msg("stage planned")
	return plan
}

// chunkByModel groups batchable rules by their primary model, preserving
// sort order within each group, then chunks each group.
func (s *Scheduler) chunkByModel(rules []rubric.Rule) [][]rubric.Rule {
	var batches [][]rubric.Rule

	groups := make(map[string][]rubric.Rule)
	var order []string
	for _, r := range rules {
		model := r.PrimaryModel(s.defaultModel)
		if _, ok := groups[model]; !ok {
			order = append(order, model)
		}
		groups[model] = append(groups[model], r)
	}

	for _, model := range order {
		group := groups[model]
		for i := 0; i < len(group); i += BatchSize {
			end := min(i+BatchSize, len(group))
			batches = append(batches, group[i:end])
		}
	}
	return batches
}
