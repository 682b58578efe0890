package engine

import (
	"sync"

	"github.com/arbes-ai/evaluator/internal/models"
	"github.com/arbes-ai/evaluator/internal/rubric"
)

// StageResults accumulates per-stage results for one document. Merging
// is commutative per attribute name, so concurrent batch workers may
// record in any order. Created fresh per document and discarded after
// export.
type StageResults struct {
	mu       sync.Mutex
	results  map[int]map[string]models.ResultRecord
	failures map[int][]models.CannotEvaluate
}

// NewStageResults returns empty results for stages 1..3.
func NewStageResults() *StageResults {
	sr := &StageResults{
		results:  make(map[int]map[string]models.ResultRecord),
		failures: make(map[int][]models.CannotEvaluate),
	}
	for stage := 1; stage <= 3; stage++ {
		sr.results[stage] = make(map[string]models.ResultRecord)
	}
	return sr
}

// Record stores one attribute result.
func (sr *StageResults) Record(stage int, name string, record models.ResultRecord) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if _, ok := sr.results[stage]; !ok {
		sr.results[stage] = make(map[string]models.ResultRecord)
	}
	sr.results[stage][name] = record
}

// AddCannotEvaluate records an unrecoverable failure for a rule, with a
// human-readable reason.
func (sr *StageResults) AddCannotEvaluate(rule rubric.Rule, reason string) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.failures[rule.Stage] = append(sr.failures[rule.Stage], models.CannotEvaluate{
		FieldName: rule.Name,
		Type:      rule.Type,
		SubType:   rule.SubType,
		Reason:    reason,
	})
}

// Stage returns a copy of one stage's results.
func (sr *StageResults) Stage(stage int) map[string]models.ResultRecord {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	out := make(map[string]models.ResultRecord, len(sr.results[stage]))
	for k, v := range sr.results[stage] {
		out[k] = v
	}
	return out
}

// Failures returns a copy of one stage's cannot-evaluate list.
func (sr *StageResults) Failures(stage int) []models.CannotEvaluate {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	out := make([]models.CannotEvaluate, len(sr.failures[stage]))
	copy(out, sr.failures[stage])
	return out
}

// AllFailures returns every cannot-evaluate entry across stages.
func (sr *StageResults) AllFailures() []models.CannotEvaluate {
	var out []models.CannotEvaluate
	for stage := 1; stage <= 3; stage++ {
		out = append(out, sr.Failures(stage)...)
	}
	return out
}

// EvaluatedCount returns the total number of recorded attributes.
func (sr *StageResults) EvaluatedCount() int {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	n := 0
	for _, stage := range sr.results {
		n += len(stage)
	}
	return n
}
