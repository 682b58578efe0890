// Package aggregate computes the overall weighted score and assembles
// the combined evaluation artifact from per-stage results.
package aggregate

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/arbes-ai/evaluator/internal/models"
	"github.com/arbes-ai/evaluator/internal/rubric"
	"github.com/rs/zerolog"
)

// Aggregator folds stage results into one scored document.
type Aggregator struct {
	rules  []rubric.Rule
	logger *zerolog.Logger
}

// New builds an aggregator over the run's rules.
func New(rules []rubric.Rule, logger *zerolog.Logger) *Aggregator {
	return &Aggregator{rules: rules, logger: logger}
}

// OverallScore is the weighted average over numeric Core rules that
// contribute to the overall rating and are present in stage-1 results.
// Non-numeric or missing values are skipped with a warning, never fatal.
// Zero total weight yields 0.0 rather than an error.
func (a *Aggregator) OverallScore(stage1 map[string]models.ResultRecord) float64 {
	var weightedSum, totalWeight float64

	for _, rule := range a.rules {
		if rule.Type != rubric.TypeCore || !rule.ContributesToOverall || !rule.Numeric() {
			continue
		}
		record, ok := stage1[rule.Name]
		if !ok {
			continue
		}
		value, ok := record.Float()
		if !ok {
			a.logger.Warn().Str("rule", rule.Name).Msg("skipping non-numeric value in overall score")
			continue
		}
		weightedSum += rule.Weight * value
		totalWeight += rule.Weight
	}

	if totalWeight <= 0 {
		a.logger.Warn().Msg("no valid weighted scores, overall score is 0")
		return 0.0
	}
	return weightedSum / totalWeight
}

// Rating maps a score onto its qualitative band. Thresholds are
// inclusive at the lower bound of each band.
func Rating(score float64) string {
	switch {
	case score >= 9:
		return "exceptional"
	case score >= 8:
		return "very high"
	case score >= 7:
		return "high"
	case score >= 6:
		return "average"
	default:
		return "poor"
	}
}

// StageData is the aggregator's view of accumulated results.
// Satisfied by *engine.StageResults.
type StageData interface {
	Stage(stage int) map[string]models.ResultRecord
	Failures(stage int) []models.CannotEvaluate
	AllFailures() []models.CannotEvaluate
	EvaluatedCount() int
}

// Combined assembles the final artifact: metadata, overall evaluation,
// the merged content section, raw stages and summary. For attributes
// present in several stages the earliest stage wins.
func (a *Aggregator) Combined(data StageData, sourceFile, sourceText string, now time.Time) models.CombinedEvaluation {
	score := a.OverallScore(data.Stage(1))

	content := make(map[string]models.ResultRecord)
	for _, rule := range a.rules {
		for stage := 1; stage <= 3; stage++ {
			if record, ok := data.Stage(stage)[rule.Name]; ok {
				content[rule.Name] = record
				break
			}
		}
	}

	failures := data.AllFailures()
	if failures == nil {
		failures = []models.CannotEvaluate{}
	}

	combined := models.CombinedEvaluation{
		Metadata: models.Metadata{
			EvaluationDate: now,
			SourceFile:     sourceFile,
			SourceText:     sourceText,
		},
		OverallEvaluation: models.OverallEvaluation{
			Score:  round2(score),
			Rating: Rating(score),
		},
		Content: content,
		Stage1:  stageSection(data, 1),
		Stage2:  stageSection(data, 2),
		Stage3:  stageSection(data, 3),
		Summary: models.Summary{
			EvaluatedFields:  data.EvaluatedCount(),
			UnableToEvaluate: failures,
		},
	}

	a.logger.Info().
		Float64("score", combined.OverallEvaluation.Score).
		Str("rating", combined.OverallEvaluation.Rating).
		Int("evaluated", combined.Summary.EvaluatedFields).
		Int("failed", len(failures)).
		Msg("aggregation complete")
	return combined
}

// stageSection pairs one stage's results with its failure records for
// the artifact's stage_N sections.
func stageSection(data StageData, stage int) models.StageSection {
	section := models.StageSection{Results: data.Stage(stage)}
	if failures := data.Failures(stage); len(failures) > 0 {
		section.Failures = failures
	}
	return section
}

// PreferredName extracts a filesystem-safe document name from the
// preferred_name attribute, or falls back to the given default.
func PreferredName(stage1 models.StageSection, fallback string) string {
	name := fallback
	if record, ok := stage1.Results["preferred_name"]; ok {
		var s string
		if err := json.Unmarshal(record.Value, &s); err == nil && s != "" {
			name = s
		}
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
