package aggregate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/arbes-ai/evaluator/internal/models"
	"github.com/arbes-ai/evaluator/internal/rubric"
	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func record(value string) models.ResultRecord {
	return models.ResultRecord{
		Type:   "Core",
		Value:  json.RawMessage(value),
		Source: []string{"document"},
	}
}

func coreRule(name string, weight float64) rubric.Rule {
	return rubric.Rule{
		Name:                 name,
		Type:                 rubric.TypeCore,
		Stage:                1,
		Weight:               weight,
		ValueType:            rubric.ValueInteger,
		ContributesToOverall: true,
	}
}

func TestOverallScore_WorkedExample(t *testing.T) {
	rules := []rubric.Rule{coreRule("A", 2), coreRule("B", 1)}
	agg := New(rules, newTestLogger())

	stage1 := map[string]models.ResultRecord{
		"A": record("8"),
		"B": record("5"),
	}

	// (2*8 + 1*5) / 3 = 7.0
	score := agg.OverallScore(stage1)
	if score != 7.0 {
		t.Errorf("expected 7.0, got %g", score)
	}
	if Rating(score) != "high" {
		t.Errorf("expected rating high, got %q", Rating(score))
	}
}

func TestRating_Boundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{9.0, "exceptional"},
		{8.999, "very high"},
		{8.0, "very high"},
		{7.0, "high"},
		{6.0, "average"},
		{5.999, "poor"},
		{0.0, "poor"},
	}
	for _, tc := range cases {
		if got := Rating(tc.score); got != tc.want {
			t.Errorf("Rating(%g) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestOverallScore_ZeroWeight(t *testing.T) {
	rules := []rubric.Rule{coreRule("A", 0)}
	agg := New(rules, newTestLogger())

	score := agg.OverallScore(map[string]models.ResultRecord{"A": record("9")})
	if score != 0.0 {
		t.Errorf("expected 0.0 for zero total weight, got %g", score)
	}
}

func TestOverallScore_SkipsNonContributing(t *testing.T) {
	contributing := coreRule("A", 1)
	excluded := coreRule("B", 5)
	excluded.ContributesToOverall = false
	nonCore := coreRule("C", 5)
	nonCore.Type = "Skills"
	nonNumeric := coreRule("D", 5)
	nonNumeric.ValueType = rubric.ValueString

	agg := New([]rubric.Rule{contributing, excluded, nonCore, nonNumeric}, newTestLogger())

	stage1 := map[string]models.ResultRecord{
		"A": record("6"),
		"B": record("10"),
		"C": record("10"),
		"D": record(`"ten"`),
	}

	if score := agg.OverallScore(stage1); score != 6.0 {
		t.Errorf("expected only rule A to count, got %g", score)
	}
}

func TestOverallScore_NumericString(t *testing.T) {
	agg := New([]rubric.Rule{coreRule("A", 1)}, newTestLogger())

	// models sometimes quote numbers
	score := agg.OverallScore(map[string]models.ResultRecord{"A": record(`"7"`)})
	if score != 7.0 {
		t.Errorf("expected quoted number to parse, got %g", score)
	}
}

func TestOverallScore_SkipsNonNumericValue(t *testing.T) {
	agg := New([]rubric.Rule{coreRule("A", 1), coreRule("B", 1)}, newTestLogger())

	stage1 := map[string]models.ResultRecord{
		"A": record("8"),
		"B": record(`"not a number"`),
	}

	// B is skipped entirely, weight included for A only
	if score := agg.OverallScore(stage1); score != 8.0 {
		t.Errorf("expected 8.0, got %g", score)
	}
}

// stubData satisfies StageData for assembly tests.
type stubData struct {
	stages   map[int]map[string]models.ResultRecord
	failures map[int][]models.CannotEvaluate
}

func (s *stubData) Stage(stage int) map[string]models.ResultRecord { return s.stages[stage] }
func (s *stubData) Failures(stage int) []models.CannotEvaluate     { return s.failures[stage] }
func (s *stubData) AllFailures() []models.CannotEvaluate {
	var out []models.CannotEvaluate
	for stage := 1; stage <= 3; stage++ {
		out = append(out, s.failures[stage]...)
	}
	return out
}
func (s *stubData) EvaluatedCount() int {
	n := 0
	for _, st := range s.stages {
		n += len(st)
	}
	return n
}

func TestCombined_FirstStageWins(t *testing.T) {
	rules := []rubric.Rule{coreRule("A", 1)}
	agg := New(rules, newTestLogger())

	data := &stubData{stages: map[int]map[string]models.ResultRecord{
		1: {"A": record("8")},
		2: {"A": record("3")},
		3: {},
	}}

	combined := agg.Combined(data, "resume.txt", "text", time.Now())

	var v float64
	json.Unmarshal(combined.Content["A"].Value, &v)
	if v != 8 {
		t.Errorf("content must keep the stage-1 value, got %g", v)
	}
	if combined.Summary.EvaluatedFields != 2 {
		t.Errorf("expected 2 evaluated fields, got %d", combined.Summary.EvaluatedFields)
	}
	if combined.Metadata.SourceFile != "resume.txt" {
		t.Errorf("unexpected source file %q", combined.Metadata.SourceFile)
	}
	if combined.OverallEvaluation.Score != 8.0 || combined.OverallEvaluation.Rating != "very high" {
		t.Errorf("unexpected overall evaluation %+v", combined.OverallEvaluation)
	}
}

func TestCombined_CarriesFailures(t *testing.T) {
	agg := New(nil, newTestLogger())
	data := &stubData{
		stages: map[int]map[string]models.ResultRecord{1: {}, 2: {}, 3: {}},
		failures: map[int][]models.CannotEvaluate{
			1: {{FieldName: "x", Type: "Core", SubType: "None", Reason: "parse failed"}},
		},
	}

	combined := agg.Combined(data, "f", "t", time.Now())
	if len(combined.Summary.UnableToEvaluate) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(combined.Summary.UnableToEvaluate))
	}
	if combined.Summary.UnableToEvaluate[0].Reason == "" {
		t.Error("failure reason must be non-empty")
	}
}

func TestCombined_StageSectionsCarryFailures(t *testing.T) {
	agg := New([]rubric.Rule{coreRule("A", 1)}, newTestLogger())
	data := &stubData{
		stages: map[int]map[string]models.ResultRecord{
			1: {"A": record("8")},
			2: {},
			3: {},
		},
		failures: map[int][]models.CannotEvaluate{
			2: {{FieldName: "skills_generic_df", Type: "Skills", SubType: "None", Reason: "no result in batch response"}},
		},
	}

	combined := agg.Combined(data, "f", "t", time.Now())
	if len(combined.Stage1.Failures) != 0 {
		t.Errorf("stage 1 must carry no failures, got %d", len(combined.Stage1.Failures))
	}
	if len(combined.Stage2.Failures) != 1 || combined.Stage2.Failures[0].FieldName != "skills_generic_df" {
		t.Fatalf("stage 2 must carry its failure record, got %+v", combined.Stage2.Failures)
	}

	// the failure list serializes inside the stage object, under the reserved key
	data2, err := json.Marshal(combined.Stage2)
	if err != nil {
		t.Fatalf("marshal stage 2: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data2, &raw); err != nil {
		t.Fatalf("unmarshal stage 2: %v", err)
	}
	if _, ok := raw[models.CannotEvaluateKey]; !ok {
		t.Errorf("expected %s key in stage section, got keys %v", models.CannotEvaluateKey, raw)
	}
	if _, ok := raw["A"]; ok {
		t.Error("stage 2 must not contain stage 1 results")
	}

	var roundTrip models.StageSection
	if err := json.Unmarshal(data2, &roundTrip); err != nil {
		t.Fatalf("decode stage section: %v", err)
	}
	if len(roundTrip.Failures) != 1 || roundTrip.Failures[0].Reason == "" {
		t.Errorf("failures must survive decoding, got %+v", roundTrip.Failures)
	}
}

func TestPreferredName(t *testing.T) {
	stage1 := models.StageSection{Results: map[string]models.ResultRecord{
		"preferred_name": {Value: json.RawMessage(`"Ada Lovelace"`)},
	}}
	if got := PreferredName(stage1, "fallback"); got != "Ada_Lovelace" {
		t.Errorf("expected Ada_Lovelace, got %q", got)
	}

	if got := PreferredName(models.StageSection{}, "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}

	// unsafe characters are stripped
	stage1.Results["preferred_name"] = models.ResultRecord{Value: json.RawMessage(`"../../etc"`)}
	if got := PreferredName(stage1, "fallback"); got != "etc" {
		t.Errorf("expected sanitized name, got %q", got)
	}
}
