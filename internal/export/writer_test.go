package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/arbes-ai/evaluator/internal/models"
	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func sampleCombined() models.CombinedEvaluation {
	return models.CombinedEvaluation{
		Metadata: models.Metadata{
			EvaluationDate: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
			SourceFile:     "resume.txt",
			SourceText:     "text",
		},
		OverallEvaluation: models.OverallEvaluation{Score: 7.5, Rating: "high"},
		Content: map[string]models.ResultRecord{
			"years": {Type: "Core", SubType: "Experience", Value: json.RawMessage("8"), Eval: "e", Source: []string{"document"}, SourceDetail: []string{"d"}},
		},
		Skills: models.SkillList{Value: []models.Skill{{Skill: "Go", Type: "main", Score: 10}}},
		Stage1: models.StageSection{Results: map[string]models.ResultRecord{
			"years": {Type: "Core", SubType: "Experience", Value: json.RawMessage("8"), Eval: "e", Source: []string{"document"}, SourceDetail: []string{"d"}},
		}},
		Stage2: models.StageSection{
			Results: map[string]models.ResultRecord{},
			Failures: []models.CannotEvaluate{
				{FieldName: "skills_generic_df", Type: "Skills", SubType: "None", Reason: "no result in batch response"},
			},
		},
		Stage3: models.StageSection{Results: map[string]models.ResultRecord{}},
		Summary: models.Summary{
			EvaluatedFields:  1,
			UnableToEvaluate: []models.CannotEvaluate{},
		},
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, newTestLogger())
	combined := sampleCombined()

	path, err := w.Write(combined, "candidate")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if filepath.Base(path) != "candidate.json" {
		t.Errorf("unexpected artifact name %q", path)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !reflect.DeepEqual(combined, got) {
		t.Errorf("round trip mismatch:\nwrote %+v\nread  %+v", combined, got)
	}
}

func TestMoveToProcessed_NumericSuffixOnCollision(t *testing.T) {
	dir := t.TempDir()

	write := func(name string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("doc"), 0o644); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		return path
	}

	first, err := MoveToProcessed(write("resume.txt"), newTestLogger())
	if err != nil {
		t.Fatalf("first move failed: %v", err)
	}
	if filepath.Base(first) != "resume.txt" {
		t.Errorf("first move should keep the name, got %q", first)
	}

	second, err := MoveToProcessed(write("resume.txt"), newTestLogger())
	if err != nil {
		t.Fatalf("second move failed: %v", err)
	}
	if filepath.Base(second) != "resume_1.txt" {
		t.Errorf("expected resume_1.txt, got %q", filepath.Base(second))
	}

	third, err := MoveToProcessed(write("resume.txt"), newTestLogger())
	if err != nil {
		t.Fatalf("third move failed: %v", err)
	}
	if filepath.Base(third) != "resume_2.txt" {
		t.Errorf("expected resume_2.txt, got %q", filepath.Base(third))
	}

	if _, err := os.Stat(filepath.Join(dir, "resume.txt")); !os.IsNotExist(err) {
		t.Error("source file must be gone after the move")
	}
}
