package skills

import (
	"encoding/json"
	"testing"

	"github.com/arbes-ai/evaluator/internal/models"
	"github.com/rs/zerolog"
)

func newTransformer() *Transformer {
	logger := zerolog.Nop()
	return New(&logger)
}

func block(value string) models.ResultRecord {
	return models.ResultRecord{Type: "Skills", Value: json.RawMessage(value)}
}

func combinedWith(content map[string]models.ResultRecord) models.CombinedEvaluation {
	return models.CombinedEvaluation{Content: content}
}

func find(list []models.Skill, name string) (models.Skill, bool) {
	for _, s := range list {
		if s.Skill == name {
			return s, true
		}
	}
	return models.Skill{}, false
}

func TestTransform_DedupCaseInsensitive(t *testing.T) {
	content := map[string]models.ResultRecord{
		"skills_generic_df":  block(`[{"skill": "Python", "score": 5}]`),
		"skills_verified_df": block(`[{"skill": "python"}]`),
	}

	out := newTransformer().Transform(combinedWith(content))

	count := 0
	var kept models.Skill
	for _, s := range out.Skills.Value {
		if s.Skill == "Python" || s.Skill == "python" {
			count++
			kept = s
		}
	}
	if count != 1 {
		t.Fatalf("expected one deduplicated entry, got %d", count)
	}
	if kept.Score != 10 {
		t.Errorf("expected merged score 10, got %g", kept.Score)
	}
}

func TestTransform_ScoreMergeOrderIndependent(t *testing.T) {
	// verified (10) processed before generic (5) in taxonomy order, so
	// run it both ways through add directly
	forward := newTransformer()
	forward.add(models.Skill{Skill: "Python", Type: "generic", Score: 5})
	forward.add(models.Skill{Skill: "python", Type: "high-level", Score: 10})

	reverse := newTransformer()
	reverse.add(models.Skill{Skill: "python", Type: "high-level", Score: 10})
	reverse.add(models.Skill{Skill: "Python", Type: "generic", Score: 5})

	if len(forward.skills) != 1 || len(reverse.skills) != 1 {
		t.Fatalf("expected single entries, got %d and %d", len(forward.skills), len(reverse.skills))
	}
	if forward.skills[0].Score != 10 || reverse.skills[0].Score != 10 {
		t.Errorf("merge must keep max score regardless of order: %g vs %g",
			forward.skills[0].Score, reverse.skills[0].Score)
	}
}

func TestTransform_FirstSeenMetadataWins(t *testing.T) {
	tr := newTransformer()
	tr.add(models.Skill{Skill: "Go", Type: "high-level", SubType: "verified", Score: 10})
	tr.add(models.Skill{Skill: "go", Type: "generic", Score: 5})

	s := tr.skills[0]
	if s.Type != "high-level" || s.SubType != "verified" {
		t.Errorf("first-seen metadata must be kept, got %+v", s)
	}
}

func TestTransform_CategoryScores(t *testing.T) {
	content := map[string]models.ResultRecord{
		"eligible_roles_df":  block(`[{"role": "Backend Engineer"}]`),
		"skills_verified_df": block(`[{"skill": "Kubernetes", "technologies": ["Helm"]}]`),
		"skills_detailed_df": block(`[{"skill": "Databases", "technologies": ["Postgres"]}]`),
		"skills_listed_df":   block(`[{"skill": "Cloud", "technologies": ["AWS"]}]`),
	}

	out := newTransformer().Transform(combinedWith(content))

	cases := []struct {
		name  string
		score float64
		typ   string
	}{
		{"Backend Engineer", 10, "eligible role"},
		{"Kubernetes", 10, "high-level"},
		{"Helm", 10, "technology"},
		{"Databases", 7, "category"},
		{"Postgres", 7, "technology"},
		{"Cloud", 5, "category"},
		{"AWS", 5, "technology"},
	}
	for _, tc := range cases {
		s, ok := find(out.Skills.Value, tc.name)
		if !ok {
			t.Errorf("missing skill %q", tc.name)
			continue
		}
		if s.Score != tc.score {
			t.Errorf("%s: expected score %g, got %g", tc.name, tc.score, s.Score)
		}
		if s.Type != tc.typ {
			t.Errorf("%s: expected type %q, got %q", tc.name, tc.typ, s.Type)
		}
	}
}

func TestTransform_AlternateNames(t *testing.T) {
	content := map[string]models.ResultRecord{
		"skills_alt_names_df": block(`[{"skill": "Kubernetes", "score": 8, "skill_alt": ["k8s"], "source": "resume"}]`),
	}

	out := newTransformer().Transform(combinedWith(content))

	alt, ok := find(out.Skills.Value, "k8s")
	if !ok {
		t.Fatal("missing alternate name k8s")
	}
	if alt.Type != "alternate" || alt.MainSkill != "Kubernetes" || alt.Score != 8 {
		t.Errorf("unexpected alternate entry %+v", alt)
	}
	if len(alt.Source) != 1 || alt.Source[0] != "resume" {
		t.Errorf("string source must normalize to a list, got %v", alt.Source)
	}
}

func TestTransform_RemovesSkillBlocks(t *testing.T) {
	content := map[string]models.ResultRecord{
		"skills_listed_df": block(`[{"skill": "X"}]`),
		"years_experience": {Type: "Core", Value: json.RawMessage("8")},
	}

	out := newTransformer().Transform(combinedWith(content))

	if _, ok := out.Content["skills_listed_df"]; ok {
		t.Error("skills_ blocks must be removed from content")
	}
	if _, ok := out.Content["years_experience"]; !ok {
		t.Error("non-skill content must survive")
	}
	if len(out.Skills.Value) == 0 {
		t.Error("skills list must be populated")
	}
}

func TestTransform_MalformedBlockSkipped(t *testing.T) {
	content := map[string]models.ResultRecord{
		"skills_listed_df":   block(`"not a list"`),
		"skills_verified_df": block(`[{"skill": "Rust"}]`),
	}

	out := newTransformer().Transform(combinedWith(content))

	if _, ok := find(out.Skills.Value, "Rust"); !ok {
		t.Error("well-formed blocks must still be processed")
	}
}

func TestTransform_EmptyContent(t *testing.T) {
	out := newTransformer().Transform(combinedWith(nil))
	if out.Skills.Value == nil {
		t.Error("skills list must be non-nil even when empty")
	}
}
