// Package skills merges the categorized per-stage skill blocks into one
// deduplicated, scored skills list.
package skills

import (
	"encoding/json"
	"strings"

	"github.com/arbes-ai/evaluator/internal/models"
	"github.com/rs/zerolog"
)

// Base scores per taxonomy source.
const (
	scoreBase     = 5
	scoreDetailed = 7
	scoreVerified = 10
)

// Transformer folds the skills_* content blocks into a single skills_df
// list. Dedup is case-insensitive on the skill name: the first source to
// mention a skill keeps its metadata, later sources may only raise the score.
type Transformer struct {
	skills []models.Skill
	index  map[string]int
	logger *zerolog.Logger
}

func New(logger *zerolog.Logger) *Transformer {
	return &Transformer{index: make(map[string]int), logger: logger}
}

// entry is the loose shape skill blocks arrive in from the model.
// Fields the model sometimes emits as a bare string are normalized.
type entry struct {
	Skill        string     `json:"skill"`
	Role         string     `json:"role"`
	Score        float64    `json:"score"`
	Label        string     `json:"label"`
	SkillGeneric []string   `json:"skill_generic"`
	SkillAlt     []string   `json:"skill_alt"`
	Technologies []string   `json:"technologies"`
	Source       stringList `json:"source"`
	SourceDetail stringList `json:"source_detail"`
}

// stringList accepts a JSON string or list of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			*s = []string{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// Transform rewrites the combined evaluation: every skills_* block is
// consumed in fixed taxonomy order and replaced by one skills_df list.
func (t *Transformer) Transform(combined models.CombinedEvaluation) models.CombinedEvaluation {
	content := combined.Content

	t.addEligibleRoles(content["eligible_roles_df"])
	t.addNonTechnical(content["skills_non_technical_df"])
	t.addTechnologies(content["skills_verified_df"], "high-level", "verified", scoreVerified)
	t.addTechnologies(content["skills_detailed_df"], "category", "detailed", scoreDetailed)
	t.addTechnologies(content["skills_listed_df"], "category", "listed", scoreBase)
	t.addTechnologies(content["skills_software_df"], "category", "software", scoreBase)
	t.addGeneric(content["skills_generic_df"])
	t.addGeneric(content["skills_technology_foundational_df"])
	t.addAlternateNames(content["skills_alt_names_df"])

	kept := make(map[string]models.ResultRecord, len(content))
	for name, record := range content {
		if strings.HasPrefix(name, "skills_") {
			continue
		}
		kept[name] = record
	}

	combined.Content = kept
	combined.Skills = models.SkillList{Value: t.skills}
	if combined.Skills.Value == nil {
		combined.Skills.Value = []models.Skill{}
	}

	t.logger.Info().Int("skills", len(t.skills)).Msg("skills transformation complete")
	return combined
}

// add inserts a skill or merges it into an existing entry. Metadata of
// the first occurrence is kept; the score only ever increases.
func (t *Transformer) add(skill models.Skill) {
	if skill.Skill == "" {
		return
	}
	key := strings.ToLower(skill.Skill)
	if i, ok := t.index[key]; ok {
		if skill.Score > t.skills[i].Score {
			t.skills[i].Score = skill.Score
		}
		return
	}
	t.index[key] = len(t.skills)
	t.skills = append(t.skills, skill)
}

func (t *Transformer) entries(record models.ResultRecord) []entry {
	if len(record.Value) == 0 {
		return nil
	}
	var parsed []entry
	if err := json.Unmarshal(record.Value, &parsed); err != nil {
		t.logger.Warn().Err(err).Msg("skipping malformed skill block")
		return nil
	}
	return parsed
}

func (t *Transformer) addEligibleRoles(record models.ResultRecord) {
	for _, e := range t.entries(record) {
		t.add(models.Skill{Skill: e.Role, Type: "eligible role", Score: scoreVerified})
	}
}

func (t *Transformer) addNonTechnical(record models.ResultRecord) {
	for _, e := range t.entries(record) {
		t.add(models.Skill{
			Skill:        e.Skill,
			Type:         "non-technical",
			Score:        scoreBase,
			Source:       e.Source,
			SourceDetail: e.SourceDetail,
		})
	}
}

// addTechnologies handles the category blocks that carry a parent skill
// plus a technologies list, all at one fixed score.
func (t *Transformer) addTechnologies(record models.ResultRecord, parentType, subType string, score float64) {
	for _, e := range t.entries(record) {
		t.add(models.Skill{Skill: e.Skill, Type: parentType, SubType: subType, Score: score})
		for _, tech := range e.Technologies {
			t.add(models.Skill{Skill: tech, Type: "technology", SubType: subType, Score: score})
		}
	}
}

func (t *Transformer) addGeneric(record models.ResultRecord) {
	for _, e := range t.entries(record) {
		score := e.Score
		if score == 0 {
			score = scoreBase
		}
		t.add(models.Skill{Skill: e.Skill, Type: "main", Score: score})
		for _, generic := range e.SkillGeneric {
			t.add(models.Skill{Skill: generic, Type: "generic", Score: scoreBase})
		}
	}
}

func (t *Transformer) addAlternateNames(record models.ResultRecord) {
	for _, e := range t.entries(record) {
		score := e.Score
		if score == 0 {
			score = scoreBase
		}
		t.add(models.Skill{
			Skill:        e.Skill,
			Type:         "main",
			Score:        score,
			Label:        e.Label,
			Source:       e.Source,
			SourceDetail: e.SourceDetail,
		})
		for _, alt := range e.SkillAlt {
			t.add(models.Skill{
				Skill:        alt,
				Type:         "alternate",
				MainSkill:    e.Skill,
				Score:        score,
				Label:        e.Label,
				Source:       e.Source,
				SourceDetail: e.SourceDetail,
			})
		}
	}
}
