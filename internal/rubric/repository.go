// Package rubric loads and holds the evaluation rules and prompt steps
// for one run. The repository is immutable after Load.
package rubric

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrMissingBaseInstruction aborts the run before any document is
// processed: without the stage-0 system instruction no prompt is valid.
var ErrMissingBaseInstruction = errors.New("no stage-0 system instruction in steps file")

const banner = "==================================================================================================="

// Repository holds the normalized rules and steps for one evaluation run.
type Repository struct {
	rules  []Rule
	byName map[string]Rule
	steps  []Step
	logger *zerolog.Logger
}

// Load reads the rules and steps files, normalizes every record and
// validates that the base system instruction exists.
func Load(rulesPath, stepsPath string, logger *zerolog.Logger) (*Repository, error) {
	rulesData, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	stepsData, err := os.ReadFile(stepsPath)
	if err != nil {
		return nil, fmt.Errorf("read steps file: %w", err)
	}
	return Parse(rulesData, stepsData, logger)
}

// Parse builds a repository from raw rules and steps JSON.
func Parse(rulesData, stepsData []byte, logger *zerolog.Logger) (*Repository, error) {
	var rawRules map[string]rawRule
	if err := json.Unmarshal(rulesData, &rawRules); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	var rawSteps map[string]rawStep
	if err := json.Unmarshal(stepsData, &rawSteps); err != nil {
		return nil, fmt.Errorf("parse steps: %w", err)
	}

	repo := &Repository{
		byName: make(map[string]Rule, len(rawRules)),
		logger: logger,
	}

	names := make([]string, 0, len(rawRules))
	for name := range rawRules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.HasPrefix(name, "_") {
			continue
		}
		rule := rawRules[name].normalize(name)
		repo.rules = append(repo.rules, rule)
		repo.byName[name] = rule
	}

	stepNames := make([]string, 0, len(rawSteps))
	for name := range rawSteps {
		stepNames = append(stepNames, name)
	}
	sort.Strings(stepNames)
	for _, name := range stepNames {
		repo.steps = append(repo.steps, rawSteps[name].normalize(name))
	}

	if repo.baseInstruction() == "" {
		return nil, ErrMissingBaseInstruction
	}

	logger.Info().
		Int("rules", len(repo.rules)).
		Int("steps", len(repo.steps)).
		Msg("rubric loaded")
	return repo, nil
}

// Rules returns all non-meta rules in name order.
func (r *Repository) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Rule looks up one rule by name.
func (r *Repository) Rule(name string) (Rule, bool) {
	rule, ok := r.byName[name]
	return rule, ok
}

// DataDependencies returns the declared dependencies of every rule that
// has any, keyed by rule name.
func (r *Repository) DataDependencies() map[string][]string {
	deps := make(map[string][]string)
	for _, rule := range r.rules {
		if len(rule.DataDependencies) > 0 {
			deps[rule.Name] = rule.DataDependencies
		}
	}
	return deps
}

// PromptStep returns the prompt template matching a stage and rule
// category, if one exists.
func (r *Repository) PromptStep(stage int, ruleType string) (Step, bool) {
	for _, step := range r.steps {
		if step.Type == StepPrompt && step.Stage == stage && step.RuleType == ruleType {
			return step, true
		}
	}
	return Step{}, false
}

func (r *Repository) baseInstruction() string {
	for _, step := range r.steps {
		if step.Type == StepSystemInstruction && step.Stage == 0 {
			return step.Instruction
		}
	}
	return ""
}

// SystemInstructions assembles the full system prompt supplied to the
// gateway: base instructions, the serialized rubric and the document text.
func (r *Repository) SystemInstructions(documentText string, now time.Time) (string, error) {
	base := r.baseInstruction()
	if base == "" {
		return "", ErrMissingBaseInstruction
	}
	if documentText == "" {
		return "", errors.New("document text must be loaded before building system instructions")
	}

	serialized, err := json.MarshalIndent(r.serializableRules(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize rubric: %w", err)
	}

	var b strings.Builder
	b.WriteString(banner + "\n")
	b.WriteString("TODAY'S DATE: " + now.Format("2006-01-02") + "\n")
	b.WriteString(banner + "\n")
	b.WriteString("BASE SYSTEM INSTRUCTIONS\n")
	b.WriteString(banner + "\n")
	b.WriteString(base + "\n")
	b.WriteString(banner + "\n")
	b.WriteString("EVALUATION RULES\n")
	b.WriteString(banner + "\n")
	b.Write(serialized)
	b.WriteString("\n" + banner + "\n")
	b.WriteString("DOCUMENT TO BE EVALUATED TEXT\n")
	b.WriteString(banner + "\n")
	b.WriteString(documentText + "\n")
	b.WriteString(banner + "\n")
	b.WriteString("END OF DOCUMENT TO BE EVALUATED TEXT\n")
	b.WriteString(banner + "\n")
	return b.String(), nil
}

func (r *Repository) serializableRules() map[string]map[string]any {
	out := make(map[string]map[string]any, len(r.rules))
	for _, rule := range r.rules {
		out[rule.Name] = map[string]any{
			"Type":                         rule.Type,
			"Sub_Type":                     rule.SubType,
			"Stage":                        rule.Stage,
			"Order":                        rule.Order,
			"Weight":                       rule.Weight,
			"value_type":                   rule.ValueType,
			"is_contribute_rating_overall": rule.ContributesToOverall,
			"Description":                  rule.Description,
			"Specification":                rule.Specification,
		}
	}
	return out
}
