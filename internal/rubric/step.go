package rubric

import "strings"

// Step types.
const (
	StepSystemInstruction = "SystemInstruction"
	StepPrompt            = "Prompt"
)

// Step is a prompt or instruction template tied to a stage and
// optionally a rule category.
type Step struct {
	Name        string
	Type        string
	Stage       int
	Order       int
	Instruction string
	RuleType    string
}

type rawStep struct {
	Type        string  `json:"Type"`
	Stage       flexInt `json:"Stage"`
	Order       flexInt `json:"Order"`
	Instruction string  `json:"Instruction"`
	Name        string  `json:"Name"`
}

func (raw rawStep) normalize(name string) Step {
	return Step{
		Name:        name,
		Type:        canonicalStepType(raw.Type),
		Stage:       raw.Stage.value(1),
		Order:       raw.Order.value(1),
		Instruction: raw.Instruction,
		RuleType:    raw.Name,
	}
}

// canonicalStepType folds the legacy "System Instruction" spelling onto
// the canonical one.
func canonicalStepType(t string) string {
	if strings.EqualFold(strings.ReplaceAll(t, " ", ""), StepSystemInstruction) {
		return StepSystemInstruction
	}
	return t
}
