// Package prompt renders rules and batches of rules into final prompt
// text, prepending dependency-resolved conversation history.
package prompt

import (
	"fmt"
	"strings"

	"github.com/arbes-ai/evaluator/internal/rubric"
	"github.com/arbes-ai/evaluator/internal/textclean"
)

// HistoryResolver renders prior interactions for a set of prompt names.
// Satisfied by *history.Store.
type HistoryResolver interface {
	ResolveDependencies(names []string) string
}

// Compiler builds prompts for the gateway.
type Compiler struct {
	resolver HistoryResolver
}

// NewCompiler returns a compiler bound to one document's history store.
func NewCompiler(resolver HistoryResolver) *Compiler {
	return &Compiler{resolver: resolver}
}

// Single renders the prompt for one rule. Declared dependencies are
// resolved and prepended as conversation history.
func (c *Compiler) Single(rule rubric.Rule) string {
	var b strings.Builder
	b.WriteString("Please evaluate the following attribute:\n\n")
	b.WriteString("Attribute Name: " + rule.Name + "\n")
	b.WriteString("Description: " + textclean.CleanPrompt(rule.Description) + "\n")
	if rule.Specification != "" {
		b.WriteString("Specification for Attribute 'value' field: " + textclean.CleanPrompt(rule.Specification) + "\n")
	}
	b.WriteString("\nPlease provide your evaluation in JSON format.")
	return c.WithHistory(rule.DataDependencies, b.String())
}

// Batch renders one combined prompt covering every rule, requesting a
// single JSON reply keyed by rule name.
func (c *Compiler) Batch(rules []rubric.Rule) string {
	var b strings.Builder
	b.WriteString("Please evaluate the following attributes together:\n")

	var deps []string
	for _, rule := range rules {
		b.WriteString(fmt.Sprintf("\n=========================== %s ===========================\n", rule.Name))
		writeField(&b, "Attribute Name", rule.Name)
		writeField(&b, "Type", rule.Type)
		writeField(&b, "Sub_Type", rule.SubType)
		writeField(&b, "Value Type", rule.ValueType)
		if rule.Weight != 0 {
			writeField(&b, "Weight", fmt.Sprintf("%g", rule.Weight))
		}
		writeField(&b, "Contributes To Overall Rating", fmt.Sprintf("%t", rule.ContributesToOverall))
		writeField(&b, "Description", textclean.CleanPrompt(rule.Description))
		if rule.Specification != "" {
			b.WriteString("\n")
			writeField(&b, "Specification", textclean.CleanPrompt(rule.Specification))
		}
		if len(rule.DataDependencies) > 0 {
			writeField(&b, "Data Dependencies", strings.Join(rule.DataDependencies, ", "))
			deps = append(deps, rule.DataDependencies...)
		}
	}

	b.WriteString("\nPlease provide your evaluation in JSON format with results for each attribute, ")
	b.WriteString("using the attribute names above as top-level keys.")
	return c.WithHistory(deps, b.String())
}

// WithHistory prepends the resolved history for deps to body. Used
// directly when a rubric step supplies the prompt text itself.
func (c *Compiler) WithHistory(deps []string, body string) string {
	if len(deps) == 0 {
		return body
	}
	resolved := c.resolver.ResolveDependencies(dedupe(deps))
	if resolved == "" {
		return body
	}
	return resolved + "===\nBased on the conversation history above, please answer: " + body
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString(name + ": " + value + "\n")
}

// dedupe preserves first-appearance order.
func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
