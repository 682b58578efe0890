// Package parser extracts, repairs and validates structured JSON from
// raw model output. Models intermittently return bare values instead of
// the requested record shape; the parser never lets an under-shaped
// record through to aggregation.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/arbes-ai/evaluator/internal/models"
	"github.com/arbes-ai/evaluator/internal/rubric"
	"github.com/arbes-ai/evaluator/internal/textclean"
)

// ParseError carries the offending text alongside the cause. A parse
// failure on a batch response triggers the individual fallback; on an
// individual response it becomes a cannot-evaluate entry.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// RuleLookup resolves a result key back to its originating rule, for
// shape repair. Satisfied by (*rubric.Repository).Rule.
type RuleLookup func(name string) (rubric.Rule, bool)

// Parse cleans raw model text, locates the JSON object, parses it and
// repairs every top-level value into the canonical record shape.
func Parse(raw string, lookup RuleLookup) (map[string]models.ResultRecord, error) {
	cleaned := textclean.CleanResponse(raw)

	jsonText := extractJSON(cleaned)
	if jsonText == "" {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("no JSON object in response")}
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	results := make(map[string]models.ResultRecord, len(parsed))
	for name, value := range parsed {
		results[name] = repair(name, value, lookup)
	}
	return results, nil
}

// extractJSON prefers a fenced code block, then falls back to the span
// between the first '{' and the last '}'.
func extractJSON(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}

// repair returns the value unchanged when it already has the canonical
// {type, value, ...} shape, and synthesizes that shape from the
// originating rule otherwise.
func repair(name string, value json.RawMessage, lookup RuleLookup) models.ResultRecord {
	var shaped map[string]json.RawMessage
	if err := json.Unmarshal(value, &shaped); err == nil {
		if _, hasType := shaped["type"]; hasType {
			if _, hasValue := shaped["value"]; hasValue {
				var record models.ResultRecord
				if err := json.Unmarshal(value, &record); err == nil {
					return record
				}
			}
		}
	}

	ruleType, subType := "Core", "None"
	if lookup != nil {
		if rule, ok := lookup(name); ok {
			ruleType = rule.Type
			subType = rule.SubType
			if subType == "" {
				subType = "None"
			}
		}
	}

	return models.ResultRecord{
		Type:         ruleType,
		SubType:      subType,
		Value:        value,
		Eval:         fmt.Sprintf("Evaluated from %s", name),
		Source:       []string{"document"},
		SourceDetail: []string{"Document content"},
	}
}
