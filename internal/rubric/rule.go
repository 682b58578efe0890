package rubric

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value types a rule can declare for its result.
const (
	ValueInteger = "Integer"
	ValueDecimal = "Decimal"
	ValueString  = "String"
	ValueList    = "List"
)

// TypeCore marks rules that participate in the overall score.
const TypeCore = "Core"

// HistPreClear marks a rule as safe to batch: it resets conversation
// history before execution and carries no coupling to its neighbors.
const HistPreClear = "pre_clear"

// Rule is one weighted evaluation criterion. Fields are normalized once
// at load time; downstream code never applies defaults.
type Rule struct {
	Name                 string
	Type                 string
	SubType              string
	Stage                int
	Order                int
	Weight               float64
	ValueType            string
	ContributesToOverall bool
	ModelPreference      []string
	HistoryHandling      []string
	Description          string
	Specification        string
	DataDependencies     []string
}

// PrimaryModel returns the first model preference, or fallback when the
// rule declares none.
func (r Rule) PrimaryModel(fallback string) string {
	if len(r.ModelPreference) > 0 && r.ModelPreference[0] != "" {
		return r.ModelPreference[0]
	}
	return fallback
}

// Batchable reports whether the rule resets history before execution and
// can therefore share a model call with others.
func (r Rule) Batchable() bool {
	for _, h := range r.HistoryHandling {
		if h == HistPreClear {
			return true
		}
	}
	return false
}

// Numeric reports whether the rule's value type is scoreable.
func (r Rule) Numeric() bool {
	return r.ValueType == ValueInteger || r.ValueType == ValueDecimal
}

// rawRule mirrors the on-disk rubric record. Stage, Order and Weight may
// arrive as strings or numbers; booleans may arrive as "True"/"False".
type rawRule struct {
	Type                 string      `json:"Type"`
	SubType              string      `json:"Sub_Type"`
	Stage                flexInt     `json:"Stage"`
	Order                flexInt     `json:"Order"`
	Weight               flexFloat   `json:"Weight"`
	ValueType            string      `json:"value_type"`
	ContributesToOverall flexBool    `json:"is_contribute_rating_overall"`
	Model                stringSlice `json:"Model"`
	HistHandling         stringSlice `json:"Hist Handling"`
	Description          string      `json:"Description"`
	Specification        string      `json:"Specification"`
	DataDependency       stringSlice `json:"Data Dependency"`
}

func (raw rawRule) normalize(name string) Rule {
	stage := raw.Stage.value(1)
	if stage < 0 {
		stage = 1
	}
	order := raw.Order.value(1)
	if order < 0 {
		order = 1
	}
	return Rule{
		Name:                 name,
		Type:                 raw.Type,
		SubType:              raw.SubType,
		Stage:                stage,
		Order:                order,
		Weight:               float64(raw.Weight),
		ValueType:            raw.ValueType,
		ContributesToOverall: bool(raw.ContributesToOverall),
		ModelPreference:      raw.Model,
		HistoryHandling:      raw.HistHandling,
		Description:          raw.Description,
		Specification:        raw.Specification,
		DataDependencies:     raw.DataDependency,
	}
}

// flexInt accepts a JSON number or a numeric string.
type flexInt struct {
	set bool
	n   int
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// tolerate decimals like "2.0"
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("not an integer: %q", s)
		}
		n = int(fl)
	}
	f.set = true
	f.n = n
	return nil
}

func (f flexInt) value(def int) int {
	if !f.set {
		return def
	}
	return f.n
}

// flexFloat accepts a JSON number or a numeric string; defaults to 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*f = flexFloat(v)
	return nil
}

// flexBool accepts true/false or the strings "True"/"False".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "true":
		*b = true
	case "false", "", "null":
		*b = false
	default:
		return fmt.Errorf("not a boolean: %q", s)
	}
	return nil
}

// stringSlice accepts a JSON array of strings or a single string.
type stringSlice []string

func (s *stringSlice) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	if one != "" {
		*s = []string{one}
	}
	return nil
}
