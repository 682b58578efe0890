package models

import (
	"encoding/json"
	"time"
)

// CannotEvaluateKey is the reserved per-stage key that accumulates
// failure records for rules that could not be scored.
const CannotEvaluateKey = "_meta_cant_be_evaluated_df"

// ResultRecord is the canonical shape of one evaluated attribute.
// The parser guarantees every record entering aggregation has this shape.
type ResultRecord struct {
	Type         string          `json:"type"`
	SubType      string          `json:"sub_type"`
	Value        json.RawMessage `json:"value"`
	Eval         string          `json:"eval"`
	Source       []string        `json:"source"`
	SourceDetail []string        `json:"source_detail"`
}

// Float returns the record value as a float64 when it holds a JSON number
// or a numeric string.
func (r ResultRecord) Float() (float64, bool) {
	var f float64
	if err := json.Unmarshal(r.Value, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(r.Value, &s); err == nil {
		var sf float64
		if err := json.Unmarshal([]byte(s), &sf); err == nil {
			return sf, true
		}
	}
	return 0, false
}

// CannotEvaluate records one rule that could not be scored, with reason.
type CannotEvaluate struct {
	FieldName string `json:"field_name"`
	Type      string `json:"type"`
	SubType   string `json:"sub_type"`
	Reason    string `json:"reason"`
}

// Metadata identifies the evaluated document and when the run happened.
type Metadata struct {
	EvaluationDate time.Time `json:"evaluation_date"`
	SourceFile     string    `json:"source_file"`
	SourceText     string    `json:"source_txt"`
}

// OverallEvaluation is the weighted aggregate score and its qualitative label.
type OverallEvaluation struct {
	Score  float64 `json:"score"`
	Rating string  `json:"rating"`
}

// Summary counts evaluated fields and carries the failure list.
type Summary struct {
	EvaluatedFields  int              `json:"evaluated_fields"`
	UnableToEvaluate []CannotEvaluate `json:"unable_to_evaluate"`
}

// Skill is one entry in the deduplicated skills collection.
type Skill struct {
	Skill        string   `json:"skill"`
	Type         string   `json:"type"`
	SubType      string   `json:"sub_type,omitempty"`
	MainSkill    string   `json:"main_skill,omitempty"`
	Label        string   `json:"label,omitempty"`
	Score        float64  `json:"score"`
	Source       []string `json:"source,omitempty"`
	SourceDetail []string `json:"source_detail,omitempty"`
}

// SkillList is the unified skills content block.
type SkillList struct {
	Value []Skill `json:"value"`
}

// StageSection is one stage's exported results. In the artifact the
// failure records travel inside the stage object itself, under the
// reserved CannotEvaluateKey, next to the attribute results.
type StageSection struct {
	Results  map[string]ResultRecord
	Failures []CannotEvaluate
}

func (s StageSection) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.Results)+1)
	for name, record := range s.Results {
		data, err := json.Marshal(record)
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	if len(s.Failures) > 0 {
		data, err := json.Marshal(s.Failures)
		if err != nil {
			return nil, err
		}
		out[CannotEvaluateKey] = data
	}
	return json.Marshal(out)
}

func (s *StageSection) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Results = make(map[string]ResultRecord, len(raw))
	s.Failures = nil
	for name, value := range raw {
		if name == CannotEvaluateKey {
			if err := json.Unmarshal(value, &s.Failures); err != nil {
				return err
			}
			continue
		}
		var record ResultRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return err
		}
		s.Results[name] = record
	}
	return nil
}

// CombinedEvaluation is the final per-document artifact.
type CombinedEvaluation struct {
	Metadata          Metadata                `json:"metadata"`
	OverallEvaluation OverallEvaluation       `json:"overall_evaluation"`
	Content           map[string]ResultRecord `json:"content"`
	Skills            SkillList               `json:"skills_df"`
	Stage1            StageSection            `json:"stage_1"`
	Stage2            StageSection            `json:"stage_2"`
	Stage3            StageSection            `json:"stage_3"`
	Summary           Summary                 `json:"summary"`
}

// EvaluationRequest is an inbound request to evaluate one document, as
// accepted by the HTTP API, the stream consumer and the MCP tool.
type EvaluationRequest struct {
	DocumentID   string `json:"document_id"`
	DocumentText string `json:"document_text"`
	SourceName   string `json:"source_name,omitempty"`
}
