package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// AnalysisSchemaVersion is the current version of the AnalysisResult schema.
// New fields are only ever added as optional, so older results stay parseable.
const AnalysisSchemaVersion = 1

// Confidence is the ordinal strength of an identified relationship.
type Confidence string

// Confidence levels.
const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// IsValid returns true if the confidence is one of the three levels.
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	default:
		return false
	}
}

// Rank returns 1, 2 or 3 for low, medium and high; 0 if invalid.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 1
	case ConfidenceMedium:
		return 2
	case ConfidenceHigh:
		return 3
	default:
		return 0
	}
}

// String returns the string representation.
func (c Confidence) String() string {
	return string(c)
}

// AllConfidences returns the confidence levels in ascending order.
func AllConfidences() []Confidence {
	return []Confidence{ConfidenceLow, ConfidenceMedium, ConfidenceHigh}
}

// ReasoningStep is one step of the model's stated reasoning.
type ReasoningStep struct {
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
}

// TextualIntersection describes one point where the two passages meet.
type TextualIntersection struct {
	// SharedElements are surface features both passages have in common.
	SharedElements []string `json:"shared_elements"`

	// TransformationType names how the element changed (inversion, parody, ...).
	TransformationType string `json:"transformation_type"`

	// DialogicRelationship names the stance between the texts (echo, contest, ...).
	DialogicRelationship string `json:"dialogic_relationship"`

	// MeaningTransformation explains what the shift does to meaning.
	MeaningTransformation string `json:"meaning_transformation"`
}

// Verdict is the overall judgment. It only exists as a whole: a result either
// has both a meaningfulness flag and a confidence, or neither.
type Verdict struct {
	Meaningful bool
	Confidence Confidence
}

// AnalysisResult is the structured judgment about a (query, passage) pair.
type AnalysisResult struct {
	SchemaVersion        int
	InitialObservation   string
	ReasoningSteps       []ReasoningStep
	TextualIntersections []TextualIntersection
	Verdict              *Verdict
	SupportingEvidence   []string
	Critique             string
}

// analysisWire is the JSON shape exchanged with providers and stored on disk.
type analysisWire struct {
	SchemaVersion          int                   `json:"schema_version,omitempty"`
	InitialObservation     string                `json:"initial_observation"`
	ReasoningSteps         []ReasoningStep       `json:"reasoning_steps"`
	TextualIntersections   []TextualIntersection `json:"textual_intersections"`
	MeaningfulRelationship *bool                 `json:"meaningful_relationship,omitempty"`
	Confidence             *Confidence           `json:"confidence,omitempty"`
	SupportingEvidence     []string              `json:"supporting_evidence"`
	Critique               string                `json:"critique,omitempty"`
}

// Validate checks the invariants of a result.
func (r *AnalysisResult) Validate() error {
	if r.SchemaVersion < 1 || r.SchemaVersion > AnalysisSchemaVersion {
		return fmt.Errorf("%w: unsupported schema version %d", ErrSchemaValidation, r.SchemaVersion)
	}
	if strings.TrimSpace(r.InitialObservation) == "" {
		return fmt.Errorf("%w: initial_observation is empty", ErrSchemaValidation)
	}
	if r.Verdict != nil && !r.Verdict.Confidence.IsValid() {
		return fmt.Errorf("%w: confidence %q is not one of low, medium, high",
			ErrSchemaValidation, r.Verdict.Confidence)
	}
	return nil
}

// MarshalJSON encodes the result in its wire shape.
func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	wire := analysisWire{
		SchemaVersion:        r.SchemaVersion,
		InitialObservation:   r.InitialObservation,
		ReasoningSteps:       r.ReasoningSteps,
		TextualIntersections: r.TextualIntersections,
		SupportingEvidence:   r.SupportingEvidence,
		Critique:             r.Critique,
	}
	if r.Verdict != nil {
		meaningful := r.Verdict.Meaningful
		confidence := r.Verdict.Confidence
		wire.MeaningfulRelationship = &meaningful
		wire.Confidence = &confidence
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the wire shape, enforcing that the verdict is
// either complete or absent.
func (r *AnalysisResult) UnmarshalJSON(data []byte) error {
	var wire analysisWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	if (wire.MeaningfulRelationship == nil) != (wire.Confidence == nil) {
		return fmt.Errorf("%w: meaningful_relationship and confidence must be set together",
			ErrSchemaValidation)
	}

	*r = AnalysisResult{
		SchemaVersion:        wire.SchemaVersion,
		InitialObservation:   wire.InitialObservation,
		ReasoningSteps:       wire.ReasoningSteps,
		TextualIntersections: wire.TextualIntersections,
		SupportingEvidence:   wire.SupportingEvidence,
		Critique:             wire.Critique,
	}
	if wire.MeaningfulRelationship != nil {
		r.Verdict = &Verdict{
			Meaningful: *wire.MeaningfulRelationship,
			Confidence: *wire.Confidence,
		}
	}
	return nil
}

// ParseAnalysisResult decodes and validates a raw model payload.
// Markdown code fences around the JSON are tolerated. A payload without
// a schema_version is taken to be the current version.
func ParseAnalysisResult(raw string) (*AnalysisResult, error) {
	payload := stripCodeFence(raw)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrSchemaValidation)
	}

	var result AnalysisResult
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	if err := dec.Decode(&result); err != nil {
		if errors.Is(err, ErrSchemaValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrSchemaValidation, err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after the analysis object", ErrSchemaValidation)
	}

	if result.SchemaVersion == 0 {
		result.SchemaVersion = AnalysisSchemaVersion
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// AnalysisSchemaName is the name under which the schema is sent to providers.
const AnalysisSchemaName = "intertextual_analysis"

// AnalysisJSONSchema returns the JSON Schema requested from the LLM.
// Every property is required and no extras are allowed so that providers
// with strict structured output accept it unchanged.
func AnalysisJSONSchema() map[string]any {
	str := map[string]any{"type": "string"}
	strList := map[string]any{"type": "array", "items": str}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required": []string{
			"initial_observation", "reasoning_steps", "textual_intersections",
			"meaningful_relationship", "confidence", "supporting_evidence", "critique",
		},
		"properties": map[string]any{
			"initial_observation": str,
			"reasoning_steps": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"description", "evidence"},
					"properties": map[string]any{
						"description": str,
						"evidence":    str,
					},
				},
			},
			"textual_intersections": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required": []string{
						"shared_elements", "transformation_type",
						"dialogic_relationship", "meaning_transformation",
					},
					"properties": map[string]any{
						"shared_elements":        strList,
						"transformation_type":    str,
						"dialogic_relationship":  str,
						"meaning_transformation": str,
					},
				},
			},
			"meaningful_relationship": map[string]any{"type": "boolean"},
			"confidence": map[string]any{
				"type": "string",
				"enum": []string{"low", "medium", "high"},
			},
			"supporting_evidence": strList,
			"critique":            str,
		},
	}
}
