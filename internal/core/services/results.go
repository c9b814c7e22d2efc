package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// Result table column names.
const (
	ColRunID                  = "run_id"
	ColQueryLabel             = "query_label"
	ColQueryText              = "query_text"
	ColPassageLabel           = "passage_label"
	ColPassageText            = "passage_text"
	ColSimilarityScore        = "similarity_score"
	ColSimilarityType         = "similarity_type"
	ColSchemaVersion          = "schema_version"
	ColInitialObservation     = "initial_observation"
	ColReasoningSteps         = "reasoning_steps"
	ColSharedElements         = "intersection_shared_elements"
	ColTransformationType     = "intersection_transformation_type"
	ColDialogicRelationship   = "intersection_dialogic_relationship"
	ColMeaningTransformation  = "intersection_meaning_transformation"
	ColIntersectionCount      = "intersection_count"
	ColMeaningfulRelationship = "meaningful_relationship"
	ColConfidence             = "confidence"
	ColSupportingEvidence     = "supporting_evidence"
	ColCritique               = "critique"
	ColPromptTemplate         = "prompt_template"
	ColModel                  = "model"
	ColError                  = "error"

	queryMetaPrefix   = "query_meta_"
	passageMetaPrefix = "passage_meta_"
)

// PreferredColumns is the fixed leading column order of the results table.
func PreferredColumns() []string {
	return []string{
		ColRunID, ColQueryLabel, ColQueryText, ColPassageLabel, ColPassageText,
		ColSimilarityScore, ColSimilarityType, ColSchemaVersion,
		ColInitialObservation, ColReasoningSteps,
		ColSharedElements, ColTransformationType, ColDialogicRelationship,
		ColMeaningTransformation, ColIntersectionCount,
		ColMeaningfulRelationship, ColConfidence, ColSupportingEvidence, ColCritique,
		ColPromptTemplate, ColModel, ColError,
	}
}

// BuildResultTable flattens records into one row per pair.
// The first textual intersection is inlined and the rest are only counted.
// Columns are the preferred list followed by flattened metadata columns in
// sorted order.
func BuildResultTable(records []domain.ResultRecord) ([]string, []map[string]string) {
	rows := make([]map[string]string, 0, len(records))
	extras := make(map[string]struct{})

	for _, rec := range records {
		row := resultRow(rec)
		for key, value := range rec.Query.Metadata {
			col := queryMetaPrefix + key
			row[col] = formatValue(value)
			extras[col] = struct{}{}
		}
		for key, value := range rec.Passage.Metadata {
			col := passageMetaPrefix + key
			row[col] = formatValue(value)
			extras[col] = struct{}{}
		}
		rows = append(rows, row)
	}

	extraCols := make([]string, 0, len(extras))
	for col := range extras {
		extraCols = append(extraCols, col)
	}
	sort.Strings(extraCols)

	return append(PreferredColumns(), extraCols...), rows
}

func resultRow(rec domain.ResultRecord) map[string]string {
	row := map[string]string{
		ColRunID:          rec.RunID,
		ColQueryLabel:     rec.Query.Label(),
		ColQueryText:      rec.Query.Content,
		ColPassageLabel:   rec.Passage.Label(),
		ColPassageText:    rec.Passage.Content,
		ColSimilarityType: rec.Passage.SimilarityType.String(),
		ColPromptTemplate: rec.PromptTemplate,
		ColModel:          rec.Model,
		ColError:          rec.Error,
	}
	if rec.Passage.SimilarityType.IsValid() {
		row[ColSimilarityScore] = strconv.FormatFloat(rec.Passage.Score, 'f', 4, 64)
	}

	r := rec.Result
	if r == nil {
		return row
	}

	row[ColSchemaVersion] = strconv.Itoa(r.SchemaVersion)
	row[ColInitialObservation] = r.InitialObservation
	row[ColReasoningSteps] = formatReasoning(r.ReasoningSteps)
	row[ColIntersectionCount] = strconv.Itoa(len(r.TextualIntersections))
	if len(r.TextualIntersections) > 0 {
		first := r.TextualIntersections[0]
		row[ColSharedElements] = strings.Join(first.SharedElements, "; ")
		row[ColTransformationType] = first.TransformationType
		row[ColDialogicRelationship] = first.DialogicRelationship
		row[ColMeaningTransformation] = first.MeaningTransformation
	}
	if r.Verdict != nil {
		row[ColMeaningfulRelationship] = strconv.FormatBool(r.Verdict.Meaningful)
		row[ColConfidence] = r.Verdict.Confidence.String()
	}
	row[ColSupportingEvidence] = strings.Join(r.SupportingEvidence, "; ")
	row[ColCritique] = r.Critique
	return row
}

// formatReasoning numbers each step as "1. description (evidence)".
func formatReasoning(steps []domain.ReasoningStep) string {
	parts := make([]string, 0, len(steps))
	for i, step := range steps {
		part := fmt.Sprintf("%d. %s", i+1, step.Description)
		if step.Evidence != "" {
			part += " (" + step.Evidence + ")"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "\n")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
