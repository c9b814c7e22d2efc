package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
)

func odysseyPassage() domain.Chunk {
	return domain.Chunk{
		ID:      "od-1",
		Content: odysseyText,
		Metadata: map[string]any{
			domain.MetaChapter:     "BOOK I.",
			domain.MetaChunkNumber: 1,
		},
	}.WithScore(0.4242, domain.SimilaritySimilar)
}

func TestAnalysisStep_Analyze_ParsesPayloadExactly(t *testing.T) {
	llm := newFakeLLM(samplePayload)
	step := NewAnalysisStep(llm, defaultFakePrompts(), AnalysisStepConfig{})

	result, usage, err := step.Analyze(context.Background(), dallowayText, odysseyPassage(), "")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, domain.AnalysisSchemaVersion, result.SchemaVersion)
	assert.Equal(t, "Both passages open on a morning errand framed as a journey.", result.InitialObservation)
	assert.Equal(t, []domain.ReasoningStep{
		{Description: "Compare openings", Evidence: "buy the flowers / man of many devices"},
	}, result.ReasoningSteps)
	require.Len(t, result.TextualIntersections, 2)
	assert.Equal(t, []string{"invocation", "departure"}, result.TextualIntersections[0].SharedElements)
	assert.Equal(t, "ironic echo", result.TextualIntersections[0].DialogicRelationship)
	require.NotNil(t, result.Verdict)
	assert.True(t, result.Verdict.Meaningful)
	assert.Equal(t, domain.ConfidenceMedium, result.Verdict.Confidence)
	assert.Equal(t, []string{"Woolf's journey structure", "single day frame"}, result.SupportingEvidence)
	assert.Equal(t, "The link may be generic.", result.Critique)

	assert.Equal(t, llm.usage, usage)
}

func TestAnalysisStep_Analyze_Request(t *testing.T) {
	llm := newFakeLLM(samplePayload)
	step := NewAnalysisStep(llm, defaultFakePrompts(), AnalysisStepConfig{Temperature: 0, MaxTokens: 500})

	_, _, err := step.Analyze(context.Background(), dallowayText, odysseyPassage(), "")
	require.NoError(t, err)
	require.Equal(t, 1, llm.callCount())

	call := llm.calls[0]
	require.Len(t, call.messages, 2)
	assert.Equal(t, driven.RoleSystem, call.messages[0].Role)
	assert.Equal(t, "You are a literary scholar.", call.messages[0].Content)
	assert.Equal(t, driven.RoleUser, call.messages[1].Role)
	assert.Equal(t,
		"Query: "+dallowayText+"\nPassage (BOOK I._1, similar, 0.42): "+odysseyText,
		call.messages[1].Content)

	assert.Equal(t, 500, call.opts.MaxTokens)
	assert.Zero(t, call.opts.Temperature)
	require.NotNil(t, call.opts.Schema)
	assert.Equal(t, domain.AnalysisSchemaName, call.opts.Schema.Name)
	assert.NotEmpty(t, call.opts.Schema.Schema)
}

func TestAnalysisStep_Analyze_SystemPromptOverride(t *testing.T) {
	llm := newFakeLLM(samplePayload)
	step := NewAnalysisStep(llm, defaultFakePrompts(), AnalysisStepConfig{SystemPrompt: "close_reader"})

	_, _, err := step.Analyze(context.Background(), dallowayText, odysseyPassage(), "")
	require.NoError(t, err)
	_, _, err = step.Analyze(context.Background(), dallowayText, odysseyPassage(), "skeptic")
	require.NoError(t, err)

	assert.Equal(t, "You are a close reader.", llm.calls[0].messages[0].Content)
	assert.Equal(t, "You are a skeptic.", llm.calls[1].messages[0].Content)
	assert.Equal(t, "skeptic", step.SystemPromptName("skeptic"))
	assert.Equal(t, "close_reader", step.SystemPromptName(""))
}

func TestAnalysisStep_Analyze_Errors(t *testing.T) {
	tests := []struct {
		name      string
		llm       *fakeLLM
		prompts   fakePrompts
		override  string
		wantIs    error
		wantUsage bool
	}{
		{
			name:      "unparseable payload",
			llm:       newFakeLLM("I think these passages are related."),
			prompts:   defaultFakePrompts(),
			wantIs:    domain.ErrSchemaValidation,
			wantUsage: true,
		},
		{
			name:      "missing verdict",
			llm:       newFakeLLM(`{"initial_observation": "x", "reasoning_steps": [], "textual_intersections": [], "supporting_evidence": []}`),
			prompts:   defaultFakePrompts(),
			wantIs:    domain.ErrSchemaValidation,
			wantUsage: true,
		},
		{
			name:      "invalid confidence",
			llm:       newFakeLLM(`{"initial_observation": "x", "meaningful_relationship": false, "confidence": "certain"}`),
			prompts:   defaultFakePrompts(),
			wantIs:    domain.ErrSchemaValidation,
			wantUsage: true,
		},
		{
			name:     "unknown system prompt",
			llm:      newFakeLLM(samplePayload),
			prompts:  defaultFakePrompts(),
			override: "nonexistent",
			wantIs:   domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := NewAnalysisStep(tt.llm, tt.prompts, AnalysisStepConfig{})

			result, usage, err := step.Analyze(context.Background(), dallowayText, odysseyPassage(), tt.override)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, tt.wantUsage, usage.Calls > 0)
		})
	}
}

func TestAnalysisStep_Analyze_LLMFailure(t *testing.T) {
	llm := newFakeLLM(samplePayload)
	llm.err = errors.New("anthropic error (status 401): invalid x-api-key")
	step := NewAnalysisStep(llm, defaultFakePrompts(), AnalysisStepConfig{})

	_, _, err := step.Analyze(context.Background(), dallowayText, odysseyPassage(), "")

	require.Error(t, err)
	assert.ErrorIs(t, err, llm.err)
	assert.Contains(t, err.Error(), "BOOK I._1")
}

func TestAnalysisStep_Analyze_BadTemplate(t *testing.T) {
	prompts := defaultFakePrompts()
	prompts[driven.PromptAnalysis] = "{{.QueryText"
	step := NewAnalysisStep(newFakeLLM(samplePayload), prompts, AnalysisStepConfig{})

	_, _, err := step.Analyze(context.Background(), dallowayText, odysseyPassage(), "")
	assert.ErrorContains(t, err, "parse analysis prompt")
}

func TestAnalysisStep_Unavailable(t *testing.T) {
	step := NewAnalysisStep(nil, defaultFakePrompts(), AnalysisStepConfig{})

	_, _, err := step.Analyze(context.Background(), dallowayText, odysseyPassage(), "")
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.Empty(t, step.ModelName())
}
