package mcp

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// FindRelatedInput is the input schema for the find_related tool.
type FindRelatedInput struct {
	Query string `json:"query" jsonschema:"the Mrs Dalloway passage to find Odyssey passages for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"size of each of the similar and dissimilar groups (default from settings)"`
}

// FindRelatedOutput is the output schema for the find_related tool.
type FindRelatedOutput struct {
	Passages []PassageOutput `json:"passages"`
	Count    int             `json:"count"`
	Usage    UsageOutput     `json:"usage"`
}

// PassageOutput is one retrieved passage.
type PassageOutput struct {
	ID             string         `json:"id"`
	Label          string         `json:"label"`
	Content        string         `json:"content"`
	Score          float64        `json:"score"`
	SimilarityType string         `json:"similarity_type"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// AnalyzePairInput is the input schema for the analyze_pair tool.
type AnalyzePairInput struct {
	Query           string         `json:"query" jsonschema:"the query passage"`
	Passage         string         `json:"passage" jsonschema:"the candidate passage"`
	PassageMetadata map[string]any `json:"passage_metadata,omitempty" jsonschema:"metadata of the candidate passage, e.g. chapter and chunk_number"`
	Score           float64        `json:"score,omitempty" jsonschema:"similarity score reported to the model"`
	SimilarityType  string         `json:"similarity_type,omitempty" jsonschema:"similar or dissimilar"`
	Prompt          string         `json:"prompt,omitempty" jsonschema:"system prompt template name (default from settings)"`
}

// AnalyzePairOutput is the output schema for the analyze_pair tool.
type AnalyzePairOutput struct {
	Analysis       AnalysisOutput `json:"analysis"`
	PromptTemplate string         `json:"prompt_template"`
	Model          string         `json:"model"`
	Usage          UsageOutput    `json:"usage"`
}

// AnalysisOutput mirrors the analysis result schema.
type AnalysisOutput struct {
	SchemaVersion          int                          `json:"schema_version"`
	InitialObservation     string                       `json:"initial_observation"`
	ReasoningSteps         []domain.ReasoningStep       `json:"reasoning_steps"`
	TextualIntersections   []domain.TextualIntersection `json:"textual_intersections"`
	MeaningfulRelationship *bool                        `json:"meaningful_relationship,omitempty"`
	Confidence             string                       `json:"confidence,omitempty"`
	SupportingEvidence     []string                     `json:"supporting_evidence"`
	Critique               string                       `json:"critique,omitempty"`
}

// UsageOutput is the token usage of a single tool call.
type UsageOutput struct {
	Kind              string  `json:"kind,omitempty"`
	Model             string  `json:"model,omitempty"`
	InputTokens       int     `json:"input_tokens"`
	CachedInputTokens int     `json:"cached_input_tokens"`
	OutputTokens      int     `json:"output_tokens"`
	Calls             int     `json:"calls"`
	CostUSD           float64 `json:"cost_usd"`
	Priced            bool    `json:"priced"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_related",
		Description: "Find the Odyssey passages most and least similar to a query passage",
	}, s.handleFindRelated)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_pair",
		Description: "Analyse a (query, passage) pair for intertextual relationships",
	}, s.handleAnalyzePair)
}

// handleFindRelated handles the find_related tool invocation.
func (s *Server) handleFindRelated(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FindRelatedInput,
) (*mcp.CallToolResult, FindRelatedOutput, error) {
	resp, err := s.ports.Pipeline.FindRelated(ctx, domain.RetrievalRequest{
		QueryText: input.Query,
		TopK:      input.TopK,
	})
	if err != nil {
		return nil, FindRelatedOutput{}, err
	}

	output := FindRelatedOutput{
		Passages: make([]PassageOutput, len(resp.Chunks)),
		Count:    len(resp.Chunks),
		Usage:    s.usageOutput(resp.Usage),
	}
	for i, c := range resp.Chunks {
		output.Passages[i] = PassageOutput{
			ID:             c.ID,
			Label:          c.Label(),
			Content:        c.Content,
			Score:          c.Score,
			SimilarityType: c.SimilarityType.String(),
			Metadata:       c.Metadata,
		}
	}

	return nil, output, nil
}

// handleAnalyzePair handles the analyze_pair tool invocation.
func (s *Server) handleAnalyzePair(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzePairInput,
) (*mcp.CallToolResult, AnalyzePairOutput, error) {
	similarity := domain.SimilarityType(input.SimilarityType)
	if similarity == domain.SimilarityNone {
		similarity = domain.SimilaritySimilar
	}
	if !similarity.IsValid() {
		return nil, AnalyzePairOutput{}, fmt.Errorf("%w: similarity_type must be %q or %q, got %q",
			domain.ErrInvalidInput, domain.SimilaritySimilar, domain.SimilarityDissimilar, input.SimilarityType)
	}

	passage := domain.Chunk{
		ID:       uuid.New().String(),
		Content:  input.Passage,
		Metadata: input.PassageMetadata,
	}.WithScore(input.Score, similarity)

	resp, err := s.ports.Pipeline.Analyze(ctx, domain.AnalysisRequest{
		QueryText:      input.Query,
		Chunk:          passage,
		PromptTemplate: input.Prompt,
	})
	if err != nil {
		return nil, AnalyzePairOutput{}, err
	}

	return nil, AnalyzePairOutput{
		Analysis:       analysisOutput(resp.Result),
		PromptTemplate: resp.PromptTemplate,
		Model:          resp.Model,
		Usage:          s.usageOutput(resp.Usage),
	}, nil
}

func (s *Server) usageOutput(u domain.Usage) UsageOutput {
	out := UsageOutput{
		Kind:              string(u.Kind),
		Model:             u.Model,
		InputTokens:       u.InputTokens,
		CachedInputTokens: u.CachedInputTokens,
		OutputTokens:      u.OutputTokens,
		Calls:             u.Calls,
	}
	if price, ok := s.prices.Lookup(u.Model); ok {
		out.CostUSD = price.Cost(u)
		out.Priced = true
	}
	return out
}

func analysisOutput(r *domain.AnalysisResult) AnalysisOutput {
	out := AnalysisOutput{
		ReasoningSteps:       []domain.ReasoningStep{},
		TextualIntersections: []domain.TextualIntersection{},
		SupportingEvidence:   []string{},
	}
	if r == nil {
		return out
	}

	out.SchemaVersion = r.SchemaVersion
	out.InitialObservation = r.InitialObservation
	out.Critique = r.Critique
	if r.ReasoningSteps != nil {
		out.ReasoningSteps = r.ReasoningSteps
	}
	if r.TextualIntersections != nil {
		out.TextualIntersections = r.TextualIntersections
	}
	if r.SupportingEvidence != nil {
		out.SupportingEvidence = r.SupportingEvidence
	}
	if r.Verdict != nil {
		meaningful := r.Verdict.Meaningful
		out.MeaningfulRelationship = &meaningful
		out.Confidence = string(r.Verdict.Confidence)
	}
	return out
}
