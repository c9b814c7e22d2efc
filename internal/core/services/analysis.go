package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/logger"
)

// AnalysisStepConfig configures the analysis LLM call.
type AnalysisStepConfig struct {
	// SystemPrompt names the default system prompt template.
	SystemPrompt string

	// Temperature is sent with every request.
	Temperature float64

	// MaxTokens caps the response length.
	MaxTokens int

	// RequestsPerMinute paces requests. Zero disables pacing.
	RequestsPerMinute int
}

// AnalysisStep asks the LLM for a structured judgment about a pair of passages.
type AnalysisStep struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	cfg     AnalysisStepConfig
	limiter *rate.Limiter
}

// analysisPrompt is the data available to the analysis template.
type analysisPrompt struct {
	QueryText      string
	PassageText    string
	PassageLabel   string
	Score          float64
	SimilarityType string
	Metadata       map[string]any
}

// NewAnalysisStep creates an analysis step.
func NewAnalysisStep(llm driven.LLMService, prompts driven.PromptStore, cfg AnalysisStepConfig) *AnalysisStep {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = domain.DefaultSystemPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = domain.DefaultMaxTokens
	}
	return &AnalysisStep{
		llm:     llm,
		prompts: prompts,
		cfg:     cfg,
		limiter: newPacer(cfg.RequestsPerMinute),
	}
}

// SystemPromptName returns the template used for an optional override.
func (a *AnalysisStep) SystemPromptName(override string) string {
	if override != "" {
		return override
	}
	return a.cfg.SystemPrompt
}

// ModelName returns the configured LLM model, or empty if none.
func (a *AnalysisStep) ModelName() string {
	if a.llm == nil {
		return ""
	}
	return a.llm.ModelName()
}

// Analyze renders the prompts for one pair, calls the LLM with the analysis
// schema and parses the reply. The usage is returned even when parsing fails
// since the tokens were spent.
func (a *AnalysisStep) Analyze(
	ctx context.Context, queryText string, chunk domain.Chunk, systemPrompt string,
) (*domain.AnalysisResult, domain.Usage, error) {
	usage := domain.Usage{Kind: domain.UsageCompletion}
	if a.llm == nil {
		return nil, usage, domain.ErrLLMUnavailable
	}
	if a.prompts == nil {
		return nil, usage, fmt.Errorf("%w: no prompt store configured", domain.ErrInvalidInput)
	}
	usage.Model = a.llm.ModelName()

	name := a.SystemPromptName(systemPrompt)
	system, err := a.prompts.Load(name)
	if err != nil {
		return nil, usage, fmt.Errorf("load system prompt: %w", err)
	}

	user, err := a.renderUserPrompt(queryText, chunk)
	if err != nil {
		return nil, usage, err
	}

	messages := []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: system},
		{Role: driven.RoleUser, Content: user},
	}
	opts := driven.ChatOptions{
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Schema: &driven.ResponseSchema{
			Name:        domain.AnalysisSchemaName,
			Description: "Structured intertextual analysis of two passages",
			Schema:      domain.AnalysisJSONSchema(),
		},
	}

	logger.Debug("Analysing %q against %s with prompt %s", preview(queryText), chunk.Label(), name)

	if err := pace(ctx, a.limiter); err != nil {
		return nil, usage, err
	}
	resp, err := a.llm.Chat(ctx, messages, opts)
	usage = usage.Add(resp.Usage)
	if err != nil {
		logger.Error("LLM call failed for query %q and passage %s: %v",
			preview(queryText), chunk.Label(), err)
		return nil, usage, fmt.Errorf("analyse passage %s: %w", chunk.Label(), err)
	}

	result, err := domain.ParseAnalysisResult(resp.Content)
	if err == nil && result.Verdict == nil {
		err = fmt.Errorf("%w: meaningful_relationship and confidence are missing",
			domain.ErrSchemaValidation)
	}
	if err != nil {
		logger.Error("Unparseable analysis for passage %s: %v\nRaw payload:\n%s",
			chunk.Label(), err, resp.Content)
		return nil, usage, fmt.Errorf("analyse passage %s: %w", chunk.Label(), err)
	}

	return result, usage, nil
}

func (a *AnalysisStep) renderUserPrompt(queryText string, chunk domain.Chunk) (string, error) {
	text, err := a.prompts.Load(driven.PromptAnalysis)
	if err != nil {
		return "", fmt.Errorf("load analysis prompt: %w", err)
	}

	tmpl, err := template.New(driven.PromptAnalysis).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse analysis prompt: %w", err)
	}

	data := analysisPrompt{
		QueryText:      queryText,
		PassageText:    chunk.Content,
		PassageLabel:   chunk.Label(),
		Score:          chunk.Score,
		SimilarityType: chunk.SimilarityType.String(),
		Metadata:       chunk.Metadata,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render analysis prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
