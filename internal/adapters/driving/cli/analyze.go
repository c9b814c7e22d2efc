package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

var (
	analyzePrompt string
	analyzeScore  float64
	analyzeType   string
	analyzeLabel  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [query] [passage]",
	Short: "Analyse one (query, passage) pair",
	Long: `Asks the LLM for a structured intertextual analysis of a single pair and
prints the result as JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzePrompt, "prompt", "p", "", "system prompt template (default from settings)")
	analyzeCmd.Flags().Float64Var(&analyzeScore, "score", 0, "similarity score reported to the model")
	analyzeCmd.Flags().StringVar(&analyzeType, "type", string(domain.SimilaritySimilar), "similarity type: similar or dissimilar")
	analyzeCmd.Flags().StringVar(&analyzeLabel, "label", "passage", "passage label shown to the model")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return notConfigured("pipeline service")
	}

	similarity := domain.SimilarityType(analyzeType)
	if !similarity.IsValid() {
		return fmt.Errorf("%w: --type must be similar or dissimilar, got %q", domain.ErrInvalidInput, analyzeType)
	}

	passage := domain.Chunk{ID: analyzeLabel, Content: args[1]}.WithScore(analyzeScore, similarity)
	resp, err := pipelineService.Analyze(cmd.Context(), domain.AnalysisRequest{
		QueryText:      args[0],
		Chunk:          passage,
		PromptTemplate: analyzePrompt,
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	data, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	cmd.Println(string(data))

	st := newStyles()
	cmd.Println(st.Muted.Render(fmt.Sprintf("%s with %s prompt: %d input tokens (%d cached), %d output tokens",
		resp.Model, resp.PromptTemplate, resp.Usage.InputTokens, resp.Usage.CachedInputTokens, resp.Usage.OutputTokens)))
	return nil
}
