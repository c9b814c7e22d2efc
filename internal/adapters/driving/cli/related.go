package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

var (
	relatedTopK int
	relatedJSON bool
)

var relatedCmd = &cobra.Command{
	Use:   "related [query]",
	Short: "Find corpus passages related to a query passage",
	Long: `Embeds the query and lists the k most similar corpus passages followed by
the k least similar ones.`,
	Args: cobra.ExactArgs(1),
	RunE: runRelated,
}

func init() {
	relatedCmd.Flags().IntVarP(&relatedTopK, "top-k", "k", domain.DefaultTopK, "passages per similarity group")
	relatedCmd.Flags().BoolVar(&relatedJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(relatedCmd)
}

type relatedPassage struct {
	Label          string         `json:"label"`
	Score          float64        `json:"score"`
	SimilarityType string         `json:"similarity_type"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func runRelated(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return notConfigured("pipeline service")
	}
	if err := ensureIndexed(cmd.Context()); err != nil {
		return err
	}

	resp, err := pipelineService.FindRelated(cmd.Context(), domain.RetrievalRequest{
		QueryText: args[0],
		TopK:      relatedTopK,
	})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if relatedJSON {
		passages := make([]relatedPassage, len(resp.Chunks))
		for i, c := range resp.Chunks {
			passages[i] = relatedPassage{
				Label:          c.Label(),
				Score:          c.Score,
				SimilarityType: c.SimilarityType.String(),
				Content:        c.Content,
				Metadata:       c.Metadata,
			}
		}
		data, err := json.MarshalIndent(passages, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(resp.Chunks) == 0 {
		cmd.Println("No passages indexed.")
		return nil
	}

	st := newStyles()
	current := domain.SimilarityNone
	for _, c := range resp.Chunks {
		if c.SimilarityType != current {
			current = c.SimilarityType
			cmd.Println(st.Section.Render(headingFor(current)))
		}
		cmd.Printf("  %s (%.4f)\n", c.Label(), c.Score)
		cmd.Printf("      %s\n", st.Muted.Render(c.Preview(160)))
	}
	return nil
}

func headingFor(t domain.SimilarityType) string {
	if t == domain.SimilarityDissimilar {
		return "Least similar"
	}
	return "Most similar"
}
