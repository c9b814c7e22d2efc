package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/intertext-cli/internal/logger"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed and index the corpus",
	Long: `Embeds every corpus chunk that has no embedding yet, rebuilds the vector
collection and saves the embeddings back to the corpus chunk file.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	if runService == nil {
		return notConfigured("run service")
	}

	n, usage, err := runService.IndexCorpus(cmd.Context())
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}

	cmd.Printf("Indexed %d passages\n", n)
	if !usage.IsZero() {
		cmd.Printf("Embedding: %d tokens in %d calls (%s)\n", usage.InputTokens, usage.Calls, usage.Model)
	}
	return nil
}

// ensureIndexed builds the index when it is empty, as it always is for the
// in-memory backend in a new process.
func ensureIndexed(ctx context.Context) error {
	n, err := pipelineService.IndexedCount(ctx)
	if err != nil {
		return fmt.Errorf("count indexed passages: %w", err)
	}
	if n > 0 {
		return nil
	}
	if runService == nil {
		return notConfigured("run service")
	}

	logger.Info("Index is empty, indexing corpus")
	if _, _, err := runService.IndexCorpus(ctx); err != nil {
		return fmt.Errorf("index corpus: %w", err)
	}
	return nil
}
