package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge [output] [input...]",
	Short: "Concatenate chunk files",
	Long: `Concatenates JSON Lines chunk files into one, skipping malformed lines.
Useful for combining results of separately prepared texts into one corpus.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	if chunkMerger == nil {
		return notConfigured("chunk store")
	}

	n, err := chunkMerger.Merge(args[0], args[1:]...)
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	cmd.Printf("Wrote %d chunks to %s\n", n, args[0])
	return nil
}
