package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

var prepareForce bool

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Chunk the raw query and corpus texts",
	Long: `Splits the raw Mrs Dalloway and Odyssey texts into overlapping sentence
chunks and writes them as JSON Lines chunk files.

The corpus is split into books first, footnotes are removed and every chunk
records its book. Existing chunk files are kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runPrepare,
}

func init() {
	prepareCmd.Flags().BoolVarP(&prepareForce, "force", "f", false, "overwrite existing chunk files")
	rootCmd.AddCommand(prepareCmd)
}

func runPrepare(cmd *cobra.Command, _ []string) error {
	if prepareService == nil {
		return notConfigured("preparation service")
	}

	report, err := prepareService.Prepare(cmd.Context(), domain.PrepareOptions{Force: prepareForce})
	if err != nil {
		return fmt.Errorf("prepare failed: %w", err)
	}

	for _, path := range report.Skipped {
		cmd.Printf("Kept existing %s (use --force to rebuild)\n", path)
	}
	if report.QueryChunks > 0 {
		cmd.Printf("Wrote %d query chunks to %s\n", report.QueryChunks, report.QueryPath)
	}
	if report.CorpusChunks > 0 {
		cmd.Printf("Wrote %d corpus chunks from %d books to %s\n",
			report.CorpusChunks, report.Sections, report.CorpusPath)
	}
	return nil
}
