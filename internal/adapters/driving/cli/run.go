package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

var (
	runLimit           int
	runPrompt          string
	runTopK            int
	runContinueOnError bool
	runFresh           bool
	runOutput          string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Analyse query passages against the corpus",
	Long: `Indexes the corpus, then for each query chunk retrieves the most and least
similar corpus passages and asks the LLM to analyse every pair.

Completed pairs are checkpointed, so an interrupted run picks up where it
stopped. Use --fresh to analyse every pair again.

Examples:
  intertext run --limit 5
  intertext run --prompt skeptic --top-k 3 --output results/skeptic.csv`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runLimit, "limit", "n", 0, "number of query chunks to process (0 = all)")
	runCmd.Flags().StringVarP(&runPrompt, "prompt", "p", "", "system prompt template (default from settings)")
	runCmd.Flags().IntVarP(&runTopK, "top-k", "k", 0, "passages per similarity group (default from settings)")
	runCmd.Flags().BoolVar(&runContinueOnError, "continue-on-error", false, "record failed pairs and keep going")
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "ignore checkpointed pairs")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "results file (default: results dir with a timestamped name)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	if runService == nil {
		return notConfigured("run service")
	}
	if runLimit < 0 {
		return fmt.Errorf("%w: --limit must not be negative", domain.ErrInvalidInput)
	}

	opts := domain.RunOptions{
		Limit:           runLimit,
		TopK:            runTopK,
		PromptTemplate:  runPrompt,
		ContinueOnError: runContinueOnError,
		Fresh:           runFresh,
		OutputPath:      runOutput,
	}

	reporter := newProgressReporter(cmd.ErrOrStderr())
	report, err := runService.Run(cmd.Context(), opts, reporter.Observe)
	reporter.Finish()

	if report != nil {
		cmd.Println(renderRunSummary(newStyles(), report))
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}
