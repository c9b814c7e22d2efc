// Package cli implements the intertext command-line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driving"
	"github.com/custodia-labs/intertext-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services wired by main. Commands check for nil and report the service
// as not configured.
var (
	settingsService driving.SettingsService
	runService      driving.RunService
	pipelineService driving.PipelineService
	prepareService  driving.PreparationService
	promptStore     driven.PromptStore
	promptWatcher   PromptWatcher
	chunkMerger     ChunkMerger

	// promptDir is shown by `prompts path`.
	promptDir string

	// unavailable explains why pipeline services are nil, if known.
	unavailable error
)

// PromptWatcher hot-reloads prompt templates.
type PromptWatcher interface {
	Watch(ctx context.Context, onChange func(name string)) (<-chan struct{}, error)
}

// ChunkMerger concatenates chunk files.
type ChunkMerger interface {
	Merge(out string, paths ...string) (int, error)
}

// Services holds everything the commands need.
type Services struct {
	Settings driving.SettingsService
	Run      driving.RunService
	Pipeline driving.PipelineService
	Prepare  driving.PreparationService
	Prompts  driven.PromptStore
	Watcher  PromptWatcher
	Merger   ChunkMerger

	PromptDir string

	// Unavailable is reported by commands whose service is nil.
	Unavailable error
}

// SetServices installs the services used by the commands.
func SetServices(s Services) {
	settingsService = s.Settings
	runService = s.Run
	pipelineService = s.Pipeline
	prepareService = s.Prepare
	promptStore = s.Prompts
	promptWatcher = s.Watcher
	chunkMerger = s.Merger
	promptDir = s.PromptDir
	unavailable = s.Unavailable
}

// SetVersion sets the version reported by `intertext version`.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "intertext",
	Short: "Intertextual analysis of Mrs Dalloway against the Odyssey",
	Long: `intertext finds Odyssey passages semantically related to passages of
Mrs Dalloway and asks an LLM to judge each pair for allusion, inversion,
structural echo and other intertextual relationships.

Typical workflow:
  intertext settings          # configure providers
  intertext prepare           # chunk the raw texts
  intertext run --limit 5     # analyse the first five query chunks`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print pipeline steps")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// notConfigured builds the error for a missing service.
func notConfigured(name string) error {
	if unavailable != nil {
		return errors.Join(errors.New(name+" not configured"), unavailable)
	}
	return errors.New(name + " not configured")
}
