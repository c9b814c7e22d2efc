package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage prompt templates",
	Long: `Prompt templates are plain text files in the prompts directory. Edit them to
change how pairs are analysed; add a new .txt file to create another system
prompt selectable with --prompt.`,
	RunE: runPromptsList,
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available prompt templates",
	RunE:  runPromptsList,
}

var promptsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the prompts directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if promptDir == "" {
			return notConfigured("prompt store")
		}
		cmd.Println(promptDir)
		return nil
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a prompt template",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptsShow,
}

func init() {
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsPathCmd)
	promptsCmd.AddCommand(promptsShowCmd)
	rootCmd.AddCommand(promptsCmd)
}

func runPromptsList(cmd *cobra.Command, _ []string) error {
	if promptStore == nil {
		return notConfigured("prompt store")
	}

	names, err := promptStore.List()
	if err != nil {
		return fmt.Errorf("failed to list prompts: %w", err)
	}

	current := ""
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			current = settings.Analysis.SystemPrompt
		}
	}

	for _, name := range names {
		marker := "  "
		if name == current {
			marker = "* "
		}
		cmd.Printf("%s%s\n", marker, name)
	}
	return nil
}

func runPromptsShow(cmd *cobra.Command, args []string) error {
	if promptStore == nil {
		return notConfigured("prompt store")
	}

	text, err := promptStore.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load prompt: %w", err)
	}
	cmd.Println(text)
	return nil
}
