package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns an error wrapping domain.ErrNotFound if no such prompt exists.
	Load(name string) (string, error)

	// List returns the names of all available prompts.
	List() ([]string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptAnalysis is the user prompt for a (query, passage) pair.
	// It is a text/template with the fields QueryText, PassageText, PassageLabel,
	// Score, SimilarityType and Metadata.
	PromptAnalysis = "analysis"

	// PromptSystemScholar is the default system prompt: a literary scholar
	// weighing intertextual evidence.
	PromptSystemScholar = "scholar"

	// PromptSystemCloseReader focuses on diction, syntax and imagery.
	PromptSystemCloseReader = "close_reader"

	// PromptSystemSkeptic argues against weak or coincidental connections.
	PromptSystemSkeptic = "skeptic"
)
