package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// promptExt is the file extension of prompt templates.
const promptExt = ".txt"

// PromptStore loads LLM prompts from user-editable files on disk.
// Prompts are loaded from a configurable directory with fallback to embedded defaults.
// Files are created lazily on first access, not in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
// These are used when user files don't exist and as the initial content for new files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptAnalysis: `Analyse the following passages for a possible intertextual relationship.

Query passage (Mrs Dalloway):
{{.QueryText}}

Candidate passage {{.PassageLabel}} (The Odyssey):
{{.PassageText}}

Semantic similarity: {{printf "%.4f" .Score}} ({{.SimilarityType}} end of the ranking)

Work through these steps:

1. Initial observation: note shared themes, motifs, images or narrative patterns, even when expressed differently.
2. Reasoning: record each step of your comparison with the textual evidence it rests on.
3. Textual intersections: for each point of contact, list the shared elements, the kind of transformation (allusion, inversion, parody, structural echo, thematic parallel), the dialogic relationship between the texts and how the meaning changes.
4. Verdict: decide whether the relationship is meaningful and state your confidence as low, medium or high.
5. Critique: give the strongest argument against your own verdict.

A high similarity score does not by itself indicate a deliberate reference, and a low one does not rule it out.`,

	driven.PromptSystemScholar: `You are a literary scholar specialising in intertextuality, modernism and classical reception. You read Virginia Woolf's Mrs Dalloway alongside Homer's Odyssey in Samuel Butler's translation. You weigh linguistic echoes, thematic resonances and structural parallels, and you distinguish deliberate dialogue between texts from shared cultural commonplaces. Ground every claim in the passages you are given.`,

	driven.PromptSystemCloseReader: `You are a close reader. Attend to diction, syntax, rhythm and imagery before theme. Treat a connection between two passages as established only when it can be shown in the words on the page, and quote the phrases that carry it.`,

	driven.PromptSystemSkeptic: `You are a skeptical reviewer of claimed literary influence. Most resemblances between passages are coincidental or stem from common literary stock. Argue against weak connections, and only judge a relationship meaningful when the evidence would persuade a doubtful colleague.`,
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to <intertext home>/prompts.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := HomeDir()
		if err != nil {
			return nil, err
		}
		promptDir = filepath.Join(home, "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// On first call, initialises the prompt directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to embedded default if file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	// Ensure directory and defaults exist (lazy init)
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	prompt, err := s.loadFromFile(name)
	if err != nil {
		if defaultPrompt, ok := defaultPrompts[name]; ok {
			return defaultPrompt, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("load prompt %q: %w", name, domain.ErrNotFound)
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	if _, ok := s.cache[name]; !ok {
		s.cache[name] = prompt
	} else {
		prompt = s.cache[name]
	}
	s.mu.Unlock()

	return prompt, nil
}

// List returns the names of the built-in prompts and every .txt file in
// the prompt directory, sorted.
func (s *PromptStore) List() ([]string, error) {
	s.initOnce.Do(s.initialise)

	names := make(map[string]struct{}, len(defaultPrompts))
	for name := range defaultPrompts {
		names[name] = struct{}{}
	}

	entries, err := os.ReadDir(s.promptDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read prompt directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != promptExt {
			continue
		}
		names[strings.TrimSuffix(entry.Name(), promptExt)] = struct{}{}
	}

	list := make([]string, 0, len(names))
	for name := range names {
		list = append(list, name)
	}
	sort.Strings(list)
	return list, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Watch reloads prompts whenever a template file in the prompt directory
// changes, until ctx is cancelled. onChange, if set, receives the name of
// each changed prompt. The returned channel is closed when watching stops.
func (s *PromptStore) Watch(ctx context.Context, onChange func(name string)) (<-chan struct{}, error) {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		return nil, s.initErr
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create prompt watcher: %w", err)
	}
	if err := watcher.Add(s.promptDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch prompt directory: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != promptExt {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				name := strings.TrimSuffix(filepath.Base(event.Name), promptExt)
				s.Reload()
				logger.Info("Prompt %q changed, reloaded templates", name)
				if onChange != nil {
					onChange(name)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Prompt watcher: %v", err)
			}
		}
	}()

	return done, nil
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
// Called once via sync.Once on first use.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Create default prompt files (only if they don't exist)
	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+promptExt)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content+"\n"), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid prompt name %q: %w", name, fs.ErrNotExist)
	}
	path := filepath.Join(s.promptDir, name+promptExt)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# Intertext Prompts

This directory contains the prompt templates used for intertextual analysis.

## Files

- ` + "`analysis.txt`" + ` - User prompt for one (query, passage) pair
- ` + "`scholar.txt`" + ` - Default system prompt: a literary scholar
- ` + "`close_reader.txt`" + ` - System prompt focused on diction and imagery
- ` + "`skeptic.txt`" + ` - System prompt that argues against weak connections

Any other ` + "`.txt`" + ` file here can be used as a system prompt with
` + "`intertext run --prompt <name>`" + `.

## Customisation

Edit any file to customise the analysis. Changes take effect on the next
command, or immediately while ` + "`intertext mcp serve`" + ` is running.

## Template Fields

` + "`analysis.txt`" + ` is a Go text/template with these fields:
- ` + "`{{.QueryText}}`" + ` - The query passage
- ` + "`{{.PassageText}}`" + ` - The retrieved passage
- ` + "`{{.PassageLabel}}`" + ` - Short identifier such as BOOK I._3
- ` + "`{{.Score}}`" + ` - Cosine similarity
- ` + "`{{.SimilarityType}}`" + ` - similar or dissimilar
- ` + "`{{.Metadata}}`" + ` - Passage metadata map

Delete a file to restore its default on the next run.
`
	return os.WriteFile(path, []byte(content), 0600)
}
