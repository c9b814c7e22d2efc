package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
)

// --- Test doubles ---

// fakeEmbedder implements driven.EmbeddingService with fixed vectors per text.
type fakeEmbedder struct {
	mu sync.Mutex

	vectors  map[string][]float32
	fallback []float32
	err      error

	// tokensPerText is reported as input tokens for every embedded text.
	tokensPerText int

	batches [][]string
	singles []string
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors:       make(map[string][]float32),
		fallback:      []float32{0, 0, 1},
		tokensPerText: 10,
	}
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	return f.fallback
}

func (f *fakeEmbedder) usage(n int) domain.Usage {
	return domain.Usage{
		Kind:        domain.UsageEmbedding,
		Model:       f.ModelName(),
		InputTokens: n * f.tokensPerText,
		Calls:       1,
	}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, domain.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singles = append(f.singles, text)
	if f.err != nil {
		return nil, domain.Usage{}, f.err
	}
	return f.vectorFor(text), f.usage(1), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) (driven.EmbeddingBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return driven.EmbeddingBatch{}, f.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = f.vectorFor(text)
	}
	return driven.EmbeddingBatch{Vectors: vectors, Usage: f.usage(len(texts))}, nil
}

func (f *fakeEmbedder) Dimensions() int              { return len(f.fallback) }
func (f *fakeEmbedder) ModelName() string            { return "text-embedding-3-small" }
func (f *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (f *fakeEmbedder) Close() error                 { return nil }

// fakeLLM implements driven.LLMService returning a fixed payload.
type fakeLLM struct {
	mu sync.Mutex

	content string
	err     error
	usage   domain.Usage

	// failOn makes calls whose user prompt contains the text fail.
	failOn string

	calls []fakeChatCall
}

type fakeChatCall struct {
	messages []driven.ChatMessage
	opts     driven.ChatOptions
}

func newFakeLLM(content string) *fakeLLM {
	return &fakeLLM{
		content: content,
		usage: domain.Usage{
			Kind:              domain.UsageCompletion,
			Model:             "gpt-4o-mini",
			InputTokens:       1000,
			CachedInputTokens: 200,
			OutputTokens:      150,
			Calls:             1,
		},
	}
}

func (f *fakeLLM) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (driven.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return driven.ChatResponse{}, err
	}
	f.calls = append(f.calls, fakeChatCall{messages: messages, opts: opts})
	if f.err != nil {
		return driven.ChatResponse{}, f.err
	}
	if f.failOn != "" && len(messages) > 1 && strings.Contains(messages[1].Content, f.failOn) {
		return driven.ChatResponse{Usage: f.usage}, fmt.Errorf("openai error (status 500): upstream")
	}
	return driven.ChatResponse{Content: f.content, Usage: f.usage}, nil
}

func (f *fakeLLM) ModelName() string            { return "gpt-4o-mini" }
func (f *fakeLLM) Ping(_ context.Context) error { return nil }
func (f *fakeLLM) Close() error                 { return nil }

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakePrompts implements driven.PromptStore from a map.
type fakePrompts map[string]string

func defaultFakePrompts() fakePrompts {
	return fakePrompts{
		driven.PromptAnalysis: "Query: {{.QueryText}}\nPassage ({{.PassageLabel}}, {{.SimilarityType}}, " +
			"{{printf \"%.2f\" .Score}}): {{.PassageText}}",
		driven.PromptSystemScholar:     "You are a literary scholar.",
		driven.PromptSystemSkeptic:     "You are a skeptic.",
		driven.PromptSystemCloseReader: "You are a close reader.",
	}
}

func (p fakePrompts) Load(name string) (string, error) {
	if text, ok := p[name]; ok {
		return text, nil
	}
	return "", fmt.Errorf("load prompt %q: %w", name, domain.ErrNotFound)
}

func (p fakePrompts) List() ([]string, error) {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	return names, nil
}

func (p fakePrompts) Reload() {}

// fakeChunkStore implements driven.ChunkStore keyed by path.
type fakeChunkStore struct {
	files   map[string][]domain.Chunk
	saves   map[string]int
	loadErr error
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{
		files: make(map[string][]domain.Chunk),
		saves: make(map[string]int),
	}
}

func (s *fakeChunkStore) Save(path string, chunks []domain.Chunk) error {
	s.files[path] = append([]domain.Chunk(nil), chunks...)
	s.saves[path]++
	return nil
}

func (s *fakeChunkStore) Load(path string) ([]domain.Chunk, domain.ChunkLoadReport, error) {
	report := domain.ChunkLoadReport{Path: path}
	if s.loadErr != nil {
		return nil, report, s.loadErr
	}
	chunks, ok := s.files[path]
	if !ok {
		return nil, report, fmt.Errorf("open %s: %w", path, domain.ErrNotFound)
	}
	for _, c := range chunks {
		report.Loaded++
		if c.HasEmbedding() {
			report.WithEmbeddings++
		}
	}
	return append([]domain.Chunk(nil), chunks...), report, nil
}

// fakeResultWriter implements driven.ResultWriter in memory.
type fakeResultWriter struct {
	path    string
	columns []string
	rows    []map[string]string
	writes  int
	err     error
}

func (w *fakeResultWriter) Write(path string, columns []string, rows []map[string]string) error {
	if w.err != nil {
		return w.err
	}
	w.path = path
	w.columns = columns
	w.rows = rows
	w.writes++
	return nil
}

func (w *fakeResultWriter) Extension() string { return ".csv" }

// samplePayload is a complete analysis as a provider would return it.
const samplePayload = `{
  "initial_observation": "Both passages open on a morning errand framed as a journey.",
  "reasoning_steps": [
    {"description": "Compare openings", "evidence": "buy the flowers / man of many devices"}
  ],
  "textual_intersections": [
    {
      "shared_elements": ["invocation", "departure"],
      "transformation_type": "domestication",
      "dialogic_relationship": "ironic echo",
      "meaning_transformation": "The epic quest becomes a shopping trip."
    },
    {
      "shared_elements": ["city"],
      "transformation_type": "relocation",
      "dialogic_relationship": "parallel",
      "meaning_transformation": "Ithaca becomes Westminster."
    }
  ],
  "meaningful_relationship": true,
  "confidence": "medium",
  "supporting_evidence": ["Woolf's journey structure", "single day frame"],
  "critique": "The link may be generic."
}`

const (
	dallowayText = "Clarissa Dalloway said she would buy the flowers herself."
	odysseyText  = "Tell me, O Muse, of the man of many devices."
)

func seedChunk(text string, meta map[string]any) domain.Chunk {
	return domain.Chunk{ID: strings.Fields(text)[0], Content: text, Metadata: meta}
}
