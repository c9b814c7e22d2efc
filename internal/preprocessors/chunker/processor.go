// Package chunker splits plain text into overlapping windows of sentences.
package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// DefaultSentencesPerChunk is the default number of sentences per chunk.
const DefaultSentencesPerChunk = domain.DefaultSentencesPerChunk

// DefaultOverlap is the default number of sentences shared by neighbouring chunks.
const DefaultOverlap = domain.DefaultSentenceOverlap

// Processor splits text into chunks of whole sentences.
type Processor struct {
	sentencesPerChunk int
	overlap           int
	tokenizer         *sentences.DefaultSentenceTokenizer
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithSentencesPerChunk sets the chunk length in sentences.
func WithSentencesPerChunk(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.sentencesPerChunk = n
		}
	}
}

// WithOverlap sets the number of sentences repeated at the start of the next chunk.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) (*Processor, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence tokenizer: %w", err)
	}

	p := &Processor{
		sentencesPerChunk: DefaultSentencesPerChunk,
		overlap:           DefaultOverlap,
		tokenizer:         tokenizer,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Overlap must leave room to advance
	if p.overlap >= p.sentencesPerChunk {
		p.overlap = p.sentencesPerChunk - 1
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Sentences splits text into trimmed, whitespace-collapsed sentences.
func (p *Processor) Sentences(text string) []string {
	var out []string
	for _, s := range p.tokenizer.Tokenize(text) {
		sentence := strings.Join(strings.Fields(s.Text), " ")
		if sentence != "" {
			out = append(out, sentence)
		}
	}
	return out
}

// Split groups the sentences of text into windows. Each window after the
// first starts with the last overlap sentences of the one before it.
func (p *Processor) Split(text string) []string {
	all := p.Sentences(text)
	if len(all) == 0 {
		return nil
	}

	step := p.sentencesPerChunk - p.overlap
	var windows []string
	for start := 0; start < len(all); start += step {
		end := min(start+p.sentencesPerChunk, len(all))
		windows = append(windows, strings.Join(all[start:end], " "))
		if end == len(all) {
			break
		}
	}
	return windows
}

// Process chunks text into domain chunks. Every chunk gets a fresh ID, a
// copy of meta and a 1-based chunk_number.
func (p *Processor) Process(ctx context.Context, text string, meta map[string]any) ([]domain.Chunk, error) {
	windows := p.Split(text)
	chunks := make([]domain.Chunk, 0, len(windows))

	for i, content := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		metadata := make(map[string]any, len(meta)+1)
		for k, v := range meta {
			metadata[k] = v
		}
		metadata[domain.MetaChunkNumber] = i + 1

		chunks = append(chunks, domain.Chunk{
			ID:       uuid.New().String(),
			Content:  content,
			Metadata: metadata,
		})
	}

	return chunks, nil
}
