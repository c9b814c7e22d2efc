package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driving"
	"github.com/custodia-labs/intertext-cli/internal/logger"
	"github.com/custodia-labs/intertext-cli/internal/preprocessors/chunker"
)

// Ensure Preparer implements the interface.
var _ driving.PreparationService = (*Preparer)(nil)

// Preparer turns the raw query and corpus texts into chunk files.
type Preparer struct {
	chunks   driven.ChunkStore
	paths    domain.PathSettings
	settings domain.PreprocessSettings
}

// NewPreparer creates a preparation service.
func NewPreparer(chunks driven.ChunkStore, paths domain.PathSettings, settings domain.PreprocessSettings) *Preparer {
	return &Preparer{
		chunks:   chunks,
		paths:    paths,
		settings: settings,
	}
}

// Prepare chunks both texts and writes the configured chunk files.
// Existing files are left alone unless opts.Force is set.
func (p *Preparer) Prepare(ctx context.Context, opts domain.PrepareOptions) (*domain.PrepareReport, error) {
	logger.Section("Preparation")

	heading, err := regexp.Compile(p.settings.SectionPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: section pattern: %w", domain.ErrInvalidInput, err)
	}

	proc, err := chunker.New(
		chunker.WithSentencesPerChunk(p.settings.SentencesPerChunk),
		chunker.WithOverlap(p.settings.Overlap),
	)
	if err != nil {
		return nil, err
	}

	report := &domain.PrepareReport{
		QueryPath:  p.paths.QueriesFile,
		CorpusPath: p.paths.CorpusFile,
	}

	if !opts.Force && exists(p.paths.QueriesFile) {
		logger.Info("Keeping existing %s", p.paths.QueriesFile)
		report.Skipped = append(report.Skipped, p.paths.QueriesFile)
	} else {
		queries, err := p.prepareQueries(ctx, proc)
		if err != nil {
			return nil, err
		}
		if err := p.chunks.Save(p.paths.QueriesFile, queries); err != nil {
			return nil, fmt.Errorf("save query chunks: %w", err)
		}
		report.QueryChunks = len(queries)
	}

	if !opts.Force && exists(p.paths.CorpusFile) {
		logger.Info("Keeping existing %s", p.paths.CorpusFile)
		report.Skipped = append(report.Skipped, p.paths.CorpusFile)
	} else {
		corpus, sections, err := p.prepareCorpus(ctx, proc, heading)
		if err != nil {
			return nil, err
		}
		if err := p.chunks.Save(p.paths.CorpusFile, corpus); err != nil {
			return nil, fmt.Errorf("save corpus chunks: %w", err)
		}
		report.CorpusChunks = len(corpus)
		report.Sections = sections
	}

	return report, nil
}

// prepareQueries chunks the whole query text.
func (p *Preparer) prepareQueries(ctx context.Context, proc *chunker.Processor) ([]domain.Chunk, error) {
	text, err := readText(p.paths.QueriesRaw)
	if err != nil {
		return nil, err
	}

	chunks, err := proc.Process(ctx, chunker.Clean(text), map[string]any{
		domain.MetaSource: p.settings.QuerySource,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Prepared %d query chunks from %s", len(chunks), p.paths.QueriesRaw)
	return chunks, nil
}

// prepareCorpus chunks each section of the corpus text separately.
func (p *Preparer) prepareCorpus(
	ctx context.Context, proc *chunker.Processor, heading *regexp.Regexp,
) ([]domain.Chunk, int, error) {
	text, err := readText(p.paths.CorpusRaw)
	if err != nil {
		return nil, 0, err
	}

	sections := chunker.SplitSections(text, heading)
	if len(sections) == 0 {
		return nil, 0, fmt.Errorf("%w: no section matching %q in %s",
			domain.ErrInvalidInput, p.settings.SectionPattern, p.paths.CorpusRaw)
	}

	var corpus []domain.Chunk
	for _, section := range sections {
		number := chunker.RomanNumber(section.Title)
		if number == 0 {
			number = section.Number
		}

		chunks, err := proc.Process(ctx, chunker.Clean(section.Body), map[string]any{
			domain.MetaSource:     p.settings.CorpusSource,
			domain.MetaChapter:    section.Title,
			domain.MetaBookNumber: number,
		})
		if err != nil {
			return nil, 0, err
		}

		if p.settings.ContextHeader {
			for i := range chunks {
				chunks[i].Content = fmt.Sprintf("Context: %s, %s. Chunk %d\n\n%s",
					p.settings.CorpusSource, strings.TrimSuffix(section.Title, "."), i+1, chunks[i].Content)
			}
		}

		logger.Debug("%s: %d chunks", section.Title, len(chunks))
		corpus = append(corpus, chunks...)
	}

	logger.Info("Prepared %d corpus chunks from %d sections", len(corpus), len(sections))
	return corpus, len(sections), nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
