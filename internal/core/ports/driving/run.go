package driving

import (
	"context"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// RunObserver receives run state transitions, e.g. to render progress.
type RunObserver func(domain.RunEvent)

// RunService executes a full batch: index the corpus, then retrieve and
// analyse related passages for each query chunk.
type RunService interface {
	// Run processes query chunks and writes the results table.
	// The report is returned even on abort so partial usage can be shown.
	Run(ctx context.Context, opts domain.RunOptions, observe RunObserver) (*domain.RunReport, error)

	// IndexCorpus loads the corpus chunk file, indexes it and saves the
	// embeddings back to the file.
	IndexCorpus(ctx context.Context) (int, domain.Usage, error)
}
