package driving

import (
	"context"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// PreparationService turns the raw query and corpus texts into chunk files.
type PreparationService interface {
	// Prepare chunks both texts and writes the configured chunk files.
	Prepare(ctx context.Context, opts domain.PrepareOptions) (*domain.PrepareReport, error)
}
