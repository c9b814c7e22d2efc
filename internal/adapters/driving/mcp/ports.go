package mcp

import (
	"context"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driving"
)

// PromptWatcher reloads prompt templates when their files change.
type PromptWatcher interface {
	Watch(ctx context.Context, onChange func(name string)) (<-chan struct{}, error)
}

// Ports aggregates the interfaces required by the MCP server.
type Ports struct {
	// Pipeline runs retrieval and analysis.
	Pipeline driving.PipelineService

	// Prompts exposes prompt templates as resources. Optional.
	Prompts driven.PromptStore

	// Watcher enables prompt hot reload while serving. Optional.
	Watcher PromptWatcher

	// Prices converts tool usage to dollars. Defaults to domain.DefaultPriceTable().
	Prices domain.PriceTable
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Pipeline == nil {
		return ErrMissingPipelineService
	}
	return nil
}
