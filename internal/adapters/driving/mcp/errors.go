// Package mcp provides an MCP (Model Context Protocol) server adapter for intertext.
// It lets AI assistants retrieve related Odyssey passages and run the
// intertextual analysis on a single pair.
package mcp

import "errors"

// ErrMissingPipelineService is returned when the pipeline service is not provided.
var ErrMissingPipelineService = errors.New("mcp: pipeline service is required")
