package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for intertext resources.
	uriScheme = "intertext://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "index",
		Name:        "index",
		Description: "Status of the corpus vector index",
		MIMEType:    "application/json",
	}, s.handleIndexResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "prompts",
		Name:        "prompts",
		Description: "Names of the available prompt templates",
		MIMEType:    "application/json",
	}, s.handlePromptsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "prompts/{name}",
		Name:        "prompt",
		Description: "Text of a prompt template",
		MIMEType:    "text/plain",
	}, s.handlePromptResource)
}

// handleIndexResource reports how many passages are indexed.
func (s *Server) handleIndexResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	count, err := s.ports.Pipeline.IndexedCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting indexed passages: %w", err)
	}

	data, err := json.Marshal(map[string]int{"passages": count})
	if err != nil {
		return nil, fmt.Errorf("marshalling index status: %w", err)
	}
	return jsonContents(req.Params.URI, data), nil
}

// handlePromptsResource lists prompt template names.
func (s *Server) handlePromptsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Prompts == nil {
		return jsonContents(req.Params.URI, []byte("[]")), nil
	}

	names, err := s.ports.Prompts.List()
	if err != nil {
		return nil, fmt.Errorf("listing prompts: %w", err)
	}

	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling prompts: %w", err)
	}
	return jsonContents(req.Params.URI, data), nil
}

// handlePromptResource returns the text of one prompt template.
func (s *Server) handlePromptResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Prompts == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	name := extractPromptName(req.Params.URI)
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	text, err := s.ports.Prompts.Load(name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("loading prompt: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     text,
		}},
	}, nil
}

func jsonContents(uri string, data []byte) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}
}

// extractPromptName extracts the name from a URI like intertext://prompts/{name}.
func extractPromptName(uri string) string {
	const prefix = uriScheme + "prompts/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	name := strings.TrimPrefix(uri, prefix)
	if strings.Contains(name, "/") {
		return ""
	}
	return name
}
