// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
)

// LLMService provides chat completions with optional schema-constrained output.
//
// Implementations may include:
//   - OpenAI (response_format json_schema)
//   - Anthropic (forced tool use)
//   - Ollama (format schema)
type LLMService interface {
	// Chat conducts a conversation and returns the final assistant message.
	// When opts.Schema is set the content is a JSON document conforming to it.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (ChatResponse, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	// It is always sent, so zero means deterministic rather than provider default.
	Temperature float64

	// Schema requests structured output. Nil means free text.
	Schema *ResponseSchema
}

// ResponseSchema describes the JSON document the model must return.
type ResponseSchema struct {
	// Name identifies the schema to the provider.
	Name string

	// Description tells the model what the document is for.
	Description string

	// Schema is a JSON Schema object.
	Schema map[string]any
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	// Content is the assistant message, or the JSON document when a schema was requested.
	Content string

	// Usage is the token count reported for the request.
	Usage domain.Usage
}
