// Package llm provides the language-model capability: given messages and the
// tool schema, a provider yields a stream of tagged events that is either
// plain content deltas or a tool-call request. Providers never execute tools.
package llm

import (
	"context"
	"errors"

	"github.com/smartfriend/mortgage-advisor/internal/model"
	"github.com/smartfriend/mortgage-advisor/internal/tool"
)

// EventType tags events on a model response stream.
type EventType string

const (
	// EventDelta carries an incremental plain-text content fragment.
	EventDelta EventType = "delta"
	// EventToolCalls carries the complete set of tool calls the model
	// requested for this round. At most one per stream, as its terminal
	// event.
	EventToolCalls EventType = "tool_calls"
)

// ToolCallRequest is a model-issued request to invoke a named tool.
// Arguments is the raw JSON argument string, unvalidated.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments string
}

// Event is one element of a model response stream.
type Event struct {
	Type      EventType
	Delta     string
	ToolCalls []ToolCallRequest
}

// Request is a chat completion request.
type Request struct {
	Model       string
	System      string
	Messages    []model.Message
	Tools       []tool.Definition
	ToolChoice  string // "auto" (default) or "none"
	MaxTokens   int
	Temperature float64
}

// Stream is a finite sequence of model events. Recv returns io.EOF after the
// final event; a stream is not restartable.
type Stream interface {
	Recv() (Event, error)
	Close()
}

// Client is the interface for LLM providers.
type Client interface {
	// ChatStream opens a streamed chat completion.
	ChatStream(ctx context.Context, req *Request) (Stream, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderGroq      Provider = "groq"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Config selects and configures a provider.
type Config struct {
	Provider Provider
	APIKey   string
	BaseURL  string
}

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// NewClient creates a client for the configured provider. Groq is served by
// the OpenAI client pointed at its compatible endpoint.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderGroq:
		base := cfg.BaseURL
		if base == "" {
			base = GroqBaseURL
		}
		return NewOpenAIClient(cfg.APIKey, base)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg.APIKey)
	default:
		return nil, errors.New("unknown LLM provider: " + string(cfg.Provider))
	}
}
