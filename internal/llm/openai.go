package llm

import (
	"context"
	"errors"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/smartfriend/mortgage-advisor/internal/model"
)

// OpenAIClient speaks the OpenAI chat-completions wire protocol, including
// Groq's compatible endpoint when a base URL is set.
type OpenAIClient struct {
	client *openai.Client
	name   string
}

// NewOpenAIClient creates a new OpenAI-protocol client.
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	name := "openai"
	if baseURL != "" {
		cfg.BaseURL = baseURL
		if baseURL == GroqBaseURL {
			name = "groq"
		}
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		name:   name,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Models returns available models.
func (c *OpenAIClient) Models() []string {
	if c.name == "groq" {
		return []string{
			"llama-3.3-70b-versatile",
			"llama-3.1-8b-instant",
		}
	}
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
	}
}

// ChatStream opens a streamed chat completion with the tool schema attached.
func (c *OpenAIClient) ChatStream(ctx context.Context, req *Request) (Stream, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, toOpenAIMessage(msg))
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stream:      true,
	}

	if len(req.Tools) > 0 {
		tools := make([]openai.Tool, len(req.Tools))
		for i, d := range req.Tools {
			tools[i] = openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        d.Name,
					Description: d.Description,
					Parameters:  d.Schema(),
				},
			}
		}
		chatReq.Tools = tools
		switch req.ToolChoice {
		case "none":
			chatReq.ToolChoice = "none"
		default:
			chatReq.ToolChoice = "auto"
		}
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	return &openaiStream{stream: stream}, nil
}

func toOpenAIMessage(msg model.Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       string(msg.Role),
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return out
}

// openaiStream adapts the chunked completion stream to the Event sequence.
// Tool-call fragments arrive interleaved across chunks, keyed by index; they
// are absorbed silently and emitted as a single terminal EventToolCalls.
type openaiStream struct {
	stream  *openai.ChatCompletionStream
	pending []pendingCall
	flushed bool
}

type pendingCall struct {
	id   string
	name string
	args string
}

func (s *openaiStream) Recv() (Event, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			if ev, ok := s.flush(); ok {
				return ev, nil
			}
			return Event{}, io.EOF
		}
		if err != nil {
			return Event{}, err
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		for _, tc := range choice.Delta.ToolCalls {
			s.absorb(tc)
		}

		if choice.Delta.Content != "" {
			return Event{Type: EventDelta, Delta: choice.Delta.Content}, nil
		}

		if choice.FinishReason == openai.FinishReasonToolCalls {
			if ev, ok := s.flush(); ok {
				return ev, nil
			}
		}
	}
}

func (s *openaiStream) absorb(tc openai.ToolCall) {
	idx := 0
	if tc.Index != nil {
		idx = *tc.Index
	}
	for len(s.pending) <= idx {
		s.pending = append(s.pending, pendingCall{})
	}
	p := &s.pending[idx]
	if tc.ID != "" {
		p.id = tc.ID
	}
	if tc.Function.Name != "" {
		p.name = tc.Function.Name
	}
	p.args += tc.Function.Arguments
}

func (s *openaiStream) flush() (Event, bool) {
	if s.flushed || len(s.pending) == 0 {
		return Event{}, false
	}
	s.flushed = true

	calls := make([]ToolCallRequest, 0, len(s.pending))
	for _, p := range s.pending {
		if p.name == "" {
			continue
		}
		calls = append(calls, ToolCallRequest{ID: p.id, Name: p.name, Arguments: p.args})
	}
	if len(calls) == 0 {
		return Event{}, false
	}
	return Event{Type: EventToolCalls, ToolCalls: calls}, true
}

func (s *openaiStream) Close() {
	s.stream.Close()
}
