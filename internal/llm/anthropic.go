package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/smartfriend/mortgage-advisor/internal/model"
)

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Models returns available models.
func (c *AnthropicClient) Models() []string {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
	}
}

// finalizeInstruction steers the model to prose when tool use is exhausted.
// The tool definitions stay on the request: the API rejects histories
// containing tool_use or tool_result blocks when tools are absent.
const finalizeInstruction = "Do not call any more tools. Answer the user in plain prose using the results gathered so far."

// ChatStream opens a streamed message with the tool schema attached.
func (c *AnthropicClient) ChatStream(ctx context.Context, req *Request) (Stream, error) {
	messages := toAnthropicMessages(req.Messages)
	if req.ToolChoice == "none" {
		messages = append(messages, anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRoleUser),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(finalizeInstruction),
				},
			}),
		})
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(req.Model),
		MaxTokens: anthropic.F(int64(req.MaxTokens)),
		Messages:  anthropic.F(messages),
	}

	if req.System != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(req.System),
		}})
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolParam, len(req.Tools))
		for i, d := range req.Tools {
			tools[i] = anthropic.ToolParam{
				Name:        anthropic.F(d.Name),
				Description: anthropic.F(d.Description),
				InputSchema: anthropic.F[interface{}](d.Schema()),
			}
		}
		params.Tools = anthropic.F(tools)
	}

	stream := c.client.Messages.NewStreaming(ctx, params)

	return &anthropicStream{stream: stream}, nil
}

// toAnthropicMessages maps history onto Anthropic's user/assistant roles:
// assistant tool calls become tool_use blocks, tool results become user
// messages carrying tool_result blocks.
func toAnthropicMessages(msgs []model.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(msg.Content),
				})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ToolUseBlockParam{
					Type:  anthropic.F(anthropic.ToolUseBlockParamTypeToolUse),
					ID:    anthropic.F(tc.ID),
					Name:  anthropic.F(tc.Name),
					Input: anthropic.F[interface{}](rawArguments(tc.Arguments)),
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.F(anthropic.MessageParamRoleAssistant),
				Content: anthropic.F(blocks),
			})
		case model.RoleTool:
			out = append(out, anthropic.MessageParam{
				Role: anthropic.F(anthropic.MessageParamRoleUser),
				Content: anthropic.F([]anthropic.ContentBlockParamUnion{
					anthropic.ToolResultBlockParam{
						Type:      anthropic.F(anthropic.ToolResultBlockParamTypeToolResult),
						ToolUseID: anthropic.F(msg.ToolCallID),
						Content: anthropic.F([]anthropic.ToolResultBlockParamContentUnion{
							anthropic.TextBlockParam{
								Type: anthropic.F(anthropic.TextBlockParamTypeText),
								Text: anthropic.F(msg.Content),
							},
						}),
					},
				}),
			})
		case model.RoleUser:
			out = append(out, anthropic.MessageParam{
				Role: anthropic.F(anthropic.MessageParamRoleUser),
				Content: anthropic.F([]anthropic.ContentBlockParamUnion{
					anthropic.TextBlockParam{
						Type: anthropic.F(anthropic.TextBlockParamTypeText),
						Text: anthropic.F(msg.Content),
					},
				}),
			})
		}
	}
	return out
}

func rawArguments(args string) map[string]any {
	parsed := make(map[string]any)
	if args == "" {
		return parsed
	}
	_ = json.Unmarshal([]byte(args), &parsed)
	return parsed
}

// anthropicStream adapts the SSE event stream to the Event sequence,
// accumulating the full message so tool_use blocks can be emitted once the
// stream stops with a tool_use stop reason.
type anthropicStream struct {
	stream  *ssestream.Stream[anthropic.MessageStreamEvent]
	message anthropic.Message
	flushed bool
}

func (s *anthropicStream) Recv() (Event, error) {
	for s.stream.Next() {
		event := s.stream.Current()
		_ = s.message.Accumulate(event)

		if delta, ok := event.Delta.(anthropic.ContentBlockDeltaEventDelta); ok &&
			event.Type == anthropic.MessageStreamEventTypeContentBlockDelta &&
			delta.Type == "text_delta" && delta.Text != "" {
			return Event{Type: EventDelta, Delta: delta.Text}, nil
		}
	}

	if err := s.stream.Err(); err != nil {
		return Event{}, err
	}

	if !s.flushed && s.message.StopReason == anthropic.MessageStopReasonToolUse {
		s.flushed = true
		var calls []ToolCallRequest
		for _, block := range s.message.Content {
			if block.Type != anthropic.ContentBlockTypeToolUse {
				continue
			}
			calls = append(calls, ToolCallRequest{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
		if len(calls) > 0 {
			return Event{Type: EventToolCalls, ToolCalls: calls}, nil
		}
	}

	return Event{}, io.EOF
}

func (s *anthropicStream) Close() {}
