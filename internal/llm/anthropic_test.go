package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/smartfriend/mortgage-advisor/internal/model"
	"github.com/smartfriend/mortgage-advisor/internal/tool"
)

// minimal valid message stream carrying one text delta.
func writeMessageStream(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/event-stream")
	events := []struct {
		name string
		data string
	}{
		{"message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-3-5-sonnet-20241022","stop_reason":null,"usage":{"input_tokens":1,"output_tokens":0}}}`},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
		{"content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, text)},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`},
		{"message_stop", `{"type":"message_stop"}`},
	}
	for _, ev := range events {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
	}
}

func toolHistory() []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Content: "what's my EMI?"},
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{
			ID:        "toolu_1",
			Name:      "calculate_emi",
			Arguments: `{"loan_amount": 1000000, "tenure_years": 20}`,
		}}},
		{Role: model.RoleTool, ToolCallID: "toolu_1", Content: `{"emi": 6326.49}`},
	}
}

func TestAnthropicForcedRoundKeepsToolDefinitions(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		writeMessageStream(w, "Your EMI is AED 6,326.49.")
	}))
	defer srv.Close()

	client := &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL)),
	}

	stream, err := client.ChatStream(context.Background(), &Request{
		Model:      "claude-3-5-sonnet-20241022",
		MaxTokens:  256,
		Messages:   toolHistory(),
		Tools:      tool.NewRegistry().Definitions(),
		ToolChoice: "none",
	})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	defer stream.Close()

	ev, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if ev.Type != EventDelta || ev.Delta != "Your EMI is AED 6,326.49." {
		t.Errorf("first event = %+v, want text delta", ev)
	}
	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("terminal Recv error = %v, want io.EOF", err)
	}

	// The history carries tool_use and tool_result blocks, so the tool
	// definitions must stay on the request even when tools are exhausted.
	tools, ok := body["tools"].([]any)
	if !ok || len(tools) == 0 {
		t.Fatalf("request tools = %v, want non-empty definitions", body["tools"])
	}

	messages, ok := body["messages"].([]any)
	if !ok || len(messages) == 0 {
		t.Fatalf("request messages = %v", body["messages"])
	}
	last, _ := messages[len(messages)-1].(map[string]any)
	if last["role"] != "user" {
		t.Fatalf("last message role = %v, want user steering instruction", last["role"])
	}
	content, _ := json.Marshal(last["content"])
	if !strings.Contains(string(content), finalizeInstruction) {
		t.Errorf("last message content = %s, want finalize instruction", content)
	}
}

func TestAnthropicUnforcedRoundOmitsInstruction(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		writeMessageStream(w, "Hello.")
	}))
	defer srv.Close()

	client := &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey("test"), option.WithBaseURL(srv.URL)),
	}

	stream, err := client.ChatStream(context.Background(), &Request{
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 256,
		Messages:  []model.Message{{Role: model.RoleUser, Content: "hi"}},
		Tools:     tool.NewRegistry().Definitions(),
	})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	defer stream.Close()

	for {
		if _, err := stream.Recv(); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			t.Fatalf("Recv: %v", err)
		}
	}

	raw, _ := json.Marshal(body["messages"])
	if strings.Contains(string(raw), finalizeInstruction) {
		t.Error("unforced round must not carry the finalize instruction")
	}
}
