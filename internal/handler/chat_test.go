package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/smartfriend/mortgage-advisor/internal/advisor"
	"github.com/smartfriend/mortgage-advisor/internal/model"
	"github.com/smartfriend/mortgage-advisor/internal/session"
	"github.com/smartfriend/mortgage-advisor/pkg/logger"
)

type fakeRunner struct {
	run func(ctx context.Context, sessionID, userMessage string, sink advisor.ContentSink) error
}

func (f *fakeRunner) Turn(ctx context.Context, sessionID, userMessage string, sink advisor.ContentSink) error {
	return f.run(ctx, sessionID, userMessage, sink)
}

func quietLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func chatRequest(t *testing.T, sessionID, message string) *http.Request {
	t.Helper()
	body, err := json.Marshal(model.ChatRequest{SessionID: sessionID, Message: message})
	if err != nil {
		t.Fatal(err)
	}
	return httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
}

// parseSSE decodes every data line in an SSE body in order.
func parseSSE(t *testing.T, body string) []model.StreamEvent {
	t.Helper()
	var events []model.StreamEvent
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		payload, ok := strings.CutPrefix(block, "data: ")
		if !ok {
			t.Fatalf("SSE block missing data prefix: %q", block)
		}
		var evt model.StreamEvent
		if err := json.Unmarshal([]byte(payload), &evt); err != nil {
			t.Fatalf("invalid SSE payload %q: %v", payload, err)
		}
		events = append(events, evt)
	}
	return events
}

func TestCreateSession(t *testing.T) {
	sessions := session.NewMemoryStore()
	h := NewChatHandler(sessions, &fakeRunner{}, quietLogger())

	rec := httptest.NewRecorder()
	h.CreateSession(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp model.NewSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !sessions.Exists(resp.SessionID) {
		t.Errorf("returned session %q does not exist in store", resp.SessionID)
	}
}

func TestChatStreamsContentThenDone(t *testing.T) {
	sessions := session.NewMemoryStore()
	id := sessions.Create()

	runner := &fakeRunner{run: func(_ context.Context, _, _ string, sink advisor.ContentSink) error {
		if err := sink("Your EMI is "); err != nil {
			return err
		}
		return sink("AED 8,897.31.")
	}}
	h := NewChatHandler(sessions, runner, quietLogger())

	rec := httptest.NewRecorder()
	h.Chat(rec, chatRequest(t, id, "what's my EMI?"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events := parseSSE(t, rec.Body.String())
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3: %+v", len(events), events)
	}
	if events[0].Type != model.StreamEventContent || events[0].Content != "Your EMI is " {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Type != model.StreamEventContent || events[1].Content != "AED 8,897.31." {
		t.Errorf("events[1] = %+v", events[1])
	}
	if events[2].Type != model.StreamEventDone {
		t.Errorf("events[2] = %+v, want done", events[2])
	}
}

func TestChatEmitsErrorEventWithoutDone(t *testing.T) {
	sessions := session.NewMemoryStore()
	id := sessions.Create()

	runner := &fakeRunner{run: func(_ context.Context, _, _ string, sink advisor.ContentSink) error {
		if err := sink("partial"); err != nil {
			return err
		}
		return errors.New("model unavailable")
	}}
	h := NewChatHandler(sessions, runner, quietLogger())

	rec := httptest.NewRecorder()
	h.Chat(rec, chatRequest(t, id, "hi"))

	events := parseSSE(t, rec.Body.String())
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2: %+v", len(events), events)
	}
	if events[1].Type != model.StreamEventError {
		t.Fatalf("terminal event = %+v, want error", events[1])
	}
	for _, evt := range events {
		if evt.Type == model.StreamEventDone {
			t.Error("done must not follow an error event")
		}
	}
}

func TestChatClientDisconnectWritesNoTerminalEvent(t *testing.T) {
	sessions := session.NewMemoryStore()
	id := sessions.Create()

	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{run: func(ctx context.Context, _, _ string, sink advisor.ContentSink) error {
		if err := sink("first"); err != nil {
			return err
		}
		cancel()
		return sink("second")
	}}
	h := NewChatHandler(sessions, runner, quietLogger())

	rec := httptest.NewRecorder()
	h.Chat(rec, chatRequest(t, id, "hi").WithContext(ctx))

	events := parseSSE(t, rec.Body.String())
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1: %+v", len(events), events)
	}
	if events[0].Type != model.StreamEventContent {
		t.Errorf("events[0] = %+v, want content", events[0])
	}
}

func TestChatUnknownSession(t *testing.T) {
	h := NewChatHandler(session.NewMemoryStore(), &fakeRunner{}, quietLogger())

	rec := httptest.NewRecorder()
	h.Chat(rec, chatRequest(t, "3f9c8f2e-1111-4222-8333-444455556666", "hi"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestChatRejectsBadInput(t *testing.T) {
	sessions := session.NewMemoryStore()
	id := sessions.Create()
	h := NewChatHandler(sessions, &fakeRunner{}, quietLogger())

	tests := []struct {
		name      string
		sessionID string
		message   string
	}{
		{"malformed session id", "not-a-uuid", "hi"},
		{"empty message", id, ""},
		{"oversized message", id, strings.Repeat("a", 100001)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Chat(rec, chatRequest(t, tt.sessionID, tt.message))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}
