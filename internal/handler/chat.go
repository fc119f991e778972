package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/smartfriend/mortgage-advisor/internal/advisor"
	"github.com/smartfriend/mortgage-advisor/internal/middleware"
	"github.com/smartfriend/mortgage-advisor/internal/model"
	"github.com/smartfriend/mortgage-advisor/internal/session"
	"github.com/smartfriend/mortgage-advisor/pkg/logger"
	"github.com/smartfriend/mortgage-advisor/pkg/metrics"
)

// TurnRunner executes one conversation turn, streaming assistant content
// to the sink as it arrives.
type TurnRunner interface {
	Turn(ctx context.Context, sessionID, userMessage string, sink advisor.ContentSink) error
}

// ChatHandler serves session creation and the streaming chat endpoint.
type ChatHandler struct {
	sessions session.Store
	advisor  TurnRunner
	logger   *logger.Logger
}

func NewChatHandler(sessions session.Store, advisor TurnRunner, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		sessions: sessions,
		advisor:  advisor,
		logger:   log,
	}
}

// CreateSession handles POST /api/v1/sessions.
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Create()
	metrics.SessionsTotal.Inc()

	h.logger.Info("session created", zap.String("session_id", id))
	writeJSON(w, http.StatusOK, model.NewSessionResponse{SessionID: id})
}

// Chat handles POST /api/v1/chat. The response is a Server-Sent Events
// stream of content deltas followed by a terminal done or error event.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateSessionID(req.SessionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.sessions.Exists(req.SessionID) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	ctx := r.Context()

	sink := func(delta string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return writeSSE(w, flusher, model.StreamEvent{Type: model.StreamEventContent, Content: delta})
	}

	err := h.advisor.Turn(ctx, req.SessionID, req.Message, sink)
	if err != nil {
		if ctx.Err() != nil {
			// Client disconnected. Nothing left to write.
			h.logger.Info("chat stream aborted by client",
				zap.String("session_id", req.SessionID))
			return
		}
		h.logger.Error("chat turn failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		msg := "an error occurred while processing your message"
		if errors.Is(err, session.ErrNotFound) {
			msg = "session not found"
		}
		_ = writeSSE(w, flusher, model.StreamEvent{Type: model.StreamEventError, Content: msg})
		return
	}

	_ = writeSSE(w, flusher, model.StreamEvent{Type: model.StreamEventDone})
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, evt model.StreamEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
