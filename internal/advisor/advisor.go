// Package advisor drives the per-turn orchestration loop: it exchanges
// session history and the tool schema with the LLM capability, executes
// validated tool calls, and streams the final natural-language reply.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/smartfriend/mortgage-advisor/internal/events"
	"github.com/smartfriend/mortgage-advisor/internal/llm"
	"github.com/smartfriend/mortgage-advisor/internal/model"
	"github.com/smartfriend/mortgage-advisor/internal/session"
	"github.com/smartfriend/mortgage-advisor/internal/tool"
	"github.com/smartfriend/mortgage-advisor/pkg/logger"
	"github.com/smartfriend/mortgage-advisor/pkg/metrics"
)

// ContentSink receives content deltas as they arrive from the model. A
// returned error aborts the turn; the sink owns its own buffering, the loop
// never holds deltas back.
type ContentSink func(delta string) error

// Options configure the orchestration loop.
type Options struct {
	Model         string
	MaxTokens     int
	Temperature   float64
	MaxToolRounds int
	LeadThreshold int
}

// Advisor is the per-session turn state machine.
type Advisor struct {
	sessions session.Store
	registry *tool.Registry
	client   llm.Client
	events   events.Publisher
	logger   *logger.Logger
	opts     Options
}

// New creates an orchestration loop over the given collaborators.
func New(sessions session.Store, registry *tool.Registry, client llm.Client, pub events.Publisher, log *logger.Logger, opts Options) *Advisor {
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = 5
	}
	if opts.LeadThreshold <= 0 {
		opts.LeadThreshold = 4
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	return &Advisor{
		sessions: sessions,
		registry: registry,
		client:   client,
		events:   pub,
		logger:   log,
		opts:     opts,
	}
}

// userDataKeys are the tool arguments harvested opportunistically into the
// session's userData.
var userDataKeys = []string{
	"income", "property_price", "down_payment", "tenure_years", "stay_years", "monthly_rent",
}

var tracer = otel.Tracer("github.com/smartfriend/mortgage-advisor/internal/advisor")

// Turn runs one complete user-message-to-final-reply cycle. Content deltas
// go to sink as they arrive; the final assistant text is appended to history
// only on success. On failure the partial reply is discarded and the error
// returned; any completed tool rounds remain in history.
func (a *Advisor) Turn(ctx context.Context, sessionID, userMessage string, sink ContentSink) error {
	if !a.sessions.Exists(sessionID) {
		return session.ErrNotFound
	}

	ctx, span := tracer.Start(ctx, "conversation_turn")
	span.SetAttributes(attribute.String("session_id", sessionID))
	defer span.End()

	startCount := a.historyLen(sessionID)

	if err := a.sessions.Append(sessionID, model.Message{Role: model.RoleUser, Content: userMessage}); err != nil {
		return err
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()

	history, err := a.sessions.History(sessionID)
	if err != nil {
		return err
	}

	var full strings.Builder
	toolRounds := 0
	sawToolResults := false

	for round := 0; ; round++ {
		forced := round >= a.opts.MaxToolRounds

		roundText, calls, err := a.modelRound(ctx, history, forced, sink)
		if err != nil {
			return err
		}
		full.WriteString(roundText)
		if len(calls) == 0 {
			break
		}
		if forced {
			// The finalization round must not request tools; treat any
			// residual request as a plain end of turn.
			a.logger.Warn("model requested tools on forced finalization round",
				zap.String("session_id", sessionID))
			break
		}

		toolRounds++
		sawToolResults = true

		// Prose emitted alongside the tool request stays on this message so
		// later rounds in the turn see it.
		assistantMsg := model.Message{Role: model.RoleAssistant, Content: roundText, ToolCalls: toToolCalls(calls)}
		if err := a.appendBoth(sessionID, &history, assistantMsg); err != nil {
			return err
		}

		for _, call := range calls {
			result := a.executeCall(ctx, sessionID, call)
			toolMsg := model.Message{
				Role:       model.RoleTool,
				ToolCallID: call.ID,
				Content:    result.PayloadJSON(),
			}
			if err := a.appendBoth(sessionID, &history, toolMsg); err != nil {
				return err
			}
		}
	}

	metrics.ToolRoundsPerTurn.Observe(float64(toolRounds))

	if full.Len() == 0 && sawToolResults {
		if err := sink(fallbackReply); err != nil {
			return err
		}
		full.WriteString(fallbackReply)
	}

	if full.Len() > 0 {
		if err := a.sessions.Append(sessionID, model.Message{Role: model.RoleAssistant, Content: full.String()}); err != nil {
			return err
		}
		metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()
	}

	a.signalLeadEligibility(ctx, sessionID, startCount)

	return nil
}

// modelRound performs one exchange with the model, forwarding content deltas
// and collecting any tool-call request. It returns the prose emitted during
// the round; forced steers the model to a plain-content reply.
func (a *Advisor) modelRound(ctx context.Context, history []model.Message, forced bool, sink ContentSink) (string, []llm.ToolCallRequest, error) {
	ctx, span := tracer.Start(ctx, "model_round")
	defer span.End()

	req := &llm.Request{
		Model:       a.opts.Model,
		System:      systemPrompt,
		Messages:    history,
		Tools:       a.registry.Definitions(),
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
	}
	if forced {
		req.ToolChoice = "none"
	}

	start := time.Now()
	stream, err := a.client.ChatStream(ctx, req)
	if err != nil {
		metrics.LLMStreamDuration.WithLabelValues(a.opts.Model, "error").Observe(time.Since(start).Seconds())
		return "", nil, fmt.Errorf("LLM request failed: %w", err)
	}
	defer stream.Close()

	var text strings.Builder
	var calls []llm.ToolCallRequest
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			metrics.LLMStreamDuration.WithLabelValues(a.opts.Model, "error").Observe(time.Since(start).Seconds())
			return "", nil, fmt.Errorf("LLM stream failed: %w", err)
		}

		switch ev.Type {
		case llm.EventDelta:
			if err := sink(ev.Delta); err != nil {
				return "", nil, err
			}
			text.WriteString(ev.Delta)
		case llm.EventToolCalls:
			calls = ev.ToolCalls
		}
	}

	metrics.LLMStreamDuration.WithLabelValues(a.opts.Model, "success").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("tool_calls", len(calls)))
	return text.String(), calls, nil
}

// executeCall runs one tool call through the registry and harvests user
// attributes from accepted arguments.
func (a *Advisor) executeCall(ctx context.Context, sessionID string, call llm.ToolCallRequest) tool.Result {
	_, span := tracer.Start(ctx, "tool_execution")
	span.SetAttributes(attribute.String("tool", call.Name))
	defer span.End()

	result := a.registry.Execute(call.Name, call.Arguments)

	status := "executed"
	if result.Skipped {
		status = "skipped"
	} else if _, isErr := result.Payload.(tool.ErrorPayload); isErr {
		status = "error"
	}
	metrics.ToolExecutionsTotal.WithLabelValues(call.Name, status).Inc()
	span.SetAttributes(attribute.String("status", status))

	a.logger.Info("tool call",
		zap.String("session_id", sessionID),
		zap.String("tool", call.Name),
		zap.String("status", status),
	)

	// Only arguments the calculator accepted are worth keeping.
	if status == "executed" {
		a.harvestUserData(sessionID, call.Arguments)
	}

	return result
}

// harvestUserData merges recognized numeric arguments into session userData.
// Best effort: extraction is opportunistic and never fails the turn.
func (a *Advisor) harvestUserData(sessionID, rawArgs string) {
	args := make(map[string]any)
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return
	}
	tool.CoerceNumbers(args)

	partial := make(map[string]any)
	for _, key := range userDataKeys {
		if v, ok := args[key]; ok {
			partial[key] = v
		}
	}
	if len(partial) == 0 {
		return
	}
	_ = a.sessions.MergeUserData(sessionID, partial)
}

// signalLeadEligibility emits the advisory lead-capture signal when this turn
// pushed the session's message count across the configured threshold.
func (a *Advisor) signalLeadEligibility(ctx context.Context, sessionID string, startCount int) {
	endCount := a.historyLen(sessionID)
	if startCount >= a.opts.LeadThreshold || endCount < a.opts.LeadThreshold {
		return
	}

	userData, _ := a.sessions.UserData(sessionID)
	evt := model.LeadEligibleEvent{
		SessionID:    sessionID,
		MessageCount: endCount,
		UserData:     userData,
		OccurredAt:   time.Now(),
	}
	if err := a.events.LeadEligible(ctx, evt); err != nil {
		a.logger.Warn("failed to publish lead eligibility",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return
	}
	metrics.LeadSignalsTotal.Inc()
}

func (a *Advisor) historyLen(sessionID string) int {
	history, err := a.sessions.History(sessionID)
	if err != nil {
		return 0
	}
	return len(history)
}

func (a *Advisor) appendBoth(sessionID string, history *[]model.Message, msg model.Message) error {
	if err := a.sessions.Append(sessionID, msg); err != nil {
		return err
	}
	*history = append(*history, msg)
	metrics.MessagesTotal.WithLabelValues(string(msg.Role)).Inc()
	return nil
}

func toToolCalls(calls []llm.ToolCallRequest) []model.ToolCall {
	out := make([]model.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = model.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}
