package model

import (
	"time"
)

// StreamEventType tags the wire events sent over the chat SSE stream.
type StreamEventType string

const (
	StreamEventContent StreamEventType = "content"
	StreamEventDone    StreamEventType = "done"
	StreamEventError   StreamEventType = "error"
)

// StreamEvent is the JSON payload of one `data:` line on the chat stream.
// Content carries the text delta for "content" events and a human-readable
// message for "error" events; it is empty for "done".
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
}

// LeadEligibleEvent signals that a session has accumulated enough
// conversation to warrant a contact-info prompt. Advisory only; the
// consumer decides whether and when to act on it.
type LeadEligibleEvent struct {
	SessionID    string         `json:"session_id"`
	MessageCount int            `json:"message_count"`
	UserData     map[string]any `json:"user_data,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}
