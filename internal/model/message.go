// Package model defines data structures for the mortgage advisor backend.
package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation recorded on an assistant message.
// Arguments is the raw JSON string exactly as the model produced it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry in a session's history.
//
// ToolCalls is set only on assistant messages that requested tools;
// ToolCallID only on tool messages carrying a result payload.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewSessionResponse is the response for session creation.
type NewSessionResponse struct {
	SessionID string `json:"session_id"`
}

// ChatRequest is the request body for a chat turn.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// LeadRequest is the request body for lead capture.
type LeadRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// LeadResponse acknowledges a lead capture.
type LeadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
