package types

// Package types defines the public API contracts exposed by the intent-agent
// service. These shapes are shared with API clients and must stay stable.

import "time"

// Query status values. Exactly one terminal status is produced per request.
const (
	StatusPending = "pending"
	StatusClarify = "clarify"
	StatusDone    = "done"
	StatusError   = "error"
)

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	// Query is the raw natural-language input.
	Query string `json:"query"`

	// UserID identifies the conversation for multi-turn clarification.
	// May be empty for anonymous queries.
	UserID string `json:"user_id,omitempty"`
}

// QueryResponse is the uniform response contract for a query turn.
type QueryResponse struct {
	// Status is one of done, clarify, or error.
	Status string `json:"status"`

	// Answer is the user-facing result text. For clarify turns it carries
	// the clarifying question; for error turns a diagnostic message.
	Answer string `json:"answer"`

	// Data is the structured result payload, populated only on done.
	Data map[string]any `json:"data,omitempty"`

	// TraceID correlates this turn with its provenance trace.
	TraceID string `json:"trace_id,omitempty"`

	// Trace is the ordered provenance log for this turn.
	Trace []TraceEntry `json:"trace"`
}

// TraceEntry is one provenance record in a request trace.
type TraceEntry struct {
	Timestamp    time.Time      `json:"timestamp"`
	TraceID      string         `json:"trace_id"`
	NodeID       string         `json:"node_id"`
	NodeType     string         `json:"node_type"` // router, tool, control, agent
	Actor        string         `json:"actor"`
	Input        map[string]any `json:"input,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
	Confidence   float64        `json:"confidence"`
	DecisionRule string         `json:"decision_rule"`
	Parent       string         `json:"parent,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
}

// TraceResponse is the body of GET /api/v1/trace.
type TraceResponse struct {
	TraceID string       `json:"trace_id"`
	Entries []TraceEntry `json:"entries"`
}

// ResetResponse is the body of POST /api/v1/reset.
type ResetResponse struct {
	SessionsCleared bool `json:"sessions_cleared"`
	TracesCleared   bool `json:"traces_cleared"`
}

// ErrorResponse is the standard error body for non-2xx responses.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}
