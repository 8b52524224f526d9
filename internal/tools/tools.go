package tools

// Package tools provides the tool layer of the workflow: a registry of
// capability-tagged backends, a broker that invokes them with bounded
// retries, and one adapter per backend that normalizes every response
// into the fixed Result envelope.
//
// The executor never branches on ad hoc response shapes and never selects
// tools by concrete identity; eligibility is decided by capability tag
// membership.
//
// Failure contract: an adapter returns a non-nil error only for retryable
// failures (transport error, timeout, non-2xx status). Definitive
// failures, such as a rejected statement, are returned as a Result with
// Success=false and a nil error; the broker will not retry those.

import (
	"context"
	"sync"
	"time"
)

// Capability tags a tool with a class of operation it can perform.
type Capability string

const (
	CapabilityMetrics   Capability = "metrics"
	CapabilityKnowledge Capability = "knowledge"
	CapabilityCalc      Capability = "calc"
	CapabilityHTTP      Capability = "http"
	CapabilityUtil      Capability = "util"
)

// Result reason tags.
const (
	ReasonOK             = "ok"
	ReasonTimeout        = "timeout"
	ReasonHTTPError      = "http_error"
	ReasonTransportError = "transport_error"
	ReasonRejected       = "rejected"
	ReasonError          = "error"
	ReasonCache          = "cache"
)

// Result is the normalized envelope every backend response is adapted to
// before the executor consumes it.
type Result struct {
	// Tool is the name of the tool that produced this result.
	Tool string `json:"tool"`

	// Success reports whether the invocation produced usable data.
	Success bool `json:"success"`

	// Data is the structured payload.
	Data map[string]any `json:"data"`

	// Score expresses confidence or quality of the result in [0,1].
	Score float64 `json:"score"`

	// Reason tags the provenance of the outcome ("ok", "timeout", ...).
	Reason string `json:"reason"`

	// TS is when the result was produced.
	TS time.Time `json:"ts"`
}

// Tool is a single invocable backend.
type Tool interface {
	// Name returns the unique tool name.
	Name() string

	// Capabilities returns the capability tags this tool carries.
	Capabilities() []Capability

	// Invoke calls the backend with the given parameters. See the package
	// doc for the error contract.
	Invoke(ctx context.Context, params map[string]any) (*Result, error)
}

// Registry holds the available tools and selects them by capability.
type Registry struct {
	mu    sync.RWMutex
	tools []Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a tool. Registration order is preserved and defines
// fallback preference within a capability.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = append(r.tools, t)
}

// ByCapability returns the tools carrying the given capability, in
// registration order.
func (r *Registry) ByCapability(c Capability) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Tool
	for _, t := range r.tools {
		for _, tc := range t.Capabilities() {
			if tc == c {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Get returns the tool with the given name, if registered.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// All returns every registered tool in registration order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// failure builds a failed Result for the given tool and reason.
func failure(tool, reason string, errMsg string) *Result {
	data := map[string]any{}
	if errMsg != "" {
		data["error"] = errMsg
	}
	return &Result{
		Tool:    tool,
		Success: false,
		Data:    data,
		Score:   0,
		Reason:  reason,
		TS:      time.Now().UTC(),
	}
}

// success builds a successful Result for the given tool.
func success(tool string, data map[string]any, score float64) *Result {
	return &Result{
		Tool:    tool,
		Success: true,
		Data:    data,
		Score:   score,
		Reason:  ReasonOK,
		TS:      time.Now().UTC(),
	}
}
