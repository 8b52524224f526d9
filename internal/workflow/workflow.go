package workflow

// Package workflow is the orchestration state machine that takes a raw
// query through intent classification, slot filling, tool invocation,
// and result finalization.
//
// Responsibilities:
//   - Run the strictly linear per-request pipeline
//     Route -> Plan -> Act -> Reflect -> Finalize, with Act bypassed
//     when a clarification is already decided
//   - Maintain per-user pending-clarification state across turns
//   - Record every routing decision, tool call, and clarification in
//     the provenance trace
//   - Map the internal state onto the uniform response contract
//
// Two execution strategies implement the same contract: the
// deterministic Pipeline described above, and a bounded iterative
// Agent that selects capability-eligible tools itself. They never
// share a code path beyond the composition helpers.

import (
	"context"

	"github.com/asheeshfzr/intent-agent/pkg/types"
)

// Strategy executes one query turn end to end.
type Strategy interface {
	// Execute runs a turn for userID and returns the response contract.
	// The returned error is reserved for fatal internal conditions; all
	// expected failures surface inside the response status.
	Execute(ctx context.Context, query, userID string) (*types.QueryResponse, error)

	// Mode names the strategy for configuration and metrics.
	Mode() string
}

// Params carries the tunable policy values shared by both strategies.
type Params struct {
	// ServiceCatalog lists the valid service names for slot validation.
	ServiceCatalog []string

	// ConfidenceThreshold gates auto-clarification on low-confidence
	// classifications.
	ConfidenceThreshold float64

	// KnowledgeScoreMin is the minimum acceptance score for a knowledge
	// search hit.
	KnowledgeScoreMin float64

	// P95ThresholdMs is the latency threshold the metrics verdict
	// compares against.
	P95ThresholdMs float64

	// AgentMaxIterations bounds the agent strategy's tool loop.
	AgentMaxIterations int
}

// State is the mutable record threaded through the pipeline for one
// request. It is created at request entry and discarded at Finalize.
type State struct {
	TraceID    string
	UserID     string
	Query      string
	Intent     string
	Entities   map[string]any
	Confidence float64

	ClarifyQuestion string
	Answer          string
	Data            map[string]any
	Status          string
	Err             string
}

func newState(traceID, userID, query string) *State {
	return &State{
		TraceID:  traceID,
		UserID:   userID,
		Query:    query,
		Entities: map[string]any{},
		Status:   types.StatusPending,
	}
}

// entityString returns a string-valued entity, or "" when absent.
func (s *State) entityString(key string) string {
	v, _ := s.Entities[key].(string)
	return v
}

// entityStrings returns a string-slice entity, tolerating []any values
// from JSON-decoded classifier output.
func (s *State) entityStrings(key string) []string {
	switch v := s.Entities[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
