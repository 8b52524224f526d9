package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asheeshfzr/intent-agent/internal/metrics"
	"github.com/asheeshfzr/intent-agent/internal/router"
	"github.com/asheeshfzr/intent-agent/internal/session"
	"github.com/asheeshfzr/intent-agent/internal/trace"
	"github.com/asheeshfzr/intent-agent/pkg/types"
)

// Pipeline is the deterministic workflow strategy. Stages execute
// strictly in order and none may be skipped except Act, which is
// bypassed when a clarification is already decided.
type Pipeline struct {
	router   *router.Router
	planner  *Planner
	executor *Executor
	sessions session.Store
	recorder trace.Recorder
	logger   *zap.Logger
}

func NewPipeline(rt *router.Router, planner *Planner, executor *Executor, sessions session.Store, recorder trace.Recorder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		router:   rt,
		planner:  planner,
		executor: executor,
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
	}
}

func (p *Pipeline) Mode() string { return "pipeline" }

// Execute runs one turn: Route -> Plan -> Act -> Reflect -> Finalize.
func (p *Pipeline) Execute(ctx context.Context, query, userID string) (*types.QueryResponse, error) {
	start := time.Now()
	st := newState(uuid.NewString(), userID, query)

	route(ctx, p.router, p.recorder, st)
	p.planner.Plan(st)

	if st.ClarifyQuestion == "" {
		if err := p.executor.Act(ctx, st); err != nil {
			p.logger.Error("executor failed",
				zap.String("trace_id", st.TraceID),
				zap.String("intent", st.Intent),
				zap.Error(err))
			st.Status = types.StatusError
			st.Err = err.Error()
		}
	}

	reflect(st, p.sessions, p.recorder)
	resp := finalize(st, p.recorder)

	metrics.QueriesTotal.WithLabelValues(p.Mode(), resp.Status).Inc()
	metrics.QueryDuration.WithLabelValues(p.Mode()).Observe(time.Since(start).Seconds())
	return resp, nil
}

// route classifies the query into the state and records the routing
// decision.
func route(ctx context.Context, rt *router.Router, recorder trace.Recorder, st *State) {
	cls := rt.Route(ctx, st.Query)
	st.Intent = cls.Intent
	st.Entities = cls.Entities
	st.Confidence = cls.Confidence

	recorder.Record(&trace.Entry{
		TraceID:  st.TraceID,
		NodeID:   "intent",
		NodeType: trace.NodeRouter,
		Actor:    "router",
		Input:    map[string]any{"query": st.Query},
		Output: map[string]any{
			"intent":     cls.Intent,
			"confidence": cls.Confidence,
			"entities":   cls.Entities,
			"reasoning":  cls.Reasoning,
		},
		Confidence:   cls.Confidence,
		DecisionRule: "router_prompt",
		SessionID:    st.UserID,
	})
}

// reflect commits or clears the user's pending clarification based on
// how the turn ended, and records the clarification when one was asked.
func reflect(st *State, sessions session.Store, recorder trace.Recorder) {
	if st.ClarifyQuestion == "" {
		sessions.ClearPendingClarification(st.UserID)
		return
	}

	st.Status = types.StatusClarify
	sessions.SetPendingClarification(st.UserID, st.ClarifyQuestion)
	metrics.ClarificationsTotal.WithLabelValues(clarifyRule(st.ClarifyQuestion)).Inc()

	recorder.Record(&trace.Entry{
		TraceID:      st.TraceID,
		NodeID:       "clarify",
		NodeType:     trace.NodeControl,
		Actor:        "orchestrator",
		Input:        map[string]any{"query": st.Query},
		Output:       map[string]any{"question": st.ClarifyQuestion},
		Confidence:   0.5,
		DecisionRule: "clarify_question",
		SessionID:    st.UserID,
	})
}

// finalize maps the internal state onto the response contract. Exactly
// one of done, clarify, or error holds here.
func finalize(st *State, recorder trace.Recorder) *types.QueryResponse {
	resp := &types.QueryResponse{
		TraceID: st.TraceID,
		Trace:   apiTrace(recorder.Get(st.TraceID)),
	}
	switch st.Status {
	case types.StatusDone:
		resp.Status = types.StatusDone
		resp.Answer = st.Answer
		resp.Data = st.Data
	case types.StatusClarify:
		resp.Status = types.StatusClarify
		resp.Answer = st.ClarifyQuestion
	default:
		resp.Status = types.StatusError
		if st.Err != "" {
			resp.Answer = st.Err
		} else {
			resp.Answer = "Unknown state"
		}
	}
	return resp
}

// clarifyRule tags a clarification for metrics by the condition that
// produced it.
func clarifyRule(question string) string {
	switch question {
	case clarifyGeneric:
		return "low_confidence"
	case clarifyService, clarifyWindow, clarifyTargets:
		return "missing_slot"
	case clarifyNoMetrics, clarifyNoDocs, clarifyNoTargets, clarifyAgentStuck:
		return "tool_fallback"
	}
	return "missing_slot"
}

func apiTrace(entries []*trace.Entry) []types.TraceEntry {
	out := make([]types.TraceEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, types.TraceEntry{
			Timestamp:    e.Timestamp,
			TraceID:      e.TraceID,
			NodeID:       e.NodeID,
			NodeType:     e.NodeType,
			Actor:        e.Actor,
			Input:        e.Input,
			Output:       e.Output,
			Confidence:   e.Confidence,
			DecisionRule: e.DecisionRule,
			Parent:       e.Parent,
			SessionID:    e.SessionID,
		})
	}
	return out
}
