package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asheeshfzr/intent-agent/internal/metrics"
	"github.com/asheeshfzr/intent-agent/internal/router"
	"github.com/asheeshfzr/intent-agent/internal/session"
	"github.com/asheeshfzr/intent-agent/internal/tools"
	"github.com/asheeshfzr/intent-agent/internal/trace"
	"github.com/asheeshfzr/intent-agent/pkg/types"
)

// Agent is the iterative workflow strategy. After the shared routing
// and clarification gate, it selects tools eligible for the intent's
// capability itself and tries them in preference order until one
// yields an acceptable result, bounded by a fixed iteration budget.
type Agent struct {
	params   Params
	router   *router.Router
	planner  *Planner
	executor *Executor
	registry *tools.Registry
	broker   *tools.Broker
	sessions session.Store
	recorder trace.Recorder
	logger   *zap.Logger
}

func NewAgent(params Params, rt *router.Router, planner *Planner, executor *Executor, registry *tools.Registry, broker *tools.Broker, sessions session.Store, recorder trace.Recorder, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		params:   params,
		router:   rt,
		planner:  planner,
		executor: executor,
		registry: registry,
		broker:   broker,
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
	}
}

func (a *Agent) Mode() string { return "agent" }

// Execute runs one turn. Routing, slot validation, reflection, and
// finalization are shared with the deterministic pipeline; only the
// acting stage differs.
func (a *Agent) Execute(ctx context.Context, query, userID string) (*types.QueryResponse, error) {
	start := time.Now()
	st := newState(uuid.NewString(), userID, query)

	route(ctx, a.router, a.recorder, st)
	a.planner.Plan(st)

	if st.ClarifyQuestion == "" {
		a.act(ctx, st)
	}

	reflect(st, a.sessions, a.recorder)
	resp := finalize(st, a.recorder)

	metrics.QueriesTotal.WithLabelValues(a.Mode(), resp.Status).Inc()
	metrics.QueryDuration.WithLabelValues(a.Mode()).Observe(time.Since(start).Seconds())
	return resp, nil
}

// act loops over the capability-eligible tools until one yields an
// acceptable result or the iteration budget runs out.
func (a *Agent) act(ctx context.Context, st *State) {
	eligible := a.registry.ByCapability(capabilityFor(st.Intent))
	if len(eligible) == 0 {
		st.ClarifyQuestion = clarifyAgentStuck
		return
	}

	budget := a.params.AgentMaxIterations
	if budget <= 0 {
		budget = len(eligible)
	}

	iterations := 0
	for _, tool := range eligible {
		if iterations >= budget {
			break
		}
		iterations++

		params := a.toolParams(st)
		res := a.broker.Invoke(ctx, tool, params)
		a.recorder.Record(&trace.Entry{
			TraceID:  st.TraceID,
			NodeID:   "agent_step",
			NodeType: trace.NodeAgent,
			Actor:    tool.Name(),
			Input:    params,
			Output: map[string]any{
				"tool":    res.Tool,
				"success": res.Success,
				"data":    res.Data,
				"score":   res.Score,
				"reason":  res.Reason,
			},
			Confidence:   res.Score,
			DecisionRule: "agent_loop",
			SessionID:    st.UserID,
		})

		if !a.acceptable(st.Intent, res) {
			continue
		}
		a.compose(ctx, st, tool, res)
		if st.Status == types.StatusDone || st.ClarifyQuestion != "" {
			return
		}
	}
	if st.ClarifyQuestion == "" {
		st.ClarifyQuestion = clarifyAgentStuck
	}
}

// toolParams builds a parameter superset for the turn; each tool reads
// the keys it understands.
func (a *Agent) toolParams(st *State) map[string]any {
	window := st.entityString("window")
	if window == "" {
		window = defaultWindow
	}
	return map[string]any{
		"service": st.entityString("service"),
		"window":  window,
		"query":   st.Query,
		"q":       st.Query,
		"sql":     "SELECT * FROM services",
	}
}

func (a *Agent) acceptable(intent string, res *tools.Result) bool {
	if !res.Success {
		return false
	}
	if intent == router.IntentKnowledgeLookup {
		// The document fallback carries items rather than a similarity
		// score; only scored hits are gated.
		if _, scored := res.Data["top"]; scored {
			return res.Score >= a.params.KnowledgeScoreMin
		}
	}
	return true
}

// compose turns the accepted result into the answer, reusing the
// deterministic executor's composition helpers.
func (a *Agent) compose(ctx context.Context, st *State, tool tools.Tool, res *tools.Result) {
	switch {
	case hasCapability(tool, tools.CapabilityCalc):
		a.executor.composeCalcAnswer(ctx, st, res)
	case hasCapability(tool, tools.CapabilityMetrics):
		window := st.entityString("window")
		if window == "" {
			window = defaultWindow
		}
		a.executor.composeMetricsAnswer(st, st.entityString("service"), window, res)
	default:
		if _, scored := res.Data["top"]; scored {
			a.executor.composeKnowledgeAnswer(st, res)
		} else {
			composeDocsAnswer(st, st.Query, docsAnswerSingular, res)
		}
	}
}

func capabilityFor(intent string) tools.Capability {
	switch intent {
	case router.IntentMetricsLookup:
		return tools.CapabilityMetrics
	case router.IntentKnowledgeLookup:
		return tools.CapabilityKnowledge
	case router.IntentCalcCompare:
		return tools.CapabilityCalc
	}
	return tools.CapabilityUtil
}

func hasCapability(t tools.Tool, c tools.Capability) bool {
	for _, tc := range t.Capabilities() {
		if tc == c {
			return true
		}
	}
	return false
}
