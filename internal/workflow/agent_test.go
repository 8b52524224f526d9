package workflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheeshfzr/intent-agent/internal/router"
	"github.com/asheeshfzr/intent-agent/internal/session"
	"github.com/asheeshfzr/intent-agent/internal/tools"
	"github.com/asheeshfzr/intent-agent/internal/trace"
	"github.com/asheeshfzr/intent-agent/pkg/types"
)

func newTestAgent(t *testing.T, toolList ...tools.Tool) *Agent {
	t.Helper()

	registry := tools.NewRegistry()
	for _, tool := range toolList {
		registry.Register(tool)
	}
	broker := tools.NewBroker(tools.BrokerConfig{
		Retries:     1,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
	})

	params := testParams()
	sessions := session.NewStore()
	recorder := trace.NewRecorder()
	t.Cleanup(func() {
		sessions.Close()
		recorder.Close()
	})

	rt := router.NewRouter(nil, params.ServiceCatalog, nil)
	planner := NewPlanner(params, sessions)
	executor := NewExecutor(params, registry, broker, recorder, nil)
	return NewAgent(params, rt, planner, executor, registry, broker, sessions, recorder, nil)
}

func TestAgentMetricsTurn(t *testing.T) {
	agent := newTestAgent(t, fakeMetricsTool(600))

	resp, err := agent.Execute(context.Background(), "p95 for payments last 5m", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StatusDone, resp.Status)
	assert.Equal(t, "above", resp.Data["verdict"])
}

func TestAgentSharesClarificationGate(t *testing.T) {
	agent := newTestAgent(t, fakeMetricsTool(600))

	resp, err := agent.Execute(context.Background(), "show me the p95 latency", "u1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusClarify, resp.Status)
	assert.Equal(t, clarifyService, resp.Answer)
}

func TestAgentTriesNextEligibleTool(t *testing.T) {
	// The scored hit is below the acceptance gate; the agent moves on to
	// the document tool instead of giving up.
	agent := newTestAgent(t,
		fakeKnowledgeTool("Weak hit", "irrelevant", 0.1),
		fakeDocsTool(map[string]any{"title": "Setup guide", "snippet": "steps"}),
	)

	resp, err := agent.Execute(context.Background(), "how to configure alerts", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StatusDone, resp.Status)
	assert.Equal(t, "Found doc: Setup guide", resp.Answer)
}

func TestAgentRespectsIterationBudget(t *testing.T) {
	// Two eligible tools but a budget of one: the agent must stop after
	// the first low-scoring hit instead of moving on to the document tool.
	agent := newTestAgent(t,
		fakeKnowledgeTool("Weak hit", "irrelevant", 0.1),
		fakeDocsTool(map[string]any{"title": "Setup guide", "snippet": "steps"}),
	)
	agent.params.AgentMaxIterations = 1

	resp, err := agent.Execute(context.Background(), "how to configure alerts", "u1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusClarify, resp.Status)
	assert.Equal(t, clarifyAgentStuck, resp.Answer)

	var agentSteps int
	for _, e := range resp.Trace {
		if e.NodeType == trace.NodeAgent {
			agentSteps++
		}
	}
	assert.Equal(t, 1, agentSteps)
}

func TestAgentExhaustedToolsClarifies(t *testing.T) {
	broken := &fakeTool{
		name: "metrics",
		caps: []tools.Capability{tools.CapabilityMetrics},
		fn: func(map[string]any) (*tools.Result, error) {
			return nil, fmt.Errorf("backend down")
		},
	}
	agent := newTestAgent(t, broken)

	resp, err := agent.Execute(context.Background(), "p95 for payments last 5m", "u1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusClarify, resp.Status)
	assert.Equal(t, clarifyAgentStuck, resp.Answer)
}

func TestAgentCalcCompare(t *testing.T) {
	agent := newTestAgent(t,
		fakeSQLTool(map[string]int64{"payments": 500, "orders": 300}),
		fakeMetricsTool(480),
	)

	resp, err := agent.Execute(context.Background(), "compare payments vs orders", "u1")
	require.NoError(t, err)
	require.Equal(t, types.StatusDone, resp.Status)
	assert.Equal(t, 200.0, resp.Data["diff_ms"])
}

func TestAgentStepsAreTraced(t *testing.T) {
	agent := newTestAgent(t, fakeMetricsTool(600))

	resp, err := agent.Execute(context.Background(), "p95 for payments last 5m", "u1")
	require.NoError(t, err)

	var agentSteps int
	for _, e := range resp.Trace {
		if e.NodeType == trace.NodeAgent {
			agentSteps++
		}
	}
	assert.Equal(t, 1, agentSteps)
}
