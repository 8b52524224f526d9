package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheeshfzr/intent-agent/internal/config"
	"github.com/asheeshfzr/intent-agent/internal/session"
	"github.com/asheeshfzr/intent-agent/internal/trace"
	"github.com/asheeshfzr/intent-agent/pkg/types"
)

// ─────────────────────────── Test fixtures ───────────────────────────

type stubStrategy struct {
	resp     *types.QueryResponse
	err      error
	lastUser string
}

func (s *stubStrategy) Execute(_ context.Context, query, userID string) (*types.QueryResponse, error) {
	s.lastUser = userID
	return s.resp, s.err
}

func (s *stubStrategy) Mode() string { return "pipeline" }

type serverEnv struct {
	server   *Server
	strategy *stubStrategy
	sessions session.Store
	recorder trace.Recorder
	mux      *http.ServeMux
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()

	strategy := &stubStrategy{resp: &types.QueryResponse{
		Status:  types.StatusDone,
		Answer:  "payments p95=120ms OK",
		TraceID: "t-1",
		Trace:   []types.TraceEntry{},
	}}
	sessions := session.NewStore()
	recorder := trace.NewRecorder()
	t.Cleanup(func() {
		sessions.Close()
		recorder.Close()
	})

	srv, err := NewServer(config.DefaultConfig(), strategy, sessions, recorder, nil)
	require.NoError(t, err)
	if srv.limiter != nil {
		t.Cleanup(srv.limiter.stop)
	}

	return &serverEnv{server: srv, strategy: strategy, sessions: sessions, recorder: recorder, mux: newTestMux(srv)}
}

func newTestMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.registerHandlers(mux)
	return mux
}

func (e *serverEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

// ─────────────────────────── Query endpoint ───────────────────────────

func TestQueryEndpoint(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/query",
		types.QueryRequest{Query: "p95 for payments last 5m", UserID: "u1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.QueryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, types.StatusDone, resp.Status)
	assert.Equal(t, "t-1", resp.TraceID)
	assert.Equal(t, "u1", env.strategy.lastUser)
}

func TestQueryEndpointRejectsEmptyQuery(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/query", types.QueryRequest{Query: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryEndpointRejectsBadJSON(t *testing.T) {
	env := newServerEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryEndpointMethodNotAllowed(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/query", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestQueryEndpointInternalError(t *testing.T) {
	env := newServerEnv(t)
	env.strategy.resp = nil
	env.strategy.err = fmt.Errorf("boom")

	rec := env.do(t, http.MethodPost, "/api/v1/query", types.QueryRequest{Query: "anything"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// ─────────────────────────── Trace endpoint ───────────────────────────

func TestTraceEndpoint(t *testing.T) {
	env := newServerEnv(t)
	env.recorder.Record(&trace.Entry{TraceID: "t-9", NodeID: "intent", NodeType: trace.NodeRouter})
	env.recorder.Record(&trace.Entry{TraceID: "t-9", NodeID: "fetch_metrics", NodeType: trace.NodeTool})

	rec := env.do(t, http.MethodGet, "/api/v1/trace?trace_id=t-9", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.TraceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "intent", resp.Entries[0].NodeID)
	assert.Equal(t, "fetch_metrics", resp.Entries[1].NodeID)
}

func TestTraceEndpointRequiresID(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/trace", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTraceEndpointUnknownIDIsEmpty(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/trace?trace_id=nope", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.TraceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Entries)
}

// ─────────────────────────── Reset endpoint ───────────────────────────

func TestResetEndpointClearsState(t *testing.T) {
	env := newServerEnv(t)
	env.sessions.SetPendingClarification("u1", "which service?")
	env.recorder.Record(&trace.Entry{TraceID: "t-1", NodeID: "intent"})

	rec := env.do(t, http.MethodPost, "/api/v1/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, pending := env.sessions.PendingClarification("u1")
	assert.False(t, pending)
	assert.Empty(t, env.recorder.Get("t-1"))
}

func TestResetEndpointSingleTrace(t *testing.T) {
	env := newServerEnv(t)
	env.sessions.SetPendingClarification("u1", "which service?")
	env.recorder.Record(&trace.Entry{TraceID: "t-1", NodeID: "intent"})
	env.recorder.Record(&trace.Entry{TraceID: "t-2", NodeID: "intent"})

	rec := env.do(t, http.MethodPost, "/api/v1/reset?trace_id=t-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, env.recorder.Get("t-1"))
	assert.Len(t, env.recorder.Get("t-2"), 1)
	// Sessions are untouched for single-trace resets.
	_, pending := env.sessions.PendingClarification("u1")
	assert.True(t, pending)
}

// ─────────────────────────── Operational endpoints ───────────────────────────

func TestHealthEndpoint(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestReadyEndpointBeforeStart(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInfoEndpoint(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	assert.Equal(t, "intent-agent", info["name"])
	assert.Equal(t, "pipeline", info["workflow_mode"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
