package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheeshfzr/intent-agent/internal/trace"
)

// markRunning flips the serving flag so stream upgrades are accepted
// without binding a real listener.
func markRunning(s *Server) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
}

func TestTraceStreamDeliversEntries(t *testing.T) {
	env := newServerEnv(t)
	markRunning(env.server)

	ts := httptest.NewServer(env.mux)
	defer ts.Close()

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/v1/trace/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// Subscription registration races with Record; poll until a frame
	// arrives.
	deadline := time.Now().Add(2 * time.Second)
	var got trace.Entry
	for {
		env.recorder.Record(&trace.Entry{TraceID: "t-ws", NodeID: "intent", NodeType: trace.NodeRouter})

		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if err := conn.ReadJSON(&got); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no trace entry received over websocket")
		}
	}

	assert.Equal(t, "t-ws", got.TraceID)
	assert.Equal(t, "intent", got.NodeID)
}

func TestTraceStreamClientDisconnect(t *testing.T) {
	env := newServerEnv(t)
	markRunning(env.server)

	ts := httptest.NewServer(env.mux)
	defer ts.Close()

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/v1/trace/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	conn.Close()

	// Recording after disconnect must not panic or block.
	for i := 0; i < 10; i++ {
		env.recorder.Record(&trace.Entry{TraceID: "t-x", NodeID: "intent"})
	}
}

func TestTraceStreamRejectedWhenNotRunning(t *testing.T) {
	env := newServerEnv(t)

	ts := httptest.NewServer(env.mux)
	defer ts.Close()

	// A stream request landing before Start or after Stop must be
	// refused instead of registering a goroutine with the drain group.
	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/v1/trace/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
