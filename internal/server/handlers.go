package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/asheeshfzr/intent-agent/pkg/types"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req types.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query cannot be empty")
		return
	}

	resp, err := s.strategy.Execute(r.Context(), req.Query, req.UserID)
	if err != nil {
		s.logger.Error("workflow execution failed",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "workflow execution failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	traceID := r.URL.Query().Get("trace_id")
	if traceID == "" {
		writeError(w, http.StatusBadRequest, "trace_id is required")
		return
	}

	entries := s.recorder.Get(traceID)
	resp := types.TraceResponse{
		TraceID: traceID,
		Entries: make([]types.TraceEntry, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, types.TraceEntry{
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
	writeJSON(w, http.StatusOK, resp)
}

// handleReset clears all session and trace state, or a single trace
// when trace_id is given.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if traceID := r.URL.Query().Get("trace_id"); traceID != "" {
		s.recorder.Clear(traceID)
		writeJSON(w, http.StatusOK, types.ResetResponse{TracesCleared: true})
		return
	}

	s.sessions.Reset()
	s.recorder.ClearAll()
	writeJSON(w, http.StatusOK, types.ResetResponse{
		SessionsCleared: true,
		TracesCleared:   true,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.IsRunning() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":            "intent-agent",
		"version":         version,
		"workflow_mode":   s.strategy.Mode(),
		"llm_enabled":     s.cfg.LLM.Enabled,
		"service_catalog": s.cfg.Workflow.ServiceCatalog,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}
