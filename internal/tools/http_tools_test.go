package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMetricsToolInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("service"); got != "payments" {
			t.Errorf("unexpected service %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"service": "payments",
			"window":  "5m",
			"p95":     600.0,
			"p99":     820.0,
		})
	}))
	defer srv.Close()

	tool := NewMetricsTool(srv.URL, time.Second)
	res, err := tool.Invoke(context.Background(), map[string]any{"service": "payments", "window": "5m"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Data["p95"] != 600.0 {
		t.Errorf("expected p95=600, got %v", res.Data["p95"])
	}
	if res.Tool != "metrics" {
		t.Errorf("unexpected tool name %q", res.Tool)
	}
}

func TestMetricsToolNon2xxIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tool := NewMetricsTool(srv.URL, time.Second)
	_, err := tool.Invoke(context.Background(), map[string]any{"service": "payments"})
	if err == nil {
		t.Fatal("expected retryable error for 500 response")
	}
	if reasonFor(err) != ReasonHTTPError {
		t.Errorf("expected http_error reason, got %q", reasonFor(err))
	}
}

func TestMetricsToolMissingService(t *testing.T) {
	tool := NewMetricsTool("http://unused", time.Second)
	res, err := tool.Invoke(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("missing parameter must be definitive, got error %v", err)
	}
	if res.Success || res.Reason != ReasonRejected {
		t.Errorf("expected rejected result, got %+v", res)
	}
}

func TestDocsToolInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "payments" {
			t.Errorf("unexpected q %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"title": "Payments runbook", "snippet": "How to operate payments."},
			},
		})
	}))
	defer srv.Close()

	tool := NewDocsTool(srv.URL, time.Second)
	res, err := tool.Invoke(context.Background(), map[string]any{"q": "payments"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	items, ok := res.Data["items"].([]map[string]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one item, got %v", res.Data["items"])
	}
	if items[0]["title"] != "Payments runbook" {
		t.Errorf("unexpected title %v", items[0]["title"])
	}
}

func TestKnowledgeToolInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/ops_docs/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["query"] != "how to configure retries" {
			t.Errorf("unexpected query %v", body["query"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"score": 0.92, "payload": map[string]any{"title": "Retry guide", "text": "Set retries in config."}},
				{"score": 0.58, "payload": map[string]any{"title": "Other", "text": "..."}},
			},
		})
	}))
	defer srv.Close()

	tool := NewKnowledgeTool(srv.URL, "ops_docs", time.Second)
	res, err := tool.Invoke(context.Background(), map[string]any{"query": "how to configure retries"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !res.Success || res.Score != 0.92 {
		t.Fatalf("expected success with top score, got %+v", res)
	}
	top, ok := res.Data["top"].(map[string]any)
	if !ok || top["title"] != "Retry guide" {
		t.Errorf("unexpected top hit %v", res.Data["top"])
	}
	if res.Data["hits"] != 2 {
		t.Errorf("expected 2 hits, got %v", res.Data["hits"])
	}
}

func TestKnowledgeToolNoHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": []map[string]any{}})
	}))
	defer srv.Close()

	tool := NewKnowledgeTool(srv.URL, "ops_docs", time.Second)
	res, err := tool.Invoke(context.Background(), map[string]any{"query": "anything"})
	if err != nil {
		t.Fatalf("empty result must be definitive, got error %v", err)
	}
	if res.Success {
		t.Errorf("expected unsuccessful result for no hits, got %+v", res)
	}
}
