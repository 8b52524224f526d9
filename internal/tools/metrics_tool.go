package tools

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// metricsResponse is the wire shape of the metrics backend.
type metricsResponse struct {
	Service      string  `json:"service"`
	Window       string  `json:"window"`
	P95          float64 `json:"p95"`
	P99          float64 `json:"p99"`
	ErrorRate    float64 `json:"error_rate"`
	RequestCount int64   `json:"request_count"`
}

// MetricsTool fetches latency metrics for a service over a time window.
type MetricsTool struct {
	baseURL string
	client  *http.Client
}

// NewMetricsTool creates a metrics tool against the given backend.
func NewMetricsTool(baseURL string, timeout time.Duration) *MetricsTool {
	return &MetricsTool{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *MetricsTool) Name() string { return "metrics" }

func (t *MetricsTool) Capabilities() []Capability {
	return []Capability{CapabilityMetrics, CapabilityHTTP}
}

// Invoke expects params "service" and "window".
func (t *MetricsTool) Invoke(ctx context.Context, params map[string]any) (*Result, error) {
	service, _ := params["service"].(string)
	window, _ := params["window"].(string)
	if service == "" {
		return failure(t.Name(), ReasonRejected, "missing service parameter"), nil
	}
	if window == "" {
		window = "5m"
	}

	q := url.Values{}
	q.Set("service", service)
	q.Set("window", window)

	var resp metricsResponse
	if err := getJSON(ctx, t.client, t.baseURL, "/metrics", q, &resp); err != nil {
		return nil, err
	}

	return success(t.Name(), map[string]any{
		"service":       resp.Service,
		"window":        resp.Window,
		"p95":           resp.P95,
		"p99":           resp.P99,
		"error_rate":    resp.ErrorRate,
		"request_count": resp.RequestCount,
	}, 0.9), nil
}
