package tools

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// docsResponse is the wire shape of the document search backend.
type docsResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// DocsTool searches the document service by keyword. It is the common
// degradation fallback for both the metrics and knowledge paths.
type DocsTool struct {
	baseURL string
	client  *http.Client
}

// NewDocsTool creates a docs search tool against the given backend.
func NewDocsTool(baseURL string, timeout time.Duration) *DocsTool {
	return &DocsTool{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *DocsTool) Name() string { return "docs" }

func (t *DocsTool) Capabilities() []Capability {
	return []Capability{CapabilityKnowledge, CapabilityHTTP}
}

// Invoke expects param "q", the search keyword.
func (t *DocsTool) Invoke(ctx context.Context, params map[string]any) (*Result, error) {
	queryText, _ := params["q"].(string)
	if queryText == "" {
		return failure(t.Name(), ReasonRejected, "missing q parameter"), nil
	}

	q := url.Values{}
	q.Set("q", queryText)

	var resp docsResponse
	if err := getJSON(ctx, t.client, t.baseURL, "/search", q, &resp); err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(resp.Items))
	for _, it := range resp.Items {
		items = append(items, map[string]any{
			"title":   it.Title,
			"snippet": it.Snippet,
		})
	}

	// Keyword search has no similarity score; a flat mid confidence keeps
	// it below accepted vector hits.
	return success(t.Name(), map[string]any{"items": items}, 0.5), nil
}
