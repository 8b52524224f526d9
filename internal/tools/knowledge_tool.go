package tools

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// knowledgeSearchLimit is the number of hits requested per search.
const knowledgeSearchLimit = 3

// knowledgeResponse is the wire shape of the vector search backend
// (qdrant-style points search).
type knowledgeResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// KnowledgeTool performs semantic search over the vector store. The
// backend embeds the query text server-side.
type KnowledgeTool struct {
	baseURL    string
	collection string
	client     *http.Client
}

// NewKnowledgeTool creates a knowledge search tool against the given
// vector store and collection.
func NewKnowledgeTool(baseURL, collection string, timeout time.Duration) *KnowledgeTool {
	return &KnowledgeTool{
		baseURL:    baseURL,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (t *KnowledgeTool) Name() string { return "knowledge" }

func (t *KnowledgeTool) Capabilities() []Capability {
	return []Capability{CapabilityKnowledge, CapabilityHTTP}
}

// Invoke expects param "query", the raw search text.
func (t *KnowledgeTool) Invoke(ctx context.Context, params map[string]any) (*Result, error) {
	queryText, _ := params["query"].(string)
	if queryText == "" {
		return failure(t.Name(), ReasonRejected, "missing query parameter"), nil
	}

	body := map[string]any{
		"query": queryText,
		"limit": knowledgeSearchLimit,
	}
	path := fmt.Sprintf("/collections/%s/points/search", t.collection)

	var resp knowledgeResponse
	if err := postJSON(ctx, t.client, t.baseURL, path, body, &resp); err != nil {
		return nil, err
	}

	if len(resp.Result) == 0 {
		return failure(t.Name(), ReasonOK, "no hits"), nil
	}

	top := resp.Result[0]
	title, _ := top.Payload["title"].(string)
	text, _ := top.Payload["text"].(string)

	return &Result{
		Tool:    t.Name(),
		Success: true,
		Data: map[string]any{
			"top": map[string]any{
				"title": title,
				"text":  text,
				"score": top.Score,
			},
			"hits": len(resp.Result),
		},
		Score:  top.Score,
		Reason: ReasonOK,
		TS:     time.Now().UTC(),
	}, nil
}
