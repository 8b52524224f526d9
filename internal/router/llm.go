package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const classifyPrompt = `You are an intent router for an operations assistant.
Classify the user query into exactly one intent:
- metrics_lookup: fetch live service metrics (latency, p95, error rate)
- knowledge_lookup: answer from documentation or runbooks
- calc_compare: compare or compute across two or more services
- unknown: none of the above

Respond with ONLY a JSON object, no prose:
{"intent": "...", "confidence": 0.0, "entities": {"service": "...", "window": "...", "targets": ["..."]}, "reasoning": "..."}
Omit entity keys you cannot determine.

Query: %s`

// LLMClassifier calls an Ollama-compatible generate endpoint and parses
// a JSON routing decision out of the completion text.
type LLMClassifier struct {
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

// NewLLMClassifier builds a classifier against baseURL (typically
// http://localhost:11434).
func NewLLMClassifier(baseURL, model string, maxTokens int, timeout time.Duration) *LLMClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LLMClassifier{
		baseURL:   baseURL,
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Classify sends the routing prompt and decodes the model's JSON reply.
func (c *LLMClassifier) Classify(ctx context.Context, query string) (*Classification, error) {
	endpoint, err := url.JoinPath(c.baseURL, "/api/generate")
	if err != nil {
		return nil, fmt.Errorf("build generate url: %w", err)
	}

	reqBody := generateRequest{
		Model:  c.model,
		Prompt: fmt.Sprintf(classifyPrompt, query),
		Stream: false,
	}
	if c.maxTokens > 0 {
		reqBody.Options = map[string]any{"num_predict": c.maxTokens}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call llm: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("llm returned status %d", resp.StatusCode)
	}

	var gen generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&gen); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}

	return parseClassification(gen.Response)
}

// parseClassification extracts the outermost JSON object from the
// completion. Models wrap answers in prose or code fences often enough
// that strict decoding of the whole string is not viable.
func parseClassification(text string) (*Classification, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in llm output")
	}

	var cls Classification
	if err := json.Unmarshal([]byte(text[start:end+1]), &cls); err != nil {
		return nil, fmt.Errorf("parse llm classification: %w", err)
	}
	if cls.Intent == "" {
		return nil, fmt.Errorf("llm classification missing intent")
	}
	return &cls, nil
}
