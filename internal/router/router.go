package router

// Package router produces {intent, confidence, entities} for a raw query.
//
// Two classification paths exist:
//   - Primary: an LLM endpoint prompted to return a JSON routing decision.
//     The model is inherently unreliable (drift, timeout, malformed JSON),
//     so any failure degrades to the keyword path instead of surfacing.
//   - Fallback: a deterministic keyword classifier with fixed confidences
//     per intent category.
//
// A regex/keyword entity extractor always runs regardless of which path
// classified the query; classifier-provided entities win on key conflict.
// The router therefore never leaves intent or entities entirely empty.

import (
	"context"

	"go.uber.org/zap"

	"github.com/asheeshfzr/intent-agent/internal/metrics"
)

// Known intents.
const (
	IntentMetricsLookup   = "metrics_lookup"
	IntentKnowledgeLookup = "knowledge_lookup"
	IntentCalcCompare     = "calc_compare"
	IntentUnknown         = "unknown"
)

// Classification is the routing decision for one query.
type Classification struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities"`
	Reasoning  string         `json:"reasoning"`
}

// Classifier is the boundary to the primary intent classifier.
type Classifier interface {
	// Classify returns the routing decision for a query. Implementations
	// may fail; the Router absorbs failures into the keyword fallback.
	Classify(ctx context.Context, query string) (*Classification, error)
}

// Router combines the primary classifier, the keyword fallback, and the
// entity extractor into a single infallible routing step.
type Router struct {
	primary   Classifier // may be nil: keyword-only routing
	extractor *EntityExtractor
	logger    *zap.Logger
}

// NewRouter creates a router. primary may be nil to run keyword-only.
func NewRouter(primary Classifier, catalog []string, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		primary:   primary,
		extractor: NewEntityExtractor(catalog),
		logger:    logger,
	}
}

// Route classifies the query and extracts entities. It never fails.
func (r *Router) Route(ctx context.Context, query string) *Classification {
	extracted := r.extractor.Extract(query)

	var cls *Classification
	path := "keyword"
	if r.primary != nil {
		c, err := r.primary.Classify(ctx, query)
		if err != nil {
			r.logger.Warn("primary classifier failed, using keyword fallback",
				zap.Error(err))
		} else if valid(c) {
			cls = c
			path = "llm"
		} else {
			r.logger.Warn("primary classifier returned malformed output, using keyword fallback")
		}
	}
	if cls == nil {
		cls = classifyKeywords(query)
	}

	// Merge: extractor fills gaps, classifier values take precedence.
	if cls.Entities == nil {
		cls.Entities = map[string]any{}
	}
	for k, v := range extracted {
		if existing, ok := cls.Entities[k]; !ok || isEmpty(existing) {
			cls.Entities[k] = v
		}
	}

	metrics.IntentsTotal.WithLabelValues(cls.Intent, path).Inc()
	return cls
}

// valid rejects classifier output the pipeline cannot act on.
func valid(c *Classification) bool {
	if c == nil || c.Intent == "" {
		return false
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return false
	}
	switch c.Intent {
	case IntentMetricsLookup, IntentKnowledgeLookup, IntentCalcCompare, IntentUnknown:
		return true
	}
	return false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}
