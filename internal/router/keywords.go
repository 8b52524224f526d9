package router

import "strings"

// Fallback confidences per keyword family. The values sit above the
// clarification gate for recognized intents and below it for unknown,
// so keyword-only routing still drives the pipeline deterministically.
const (
	confMetrics   = 0.95
	confKnowledge = 0.9
	confCalc      = 0.93
	confUnknown   = 0.5
)

var (
	metricsTerms   = []string{"p95", "p99", "latency", "error rate", "metric", "throughput", "slo"}
	knowledgeTerms = []string{"how to", "how do i", "configure", "setup", "set up", "install", "docs", "document", "guide", "runbook"}
	calcTerms      = []string{"compare", "difference", "diff", "versus", " vs ", "sum", "calculate", "calc"}
)

// classifyKeywords is the deterministic fallback classifier. The
// families are checked in a fixed order: metrics terms win over
// comparison phrasing, so "compare p95 of A vs B" routes to metrics.
func classifyKeywords(query string) *Classification {
	q := strings.ToLower(query)

	if containsAny(q, metricsTerms) {
		return &Classification{
			Intent:     IntentMetricsLookup,
			Confidence: confMetrics,
			Reasoning:  "keyword match: metrics terms",
		}
	}
	if containsAny(q, knowledgeTerms) {
		return &Classification{
			Intent:     IntentKnowledgeLookup,
			Confidence: confKnowledge,
			Reasoning:  "keyword match: documentation terms",
		}
	}
	if containsAny(q, calcTerms) {
		return &Classification{
			Intent:     IntentCalcCompare,
			Confidence: confCalc,
			Reasoning:  "keyword match: comparison/calculation terms",
		}
	}
	return &Classification{
		Intent:     IntentUnknown,
		Confidence: confUnknown,
		Reasoning:  "no keyword match",
	}
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
