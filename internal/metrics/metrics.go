package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Workflow metrics for production monitoring
var (
	// Query metrics
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_agent_queries_total",
			Help: "Total number of query turns processed",
		},
		[]string{"mode", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intent_agent_query_duration_seconds",
			Help:    "Query turn duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"mode"},
	)

	// Routing metrics
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_agent_intents_total",
			Help: "Total routing decisions by intent and classifier path",
		},
		[]string{"intent", "path"}, // path: llm/keyword
	)

	// Clarification metrics
	ClarificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_agent_clarifications_total",
			Help: "Total clarification questions asked by decision rule",
		},
		[]string{"rule"},
	)

	// Tool metrics
	ToolInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_agent_tool_invocations_total",
			Help: "Total tool invocations by tool and outcome",
		},
		[]string{"tool", "outcome"}, // outcome: ok/error/cache_hit
	)

	ToolRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_agent_tool_retries_total",
			Help: "Total retry attempts made by the tool broker",
		},
		[]string{"tool"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intent_agent_tool_duration_seconds",
			Help:    "Tool invocation duration in seconds, including retries",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"tool"},
	)

	// Fallback metrics
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intent_agent_fallbacks_total",
			Help: "Total degradations to a fallback path",
		},
		[]string{"from", "to"}, // e.g. from=metrics to=docs
	)

	// State metrics
	PendingClarifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intent_agent_pending_clarifications",
			Help: "Number of users with an outstanding clarification",
		},
	)

	ActiveTraces = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intent_agent_active_traces",
			Help: "Number of trace ids currently held in memory",
		},
	)
)
