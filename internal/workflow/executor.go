package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/asheeshfzr/intent-agent/internal/metrics"
	"github.com/asheeshfzr/intent-agent/internal/router"
	"github.com/asheeshfzr/intent-agent/internal/tools"
	"github.com/asheeshfzr/intent-agent/internal/trace"
	"github.com/asheeshfzr/intent-agent/pkg/types"
)

const (
	snippetMaxLen     = 300
	defaultWindow     = "5m"
	liveCompareWindow = "15m"
)

// Executor dispatches the planned intent to the tool layer and composes
// the result payload. It is invoked only when no clarification is
// already decided.
type Executor struct {
	params   Params
	broker   *tools.Broker
	recorder trace.Recorder
	logger   *zap.Logger

	metricsTool   tools.Tool
	knowledgeTool tools.Tool
	docsTool      tools.Tool
	calcTool      tools.Tool
}

// NewExecutor resolves tools from the registry by capability.
// Registration order defines fallback preference: the first knowledge
// tool is the primary search, the second the document fallback.
func NewExecutor(params Params, registry *tools.Registry, broker *tools.Broker, recorder trace.Recorder, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		params:   params,
		broker:   broker,
		recorder: recorder,
		logger:   logger,
	}
	if mt := registry.ByCapability(tools.CapabilityMetrics); len(mt) > 0 {
		e.metricsTool = mt[0]
	}
	if kt := registry.ByCapability(tools.CapabilityKnowledge); len(kt) > 0 {
		e.knowledgeTool = kt[0]
		if len(kt) > 1 {
			e.docsTool = kt[1]
		}
	}
	if ct := registry.ByCapability(tools.CapabilityCalc); len(ct) > 0 {
		e.calcTool = ct[0]
	}
	return e
}

// Act runs the tool calls for the routed intent. Expected failures
// degrade to fallbacks or clarifications; the returned error is
// reserved for unusable internal state, such as a missing tool.
func (e *Executor) Act(ctx context.Context, st *State) error {
	if st.ClarifyQuestion != "" {
		return nil
	}
	switch st.Intent {
	case router.IntentMetricsLookup:
		return e.actMetrics(ctx, st)
	case router.IntentKnowledgeLookup:
		return e.actKnowledge(ctx, st)
	case router.IntentCalcCompare:
		return e.actCalcCompare(ctx, st)
	}
	return fmt.Errorf("no executor for intent %q", st.Intent)
}

func (e *Executor) actMetrics(ctx context.Context, st *State) error {
	if e.metricsTool == nil {
		return fmt.Errorf("no tool registered for capability %q", tools.CapabilityMetrics)
	}
	svc := st.entityString("service")
	window := st.entityString("window")
	if window == "" {
		window = defaultWindow
	}

	params := map[string]any{"service": svc, "window": window}
	res := e.broker.Invoke(ctx, e.metricsTool, params)
	e.recordTool(st, "fetch_metrics", e.metricsTool.Name(), params, res, "direct_api")

	if res.Success {
		e.composeMetricsAnswer(st, svc, window, res)
		return nil
	}

	// Metrics unavailable. Try a document search keyed by the service
	// name before giving up.
	if e.docsFallback(ctx, st, svc, docsAnswerPlural) {
		return nil
	}
	st.ClarifyQuestion = clarifyNoMetrics
	return nil
}

// composeMetricsAnswer derives the above/ok verdict from the returned
// p95 and the configured threshold.
func (e *Executor) composeMetricsAnswer(st *State, svc, window string, res *tools.Result) {
	p95 := asFloat(res.Data["p95"])
	thr := e.params.P95ThresholdMs
	verdict := "ok"
	if p95 > thr {
		verdict = "above"
		st.Answer = fmt.Sprintf("%s p95=%sms > %sms", svc, formatMs(p95), formatMs(thr))
	} else {
		st.Answer = fmt.Sprintf("%s p95=%sms OK", svc, formatMs(p95))
	}
	st.Data = map[string]any{
		"service":      svc,
		"window":       window,
		"p95":          p95,
		"threshold_ms": thr,
		"verdict":      verdict,
	}
	st.Status = types.StatusDone
}

func (e *Executor) actKnowledge(ctx context.Context, st *State) error {
	if e.knowledgeTool == nil {
		return fmt.Errorf("no tool registered for capability %q", tools.CapabilityKnowledge)
	}

	params := map[string]any{"query": st.Query}
	res := e.broker.Invoke(ctx, e.knowledgeTool, params)
	e.recordTool(st, "vector", e.knowledgeTool.Name(), params, res, "vector_search")

	if res.Success && res.Score >= e.params.KnowledgeScoreMin {
		e.composeKnowledgeAnswer(st, res)
		return nil
	}

	if e.docsFallback(ctx, st, st.Query, docsAnswerSingular) {
		return nil
	}
	st.ClarifyQuestion = clarifyNoDocs
	return nil
}

func (e *Executor) composeKnowledgeAnswer(st *State, res *tools.Result) {
	top, _ := res.Data["top"].(map[string]any)
	title, _ := top["title"].(string)
	if title == "" {
		title = "unknown"
	}
	snippet, _ := top["text"].(string)
	snippet = truncate(snippet, snippetMaxLen)

	st.Answer = fmt.Sprintf("Found doc: %s - snippet: %s", title, snippet)
	st.Data = map[string]any{
		"query": st.Query,
		"top": map[string]any{
			"title":   title,
			"snippet": snippet,
			"score":   res.Score,
		},
	}
	st.Status = types.StatusDone
}

// Docs fallback answer prefixes. The metrics fallback reports plural,
// the knowledge fallback singular.
const (
	docsAnswerPlural   = "Found docs: "
	docsAnswerSingular = "Found doc: "
)

// docsFallback runs the secondary document search and composes a done
// answer from the first hit. Returns false when nothing usable came
// back; the caller decides the clarification.
func (e *Executor) docsFallback(ctx context.Context, st *State, q, answerPrefix string) bool {
	if e.docsTool == nil {
		return false
	}
	metrics.FallbacksTotal.WithLabelValues(st.Intent, e.docsTool.Name()).Inc()

	params := map[string]any{"q": q}
	res := e.broker.Invoke(ctx, e.docsTool, params)
	e.recordTool(st, "http_docs", e.docsTool.Name(), params, res, "http_fallback")

	return composeDocsAnswer(st, q, answerPrefix, res)
}

// composeDocsAnswer fills the state from the first document hit.
// Returns false when the result carries no usable items.
func composeDocsAnswer(st *State, q, answerPrefix string, res *tools.Result) bool {
	if !res.Success {
		return false
	}
	items, _ := res.Data["items"].([]map[string]any)
	if len(items) == 0 {
		return false
	}
	top := items[0]
	title, _ := top["title"].(string)
	snippet, _ := top["snippet"].(string)

	st.Answer = answerPrefix + title
	st.Data = map[string]any{
		"query": q,
		"top":   map[string]any{"title": title, "snippet": snippet},
	}
	st.Status = types.StatusDone
	return true
}

func (e *Executor) actCalcCompare(ctx context.Context, st *State) error {
	if e.calcTool == nil {
		return fmt.Errorf("no tool registered for capability %q", tools.CapabilityCalc)
	}

	params := map[string]any{"sql": "SELECT * FROM services"}
	res := e.broker.Invoke(ctx, e.calcTool, params)
	e.recordTool(st, "sql", e.calcTool.Name(), params, res, "sql_lookup")

	e.composeCalcAnswer(ctx, st, res)
	return nil
}

// composeCalcAnswer computes the signed p95 difference between the two
// targets out of a services table result, enriched with live metrics
// for the same services.
func (e *Executor) composeCalcAnswer(ctx context.Context, st *State, res *tools.Result) {
	byService := p95ByService(res)
	targets := st.entityStrings("targets")
	if len(targets) < 2 {
		st.ClarifyQuestion = clarifyNoTargets
		return
	}
	a, b := targets[0], targets[1]

	pa, okA := byService[a]
	pb, okB := byService[b]
	if !okA || !okB {
		st.ClarifyQuestion = clarifyNoTargets
		return
	}

	diff := pa - pb
	live := e.liveP95s(ctx, st, []string{a, b})

	answer := fmt.Sprintf("%s p95=%sms, %s p95=%sms, diff=%sms",
		upperFirst(a), formatMs(pa), upperFirst(b), formatMs(pb), formatMs(diff))
	if len(live) > 0 {
		var parts []string
		for _, svc := range []string{a, b} {
			if v, ok := live[svc]; ok {
				parts = append(parts, fmt.Sprintf("%s %sms", svc, formatMs(v)))
			}
		}
		answer += fmt.Sprintf(" (live: %s)", strings.Join(parts, ", "))
	}

	st.Answer = answer
	st.Data = map[string]any{
		"targets":   []string{a, b},
		"p95s":      map[string]any{a: pa, b: pb},
		"diff_ms":   diff,
		"live_p95s": live,
	}
	st.Status = types.StatusDone
}

// liveP95s fetches current metrics for the compared services so the
// answer can show stored and live values side by side. Partial results
// are kept; a failed fetch just drops that service.
func (e *Executor) liveP95s(ctx context.Context, st *State, services []string) map[string]float64 {
	if e.metricsTool == nil {
		return nil
	}
	window := st.entityString("window")
	if window == "" {
		window = liveCompareWindow
	}
	live := map[string]float64{}
	for _, svc := range services {
		params := map[string]any{"service": svc, "window": window}
		res := e.broker.Invoke(ctx, e.metricsTool, params)
		e.recordTool(st, "fetch_metrics", e.metricsTool.Name(), params, res, "direct_api")
		if res.Success {
			live[svc] = asFloat(res.Data["p95"])
		}
	}
	return live
}

// recordTool writes the normalized tool result into the trace before
// the executor interprets it, so the trace reflects ground truth even
// when the outcome is later overridden by a fallback.
func (e *Executor) recordTool(st *State, nodeID, actor string, input map[string]any, res *tools.Result, rule string) {
	e.recorder.Record(&trace.Entry{
		TraceID:  st.TraceID,
		NodeID:   nodeID,
		NodeType: trace.NodeTool,
		Actor:    actor,
		Input:    input,
		Output: map[string]any{
			"tool":    res.Tool,
			"success": res.Success,
			"data":    res.Data,
			"score":   res.Score,
			"reason":  res.Reason,
		},
		Confidence:   res.Score,
		DecisionRule: rule,
		SessionID:    st.UserID,
	})
}

// p95ByService builds a name -> p95 lookup out of a services table
// result.
func p95ByService(res *tools.Result) map[string]float64 {
	out := map[string]float64{}
	if !res.Success {
		return out
	}
	rows, _ := res.Data["rows"].([]map[string]any)
	for _, row := range rows {
		name, _ := row["name"].(string)
		if name == "" {
			continue
		}
		out[name] = asFloat(row["p95"])
	}
	return out
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// formatMs renders a millisecond value without a trailing ".0" for
// whole numbers.
func formatMs(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// truncate cuts on runes so a multibyte character is never split.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
