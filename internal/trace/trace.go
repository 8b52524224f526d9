package trace

import "time"

// Package trace provides the provenance log for the workflow pipeline.
//
// Responsibilities:
//   - Record every decision point of a query turn: routing decisions,
//     tool invocations (including ones later overridden by a fallback),
//     and clarification questions
//   - Return the ordered entries for a trace id so a caller can
//     reconstruct why an answer or question was produced
//   - Mirror every entry to a rotated JSON provenance file so the audit
//     trail survives process restarts
//   - Fan entries out to live subscribers (websocket streaming)
//   - Evict traces that have outlived their TTL
//
// Entries are append-only. The only way to remove them is an explicit
// Clear/ClearAll or TTL eviction of a whole trace.

// Node types for trace entries.
const (
	NodeRouter  = "router"
	NodeTool    = "tool"
	NodeControl = "control"
	NodeAgent   = "agent"
)

// Entry is one immutable provenance record.
type Entry struct {
	Timestamp    time.Time      `json:"timestamp"`
	TraceID      string         `json:"trace_id"`
	NodeID       string         `json:"node_id"`
	NodeType     string         `json:"node_type"`
	Actor        string         `json:"actor"`
	Input        map[string]any `json:"input,omitempty"`
	Output       map[string]any `json:"output,omitempty"`
	Confidence   float64        `json:"confidence"`
	DecisionRule string         `json:"decision_rule"`
	Parent       string         `json:"parent,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
}

// Recorder defines the interface for provenance recording.
type Recorder interface {
	// Record appends an entry to its trace. The timestamp is set here if
	// the caller left it zero.
	Record(entry *Entry)

	// Get returns the entries for a trace id in insertion order.
	Get(traceID string) []*Entry

	// Clear removes all entries for a trace id.
	Clear(traceID string)

	// ClearAll removes every trace.
	ClearAll()

	// Subscribe registers a live consumer of newly recorded entries.
	Subscribe() *Subscriber

	// Unsubscribe removes a subscriber and closes its channel.
	Unsubscribe(sub *Subscriber)

	// Close stops the eviction janitor and flushes the file sink.
	Close() error
}

// Subscriber receives newly recorded entries on Ch until unsubscribed.
// Slow subscribers drop entries rather than blocking the pipeline.
type Subscriber struct {
	Ch chan *Entry
	id uint64
}
