package trace

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/asheeshfzr/intent-agent/internal/metrics"
)

// subscriberBuffer is the per-subscriber channel capacity. Entries beyond
// this are dropped for that subscriber, never for the store.
const subscriberBuffer = 64

// memoryRecorder implements Recorder with an in-memory per-trace-id map.
type memoryRecorder struct {
	mu      sync.RWMutex
	traces  map[string][]*Entry
	touched map[string]time.Time

	subMu   sync.Mutex
	subs    map[uint64]*Subscriber
	nextSub uint64

	sink *zap.Logger // optional provenance file sink

	ttl    time.Duration
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Recorder.
type Option func(*memoryRecorder)

// WithSink mirrors every entry to the given structured logger.
func WithSink(sink *zap.Logger) Option {
	return func(r *memoryRecorder) {
		r.sink = sink
	}
}

// WithTTL evicts whole traces that have not been touched for d.
// Zero disables eviction.
func WithTTL(d time.Duration, sweepInterval time.Duration) Option {
	return func(r *memoryRecorder) {
		r.ttl = d
		if d > 0 {
			r.wg.Add(1)
			go r.janitor(sweepInterval)
		}
	}
}

// NewRecorder creates an in-memory provenance recorder.
func NewRecorder(opts ...Option) Recorder {
	r := &memoryRecorder{
		traces:  make(map[string][]*Entry),
		touched: make(map[string]time.Time),
		subs:    make(map[uint64]*Subscriber),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends an entry to its trace.
func (r *memoryRecorder) Record(entry *Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	r.traces[entry.TraceID] = append(r.traces[entry.TraceID], entry)
	r.touched[entry.TraceID] = time.Now()
	metrics.ActiveTraces.Set(float64(len(r.traces)))
	r.mu.Unlock()

	if r.sink != nil {
		r.sink.Info("provenance",
			zap.Time("timestamp", entry.Timestamp),
			zap.String("trace_id", entry.TraceID),
			zap.String("node_id", entry.NodeID),
			zap.String("node_type", entry.NodeType),
			zap.String("actor", entry.Actor),
			zap.Any("input", entry.Input),
			zap.Any("output", entry.Output),
			zap.Float64("confidence", entry.Confidence),
			zap.String("decision_rule", entry.DecisionRule),
			zap.String("parent", entry.Parent),
			zap.String("session_id", entry.SessionID),
		)
	}

	r.subMu.Lock()
	for _, sub := range r.subs {
		select {
		case sub.Ch <- entry:
		default:
			// Subscriber is not keeping up; drop for it.
		}
	}
	r.subMu.Unlock()
}

// Get returns the entries for a trace id in insertion order.
func (r *memoryRecorder) Get(traceID string) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.traces[traceID]
	out := make([]*Entry, len(entries))
	copy(out, entries)
	return out
}

// Clear removes all entries for a trace id.
func (r *memoryRecorder) Clear(traceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.traces, traceID)
	delete(r.touched, traceID)
	metrics.ActiveTraces.Set(float64(len(r.traces)))
}

// ClearAll removes every trace.
func (r *memoryRecorder) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = make(map[string][]*Entry)
	r.touched = make(map[string]time.Time)
	metrics.ActiveTraces.Set(0)
}

// Subscribe registers a live consumer of newly recorded entries.
func (r *memoryRecorder) Subscribe() *Subscriber {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.nextSub++
	sub := &Subscriber{
		Ch: make(chan *Entry, subscriberBuffer),
		id: r.nextSub,
	}
	r.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (r *memoryRecorder) Unsubscribe(sub *Subscriber) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if _, ok := r.subs[sub.id]; ok {
		delete(r.subs, sub.id)
		close(sub.Ch)
	}
}

// Close stops the eviction janitor and flushes the file sink.
func (r *memoryRecorder) Close() error {
	close(r.stopCh)
	r.wg.Wait()
	if r.sink != nil {
		// Sync can fail on stdout-backed sinks; rotation sinks flush fine.
		_ = r.sink.Sync()
	}
	return nil
}

// janitor periodically evicts traces older than the TTL.
func (r *memoryRecorder) janitor(interval time.Duration) {
	defer r.wg.Done()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.evictExpired()
		}
	}
}

func (r *memoryRecorder) evictExpired() {
	cutoff := time.Now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, last := range r.touched {
		if last.Before(cutoff) {
			delete(r.traces, id)
			delete(r.touched, id)
		}
	}
	metrics.ActiveTraces.Set(float64(len(r.traces)))
}
