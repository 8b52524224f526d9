package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/asheeshfzr/intent-agent/internal/cache"
)

// flakyTool fails with a retryable error until failures is exhausted.
type flakyTool struct {
	failures int
	calls    int
}

func (t *flakyTool) Name() string                { return "flaky" }
func (t *flakyTool) Capabilities() []Capability  { return []Capability{CapabilityUtil} }
func (t *flakyTool) Invoke(_ context.Context, _ map[string]any) (*Result, error) {
	t.calls++
	if t.calls <= t.failures {
		return nil, errors.New("backend unavailable")
	}
	return success(t.Name(), map[string]any{"n": t.calls}, 0.9), nil
}

// rejectingTool fails definitively on every call.
type rejectingTool struct {
	calls int
}

func (t *rejectingTool) Name() string               { return "rejecting" }
func (t *rejectingTool) Capabilities() []Capability { return []Capability{CapabilityUtil} }
func (t *rejectingTool) Invoke(_ context.Context, _ map[string]any) (*Result, error) {
	t.calls++
	return failure(t.Name(), ReasonRejected, "nope"), nil
}

func testBrokerConfig(retries int) BrokerConfig {
	return BrokerConfig{
		Retries:     retries,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
	}
}

func TestInvokeSucceedsWithinRetryBudget(t *testing.T) {
	tool := &flakyTool{failures: 2}
	b := NewBroker(testBrokerConfig(2))

	res := b.Invoke(context.Background(), tool, nil)
	if !res.Success {
		t.Fatalf("expected success after retries, got %+v", res)
	}
	if tool.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", tool.calls)
	}
}

func TestInvokeExhaustsRetryBudget(t *testing.T) {
	tool := &flakyTool{failures: 100}
	b := NewBroker(testBrokerConfig(2))

	res := b.Invoke(context.Background(), tool, nil)
	if res.Success {
		t.Fatal("expected failure after exhausted retries")
	}
	if tool.calls != 3 {
		t.Errorf("expected exactly retries+1 = 3 attempts, got %d", tool.calls)
	}
	if res.Reason != ReasonTransportError {
		t.Errorf("expected transport_error reason, got %q", res.Reason)
	}
	if res.Data["error"] == "" {
		t.Error("expected last error to be carried in the result")
	}
}

func TestInvokeNoRetryAfterSuccess(t *testing.T) {
	tool := &flakyTool{failures: 0}
	b := NewBroker(testBrokerConfig(5))

	b.Invoke(context.Background(), tool, nil)
	if tool.calls != 1 {
		t.Errorf("expected 1 attempt for immediate success, got %d", tool.calls)
	}
}

func TestInvokeNoRetryOnDefinitiveFailure(t *testing.T) {
	tool := &rejectingTool{}
	b := NewBroker(testBrokerConfig(5))

	res := b.Invoke(context.Background(), tool, nil)
	if res.Success {
		t.Fatal("expected definitive failure")
	}
	if tool.calls != 1 {
		t.Errorf("definitive failures must not be retried, got %d attempts", tool.calls)
	}
	if res.Reason != ReasonRejected {
		t.Errorf("expected rejected reason, got %q", res.Reason)
	}
}

func TestInvokeContextCancellationStopsRetries(t *testing.T) {
	tool := &flakyTool{failures: 100}
	cfg := testBrokerConfig(10)
	cfg.BackoffBase = 50 * time.Millisecond
	cfg.BackoffMax = time.Second
	b := NewBroker(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := b.Invoke(ctx, tool, nil)
	if res.Success {
		t.Fatal("expected failure")
	}
	if tool.calls > 2 {
		t.Errorf("expected retries to stop at cancellation, got %d attempts", tool.calls)
	}
}

func TestInvokeCaching(t *testing.T) {
	tool := &flakyTool{failures: 0}
	c := cache.New(0)
	defer c.Close()

	cfg := testBrokerConfig(0)
	cfg.CacheTTL = time.Minute
	b := NewBroker(cfg, WithCache(c))

	params := map[string]any{"service": "payments"}
	first := b.Invoke(context.Background(), tool, params)
	second := b.Invoke(context.Background(), tool, params)

	if tool.calls != 1 {
		t.Errorf("expected second invocation served from cache, got %d backend calls", tool.calls)
	}
	if second.Reason != ReasonCache {
		t.Errorf("expected cache reason on hit, got %q", second.Reason)
	}
	if first.Data["n"] != second.Data["n"] {
		t.Error("cached result should carry identical data")
	}

	// Different params miss the cache.
	b.Invoke(context.Background(), tool, map[string]any{"service": "orders"})
	if tool.calls != 2 {
		t.Errorf("expected cache miss for different params, got %d backend calls", tool.calls)
	}
}

func TestRegistryByCapability(t *testing.T) {
	r := NewRegistry()
	flaky := &flakyTool{}
	rejecting := &rejectingTool{}
	r.Register(flaky)
	r.Register(rejecting)

	utils := r.ByCapability(CapabilityUtil)
	if len(utils) != 2 {
		t.Fatalf("expected 2 util tools, got %d", len(utils))
	}
	if utils[0].Name() != "flaky" {
		t.Error("registration order must be preserved")
	}
	if got := r.ByCapability(CapabilityMetrics); len(got) != 0 {
		t.Errorf("expected no metrics tools, got %d", len(got))
	}

	if _, ok := r.Get("rejecting"); !ok {
		t.Error("expected lookup by name to succeed")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("expected lookup of unknown name to fail")
	}
}
