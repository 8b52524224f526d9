package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/asheeshfzr/intent-agent/internal/cache"
	"github.com/asheeshfzr/intent-agent/internal/metrics"
)

// BrokerConfig holds the retry and caching policy for tool invocations.
type BrokerConfig struct {
	// Retries is the number of additional attempts after the first.
	Retries int

	// BackoffBase is the initial backoff between attempts.
	BackoffBase time.Duration

	// BackoffMax caps the backoff duration.
	BackoffMax time.Duration

	// CacheTTL is the lifetime of cached successful results. Zero
	// disables caching.
	CacheTTL time.Duration
}

// DefaultBrokerConfig returns sensible retry defaults for tool calls.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Retries:     2,
		BackoffBase: 200 * time.Millisecond,
		BackoffMax:  5 * time.Second,
		CacheTTL:    30 * time.Second,
	}
}

// Broker invokes tools with bounded retries and exponential backoff, and
// normalizes every outcome into a Result. Invoke never returns an error:
// exhausted retries produce a Result with Success=false carrying the last
// failure reason.
type Broker struct {
	config BrokerConfig
	cache  cache.Cache
	logger *zap.Logger
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithCache enables result caching for successful invocations.
func WithCache(c cache.Cache) BrokerOption {
	return func(b *Broker) {
		b.cache = c
	}
}

// WithLogger sets the broker's logger.
func WithLogger(l *zap.Logger) BrokerOption {
	return func(b *Broker) {
		b.logger = l
	}
}

// NewBroker creates a tool broker with the given retry policy.
func NewBroker(cfg BrokerConfig, opts ...BrokerOption) *Broker {
	b := &Broker{
		config: cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Invoke calls the tool, retrying retryable failures up to the configured
// budget. No retry is attempted once a definitive result is observed.
func (b *Broker) Invoke(ctx context.Context, tool Tool, params map[string]any) *Result {
	start := time.Now()
	defer func() {
		metrics.ToolDuration.WithLabelValues(tool.Name()).Observe(time.Since(start).Seconds())
	}()

	cacheKey := ""
	if b.cache != nil && b.config.CacheTTL > 0 {
		cacheKey = b.cacheKey(tool.Name(), params)
		if v, ok := b.cache.Get(cacheKey); ok {
			if res, ok := v.(*Result); ok {
				metrics.ToolInvocationsTotal.WithLabelValues(tool.Name(), "cache_hit").Inc()
				cached := *res
				cached.Reason = ReasonCache
				return &cached
			}
		}
	}

	var lastErr error
	for attempt := 0; attempt <= b.config.Retries; attempt++ {
		if attempt > 0 {
			metrics.ToolRetriesTotal.WithLabelValues(tool.Name()).Inc()
			if err := b.wait(ctx, attempt); err != nil {
				lastErr = err
				break
			}
		}

		res, err := tool.Invoke(ctx, params)
		if err == nil {
			// Definitive outcome, success or not: no further attempts.
			outcome := "ok"
			if !res.Success {
				outcome = "error"
			}
			metrics.ToolInvocationsTotal.WithLabelValues(tool.Name(), outcome).Inc()
			if res.Success && cacheKey != "" {
				b.cache.Set(cacheKey, res, b.config.CacheTTL)
			}
			return res
		}

		lastErr = err
		b.logger.Warn("tool invocation failed",
			zap.String("tool", tool.Name()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	metrics.ToolInvocationsTotal.WithLabelValues(tool.Name(), "error").Inc()
	return failure(tool.Name(), reasonFor(lastErr), errMsg(lastErr))
}

// wait blocks for the backoff of the given attempt, or until the context
// is done.
func (b *Broker) wait(ctx context.Context, attempt int) error {
	backoff := b.config.BackoffBase
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= b.config.BackoffMax {
			backoff = b.config.BackoffMax
			break
		}
	}
	if b.config.BackoffMax > 0 && backoff > b.config.BackoffMax {
		backoff = b.config.BackoffMax
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cacheKey derives a fixed-size key from the tool name and parameters.
// encoding/json sorts map keys, so serialization is deterministic.
func (b *Broker) cacheKey(tool string, params map[string]any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", params))
	}
	sum := sha256.Sum256(raw)
	return tool + ":" + hex.EncodeToString(sum[:8])
}

// reasonFor maps an invocation error to a Result reason tag.
func reasonFor(err error) string {
	switch {
	case err == nil:
		return ReasonError
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case isTimeout(err):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonError
	default:
		var httpErr *HTTPStatusError
		if errors.As(err, &httpErr) {
			return ReasonHTTPError
		}
		return ReasonTransportError
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func errMsg(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// HTTPStatusError reports a non-2xx response from a tool backend.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}
