package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/asheeshfzr/intent-agent/pkg/types"
)

// rateLimiter is a per-client token bucket guarding the query endpoint.
// Clients are keyed by remote IP; buckets refill continuously at the
// configured per-minute rate.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*tokenBucket
	perMin  int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

func newRateLimiter(perMin int) *rateLimiter {
	rl := &rateLimiter{
		clients: make(map[string]*tokenBucket),
		perMin:  perMin,
		stopCh:  make(chan struct{}),
	}
	rl.wg.Add(1)
	go rl.cleanupLoop()
	return rl
}

// wrap enforces the limit before delegating to next.
func (rl *rateLimiter) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientKey(r)) {
			writeJSON(w, http.StatusTooManyRequests, types.ErrorResponse{
				Error: "rate limit exceeded, try again later",
			})
			return
		}
		next(w, r)
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.clients[key]
	if !ok {
		rl.clients[key] = &tokenBucket{
			tokens:     float64(rl.perMin) - 1,
			lastRefill: now,
		}
		return true
	}

	refill := now.Sub(b.lastRefill).Minutes() * float64(rl.perMin)
	if refill > 0 {
		b.tokens += refill
		if b.tokens > float64(rl.perMin) {
			b.tokens = float64(rl.perMin)
		}
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// cleanupLoop drops buckets that have refilled to capacity; they carry
// no state a fresh bucket would not have.
func (rl *rateLimiter) cleanupLoop() {
	defer rl.wg.Done()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-time.Minute)
			for key, b := range rl.clients {
				if b.lastRefill.Before(cutoff) {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *rateLimiter) stop() {
	close(rl.stopCh)
	rl.wg.Wait()
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
