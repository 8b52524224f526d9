package session

// Package session tracks per-user conversational state, specifically the
// single pending-clarification slot that enables multi-turn clarification.
//
// Each user id owns exactly one mutable slot holding the last clarifying
// question asked. The slot is overwritten by each new clarification and
// cleared the moment a turn completes successfully. No history is kept.
//
// The store is safe for concurrent use from multiple in-flight requests;
// writes to one user's slot never block or corrupt unrelated keys
// (last-write-wins per user). Idle slots are evicted after a TTL.

import (
	"sync"
	"time"

	"github.com/asheeshfzr/intent-agent/internal/metrics"
)

// Store defines the interface for per-user session state.
type Store interface {
	// PendingClarification returns the outstanding question for a user,
	// if any.
	PendingClarification(userID string) (string, bool)

	// SetPendingClarification records the question asked this turn,
	// overwriting any prior value.
	SetPendingClarification(userID, question string)

	// ClearPendingClarification removes the user's outstanding question.
	ClearPendingClarification(userID string)

	// Reset clears all session state.
	Reset()

	// Close stops the eviction janitor.
	Close() error
}

type slot struct {
	question string
	touched  time.Time
}

// memoryStore implements Store with a mutex-guarded map.
type memoryStore struct {
	mu    sync.RWMutex
	slots map[string]slot

	ttl    time.Duration
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Store.
type Option func(*memoryStore)

// WithTTL evicts slots idle for longer than d. Zero disables eviction.
func WithTTL(d time.Duration, sweepInterval time.Duration) Option {
	return func(s *memoryStore) {
		s.ttl = d
		if d > 0 {
			s.wg.Add(1)
			go s.janitor(sweepInterval)
		}
	}
}

// NewStore creates an in-memory session store.
func NewStore(opts ...Option) Store {
	s := &memoryStore{
		slots:  make(map[string]slot),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *memoryStore) PendingClarification(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[userID]
	if !ok {
		return "", false
	}
	return sl.question, true
}

func (s *memoryStore) SetPendingClarification(userID, question string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[userID] = slot{question: question, touched: time.Now()}
	metrics.PendingClarifications.Set(float64(len(s.slots)))
}

func (s *memoryStore) ClearPendingClarification(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, userID)
	metrics.PendingClarifications.Set(float64(len(s.slots)))
}

func (s *memoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = make(map[string]slot)
	metrics.PendingClarifications.Set(0)
}

func (s *memoryStore) Close() error {
	close(s.stopCh)
	s.wg.Wait()
	return nil
}

// janitor periodically evicts slots idle longer than the TTL.
func (s *memoryStore) janitor(interval time.Duration) {
	defer s.wg.Done()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *memoryStore) evictExpired() {
	cutoff := time.Now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sl := range s.slots {
		if sl.touched.Before(cutoff) {
			delete(s.slots, id)
		}
	}
	metrics.PendingClarifications.Set(float64(len(s.slots)))
}
