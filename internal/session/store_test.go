package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestPendingClarificationLifecycle(t *testing.T) {
	s := NewStore()
	defer s.Close()

	if _, ok := s.PendingClarification("u1"); ok {
		t.Fatal("expected no pending clarification for fresh user")
	}

	s.SetPendingClarification("u1", "which service?")
	q, ok := s.PendingClarification("u1")
	if !ok || q != "which service?" {
		t.Fatalf("expected stored question, got %q ok=%v", q, ok)
	}

	// Overwrite: last write wins, no history.
	s.SetPendingClarification("u1", "what window?")
	q, _ = s.PendingClarification("u1")
	if q != "what window?" {
		t.Errorf("expected overwritten question, got %q", q)
	}

	s.ClearPendingClarification("u1")
	if _, ok := s.PendingClarification("u1"); ok {
		t.Error("expected clarification cleared")
	}
}

func TestUserIsolation(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.SetPendingClarification("u1", "q1")
	s.SetPendingClarification("u2", "q2")

	s.ClearPendingClarification("u1")
	if q, ok := s.PendingClarification("u2"); !ok || q != "q2" {
		t.Errorf("clearing u1 must not affect u2, got %q ok=%v", q, ok)
	}
}

func TestReset(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.SetPendingClarification("u1", "q1")
	s.SetPendingClarification("u2", "q2")
	s.Reset()

	if _, ok := s.PendingClarification("u1"); ok {
		t.Error("expected u1 cleared after reset")
	}
	if _, ok := s.PendingClarification("u2"); ok {
		t.Error("expected u2 cleared after reset")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	defer s.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", g)
			for i := 0; i < 200; i++ {
				s.SetPendingClarification(id, "q")
				s.PendingClarification(id)
				s.ClearPendingClarification(id)
			}
		}(g)
	}
	wg.Wait()
}

func TestTTLEviction(t *testing.T) {
	s := NewStore(WithTTL(20*time.Millisecond, 10*time.Millisecond))
	defer s.Close()

	s.SetPendingClarification("idle", "q")

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := s.PendingClarification("idle"); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("slot was not evicted after TTL")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
