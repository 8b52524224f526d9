package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.Set("k", "v", 0)
	v, ok := c.Get("k")
	if !ok || v != "v" {
		t.Fatalf("expected hit with v, got %v ok=%v", v, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %+v", stats)
	}
}

func TestExpiry(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.Set("k", "v", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expected entry expired")
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := New(0)
	defer c.Close()

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected a deleted")
	}

	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Error("expected b cleared")
	}
	if c.GetStats().Entries != 0 {
		t.Error("expected empty cache after clear")
	}
}

func TestBackgroundSweep(t *testing.T) {
	c := New(10 * time.Millisecond)
	defer c.Close()

	c.Set("k", "v", 10*time.Millisecond)

	deadline := time.After(time.Second)
	for {
		if c.GetStats().Entries == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("sweeper did not evict expired entry")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
