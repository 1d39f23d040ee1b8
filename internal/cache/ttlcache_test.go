package cache

import (
	"testing"
	"time"
)

func TestGetMissAfterExpiry(t *testing.T) {
	c := New[string, int](4, 10*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected expired entry to be a miss")
	}
}

func TestPopRemovesEntry(t *testing.T) {
	c := New[string, int](4, time.Minute)
	c.Set("a", 1)
	v, ok := c.Pop("a")
	if !ok || v != 1 {
		t.Fatalf("expected pop to find a=1, got %v %v", v, ok)
	}
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to be gone after pop")
	}
}

func TestSetEvictsNearestDeadlineWhenFull(t *testing.T) {
	c := New[string, int](2, time.Minute)
	c.SetTTL("a", 1, 10*time.Millisecond)
	c.SetTTL("b", 2, time.Hour)
	c.SetTTL("c", 3, time.Hour) // should evict "a", the nearest deadline

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to have been evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatalf("expected b to survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("expected c to survive")
	}
}

func TestExpireSweepsExpiredEntries(t *testing.T) {
	c := New[string, int](4, 10*time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	if n := c.Expire(); n != 2 {
		t.Fatalf("expected 2 expired entries swept, got %d", n)
	}
	if c.Len() != 0 {
		t.Fatalf("expected cache empty after sweep, got len=%d", c.Len())
	}
}

func TestLenReflectsLiveInsertions(t *testing.T) {
	c := New[string, int](4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if c.Len() != 2 {
		t.Fatalf("expected len 2, got %d", c.Len())
	}
}
