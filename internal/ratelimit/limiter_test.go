package ratelimit

import (
	"testing"
	"time"
)

func TestAllowPermitsUpToBurstThenDenies(t *testing.T) {
	l := New(2, time.Minute)
	defer l.Stop()

	if !l.Allow("client-a") {
		t.Fatalf("expected first request to be allowed")
	}
	if !l.Allow("client-a") {
		t.Fatalf("expected second request (within burst) to be allowed")
	}
	if l.Allow("client-a") {
		t.Fatalf("expected third immediate request to be denied")
	}
}

func TestAllowTracksClientsIndependently(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Stop()

	if !l.Allow("client-a") {
		t.Fatalf("expected client-a's first request to be allowed")
	}
	if !l.Allow("client-b") {
		t.Fatalf("expected client-b's first request to be allowed independently of client-a")
	}
	if l.Allow("client-a") {
		t.Fatalf("expected client-a's second immediate request to be denied")
	}
}

func TestCleanupEvictsIdleClients(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Stop()

	l.Allow("stale-client")
	l.mu.Lock()
	l.clients["stale-client"].lastSeen = time.Now().Add(-l.idleTTL - time.Second)
	l.mu.Unlock()

	l.cleanup()

	l.mu.Lock()
	_, stillPresent := l.clients["stale-client"]
	l.mu.Unlock()

	if stillPresent {
		t.Fatalf("expected idle client entry to be evicted by cleanup")
	}
}
