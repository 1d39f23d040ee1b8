// Package ratelimit implements the per-client request limit as a token
// bucket per client (refill rate requests/window, burst of requests). It is
// not a strict sliding window: up to twice the configured requests can pass
// within one window. Adapted from the teacher's per-domain workers.RateLimiter
// (internal/scraper/workers/limiter.go) by re-keying on client identity
// instead of request domain.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter is a token-bucket limiter per client key (remote IP or API
// key), with idle-entry cleanup so long-running processes don't leak
// per-client state.
type ClientLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientEntry
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds a ClientLimiter allowing `requests` per `window`.
func New(requests int, window time.Duration) *ClientLimiter {
	rps := rate.Limit(float64(requests) / window.Seconds())
	l := &ClientLimiter{
		clients: make(map[string]*clientEntry),
		rps:     rps,
		burst:   requests,
		idleTTL: 10 * time.Minute,
		stopCh:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *ClientLimiter) getEntry(key string) *clientEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.clients[key]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = e
	}
	e.lastSeen = time.Now()
	return e
}

// Allow reports whether a request from key is permitted right now.
func (l *ClientLimiter) Allow(key string) bool {
	return l.getEntry(key).limiter.Allow()
}

func (l *ClientLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

func (l *ClientLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-l.idleTTL)
	for k, e := range l.clients {
		if e.lastSeen.Before(cutoff) {
			delete(l.clients, k)
		}
	}
}

// Stop halts the background cleanup goroutine.
func (l *ClientLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}
