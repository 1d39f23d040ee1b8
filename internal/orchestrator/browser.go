package orchestrator

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"poolgateway/internal/cache"
	"poolgateway/internal/driver"
	"poolgateway/internal/poolerr"
)

// LeasedBrowser owns one browser process and the set of page sessions
// leased from it. A PageSession is exclusively owned by its LeasedBrowser;
// resolving a session for an action pops it from the cache (so a
// concurrent resolve on the same id sees page_session_not_found), performs
// the action, then puts it back, renewing its TTL. This pop/put pair IS
// the per-session mutual-exclusion mechanism and must never be bypassed.
type LeasedBrowser struct {
	ID   string
	proc driver.ProcessHandle
	drv  driver.BrowserDriver

	pages *cache.TTLCache[string, *PageSession]

	pageIdleTTL time.Duration
	pageMaxTTL  time.Duration

	CreatedAt time.Time
	lastUsed  atomic.Int64 // unix nanos

	pageCounter atomic.Int64
}

func newLeasedBrowser(id string, proc driver.ProcessHandle, drv driver.BrowserDriver, capacity int, pageIdleTTL, pageMaxTTL time.Duration) *LeasedBrowser {
	b := &LeasedBrowser{
		ID:          id,
		proc:        proc,
		drv:         drv,
		pages:       cache.New[string, *PageSession](capacity, pageIdleTTL),
		pageIdleTTL: pageIdleTTL,
		pageMaxTTL:  pageMaxTTL,
		CreatedAt:   time.Now(),
	}
	b.touch()
	return b
}

func (b *LeasedBrowser) touch() {
	b.lastUsed.Store(time.Now().UnixNano())
}

func (b *LeasedBrowser) LastUsed() time.Time {
	return time.Unix(0, b.lastUsed.Load())
}

// PageCount returns the number of live page sessions currently leased.
func (b *LeasedBrowser) PageCount() int {
	return b.pages.Len()
}

// IsIdle reports whether this browser holds no live page sessions.
func (b *LeasedBrowser) IsIdle() bool {
	return b.PageCount() == 0
}

// NewPageSession opens a new tab and registers a PageSession for it. PageId
// is allocated from a per-browser atomic counter (numeric, starting at 0)
// rather than a UUID: composite SessionId parts must be drawn from
// [0-9a-z], which a UUID's hyphens would violate.
func (b *LeasedBrowser) NewPageSession(ctx context.Context) (*PageSession, error) {
	page, err := b.drv.NewPage(ctx, b.proc)
	if err != nil {
		return nil, poolerr.Wrap(poolerr.KindLaunchFailed, "open new page", err)
	}

	id := strconv.FormatInt(b.pageCounter.Add(1)-1, 10)
	session := newPageSession(id, "", b.ID, page, b.drv)
	ttl := b.pageIdleTTL
	if b.pageMaxTTL > 0 && b.pageMaxTTL < ttl {
		ttl = b.pageMaxTTL
	}
	b.pages.SetTTL(id, session, ttl)
	b.touch()
	return session, nil
}

// PeekPageSession looks up a session without removing it from the cache
// (resolve_session(peek=true), §4.5) — used for read-only queries like
// session metrics, which must not contend with the pop/put mutex.
func (b *LeasedBrowser) PeekPageSession(pageID string) (*PageSession, bool) {
	return b.pages.Get(pageID)
}

// ResolveAndPerform pops the named session, performs the action, then puts
// it back with a renewed TTL — this is the session-level mutex.
func (b *LeasedBrowser) ResolveAndPerform(ctx context.Context, pageID string, action driver.ActionKind, params map[string]interface{}) (interface{}, error) {
	session, ok := b.pages.Pop(pageID)
	if !ok {
		return nil, poolerr.New(poolerr.KindPageSessionNotFound, pageID)
	}

	result, err := session.PerformAction(ctx, action, params)

	b.pages.SetTTL(pageID, session, b.pageIdleTTL)
	b.touch()

	return result, err
}

// ClosePageSession removes and closes a page session outright (no TTL
// restoration), used when a client explicitly tears down a page.
func (b *LeasedBrowser) ClosePageSession(ctx context.Context, pageID string) error {
	session, ok := b.pages.Pop(pageID)
	if !ok {
		return poolerr.New(poolerr.KindPageSessionNotFound, pageID)
	}
	b.touch()
	return session.Close(ctx)
}

// Sample returns the underlying process's best-effort CPU/memory reading.
func (b *LeasedBrowser) Sample() (cpu float64, memMB float64) {
	return b.drv.Sample(b.proc)
}

// Healthy reports whether the underlying process still responds.
func (b *LeasedBrowser) Healthy() bool {
	return b.drv.Healthy(b.proc)
}

// ReapIdlePages evicts page sessions that have outlived their TTL. This is
// a correctness-independent sweep; Pop/Get already hide expired entries.
func (b *LeasedBrowser) ReapIdlePages() int {
	return b.pages.Expire()
}

// Close closes every live page then the underlying process. A page popped
// for an in-flight action is not in the cache and is not closed here.
// Callers: autoscale-down and the deletion reaper (idle browsers only),
// manual scale-down and forced pool deletion (browsers that may hold pages).
func (b *LeasedBrowser) Close(ctx context.Context) error {
	for _, id := range b.pages.Keys() {
		if session, ok := b.pages.Pop(id); ok {
			_ = session.Close(ctx)
		}
	}
	return b.drv.CloseProcess(ctx, b.proc)
}
