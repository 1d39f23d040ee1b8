package orchestrator

import (
	"context"
	"sync"

	"poolgateway/internal/driver"
	"poolgateway/internal/logging"
	"poolgateway/internal/poolerr"
	"poolgateway/internal/snapshot"
)

// PoolAdmin is the process-wide registry owning every BrowserPool. It is
// injected rather than a package-level singleton — a deliberate deviation
// from the teacher's `var globalPool *GlobalBrowserPool; sync.Once`
// idiom, made for testability (see DESIGN.md).
type PoolAdmin struct {
	mu                 sync.RWMutex
	pools              map[string]*BrowserPool
	deletionCandidates []string // ordered, per delete_pool(force=false)
	drv                driver.BrowserDriver
	logger             logging.Logger
	snaps              snapshot.Store
}

func NewPoolAdmin(drv driver.BrowserDriver, logger logging.Logger) *PoolAdmin {
	return &PoolAdmin{
		pools:  make(map[string]*BrowserPool),
		drv:    drv,
		logger: logger,
	}
}

// WithSnapshotStore attaches the collaborator that persists
// save_snapshot/restore_snapshot payloads across requests. Without one,
// save_snapshot still returns its captured payload inline and
// restore_snapshot still works when the caller supplies the payload
// directly in params — only cross-request persistence is lost.
func (a *PoolAdmin) WithSnapshotStore(store snapshot.Store) *PoolAdmin {
	a.snaps = store
	return a
}

// CreatePool creates a new pool for cfg, or returns the existing pool if
// an identically-configured one already exists (pool_already_exists is
// only surfaced by the explicit-create path per the error model; callers
// that want strict creation semantics should check the returned bool).
func (a *PoolAdmin) CreatePool(cfg PoolConfig) (*BrowserPool, bool, error) {
	id, err := FingerprintConfig(cfg)
	if err != nil {
		return nil, false, poolerr.Wrap(poolerr.KindBadParams, "fingerprint pool config", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.pools[id]; ok {
		return existing, false, nil
	}

	pool := newBrowserPool(id, cfg, a.drv, a.logger)
	a.pools[id] = pool
	return pool, true, nil
}

// GetPool looks up a pool by id.
func (a *PoolAdmin) GetPool(id string) (*BrowserPool, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.pools[id]
	return p, ok
}

// ListPools returns a snapshot of every tracked pool.
func (a *PoolAdmin) ListPools() []*BrowserPool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*BrowserPool, 0, len(a.pools))
	for _, p := range a.pools {
		out = append(out, p)
	}
	return out
}

// NewSession allocates a page session within poolID, selecting a browser
// per the pool's least-busy policy (creating one if needed).
func (a *PoolAdmin) NewSession(ctx context.Context, poolID string) (SessionID, error) {
	pool, ok := a.GetPool(poolID)
	if !ok {
		return SessionID{}, poolerr.New(poolerr.KindPoolInactive, poolID)
	}

	browser, err := pool.SelectBrowserForNewSession(ctx)
	if err != nil {
		return SessionID{}, err
	}

	session, err := browser.NewPageSession(ctx)
	if err != nil {
		return SessionID{}, err
	}

	return SessionID{PoolID: poolID, BrowserID: browser.ID, PageID: session.ID}, nil
}

// ScaleUp implements the manual PATCH .../scale-up admin action: add one
// browser to the pool immediately. Distinct from the scheduler's
// load-driven auto_scale_up, which only fires when thresholds are met.
func (a *PoolAdmin) ScaleUp(ctx context.Context, poolID string) (*BrowserPool, error) {
	pool, ok := a.GetPool(poolID)
	if !ok {
		return nil, poolerr.New(poolerr.KindPoolInactive, poolID)
	}
	if _, err := pool.CreateBrowser(ctx); err != nil {
		return nil, err
	}
	return pool, nil
}

// ScaleDown implements the manual PATCH .../scale-down admin action:
// close and remove the pool's least-busy browser immediately.
func (a *PoolAdmin) ScaleDown(ctx context.Context, poolID string) (*BrowserPool, error) {
	pool, ok := a.GetPool(poolID)
	if !ok {
		return nil, poolerr.New(poolerr.KindPoolInactive, poolID)
	}
	b, ok := pool.LeastBusyBrowser()
	if !ok {
		return nil, poolerr.New(poolerr.KindNoAvailableBrowser, poolID)
	}
	if _, err := pool.CloseAndRemoveBrowser(ctx, b.ID, true); err != nil {
		a.logger.Warn("error closing browser during manual scale-down", map[string]interface{}{
			"pool_id": poolID, "browser_id": b.ID, "error": err.Error(),
		})
	}
	return pool, nil
}

// ResolveAndPerform routes a raw composite session id to its owning
// LeasedBrowser and performs the requested action. This is the sole place
// pop/put mutual exclusion for a PageSession happens.
func (a *PoolAdmin) ResolveAndPerform(ctx context.Context, rawSessionID string, action driver.ActionKind, params map[string]interface{}) (interface{}, error) {
	sid, err := ParseSessionID(rawSessionID)
	if err != nil {
		return nil, err
	}

	pool, ok := a.GetPool(sid.PoolID)
	if !ok {
		return nil, poolerr.New(poolerr.KindPageSessionNotFound, rawSessionID)
	}

	browser, ok := pool.GetBrowser(sid.BrowserID)
	if !ok {
		return nil, poolerr.New(poolerr.KindPageSessionNotFound, rawSessionID)
	}

	if action == driver.ActionRestoreSnapshot && a.snaps != nil && len(params) == 0 {
		if saved, found, err := a.snaps.Load(ctx, rawSessionID); err == nil && found {
			params = saved
		}
	}

	result, err := browser.ResolveAndPerform(ctx, sid.PageID, action, params)
	if err != nil {
		return result, err
	}

	if action == driver.ActionSaveSnapshot && a.snaps != nil {
		if snap, ok := result.(map[string]interface{}); ok {
			if saveErr := a.snaps.Save(ctx, rawSessionID, snap); saveErr != nil {
				a.logger.Warn("failed to persist snapshot", map[string]interface{}{"session_id": rawSessionID, "error": saveErr.Error()})
			}
		}
	}

	return result, nil
}

// GetSessionMetrics resolves a composite session id by peek (without
// popping it from its owning browser's cache) and returns its PageSession,
// for read-only session-metrics queries.
func (a *PoolAdmin) GetSessionMetrics(rawSessionID string) (*PageSession, error) {
	sid, err := ParseSessionID(rawSessionID)
	if err != nil {
		return nil, err
	}

	pool, ok := a.GetPool(sid.PoolID)
	if !ok {
		return nil, poolerr.New(poolerr.KindPageSessionNotFound, rawSessionID)
	}

	browser, ok := pool.GetBrowser(sid.BrowserID)
	if !ok {
		return nil, poolerr.New(poolerr.KindPageSessionNotFound, rawSessionID)
	}

	session, ok := browser.PeekPageSession(sid.PageID)
	if !ok {
		return nil, poolerr.New(poolerr.KindPageSessionNotFound, rawSessionID)
	}
	return session, nil
}

// CloseSession tears down a single page session explicitly.
func (a *PoolAdmin) CloseSession(ctx context.Context, rawSessionID string) error {
	sid, err := ParseSessionID(rawSessionID)
	if err != nil {
		return err
	}

	pool, ok := a.GetPool(sid.PoolID)
	if !ok {
		return poolerr.New(poolerr.KindPageSessionNotFound, rawSessionID)
	}

	browser, ok := pool.GetBrowser(sid.BrowserID)
	if !ok {
		return poolerr.New(poolerr.KindPageSessionNotFound, rawSessionID)
	}

	return browser.ClosePageSession(ctx, sid.PageID)
}

// DeletePool implements delete_pool(id, force) (§4.5). With force=true the
// pool is removed immediately: every live browser is closed and the pool
// is dropped from the registry on the spot, aborting any in-flight
// sessions. With force=false (graceful deletion) the pool is only marked
// inactive — existing sessions keep serving via the pop/put discipline,
// new admission fails with pool_inactive, and the pool is appended to the
// ordered deletion-candidate list for the reaper to physically remove
// once idle (see ReapDeletionCandidates).
func (a *PoolAdmin) DeletePool(ctx context.Context, poolID string, force bool) error {
	pool, ok := a.GetPool(poolID)
	if !ok {
		return poolerr.New(poolerr.KindPoolInactive, poolID)
	}

	if !force {
		pool.MarkInactive()
		a.addDeletionCandidate(poolID)
		return nil
	}

	browsers := pool.BeginDeletion()

	var wg sync.WaitGroup
	for _, b := range browsers {
		wg.Add(1)
		go func(b *LeasedBrowser) {
			defer wg.Done()
			if err := b.Close(ctx); err != nil {
				a.logger.Warn("error closing browser during pool deletion", map[string]interface{}{
					"pool_id": poolID, "browser_id": b.ID, "error": err.Error(),
				})
			}
			pool.RemoveBrowser(b.ID)
		}(b)
	}
	wg.Wait()

	a.mu.Lock()
	delete(a.pools, poolID)
	a.mu.Unlock()
	a.removeDeletionCandidate(poolID)

	return nil
}

// ReapDeletionCandidates implements reap_deletion_candidates() (§4.5):
// for each pool marked for graceful deletion, skip it if the pool no
// longer exists (already removed) or is still non-idle; otherwise close
// its remaining (necessarily idle) browsers and physically remove it from
// the registry. Returns the number of pools removed.
func (a *PoolAdmin) ReapDeletionCandidates(ctx context.Context) int {
	a.mu.Lock()
	candidates := append([]string(nil), a.deletionCandidates...)
	a.mu.Unlock()

	removed := 0
	for _, id := range candidates {
		pool, ok := a.GetPool(id)
		if !ok {
			a.removeDeletionCandidate(id)
			continue
		}
		if !pool.IsIdle() {
			continue
		}

		for _, b := range pool.browsers.Values() {
			if err := b.Close(ctx); err != nil {
				a.logger.Warn("error closing browser while reaping deletion candidate", map[string]interface{}{
					"pool_id": id, "browser_id": b.ID, "error": err.Error(),
				})
			}
			pool.RemoveBrowser(b.ID)
		}

		a.mu.Lock()
		delete(a.pools, id)
		a.mu.Unlock()
		a.removeDeletionCandidate(id)
		removed++
	}

	return removed
}

func (a *PoolAdmin) addDeletionCandidate(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, v := range a.deletionCandidates {
		if v == id {
			return
		}
	}
	a.deletionCandidates = append(a.deletionCandidates, id)
}

func (a *PoolAdmin) removeDeletionCandidate(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, v := range a.deletionCandidates {
		if v == id {
			a.deletionCandidates = append(a.deletionCandidates[:i], a.deletionCandidates[i+1:]...)
			break
		}
	}
}
