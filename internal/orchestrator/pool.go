package orchestrator

import (
	"context"
	"sync"
	"time"

	"poolgateway/internal/cache"
	"poolgateway/internal/driver"
	"poolgateway/internal/logging"
	"poolgateway/internal/poolerr"
)

// PoolConfig is the launch-time configuration a pool is created from. It is
// also the input to PoolID fingerprinting (see fingerprint.go): two create
// requests with the same normalized config collide onto the same pool,
// making create idempotent-by-config.
type PoolConfig struct {
	MaxBrowsers       int           `json:"max_browsers"`
	MinBrowsers       int           `json:"min_browsers"`
	MaxPagesPerBrowser int          `json:"max_pages_per_browser"`
	BrowserIdleTTL    time.Duration `json:"browser_idle_ttl"`
	PageIdleTTL       time.Duration `json:"page_idle_ttl"`
	PageMaxTTL        time.Duration `json:"page_max_ttl"`
	CacheCapacity     int           `json:"cache_capacity"`
	Launch            driver.LaunchConfig `json:"launch"`
}

// PoolStatus reflects whether a pool still accepts new browsers/sessions.
type PoolStatus string

const (
	PoolStatusActive   PoolStatus = "active"
	PoolStatusDeleting PoolStatus = "deleting"
)

// BrowserPool owns a set of LeasedBrowsers created under one launch
// configuration, applying a least-busy selection policy on lookup and
// autoscaling the browser count from aggregate load.
type BrowserPool struct {
	ID     string
	Config PoolConfig

	mu       sync.Mutex
	status   PoolStatus
	browsers *cache.TTLCache[string, *LeasedBrowser]
	order    []string // insertion order, for least-busy tie-breaking

	drv    driver.BrowserDriver
	logger logging.Logger
}

func newBrowserPool(id string, cfg PoolConfig, drv driver.BrowserDriver, logger logging.Logger) *BrowserPool {
	return &BrowserPool{
		ID:       id,
		Config:   cfg,
		status:   PoolStatusActive,
		browsers: cache.New[string, *LeasedBrowser](0, cfg.BrowserIdleTTL),
		drv:      drv,
		logger:   logger,
	}
}

func (p *BrowserPool) Status() PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *BrowserPool) isActive() bool {
	return p.Status() == PoolStatusActive
}

// BrowserCount returns the number of browsers currently tracked.
func (p *BrowserPool) BrowserCount() int {
	return p.browsers.Len()
}

// TotalPages returns the aggregate page count across all browsers, the
// pool's load signal for autoscaling and least-busy selection.
func (p *BrowserPool) TotalPages() int {
	total := 0
	for _, b := range p.browsers.Values() {
		total += b.PageCount()
	}
	return total
}

func (p *BrowserPool) launchBrowser(ctx context.Context) (*LeasedBrowser, error) {
	proc, err := p.drv.Launch(ctx, p.Config.Launch)
	if err != nil {
		return nil, err
	}
	id := newBrowserToken()
	browser := newLeasedBrowser(id, proc, p.drv, p.Config.CacheCapacity, p.Config.PageIdleTTL, p.Config.PageMaxTTL)

	p.mu.Lock()
	p.order = append(p.order, id)
	p.mu.Unlock()
	p.browsers.Set(id, browser)

	return browser, nil
}

// SelectBrowserForNewSession implements the least-busy selection policy:
// no browsers -> launch one; one browser -> return it if it has capacity;
// multiple -> pick the smallest positive page_count among non-idle browsers
// (ties broken by insertion order; an empty browser is picked only when
// every browser is empty). When the picked browser is at capacity it falls
// back to scale-up, even if an empty browser exists.
func (p *BrowserPool) SelectBrowserForNewSession(ctx context.Context) (*LeasedBrowser, error) {
	if !p.isActive() {
		return nil, poolerr.New(poolerr.KindPoolInactive, p.ID)
	}

	browsers := p.browsers.Values()

	if len(browsers) == 0 {
		return p.tryLaunchWithinCapacity(ctx)
	}
	if len(browsers) == 1 {
		b := browsers[0]
		if p.hasCapacity(b) {
			return b, nil
		}
		return p.tryLaunchWithinCapacity(ctx)
	}

	p.mu.Lock()
	order := append([]string(nil), p.order...)
	p.mu.Unlock()

	byID := make(map[string]*LeasedBrowser, len(browsers))
	for _, b := range browsers {
		byID[b.ID] = b
	}

	var best *LeasedBrowser
	bestCount := -1
	for _, id := range order {
		b, ok := byID[id]
		if !ok {
			continue
		}
		count := b.PageCount()
		if count == 0 {
			continue // empty browsers are picked only if every browser is empty
		}
		if bestCount == -1 || count < bestCount {
			best = b
			bestCount = count
		}
	}
	if best == nil {
		// every browser is idle; take the first by insertion order
		for _, id := range order {
			if b, ok := byID[id]; ok {
				best = b
				break
			}
		}
	}

	if best != nil && p.hasCapacity(best) {
		return best, nil
	}

	return p.tryLaunchWithinCapacity(ctx)
}

func (p *BrowserPool) hasCapacity(b *LeasedBrowser) bool {
	if p.Config.MaxPagesPerBrowser <= 0 {
		return true
	}
	return b.PageCount() < p.Config.MaxPagesPerBrowser
}

func (p *BrowserPool) tryLaunchWithinCapacity(ctx context.Context) (*LeasedBrowser, error) {
	if p.Config.MaxBrowsers > 0 && p.browsers.Len() >= p.Config.MaxBrowsers {
		return nil, poolerr.New(poolerr.KindNoAvailableBrowser, p.ID)
	}
	return p.launchBrowser(ctx)
}

// CreateBrowser implements create_browser() (§4.4): fails with
// pool_capacity_reached at the limit, pool_inactive once marked for
// deletion. Distinct from the least-busy selection's fallback (which
// surfaces no_available_browser instead) — this is the explicit,
// caller-driven admission path used by the manual scale-up action.
func (p *BrowserPool) CreateBrowser(ctx context.Context) (*LeasedBrowser, error) {
	if !p.isActive() {
		return nil, poolerr.New(poolerr.KindPoolInactive, p.ID)
	}
	if p.Config.MaxBrowsers > 0 && p.browsers.Len() >= p.Config.MaxBrowsers {
		return nil, poolerr.New(poolerr.KindPoolCapacityReached, p.ID)
	}
	return p.launchBrowser(ctx)
}

// GetBrowser looks up a tracked browser by id.
func (p *BrowserPool) GetBrowser(id string) (*LeasedBrowser, bool) {
	return p.browsers.Get(id)
}

// LeastBusyBrowser returns the tracked browser with the smallest page
// count (ties broken by insertion order), used by the manual scale-down
// action to pick a removal target.
func (p *BrowserPool) LeastBusyBrowser() (*LeasedBrowser, bool) {
	browsers := p.browsers.Values()
	if len(browsers) == 0 {
		return nil, false
	}

	p.mu.Lock()
	order := append([]string(nil), p.order...)
	p.mu.Unlock()

	byID := make(map[string]*LeasedBrowser, len(browsers))
	for _, b := range browsers {
		byID[b.ID] = b
	}

	var best *LeasedBrowser
	bestCount := -1
	for _, id := range order {
		b, ok := byID[id]
		if !ok {
			continue
		}
		if count := b.PageCount(); bestCount == -1 || count < bestCount {
			best, bestCount = b, count
		}
	}
	return best, best != nil
}

// CloseAndRemoveBrowser implements remove_browser(id, force) (§4.4):
// refuses if the browser still has pages and force is false; otherwise
// closes the underlying process and drops it from tracking.
func (p *BrowserPool) CloseAndRemoveBrowser(ctx context.Context, id string, force bool) (bool, error) {
	b, ok := p.GetBrowser(id)
	if !ok {
		return false, nil
	}
	if !force && b.PageCount() > 0 {
		return false, nil
	}
	err := b.Close(ctx)
	p.RemoveBrowser(id)
	return true, err
}

// ReapIdleBrowsers removes browsers past their idle deadline. Pages inside
// a browser have their own independent TTL sweep; this only evicts whole
// browsers whose cache entry (keyed on browser-level last-used) expired.
func (p *BrowserPool) ReapIdleBrowsers(ctx context.Context) int {
	return p.browsers.Expire()
}

// ScaleDownCandidates returns idle (page_count == 0) browsers eligible for
// closing during a scale-down pass.
func (p *BrowserPool) ScaleDownCandidates() []*LeasedBrowser {
	var out []*LeasedBrowser
	for _, b := range p.browsers.Values() {
		if b.IsIdle() {
			out = append(out, b)
		}
	}
	return out
}

// RemoveBrowser drops a browser from tracking (it must already be closed).
func (p *BrowserPool) RemoveBrowser(id string) {
	p.browsers.Delete(id)
	p.mu.Lock()
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
}

// BeginDeletion marks the pool inactive so no further sessions/browsers
// are created, returning the live browsers for immediate (force) draining.
func (p *BrowserPool) BeginDeletion() []*LeasedBrowser {
	p.MarkInactive()
	return p.browsers.Values()
}

// MarkInactive is the one-way transition admitting no further
// browsers/pages. Existing sessions are untouched — this is the
// delete_pool(force=false) path, which only rejects new admission until
// the reaper physically removes the pool once idle.
func (p *BrowserPool) MarkInactive() {
	p.mu.Lock()
	p.status = PoolStatusDeleting
	p.mu.Unlock()
}

// IsIdle reports whether the pool currently holds no live pages across any
// of its browsers — the condition the reaper requires before physically
// removing a pool that has been marked for deletion.
func (p *BrowserPool) IsIdle() bool {
	return p.TotalPages() == 0
}
