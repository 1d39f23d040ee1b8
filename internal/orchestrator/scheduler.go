package orchestrator

import (
	"context"
	"sync"
	"time"

	"poolgateway/internal/logging"
)

// AutoscaleThresholds are the named constants governing scale-up/down
// decisions, configured rather than hard-coded, per the design notes.
type AutoscaleThresholds struct {
	ScaleUpLoadRatio   float64
	ScaleUpCPURatio    float64
	ScaleDownLoadRatio float64
	ScaleDownCPURatio  float64
}

// Scheduler runs the three periodic background tasks every pool needs:
// idle reaping, autoscaling, and cache-expiry sweeps. Grounded on the
// teacher's ticker-plus-goroutine shape in internal/background/manager.go
// and the cleanup ticker in engines/headed/global_browser_pool.go.
type Scheduler struct {
	admin      *PoolAdmin
	thresholds AutoscaleThresholds
	logger     logging.Logger

	reapInterval    time.Duration
	scalingInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(admin *PoolAdmin, thresholds AutoscaleThresholds, reapInterval, scalingInterval time.Duration, logger logging.Logger) *Scheduler {
	return &Scheduler{
		admin:           admin,
		thresholds:      thresholds,
		logger:          logger,
		reapInterval:    reapInterval,
		scalingInterval: scalingInterval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.runLoop(s.reapInterval, s.reapPass)
	go s.runLoop(s.scalingInterval, s.scalingPass)
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// runLoop ticks at interval, never holding a lock across the pass body,
// and self-catches so one bad pass never kills the loop.
func (s *Scheduler) runLoop(interval time.Duration, pass func()) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.safeRun(pass)
		}
	}
}

func (s *Scheduler) safeRun(pass func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("background task panicked", map[string]interface{}{"recover": r})
		}
	}()
	pass()
}

func (s *Scheduler) reapPass() {
	for _, pool := range s.admin.ListPools() {
		n := pool.ReapIdleBrowsers(s.ctx)
		if n > 0 {
			s.logger.Debug("reaped idle browsers", map[string]interface{}{"pool_id": pool.ID, "count": n})
		}
		for _, b := range pool.browsers.Values() {
			b.ReapIdlePages()
		}
	}

	if removed := s.admin.ReapDeletionCandidates(s.ctx); removed > 0 {
		s.logger.Debug("reaped deletion-candidate pools", map[string]interface{}{"count": removed})
	}
}

func (s *Scheduler) scalingPass() {
	for _, pool := range s.admin.ListPools() {
		if !pool.isActive() {
			continue
		}
		s.evaluatePool(pool)
	}
}

func (s *Scheduler) evaluatePool(pool *BrowserPool) {
	browserCount := pool.BrowserCount()
	if browserCount == 0 {
		return
	}

	load := pool.TotalPages()
	capacity := browserCount * pool.Config.MaxPagesPerBrowser
	if capacity <= 0 {
		capacity = browserCount
	}

	avgCPU := s.averageCPU(pool)

	scaleUp := load > 0 && (float64(load) >= s.thresholds.ScaleUpLoadRatio*float64(capacity) || avgCPU >= s.thresholds.ScaleUpCPURatio)
	if scaleUp {
		s.scaleUp(pool)
		return
	}

	scaleDown := float64(load) <= s.thresholds.ScaleDownLoadRatio*float64(capacity) || avgCPU <= s.thresholds.ScaleDownCPURatio
	if scaleDown {
		s.scaleDown(pool)
	}
}

func (s *Scheduler) averageCPU(pool *BrowserPool) float64 {
	browsers := pool.browsers.Values()
	if len(browsers) == 0 {
		return 0
	}
	var total float64
	for _, b := range browsers {
		cpu, _ := b.Sample()
		total += cpu
	}
	return total / float64(len(browsers))
}

func (s *Scheduler) scaleUp(pool *BrowserPool) {
	if pool.Config.MaxBrowsers > 0 && pool.BrowserCount() >= pool.Config.MaxBrowsers {
		return // swallowed: pool_capacity_reached is only surfaced on explicit create
	}
	if _, err := pool.launchBrowser(s.ctx); err != nil {
		s.logger.Warn("autoscale scale-up failed", map[string]interface{}{"pool_id": pool.ID, "error": err.Error()})
	}
}

func (s *Scheduler) scaleDown(pool *BrowserPool) {
	if pool.BrowserCount() <= pool.Config.MinBrowsers {
		return
	}
	candidates := pool.ScaleDownCandidates()
	if len(candidates) == 0 {
		return
	}

	room := pool.BrowserCount() - pool.Config.MinBrowsers
	if room < len(candidates) {
		candidates = candidates[:room]
	}

	var wg sync.WaitGroup
	for _, b := range candidates {
		wg.Add(1)
		go func(b *LeasedBrowser) {
			defer wg.Done()
			if err := b.Close(s.ctx); err != nil {
				s.logger.Warn("autoscale scale-down close failed", map[string]interface{}{"pool_id": pool.ID, "browser_id": b.ID, "error": err.Error()})
			}
			pool.RemoveBrowser(b.ID)
		}(b)
	}
	wg.Wait()
}
