package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"poolgateway/internal/driver"
	"poolgateway/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewMultiLogger()
}

func testPoolConfig() PoolConfig {
	return PoolConfig{
		MaxBrowsers:        3,
		MinBrowsers:        0,
		MaxPagesPerBrowser: 2,
		BrowserIdleTTL:     time.Minute,
		PageIdleTTL:        time.Minute,
		PageMaxTTL:         time.Minute,
		CacheCapacity:      10,
	}
}

func TestParseSessionIDRoundTrip(t *testing.T) {
	sid, err := ParseSessionID("pool1_browser2_page3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sid.String() != "pool1_browser2_page3" {
		t.Fatalf("round trip mismatch: %s", sid.String())
	}
}

func TestParseSessionIDRejectsMalformedShape(t *testing.T) {
	cases := []string{"", "onlyone", "a_b", "a_b_c_d", "a__c", "_b_c"}
	for _, raw := range cases {
		if _, err := ParseSessionID(raw); err == nil {
			t.Fatalf("expected invalid_session_id error for %q", raw)
		}
	}
}

func TestCreatePoolIsIdempotentByConfig(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	cfg := testPoolConfig()

	p1, created1, err := admin.CreatePool(cfg)
	if err != nil || !created1 {
		t.Fatalf("expected first create to succeed and create=true, err=%v", err)
	}
	p2, created2, err := admin.CreatePool(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created2 {
		t.Fatalf("expected second create with identical config to collide, not create a new pool")
	}
	if p1.ID != p2.ID {
		t.Fatalf("expected same pool id, got %s vs %s", p1.ID, p2.ID)
	}
}

func TestResolveAndPerformEnforcesPopPutMutex(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	pool, _, _ := admin.CreatePool(testPoolConfig())

	sid, err := admin.NewSession(context.Background(), pool.ID)
	if err != nil {
		t.Fatalf("unexpected error creating session: %v", err)
	}

	browser, _ := pool.GetBrowser(sid.BrowserID)
	session, ok := browser.pages.Pop(sid.PageID)
	if !ok {
		t.Fatalf("expected session present before concurrent resolve")
	}

	// While the session is popped (simulating an in-flight action), a
	// second resolve must see page_session_not_found.
	_, err = admin.ResolveAndPerform(context.Background(), sid.String(), driver.ActionEvaluate, nil)
	if err == nil {
		t.Fatalf("expected page_session_not_found while session is popped")
	}
	if perr, ok := err.(interface{ Error() string }); !ok || perr == nil {
		t.Fatalf("expected an error value")
	}

	// put it back, then the resolve should succeed
	browser.pages.Set(sid.PageID, session)
	if _, err := admin.ResolveAndPerform(context.Background(), sid.String(), driver.ActionEvaluate, nil); err != nil {
		t.Fatalf("unexpected error after restoring session: %v", err)
	}
}

func TestResolveUnknownSessionIsNotFound(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	_, err := admin.ResolveAndPerform(context.Background(), "nope_nope_nope", driver.ActionEvaluate, nil)
	if err == nil {
		t.Fatalf("expected not-found error for unknown pool")
	}
}

func TestLeastBusySelectionFillsBeforeCreatingNewBrowser(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	cfg := testPoolConfig()
	cfg.MaxPagesPerBrowser = 2
	pool, _, _ := admin.CreatePool(cfg)

	ctx := context.Background()
	sid1, err := admin.NewSession(ctx, pool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sid2, err := admin.NewSession(ctx, pool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sid1.BrowserID != sid2.BrowserID {
		t.Fatalf("expected second session to reuse the same browser while under capacity")
	}

	// third session exceeds per-browser capacity, must land on a new browser
	sid3, err := admin.NewSession(ctx, pool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sid3.BrowserID == sid1.BrowserID {
		t.Fatalf("expected third session to create a new browser once capacity reached")
	}
}

func TestNoAvailableBrowserWhenPoolAtCapacity(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	cfg := testPoolConfig()
	cfg.MaxBrowsers = 1
	cfg.MaxPagesPerBrowser = 1
	pool, _, _ := admin.CreatePool(cfg)

	ctx := context.Background()
	if _, err := admin.NewSession(ctx, pool.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := admin.NewSession(ctx, pool.ID); err == nil {
		t.Fatalf("expected no_available_browser once pool is at capacity")
	}
}

func TestDeletePoolClosesBrowsersAndRemovesPool(t *testing.T) {
	drv := &fakeDriver{}
	admin := NewPoolAdmin(drv, testLogger())
	pool, _, _ := admin.CreatePool(testPoolConfig())

	ctx := context.Background()
	if _, err := admin.NewSession(ctx, pool.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := admin.DeletePool(ctx, pool.ID, true); err != nil {
		t.Fatalf("unexpected error deleting pool: %v", err)
	}

	if _, ok := admin.GetPool(pool.ID); ok {
		t.Fatalf("expected pool to be gone after deletion")
	}
	if drv.closed.Load() == 0 {
		t.Fatalf("expected at least one browser process to have been closed")
	}
}

func TestDeletedPoolRejectsNewSessions(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	pool, _, _ := admin.CreatePool(testPoolConfig())

	ctx := context.Background()
	pool.BeginDeletion()

	if _, err := admin.NewSession(ctx, pool.ID); err == nil {
		t.Fatalf("expected pool_inactive once deletion has begun")
	}
}

func TestScaleUpTriggersAboveLoadThreshold(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	cfg := testPoolConfig()
	cfg.MaxPagesPerBrowser = 10
	cfg.MaxBrowsers = 5
	pool, _, _ := admin.CreatePool(cfg)

	ctx := context.Background()
	// one browser, load it past 60% of its 10-page capacity
	for i := 0; i < 7; i++ {
		if _, err := admin.NewSession(ctx, pool.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	sched := NewScheduler(admin, AutoscaleThresholds{
		ScaleUpLoadRatio: 0.6, ScaleUpCPURatio: 0.7,
		ScaleDownLoadRatio: 0.3, ScaleDownCPURatio: 0.3,
	}, time.Minute, time.Minute, testLogger())
	sched.ctx = ctx

	before := pool.BrowserCount()
	sched.evaluatePool(pool)
	after := pool.BrowserCount()

	if after <= before {
		t.Fatalf("expected scale-up to add a browser, before=%d after=%d", before, after)
	}
}

func TestScaleDownNeverDropsBelowMinBrowsers(t *testing.T) {
	drv := &fakeDriver{}
	admin := NewPoolAdmin(drv, testLogger())
	cfg := testPoolConfig()
	cfg.MinBrowsers = 2
	pool, _, _ := admin.CreatePool(cfg)

	ctx := context.Background()
	// launch three idle browsers directly
	for i := 0; i < 3; i++ {
		if _, err := pool.launchBrowser(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	sched := NewScheduler(admin, AutoscaleThresholds{
		ScaleUpLoadRatio: 0.6, ScaleUpCPURatio: 0.7,
		ScaleDownLoadRatio: 0.3, ScaleDownCPURatio: 0.3,
	}, time.Minute, time.Minute, testLogger())
	sched.ctx = ctx

	sched.scaleDown(pool)

	if pool.BrowserCount() < cfg.MinBrowsers {
		t.Fatalf("expected at least min_browsers=%d to remain, got %d", cfg.MinBrowsers, pool.BrowserCount())
	}
}

func TestConcurrentSessionCreationIsRace_Free(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	// Room for all 20 sessions, so any error comes from the concurrent
	// path rather than from no_available_browser at pool capacity.
	cfg := testPoolConfig()
	cfg.MaxBrowsers = 20
	pool, _, _ := admin.CreatePool(cfg)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := admin.NewSession(context.Background(), pool.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected concurrent session creation error: %v", err)
		}
	}
}

func TestGracefulDeleteKeepsPoolServingUntilIdle(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	pool, _, _ := admin.CreatePool(testPoolConfig())

	ctx := context.Background()
	sid, err := admin.NewSession(ctx, pool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := admin.DeletePool(ctx, pool.ID, false); err != nil {
		t.Fatalf("unexpected error on graceful delete: %v", err)
	}

	if _, ok := admin.GetPool(pool.ID); !ok {
		t.Fatalf("expected pool to still exist immediately after graceful delete")
	}
	if _, err := admin.NewSession(ctx, pool.ID); err == nil {
		t.Fatalf("expected pool_inactive for new sessions once marked for deletion")
	}

	if _, err := admin.ResolveAndPerform(ctx, sid.String(), driver.ActionClick, nil); err != nil {
		t.Fatalf("expected existing session to keep serving, got: %v", err)
	}

	if removed := admin.ReapDeletionCandidates(ctx); removed != 0 {
		t.Fatalf("expected reaper to skip a non-idle pool, removed=%d", removed)
	}
	if _, ok := admin.GetPool(pool.ID); !ok {
		t.Fatalf("pool should still exist while its one session is open")
	}

	if err := admin.CloseSession(ctx, sid.String()); err != nil {
		t.Fatalf("unexpected error closing session: %v", err)
	}

	if removed := admin.ReapDeletionCandidates(ctx); removed != 1 {
		t.Fatalf("expected reaper to remove the now-idle pool, removed=%d", removed)
	}
	if _, ok := admin.GetPool(pool.ID); ok {
		t.Fatalf("expected pool to be gone after reaping")
	}
}

func TestReapDeletionCandidatesDropsAlreadyRemovedPool(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	pool, _, _ := admin.CreatePool(testPoolConfig())

	ctx := context.Background()
	if err := admin.DeletePool(ctx, pool.ID, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := admin.DeletePool(ctx, pool.ID, true); err != nil {
		t.Fatalf("unexpected error forcing deletion: %v", err)
	}

	if removed := admin.ReapDeletionCandidates(ctx); removed != 0 {
		t.Fatalf("expected no-op reap once the pool is already gone, removed=%d", removed)
	}
}

func TestScaleUpAddsBrowserScaleDownRemovesLeastBusy(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	pool, _, _ := admin.CreatePool(testPoolConfig())

	ctx := context.Background()
	if _, err := admin.ScaleUp(ctx, pool.ID); err != nil {
		t.Fatalf("unexpected error scaling up: %v", err)
	}
	if pool.BrowserCount() != 1 {
		t.Fatalf("expected one browser after scale-up, got %d", pool.BrowserCount())
	}

	if _, err := admin.ScaleDown(ctx, pool.ID); err != nil {
		t.Fatalf("unexpected error scaling down: %v", err)
	}
	if pool.BrowserCount() != 0 {
		t.Fatalf("expected zero browsers after scale-down, got %d", pool.BrowserCount())
	}
}

func TestScaleUpFailsAtCapacity(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	cfg := testPoolConfig()
	cfg.MaxBrowsers = 1
	pool, _, _ := admin.CreatePool(cfg)

	ctx := context.Background()
	if _, err := admin.ScaleUp(ctx, pool.ID); err != nil {
		t.Fatalf("unexpected error on first scale-up: %v", err)
	}
	if _, err := admin.ScaleUp(ctx, pool.ID); err == nil {
		t.Fatalf("expected pool_capacity_reached at max_browsers")
	}
}

func TestGetSessionMetricsPeeksWithoutPoppingSession(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	pool, _, _ := admin.CreatePool(testPoolConfig())

	ctx := context.Background()
	sid, err := admin.NewSession(ctx, pool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := admin.GetSessionMetrics(sid.String()); err != nil {
		t.Fatalf("unexpected error fetching session metrics: %v", err)
	}

	// peek must not have popped the session out of its cache
	if _, err := admin.ResolveAndPerform(ctx, sid.String(), driver.ActionClick, nil); err != nil {
		t.Fatalf("expected session to still be resolvable after peek, got: %v", err)
	}
}

func TestReturnPageContentsReplacesNonExtractionResult(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	pool, _, _ := admin.CreatePool(testPoolConfig())

	ctx := context.Background()
	sid, err := admin.NewSession(ctx, pool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := admin.ResolveAndPerform(ctx, sid.String(), driver.ActionClick, map[string]interface{}{
		"returnPageContents": true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map result, got %T", result)
	}
	if m["action"] != string(driver.ActionExtractPageContents) {
		t.Fatalf("expected result to come from a fresh extract_page_contents call, got action=%v", m["action"])
	}
}

func TestReturnPageContentsLeavesExtractionItselfAlone(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	pool, _, _ := admin.CreatePool(testPoolConfig())

	ctx := context.Background()
	sid, err := admin.NewSession(ctx, pool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := admin.ResolveAndPerform(ctx, sid.String(), driver.ActionExtractPageContents, map[string]interface{}{
		"returnPageContents": true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := result.(map[string]interface{})
	if m["action"] != string(driver.ActionExtractPageContents) {
		t.Fatalf("expected extract_page_contents result, got action=%v", m["action"])
	}
}

func TestPageIdsAreNumericStartingAtZero(t *testing.T) {
	admin := NewPoolAdmin(&fakeDriver{}, testLogger())
	pool, _, _ := admin.CreatePool(testPoolConfig())

	ctx := context.Background()
	sid1, err := admin.NewSession(ctx, pool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sid1.PageID != "0" {
		t.Fatalf("expected first page id to be %q, got %q", "0", sid1.PageID)
	}

	sid2, err := admin.NewSession(ctx, pool.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sid1.BrowserID == sid2.BrowserID && sid2.PageID != "1" {
		t.Fatalf("expected second page id on the same browser to be %q, got %q", "1", sid2.PageID)
	}
	for _, id := range []string{sid1.BrowserID, sid2.BrowserID} {
		for _, r := range id {
			if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'z') {
				t.Fatalf("browser id %q contains a character outside [0-9a-z]", id)
			}
		}
	}
}
