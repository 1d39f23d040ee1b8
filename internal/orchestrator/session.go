package orchestrator

import (
	"context"
	"time"

	"poolgateway/internal/driver"
	"poolgateway/internal/poolerr"
)

// PageSession wraps one browser tab and dispatches the closed set of
// supported actions against it through a BrowserDriver. Mutual exclusion
// across concurrent requests for the same session is NOT a lock held here
// — it is enforced by the owning LeasedBrowser's pop/put discipline around
// ResolveAndPerform (see browser.go); a PageSession in isolation is not
// itself safe for concurrent use.
type PageSession struct {
	ID        string
	PoolID    string
	BrowserID string

	page driver.PageHandle
	drv  driver.BrowserDriver

	CreatedAt time.Time
	LastUsed  time.Time
}

func newPageSession(id, poolID, browserID string, page driver.PageHandle, drv driver.BrowserDriver) *PageSession {
	now := time.Now()
	return &PageSession{
		ID:        id,
		PoolID:    poolID,
		BrowserID: browserID,
		page:      page,
		drv:       drv,
		CreatedAt: now,
		LastUsed:  now,
	}
}

// PerformAction executes one action against the page, honoring the
// request deadline via ctx. A failure after ctx is done becomes a timeout
// error; a driver error that is already a *poolerr.Error is returned
// unchanged; any other driver error is wrapped as action_failure with the
// action kind as its message.
//
// returnPageContents is a cross-cutting request option: when true and the
// dispatched action is not itself extract_page_contents, the result is
// replaced by a fresh extraction after the requested action completes.
func (s *PageSession) PerformAction(ctx context.Context, action driver.ActionKind, params map[string]interface{}) (interface{}, error) {
	result, err := s.drv.Perform(ctx, s.page, action, params)
	s.LastUsed = time.Now()
	if err != nil {
		if ctx.Err() != nil {
			return nil, poolerr.Wrap(poolerr.KindTimeout, string(action), ctx.Err())
		}
		if _, ok := poolerr.As(err); ok {
			return nil, err
		}
		return nil, poolerr.Wrap(poolerr.KindActionFailure, string(action), err)
	}

	if action != driver.ActionExtractPageContents && wantsPageContents(params) {
		if extracted, extractErr := s.drv.Perform(ctx, s.page, driver.ActionExtractPageContents, nil); extractErr == nil {
			result = extracted
		}
	}

	return result, nil
}

func wantsPageContents(params map[string]interface{}) bool {
	v, ok := params["returnPageContents"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Close releases the underlying page.
func (s *PageSession) Close(ctx context.Context) error {
	return s.drv.ClosePage(ctx, s.page)
}
