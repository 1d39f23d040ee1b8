package orchestrator

import (
	"context"
	"sync/atomic"

	"poolgateway/internal/driver"
)

// fakeProcess/fakePage/fakeDriver provide a deterministic, in-memory
// BrowserDriver for exercising pool/browser/session orchestration without
// a real browser engine.

type fakeProcess struct{ id string }

func (p *fakeProcess) ID() string { return p.id }

type fakePage struct{ id string }

func (p *fakePage) ID() string { return p.id }

type fakeDriver struct {
	counter    atomic.Int64
	launchErr  error
	performErr error
	closed     atomic.Int64
}

func (d *fakeDriver) Launch(ctx context.Context, cfg driver.LaunchConfig) (driver.ProcessHandle, error) {
	if d.launchErr != nil {
		return nil, d.launchErr
	}
	n := d.counter.Add(1)
	return &fakeProcess{id: "proc-" + itoa(n)}, nil
}

func (d *fakeDriver) NewPage(ctx context.Context, proc driver.ProcessHandle) (driver.PageHandle, error) {
	n := d.counter.Add(1)
	return &fakePage{id: "page-" + itoa(n)}, nil
}

func (d *fakeDriver) ClosePage(ctx context.Context, page driver.PageHandle) error { return nil }

func (d *fakeDriver) CloseProcess(ctx context.Context, proc driver.ProcessHandle) error {
	d.closed.Add(1)
	return nil
}

func (d *fakeDriver) Perform(ctx context.Context, page driver.PageHandle, action driver.ActionKind, params map[string]interface{}) (interface{}, error) {
	if d.performErr != nil {
		return nil, d.performErr
	}
	return map[string]interface{}{"ok": true, "action": string(action)}, nil
}

func (d *fakeDriver) Sample(proc driver.ProcessHandle) (float64, float64) { return 0, 0 }

func (d *fakeDriver) Healthy(proc driver.ProcessHandle) bool { return true }

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
