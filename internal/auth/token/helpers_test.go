package token

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pysugar/launcher-accounts/internal/store"
)

var baseTime = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeRefresher struct {
	calls   atomic.Int32
	started chan struct{} // signalled once per call when non-nil
	release chan struct{} // calls block until closed when non-nil
	grant   *Grant
	err     error

	mu     sync.Mutex
	seen   []string
	ctxErr error
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, refreshToken)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	f.ctxErr = ctx.Err()
	f.mu.Unlock()
	return f.grant, f.err
}

type eventLog struct {
	mu    sync.Mutex
	kinds []string
}

func (e *eventLog) Record(_ context.Context, _ string, kind, _ string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kinds = append(e.kinds, kind)
}

func (e *eventLog) Kinds() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.kinds...)
}

func newTestManager(t *testing.T, r Refresher) (*Manager, *fakeClock, *eventLog) {
	t.Helper()
	clock := &fakeClock{t: baseTime}
	events := &eventLog{}
	gate := store.NewGate(store.NewCodec(filepath.Join(t.TempDir(), "accounts.json")))
	m := NewManager(gate, r, WithClock(clock.Now), WithEventRecorder(events))
	return m, clock, events
}
