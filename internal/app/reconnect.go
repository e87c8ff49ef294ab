package app

import (
	"sync"
	"time"
)

// retryTimer arms a single-shot reconnection attempt. Re-arming replaces any
// pending attempt; there is never more than one in flight.
type retryTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

// Schedule arms fn to run once after d, replacing a pending timer.
func (t *retryTimer) Schedule(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	var tm *time.Timer
	tm = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.timer == tm {
			t.timer = nil
		}
		t.mu.Unlock()
		fn()
	})
	t.timer = tm
}

// Cancel disarms a pending attempt. Safe to call when nothing is armed.
func (t *retryTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Armed reports whether an attempt is currently scheduled.
func (t *retryTimer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
