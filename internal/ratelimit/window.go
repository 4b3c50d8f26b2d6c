package ratelimit

import (
	"sync"
	"time"
)

// waiter is one queued admission attempt. ready is closed exactly once, on
// promotion.
type waiter struct {
	ready chan struct{}
}

// window is the mutable fixed-window state for one policy. It is the only
// state shared across concurrent requests; every access goes through mu.
type window struct {
	policy Policy
	nowFn  func() time.Time

	mu          sync.Mutex
	started     bool
	windowStart time.Time
	permitsUsed int
	queue       []*waiter
	timer       *time.Timer
}

func newWindow(policy Policy, nowFn func() time.Time) *window {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &window{policy: policy, nowFn: nowFn}
}

// acquire admits, queues, or rejects one request against the current window.
func (w *window) acquire() Lease {
	now := w.nowFn()

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		w.started = true
		w.windowStart = now
	}
	w.rollLocked(now)

	if w.permitsUsed < w.policy.PermitLimit {
		w.permitsUsed++
		return Lease{Status: StatusAcquired}
	}
	if len(w.queue) < w.policy.QueueLimit {
		wt := &waiter{ready: make(chan struct{})}
		w.queue = append(w.queue, wt)
		w.scheduleRollLocked(now)
		return Lease{
			Status:   StatusQueued,
			Position: len(w.queue),
			ready:    wt.ready,
			evict:    func() bool { return w.evict(wt) },
		}
	}
	return Lease{Status: StatusRejected, Reason: ReasonCapacity}
}

// rollLocked resets an elapsed window. Queued waiters are promoted
// oldest-first before the caller may claim any permit of the fresh window.
func (w *window) rollLocked(now time.Time) {
	if now.Sub(w.windowStart) < w.policy.Window {
		return
	}
	w.windowStart = now
	w.permitsUsed = 0
	for len(w.queue) > 0 && w.permitsUsed < w.policy.PermitLimit {
		wt := w.queue[0]
		w.queue = w.queue[1:]
		w.permitsUsed++
		close(wt.ready)
	}
}

// scheduleRollLocked arms a timer for the window boundary so queued waiters
// are promoted even when no further request triggers a lazy roll.
func (w *window) scheduleRollLocked(now time.Time) {
	if w.timer != nil {
		return
	}
	wait := w.windowStart.Add(w.policy.Window).Sub(now)
	if wait < 0 {
		wait = 0
	}
	w.timer = time.AfterFunc(wait, w.onBoundary)
}

func (w *window) onBoundary() {
	now := w.nowFn()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timer = nil
	w.rollLocked(now)
	if len(w.queue) > 0 {
		w.scheduleRollLocked(now)
	}
}

// evict removes a waiter whose caller gave up. Reports false when the waiter
// was already promoted.
func (w *window) evict(wt *waiter) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, queued := range w.queue {
		if queued == wt {
			w.queue = append(w.queue[:i], w.queue[i+1:]...)
			return true
		}
	}
	return false
}
