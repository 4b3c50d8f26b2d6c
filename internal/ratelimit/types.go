package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Policy declares one named fixed-window rate limit. Queued requests are
// served oldest-first as window capacity frees.
type Policy struct {
	Name        string
	PermitLimit int
	Window      time.Duration
	QueueLimit  int
}

// Validate reports whether the policy may be installed.
func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("rate limit policy with empty name")
	}
	if p.PermitLimit < 1 {
		return fmt.Errorf("rate limit policy %q: permit limit must be >= 1", p.Name)
	}
	if p.Window <= 0 {
		return fmt.Errorf("rate limit policy %q: window must be positive", p.Name)
	}
	if p.QueueLimit < 0 {
		return fmt.Errorf("rate limit policy %q: queue limit must be >= 0", p.Name)
	}
	return nil
}

// MaxWait bounds how long a queued request may reasonably stay queued.
func (p Policy) MaxWait() time.Duration {
	depth := p.QueueLimit
	if depth < 1 {
		depth = 1
	}
	return p.Window * time.Duration(depth)
}

// Status classifies the outcome of an acquisition attempt.
type Status int

const (
	StatusAcquired Status = iota
	StatusQueued
	StatusRejected
)

// Reason explains a rejected lease.
type Reason string

// ReasonCapacity marks a rejection because both the window budget and the
// wait queue are exhausted.
const ReasonCapacity Reason = "capacity exhausted"

// Lease is the outcome of a single admission attempt. A queued lease must be
// awaited via Wait before the caller proceeds.
type Lease struct {
	Status   Status
	Position int // 1-based queue position at enqueue time, queued leases only
	Reason   Reason

	ready <-chan struct{}
	evict func() bool
}

// Wait blocks a queued lease until it is promoted to acquired or ctx fires.
// Acquired leases return immediately; rejected leases never become acquired.
func (l Lease) Wait(ctx context.Context) error {
	switch l.Status {
	case StatusAcquired:
		return nil
	case StatusRejected:
		return fmt.Errorf("rate limit rejected: %s", l.Reason)
	}
	select {
	case <-l.ready:
		return nil
	case <-ctx.Done():
		if l.evict == nil || l.evict() {
			return ctx.Err()
		}
		// Promotion raced the cancellation and won; the permit is ours.
		return nil
	}
}
