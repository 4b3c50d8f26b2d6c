package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rumshelf/rumshelf/internal/asset"
	"github.com/rumshelf/rumshelf/internal/filter"
	"github.com/rumshelf/rumshelf/internal/ratelimit"
	"github.com/rumshelf/rumshelf/internal/result"
)

type stubLimiter struct {
	lease ratelimit.Lease
	err   error
	calls int
}

func (s *stubLimiter) Acquire(_ context.Context, _, _ string) (ratelimit.Lease, error) {
	s.calls++
	return s.lease, s.err
}

func (s *stubLimiter) Policy(string) (ratelimit.Policy, bool) {
	return ratelimit.Policy{Name: "fixed", PermitLimit: 1, Window: 20 * time.Millisecond, QueueLimit: 1}, true
}

func silentLogger() log.FieldLogger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func okHandler(calls *int) filter.Next {
	return func(fc *filter.Context) (result.Result, error) {
		*calls++
		return result.TextString("text/plain", "ok"), nil
	}
}

func TestServeRejectedNeverReachesChain(t *testing.T) {
	limiter := &stubLimiter{lease: ratelimit.Lease{Status: ratelimit.StatusRejected, Reason: ratelimit.ReasonCapacity}}
	p := New(limiter, silentLogger())

	audits := 0
	chain := filter.NewChain(countingFilterOver(&audits))
	handlerCalls := 0

	w := httptest.NewRecorder()
	p.Serve(context.Background(), w, filter.Binding{Key: "x"}, "fixed", chain, okHandler(&handlerCalls))

	if w.Code != 503 {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if audits != 0 || handlerCalls != 0 {
		t.Fatalf("rejected request must not run filters or handler (%d/%d)", audits, handlerCalls)
	}
}

func TestServeAcquiredRunsHandler(t *testing.T) {
	limiter := &stubLimiter{lease: ratelimit.Lease{Status: ratelimit.StatusAcquired}}
	p := New(limiter, silentLogger())

	handlerCalls := 0
	w := httptest.NewRecorder()
	p.Serve(context.Background(), w, filter.Binding{Key: "x"}, "fixed", filter.NewChain(), okHandler(&handlerCalls))

	if w.Code != 200 || handlerCalls != 1 {
		t.Fatalf("expected 200 with one handler call, got %d/%d", w.Code, handlerCalls)
	}
	if w.Body.String() != "ok" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestServeQueuedWaitExpiry(t *testing.T) {
	// A real window with no capacity and nothing rolling it: the queued lease
	// never promotes within the bounded wait, so the request is rejected.
	policies := map[string]ratelimit.Policy{
		"fixed": {PermitLimit: 1, Window: 20 * time.Millisecond, QueueLimit: 1},
	}
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m, errManager := ratelimit.NewManager(policies, ratelimit.RedisSettings{}, func() time.Time { return frozen }, nil)
	if errManager != nil {
		t.Fatalf("manager: %v", errManager)
	}
	if lease, _ := m.Acquire(context.Background(), "fixed", "x"); lease.Status != ratelimit.StatusAcquired {
		t.Fatalf("expected first acquire to pass")
	}

	p := New(m, silentLogger())
	handlerCalls := 0
	w := httptest.NewRecorder()
	p.Serve(context.Background(), w, filter.Binding{Key: "x"}, "fixed", filter.NewChain(), okHandler(&handlerCalls))

	if w.Code != 503 {
		t.Fatalf("expected 503 after wait expiry, got %d", w.Code)
	}
	if handlerCalls != 0 {
		t.Fatalf("expired wait must not run handler")
	}
}

func TestServeNotFoundMapsTo404(t *testing.T) {
	p := New(nil, silentLogger())
	w := httptest.NewRecorder()
	p.Serve(context.Background(), w, filter.Binding{Key: "ghost"}, "", filter.NewChain(), func(fc *filter.Context) (result.Result, error) {
		return nil, fmt.Errorf("load: %w", asset.ErrNotFound)
	})
	if w.Code != 404 {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestServeCancelledWritesNothing(t *testing.T) {
	p := New(nil, silentLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handlerCalls := 0
	w := httptest.NewRecorder()
	p.Serve(ctx, w, filter.Binding{Key: "x"}, "", filter.NewChain(), okHandler(&handlerCalls))

	if handlerCalls != 0 {
		t.Fatalf("cancelled request must not run handler")
	}
	if w.Body.Len() != 0 {
		t.Fatalf("cancelled request must not write a body, wrote %q", w.Body.String())
	}
}

// countingFilter increments its counter and delegates.
type countingFilter func(*filter.Context, filter.Next) (result.Result, error)

func (f countingFilter) Run(fc *filter.Context, next filter.Next) (result.Result, error) {
	return f(fc, next)
}

func countingFilterOver(count *int) countingFilter {
	return func(fc *filter.Context, next filter.Next) (result.Result, error) {
		*count++
		return next(fc)
	}
}
