package filter

import (
	"context"
	"io"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/rumshelf/rumshelf/internal/result"
)

func silentLogger() log.FieldLogger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestChainValidationShortCircuits(t *testing.T) {
	handlerCalls := 0
	handler := func(fc *Context) (result.Result, error) {
		handlerCalls++
		return result.TextString("text/plain", "ok"), nil
	}

	chain := NewChain(NewAuditFilter(silentLogger()), NewValidationFilter())
	fc := NewContext(context.Background(), Binding{Collection: "rum", Key: "bozkov"})

	res, err := chain.Execute(fc, handler)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	errRes, ok := res.(result.Error)
	if !ok {
		t.Fatalf("expected error result, got %T", res)
	}
	if errRes.Status != 400 || errRes.Message != "Bozkov is not a rum" {
		t.Fatalf("unexpected rejection: %d %q", errRes.Status, errRes.Message)
	}
	if handlerCalls != 0 {
		t.Fatalf("handler must not run for rejected key, ran %d times", handlerCalls)
	}
}

func TestChainDelegatesInOrder(t *testing.T) {
	var order []string
	first := filterFunc(func(fc *Context, next Next) (result.Result, error) {
		order = append(order, "first")
		return next(fc)
	})
	second := filterFunc(func(fc *Context, next Next) (result.Result, error) {
		order = append(order, "second")
		return next(fc)
	})
	want := result.TextString("text/plain", "ok")
	handler := func(fc *Context) (result.Result, error) {
		order = append(order, "handler")
		return want, nil
	}

	chain := NewChain(first, second)
	res, err := chain.Execute(NewContext(context.Background(), Binding{Key: "tuzemak"}), handler)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got, ok := res.(result.Text); !ok || string(got.Body) != "ok" {
		t.Fatalf("expected handler result unchanged, got %#v", res)
	}
	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "handler" {
		t.Fatalf("unexpected execution order %v", order)
	}
}

func TestChainAuditRunsOnceThenHandler(t *testing.T) {
	audits := 0
	counting := filterFunc(func(fc *Context, next Next) (result.Result, error) {
		audits++
		return next(fc)
	})
	handlerCalls := 0
	handler := func(fc *Context) (result.Result, error) {
		handlerCalls++
		return result.TextString("text/plain", "ok"), nil
	}

	chain := NewChain(counting, NewValidationFilter())
	if _, err := chain.Execute(NewContext(context.Background(), Binding{Key: "heffron"}), handler); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if audits != 1 || handlerCalls != 1 {
		t.Fatalf("expected one audit and one handler call, got %d/%d", audits, handlerCalls)
	}
}

func TestChainCancellationUnwinds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	reached := false
	cancelling := filterFunc(func(fc *Context, next Next) (result.Result, error) {
		cancel()
		return next(fc)
	})
	handler := func(fc *Context) (result.Result, error) {
		reached = true
		return result.TextString("text/plain", "ok"), nil
	}

	chain := NewChain(cancelling, NewValidationFilter())
	res, err := chain.Execute(NewContext(ctx, Binding{Key: "key"}), handler)
	if err == nil {
		t.Fatalf("expected cancellation error, got result %#v", res)
	}
	if res != nil {
		t.Fatalf("cancelled chain must not produce a result, got %#v", res)
	}
	if reached {
		t.Fatalf("handler must not run after cancellation")
	}
}

// filterFunc adapts a function to the Filter interface for tests.
type filterFunc func(*Context, Next) (result.Result, error)

func (f filterFunc) Run(fc *Context, next Next) (result.Result, error) {
	return f(fc, next)
}
