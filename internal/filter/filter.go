// Package filter implements the ordered request interceptor chain. Filters
// run outermost-first around a terminal handler; any filter may short-circuit
// by producing a result instead of delegating.
package filter

import (
	"context"

	"github.com/rumshelf/rumshelf/internal/result"
)

// Binding is the statically typed argument structure populated once per
// request. Filters declare which fields they read; there is no dynamic
// by-position extraction.
type Binding struct {
	RequestID  string
	Collection string
	Key        string
}

// Context carries one request through the chain. It is owned by the request
// that created it and needs no synchronization.
type Context struct {
	ctx  context.Context
	Args Binding
}

// NewContext builds a filter context over the request's cancellation signal.
func NewContext(ctx context.Context, args Binding) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{ctx: ctx, Args: args}
}

// Ctx exposes the request's cancellation signal.
func (c *Context) Ctx() context.Context {
	return c.ctx
}

// Next is the continuation representing the rest of the chain.
type Next func(*Context) (result.Result, error)

// Filter inspects the context and either produces a result (short-circuit)
// or delegates to next, optionally post-processing its outcome.
type Filter interface {
	Run(fc *Context, next Next) (result.Result, error)
}

// Chain is an ordered filter composition. Order is fixed at construction and
// identical for every request.
type Chain struct {
	filters []Filter
}

// NewChain composes filters in registration order, outermost first.
func NewChain(filters ...Filter) Chain {
	return Chain{filters: append([]Filter(nil), filters...)}
}

// Execute runs the chain around handler. The terminal handler runs only if
// every filter delegated. A fired cancellation signal unwinds the chain with
// the context error; no result is produced for a cancelled request.
func (c Chain) Execute(fc *Context, handler Next) (result.Result, error) {
	next := func(fc *Context) (result.Result, error) {
		if errCtx := fc.Ctx().Err(); errCtx != nil {
			return nil, errCtx
		}
		return handler(fc)
	}
	for i := len(c.filters) - 1; i >= 0; i-- {
		f := c.filters[i]
		inner := next
		next = func(fc *Context) (result.Result, error) {
			if errCtx := fc.Ctx().Err(); errCtx != nil {
				return nil, errCtx
			}
			return f.Run(fc, inner)
		}
	}
	return next(fc)
}
