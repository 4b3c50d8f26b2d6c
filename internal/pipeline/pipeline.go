// Package pipeline runs one request through gate, chain, handler, and
// renderer in sequence.
package pipeline

import (
	"context"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/rumshelf/rumshelf/internal/asset"
	"github.com/rumshelf/rumshelf/internal/filter"
	"github.com/rumshelf/rumshelf/internal/imaging"
	"github.com/rumshelf/rumshelf/internal/ratelimit"
	"github.com/rumshelf/rumshelf/internal/result"
)

// rejectionMessage is the body for both queue-full and expired-wait
// rejections; one consistent status and reason covers both.
const rejectionMessage = "rate limit capacity exhausted"

// Limiter gates admission by policy name.
type Limiter interface {
	Acquire(ctx context.Context, policyName, key string) (ratelimit.Lease, error)
	Policy(name string) (ratelimit.Policy, bool)
}

// Pipeline orchestrates one route: optional rate limit gate, filter chain,
// terminal handler, result rendering.
type Pipeline struct {
	limiter Limiter
	logger  log.FieldLogger
}

// New constructs a Pipeline. The limiter may be nil when no route uses a
// policy.
func New(limiter Limiter, logger log.FieldLogger) *Pipeline {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Pipeline{limiter: limiter, logger: logger}
}

// Serve runs one request. policyName "" skips the gate. A request rejected
// at the gate never reaches a filter or the handler, so no audit entry is
// produced for it. Cancellation at any stage ends the request without
// finalizing a response.
func (p *Pipeline) Serve(ctx context.Context, w http.ResponseWriter, args filter.Binding, policyName string, chain filter.Chain, handler filter.Next) {
	if policyName != "" {
		if !p.gate(ctx, w, args, policyName) {
			return
		}
	}

	fc := filter.NewContext(ctx, args)
	res, errChain := chain.Execute(fc, handler)
	if errChain != nil {
		p.fail(ctx, w, args, errChain)
		return
	}
	if errRender := result.Render(ctx, w, res); errRender != nil && !isCancellation(ctx, errRender) {
		// Headers are out by now; a failed body can only be aborted, not
		// re-statused.
		entry := p.logger.WithError(errRender).WithField("request_id", args.RequestID)
		var decodeErr *imaging.DecodeError
		if errors.As(errRender, &decodeErr) {
			entry.Error("asset decode failed, response aborted")
		} else {
			entry.Error("response write failed")
		}
	}
}

// gate admits the request against the policy, waiting out a queued lease up
// to the policy's bounded wait. Reports whether the request may proceed.
func (p *Pipeline) gate(ctx context.Context, w http.ResponseWriter, args filter.Binding, policyName string) bool {
	lease, errAcquire := p.limiter.Acquire(ctx, policyName, args.Key)
	if errAcquire != nil {
		// Unknown policy names are caught at startup; reaching this is a bug.
		p.logger.WithError(errAcquire).Error("rate limit acquire failed")
		p.render(ctx, w, result.NewError(http.StatusInternalServerError, "server misconfigured"))
		return false
	}

	switch lease.Status {
	case ratelimit.StatusAcquired:
		return true
	case ratelimit.StatusRejected:
		p.render(ctx, w, result.NewError(http.StatusServiceUnavailable, rejectionMessage))
		return false
	}

	policy, _ := p.limiter.Policy(policyName)
	waitCtx, cancel := context.WithTimeout(ctx, policy.MaxWait())
	defer cancel()
	if errWait := lease.Wait(waitCtx); errWait != nil {
		if ctx.Err() != nil {
			// Client went away while queued; the slot is already released.
			return false
		}
		p.render(ctx, w, result.NewError(http.StatusServiceUnavailable, rejectionMessage))
		return false
	}
	return true
}

// fail maps a chain or handler error onto the response. Cancellation is
// swallowed; everything else renders a deterministic status with a short
// reason and no internals.
func (p *Pipeline) fail(ctx context.Context, w http.ResponseWriter, args filter.Binding, err error) {
	if isCancellation(ctx, err) {
		return
	}
	entry := p.logger.WithError(err).WithField("request_id", args.RequestID)
	var decodeErr *imaging.DecodeError
	switch {
	case errors.Is(err, asset.ErrNotFound):
		entry.Info("asset not found")
		p.render(ctx, w, result.NewError(http.StatusNotFound, "asset not found"))
	case errors.As(err, &decodeErr):
		entry.Error("asset decode failed")
		p.render(ctx, w, result.NewError(http.StatusInternalServerError, "asset unreadable"))
	default:
		entry.Error("request failed")
		p.render(ctx, w, result.NewError(http.StatusInternalServerError, "internal error"))
	}
}

func (p *Pipeline) render(ctx context.Context, w http.ResponseWriter, res result.Result) {
	if errRender := result.Render(ctx, w, res); errRender != nil && !isCancellation(ctx, errRender) {
		p.logger.WithError(errRender).Error("response write failed")
	}
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
