package filter

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/rumshelf/rumshelf/internal/result"
)

// AuditFilter records which key was requested, then always delegates. The
// logging capability is injected at construction.
type AuditFilter struct {
	logger log.FieldLogger
}

// NewAuditFilter constructs an AuditFilter over the given logger.
func NewAuditFilter(logger log.FieldLogger) *AuditFilter {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &AuditFilter{logger: logger}
}

// Run logs the bound key and delegates to the rest of the chain.
func (f *AuditFilter) Run(fc *Context, next Next) (result.Result, error) {
	f.logger.WithFields(log.Fields{
		"request_id": fc.Args.RequestID,
		"collection": fc.Args.Collection,
		"key":        fc.Args.Key,
	}).Info("request audited")
	return next(fc)
}

// rejectedKey is the one catalog key the validation filter refuses to serve.
const rejectedKey = "bozkov"

// rejectedKeyMessage is the exact user-visible refusal.
const rejectedKeyMessage = "Bozkov is not a rum"

// ValidationFilter inspects the bound key and short-circuits the chain with
// a 400 result for the rejected literal. Every other key delegates.
type ValidationFilter struct{}

// NewValidationFilter constructs a ValidationFilter.
func NewValidationFilter() *ValidationFilter {
	return &ValidationFilter{}
}

// Run short-circuits for the rejected key, otherwise delegates unchanged.
func (f *ValidationFilter) Run(fc *Context, next Next) (result.Result, error) {
	if fc.Args.Key == rejectedKey {
		return result.NewError(http.StatusBadRequest, rejectedKeyMessage), nil
	}
	return next(fc)
}
