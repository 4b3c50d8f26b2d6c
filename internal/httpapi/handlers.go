package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rumshelf/rumshelf/internal/asset"
	"github.com/rumshelf/rumshelf/internal/config"
	"github.com/rumshelf/rumshelf/internal/filter"
	"github.com/rumshelf/rumshelf/internal/forecast"
	"github.com/rumshelf/rumshelf/internal/imaging"
	"github.com/rumshelf/rumshelf/internal/pipeline"
	"github.com/rumshelf/rumshelf/internal/result"
)

// imageCacheControl marks the streamed image as cacheable for a day.
const imageCacheControl = "public, max-age=86400"

// htmlCacheControl marks the html page as eligible for the external output
// cache.
const htmlCacheControl = "public, max-age=10"

// forecastDays is how many records the catalog endpoint returns.
const forecastDays = 5

// CatalogHandler serves the rate-limited forecast lookup.
type CatalogHandler struct {
	pipeline  *pipeline.Pipeline
	chain     filter.Chain
	forecasts *forecast.Source
}

// NewCatalogHandler constructs a CatalogHandler. The chain order is fixed
// here: audit first, then validation.
func NewCatalogHandler(p *pipeline.Pipeline, forecasts *forecast.Source, logger log.FieldLogger) *CatalogHandler {
	return &CatalogHandler{
		pipeline:  p,
		chain:     filter.NewChain(filter.NewAuditFilter(logger), filter.NewValidationFilter()),
		forecasts: forecasts,
	}
}

// Get handles GET /:collection/:key.
func (h *CatalogHandler) Get(c *gin.Context) {
	args := bindArgs(c)
	h.pipeline.Serve(c.Request.Context(), c.Writer, args, config.DefaultPolicyName, h.chain, h.lookup)
}

func (h *CatalogHandler) lookup(fc *filter.Context) (result.Result, error) {
	return result.Sequence{Items: h.forecasts.Next(forecastDays)}, nil
}

// ImageHandler streams the downscaled catalog image. Not rate limited.
type ImageHandler struct {
	pipeline *pipeline.Pipeline
	assets   asset.Store
	engine   *imaging.Engine
}

// NewImageHandler constructs an ImageHandler.
func NewImageHandler(p *pipeline.Pipeline, assets asset.Store, engine *imaging.Engine) *ImageHandler {
	return &ImageHandler{pipeline: p, assets: assets, engine: engine}
}

// Get handles GET /:collection/:key/image.
func (h *ImageHandler) Get(c *gin.Context) {
	args := bindArgs(c)
	h.pipeline.Serve(c.Request.Context(), c.Writer, args, "", filter.NewChain(), h.stream)
}

// stream probes the asset before the response commits, so a missing key is a
// clean 404 with no body bytes. Decode failures discovered mid-encode abort
// the already-streaming body; the contract does not guarantee atomicity.
func (h *ImageHandler) stream(fc *filter.Context) (result.Result, error) {
	probe, errOpen := h.assets.Open(fc.Ctx(), fc.Args.Key)
	if errOpen != nil {
		return nil, errOpen
	}
	_ = probe.Close()

	key := fc.Args.Key
	return result.Stream{
		ContentType: "image/jpeg",
		Headers:     map[string]string{"Cache-Control": imageCacheControl},
		WriteBody: func(ctx context.Context, sink io.Writer) error {
			return h.engine.Transform(ctx, key, sink)
		},
	}, nil
}

// HTMLHandler serves the fixed page with the current server time.
type HTMLHandler struct {
	pipeline *pipeline.Pipeline
	nowFn    func() time.Time
}

// NewHTMLHandler constructs an HTMLHandler with default dependencies when
// nil.
func NewHTMLHandler(p *pipeline.Pipeline, nowFn func() time.Time) *HTMLHandler {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &HTMLHandler{pipeline: p, nowFn: nowFn}
}

// Get handles GET /html. Cache-Control is set before the body so the
// external output cache collaborator can pick the response up.
func (h *HTMLHandler) Get(c *gin.Context) {
	c.Writer.Header().Set("Cache-Control", htmlCacheControl)
	args := bindArgs(c)
	h.pipeline.Serve(c.Request.Context(), c.Writer, args, "", filter.NewChain(), h.page)
}

func (h *HTMLHandler) page(_ *filter.Context) (result.Result, error) {
	stamp := h.nowFn().UTC().Format(time.RFC3339)
	body := fmt.Sprintf(
		"<!DOCTYPE html>\n<html>\n<head><title>rumshelf</title></head>\n<body>\n<h1>rumshelf</h1>\n<p>Server time: %s</p>\n</body>\n</html>\n",
		stamp,
	)
	return result.TextString("text/html; charset=utf-8", body), nil
}

// HealthHandler answers the liveness probe.
type HealthHandler struct{}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Healthz handles GET /healthz.
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bindArgs populates the typed per-request binding once, at request entry.
func bindArgs(c *gin.Context) filter.Binding {
	return filter.Binding{
		RequestID:  uuid.NewString(),
		Collection: c.Param("collection"),
		Key:        c.Param("key"),
	}
}
