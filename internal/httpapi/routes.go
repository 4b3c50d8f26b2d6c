// Package httpapi registers the HTTP surface and adapts gin requests onto
// the request pipeline.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/rumshelf/rumshelf/internal/asset"
	"github.com/rumshelf/rumshelf/internal/forecast"
	"github.com/rumshelf/rumshelf/internal/imaging"
	"github.com/rumshelf/rumshelf/internal/pipeline"
)

// Deps carries everything the routes need.
type Deps struct {
	Limiter   pipeline.Limiter
	Assets    asset.Store
	Engine    *imaging.Engine
	Forecasts *forecast.Source
	Logger    log.FieldLogger
	NowFn     func() time.Time
}

// RegisterRoutes wires handlers, middleware, and routes onto the engine.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = log.StandardLogger()
	}
	p := pipeline.New(deps.Limiter, deps.Logger)

	healthHandler := NewHealthHandler()
	r.GET("/healthz", healthHandler.Healthz)

	htmlHandler := NewHTMLHandler(p, deps.NowFn)
	r.GET("/html", htmlHandler.Get)

	catalogHandler := NewCatalogHandler(p, deps.Forecasts, deps.Logger)
	r.GET("/:collection/:key", catalogHandler.Get)

	imageHandler := NewImageHandler(p, deps.Assets, deps.Engine)
	r.GET("/:collection/:key/image", imageHandler.Get)
}
