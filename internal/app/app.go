// Package app wires configuration into a running server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/rumshelf/rumshelf/internal/asset"
	"github.com/rumshelf/rumshelf/internal/config"
	"github.com/rumshelf/rumshelf/internal/forecast"
	"github.com/rumshelf/rumshelf/internal/httpapi"
	"github.com/rumshelf/rumshelf/internal/imaging"
	"github.com/rumshelf/rumshelf/internal/ratelimit"
)

// RunServer validates the configuration, wires the pipeline, and serves
// until ctx is cancelled. Configuration errors return before any traffic is
// accepted.
func RunServer(ctx context.Context, cfg config.Config) error {
	if errValidate := cfg.Validate(); errValidate != nil {
		return errValidate
	}

	limiter, errLimiter := ratelimit.NewManager(
		policiesFromConfig(cfg.RateLimit),
		ratelimit.RedisSettings{
			Enabled:  cfg.Redis.Enabled,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		},
		nil, nil,
	)
	if errLimiter != nil {
		return errLimiter
	}

	store := asset.NewDir(cfg.Assets.Dir)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	httpapi.RegisterRoutes(engine, httpapi.Deps{
		Limiter:   limiter,
		Assets:    store,
		Engine:    imaging.NewEngine(store, cfg.Assets.DownscaleFactor),
		Forecasts: forecast.NewSource(nil, nil),
		Logger:    log.StandardLogger(),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.WithField("port", cfg.Server.Port).Info("serving")
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

func policiesFromConfig(policies map[string]config.PolicyConfig) map[string]ratelimit.Policy {
	out := make(map[string]ratelimit.Policy, len(policies))
	for name, p := range policies {
		out[name] = ratelimit.Policy{
			Name:        name,
			PermitLimit: p.PermitLimit,
			Window:      p.Window,
			QueueLimit:  p.QueueLimit,
		}
	}
	return out
}
