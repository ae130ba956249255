// Package api provides the HTTP API for the license server.
package api

import (
	"github.com/CallismartLtd/smart-license-server-sub003/internal/api/handlers"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/api/middleware"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/db"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/license"
	"github.com/CallismartLtd/smart-license-server-sub003/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Config holds configuration for the API router.
type Config struct {
	// AdminAPIKey guards the operator endpoints. Empty disables them.
	AdminAPIKey string
	// RateLimitRequests is the number of requests allowed per period.
	RateLimitRequests int64
	// RateLimitPeriod is the duration string for rate limiting (e.g. "1m", "1h").
	RateLimitPeriod string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		RateLimitRequests: 120,
		RateLimitPeriod:   "1m",
	}
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies. m may be nil.
func NewRouter(cfg Config, database *db.DB, service *license.Service, m *metrics.Metrics, logger zerolog.Logger) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(rateLimiter)

	// Health check endpoint (no auth required)
	healthHandler := handlers.NewHealthHandler(database, logger)
	healthHandler.RegisterPublicRoutes(r.Engine)

	// Prometheus metrics endpoint (no auth required)
	if m != nil {
		r.Engine.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// Site-facing protocol routes. Authentication happens inside the
	// license service via the per-domain secret handshake.
	apiV1 := r.Engine.Group("/api/v1")

	activationHandler := handlers.NewActivationHandler(service, m, logger)
	activationHandler.RegisterRoutes(apiV1)

	downloadsHandler := handlers.NewDownloadsHandler(service, m, logger)
	downloadsHandler.RegisterRoutes(apiV1)

	// Operator routes (API key required)
	admin := r.Engine.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.AdminAPIKey, logger))

	licensesHandler := handlers.NewLicensesHandler(service, m, logger)
	licensesHandler.RegisterRoutes(admin)

	appsHandler := handlers.NewAppsHandler(database, logger)
	appsHandler.RegisterRoutes(admin)

	r.logger.Info().Msg("API router initialized")
	return r, nil
}
