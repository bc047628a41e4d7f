// Package api provides the HTTP API for UK air quality data.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ukair/ukair/internal/airquality"
	"github.com/ukair/ukair/internal/api/handler"
	"github.com/ukair/ukair/internal/api/middleware"
	"github.com/ukair/ukair/internal/archive"
	"github.com/ukair/ukair/internal/auth"
	"github.com/ukair/ukair/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// RequireTLS rejects plain HTTP requests that did not come through a TLS proxy.
	RequireTLS bool

	// JWTService validates operator tokens. Admin routes are not mounted without it.
	JWTService *auth.JWTService

	Collector handler.Collector
	Locations []airquality.Location
	Archive   archive.Repository

	// LiveMaxDays caps ranges collected inside a request. Zero means no cap.
	LiveMaxDays int

	// Registry reports upstream provider health (optional).
	Registry *resilience.Registry

	// Database is pinged by readiness and status checks (optional).
	Database handler.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ukair-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.Database)
	readingsHandler := handler.NewReadingsHandler(cfg.Collector, cfg.Locations, cfg.LiveMaxDays)
	runsHandler := handler.NewRunsHandler(cfg.Collector, cfg.Locations, cfg.LiveMaxDays, cfg.Archive, cfg.Logger)

	// Create rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		r.With(standardRateLimit).Get("/locations", readingsHandler.ListLocations)

		// Live collections fan out to the upstream provider - strict rate limiting
		r.Group(func(r chi.Router) {
			r.Use(expensiveRateLimit)
			r.Get("/readings", readingsHandler.GetReadings)
			r.Get("/readings.csv", readingsHandler.GetReadingsCSV)
			r.Get("/charts/aqi", readingsHandler.GetAQIChart)
			r.Get("/map/markers", readingsHandler.GetMarkers)
		})

		// Run archive (public, read-only)
		if cfg.Archive != nil {
			r.Route("/runs", func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/", runsHandler.ListRuns)
				r.Route("/{runId}", func(r chi.Router) {
					r.Get("/", runsHandler.GetRun)
					r.Get("/readings.csv", runsHandler.GetRunCSV)
				})
			})
		}

		// Admin endpoints (operator token with runs:write scope)
		if cfg.JWTService != nil && cfg.Archive != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWTService, auth.ScopeRunsWrite))
				r.Use(middleware.RateLimitByOperator(middleware.AdminRateLimit)) // 10 req/min per operator
				r.Use(middleware.RequireJSON)
				r.Post("/runs", runsHandler.CreateRun)
			})
		}
	})

	return r
}
