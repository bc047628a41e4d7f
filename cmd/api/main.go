// Package main provides the entrypoint for the UK air quality API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ukair/ukair/internal/airquality"
	"github.com/ukair/ukair/internal/airquality/waqi"
	"github.com/ukair/ukair/internal/api"
	"github.com/ukair/ukair/internal/api/handler"
	"github.com/ukair/ukair/internal/api/middleware"
	"github.com/ukair/ukair/internal/archive"
	"github.com/ukair/ukair/internal/auth"
	"github.com/ukair/ukair/internal/config"
	"github.com/ukair/ukair/internal/database"
	"github.com/ukair/ukair/internal/provider/resilience"
	"github.com/ukair/ukair/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "ukair-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting UK air quality API")

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	// Upstream provider and collection pipeline
	registry := resilience.NewRegistry()
	fetcher := waqi.NewClient(waqi.ClientConfig{
		Token:    cfg.WAQI.Token,
		BaseURL:  cfg.WAQI.BaseURL,
		Timeout:  cfg.WAQI.Timeout,
		Registry: registry,
	})
	collector := airquality.NewCollector(airquality.CollectorConfig{
		Fetcher:     fetcher,
		Logger:      log,
		Concurrency: cfg.Collection.Concurrency,
		MaxDays:     cfg.Collection.LiveMaxDays,
		Metrics:     providerMetrics,
	})
	log.Info().
		Int("locations", len(cfg.Collection.Locations)).
		Int("concurrency", cfg.Collection.Concurrency).
		Int("live_max_days", cfg.Collection.LiveMaxDays).
		Msg("collector initialized")

	// Run archive: Postgres when enabled, otherwise in memory
	var (
		runs     archive.Repository = archive.NewInMemoryRepository()
		dbPinger handler.Pinger
	)
	if cfg.DatabaseEnabled {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")

		if cfg.Database.AutoMigrate {
			if _, err := database.Migrate(cfg.Database, archive.Migrations, archive.MigrationsDir, log); err != nil {
				log.Fatal().Err(err).Msg("failed to migrate archive schema")
			}
		}
		runs = archive.NewPostgresRepository(pool)
		dbPinger = pool
	} else {
		log.Warn().Msg("database disabled - archived runs are kept in memory")
	}

	// Operator tokens for admin endpoints
	var jwtService *auth.JWTService
	if cfg.AdminEnabled() {
		jwtService = auth.NewJWTService(auth.JWTConfig{
			SigningKey: cfg.JWT.SigningKey,
			Issuer:     cfg.JWT.Issuer,
			Audience:   cfg.JWT.Audience,
		})
		log.Info().Msg("admin endpoints enabled")
	} else {
		log.Warn().Msg("JWT_SIGNING_KEY not set - admin endpoints disabled")
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		RequireTLS:  cfg.RequireTLS,
		JWTService:  jwtService,
		Collector:   collector,
		Locations:   cfg.Collection.Locations,
		LiveMaxDays: cfg.Collection.LiveMaxDays,
		Archive:     runs,
		Registry:    registry,
		Database:    dbPinger,
	})

	// Create HTTP server. The write timeout covers the longest live
	// collection the day limit admits.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LiveBudget(),
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
