// Package main provides the entrypoint for the collection worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ukair/ukair/internal/airquality"
	"github.com/ukair/ukair/internal/airquality/waqi"
	"github.com/ukair/ukair/internal/archive"
	"github.com/ukair/ukair/internal/config"
	"github.com/ukair/ukair/internal/database"
	"github.com/ukair/ukair/internal/export"
	"github.com/ukair/ukair/internal/provider/resilience"
	"github.com/ukair/ukair/internal/telemetry"
	"github.com/ukair/ukair/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "ukair-worker"

	once := flag.Bool("once", false, "run a single collection and exit")
	start := flag.String("start", "", "first date to collect (YYYY-MM-DD); empty for current conditions")
	end := flag.String("end", "", "last date to collect (YYYY-MM-DD)")
	out := flag.String("out", "", "write the collected readings as CSV to this file ('-' for stdout)")
	flag.Parse()

	// Logs go to stderr so CSV on stdout stays clean
	log := zerolog.New(os.Stderr).
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
		Bool("once", *once).
		Msg("starting collection worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	registry := resilience.NewRegistry()
	collector := airquality.NewCollector(airquality.CollectorConfig{
		Fetcher: waqi.NewClient(waqi.ClientConfig{
			Token:    cfg.WAQI.Token,
			BaseURL:  cfg.WAQI.BaseURL,
			Timeout:  cfg.WAQI.Timeout,
			Registry: registry,
		}),
		Logger:      log,
		Concurrency: cfg.Collection.Concurrency,
		MaxDays:     cfg.Collection.MaxDays,
		Metrics:     providerMetrics,
	})

	// Archive runs to Postgres when enabled
	var runs archive.Repository
	if cfg.DatabaseEnabled {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		if cfg.Database.AutoMigrate {
			if _, err := database.Migrate(cfg.Database, archive.Migrations, archive.MigrationsDir, log); err != nil {
				log.Fatal().Err(err).Msg("failed to migrate archive schema")
			}
		}
		runs = archive.NewPostgresRepository(pool)
		log.Info().Str("database", cfg.Database.Database).Msg("archiving runs to postgres")
	}

	job := worker.NewCollectionJob(worker.CollectionJobConfig{
		Config: worker.JobConfig{
			Locations:      cfg.Collection.Locations,
			RequestTimeout: cfg.WAQI.Timeout,
			Concurrency:    cfg.Collection.Concurrency,
		},
		Logger:    log,
		Collector: collector,
		Archive:   runs,
	})

	if *once {
		if err := runOnce(ctx, job, *start, *end, *out); err != nil {
			log.Error().Err(err).Msg("collection failed")
			os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
		}
		return
	}

	serve(ctx, cancel, cfg, job, registry, log)
}

// runOnce performs a single collection and optionally writes it as CSV.
func runOnce(ctx context.Context, job *worker.CollectionJob, start, end, out string) error {
	dates, err := airquality.ParseDateRange(start, end)
	if err != nil {
		return err
	}

	result, err := job.Run(ctx, dates)
	if err != nil {
		return err
	}

	if out != "" {
		if err := export.WriteFile(out, result.Readings); err != nil {
			return err
		}
	}

	if result.Attempted > 0 && result.Succeeded == 0 {
		return errors.New("no location returned a reading")
	}
	return nil
}

// serve runs the health endpoint and, when configured, the Pub/Sub subscriber
// until an interrupt signal arrives.
func serve(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg *config.Config,
	job *worker.CollectionJob,
	registry *resilience.Registry,
	log zerolog.Logger,
) {
	// Worker also exposes health endpoint for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		providers := map[string]string{}
		for _, h := range registry.GetAllHealth() {
			providers[h.Name] = h.CircuitState.String()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"version":   Version,
			"providers": providers,
			"jobs":      job.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.PubSub.SubscriptionName != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.SubscriptionName,
			MaxExtension:     job.Config().MaxRunTimeout(cfg.Collection.MaxDays),
			Dispatcher:       worker.NewDispatcher(job, log),
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Warn().Msg("PUBSUB_SUBSCRIPTION not set - worker only serves health checks")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
