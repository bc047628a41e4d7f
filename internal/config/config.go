// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ukair/ukair/internal/airquality"
	"github.com/ukair/ukair/internal/airquality/waqi"
	"github.com/ukair/ukair/internal/database"
)

// ErrMissingToken is returned when no WAQI API token is configured.
var ErrMissingToken = errors.New("WAQI_TOKEN is required")

// DefaultLiveMaxDays is the default cap on ranges collected inside an API request.
const DefaultLiveMaxDays = 7

// liveMargin covers encoding and writing a live response.
const liveMargin = 30 * time.Second

// Config holds configuration shared by the API server and the worker.
type Config struct {
	Env        string
	Port       string
	LogLevel   zerolog.Level
	RequireTLS bool

	WAQI       WAQIConfig
	Collection CollectionConfig

	// DatabaseEnabled selects the Postgres archive. When false runs are kept in memory.
	DatabaseEnabled bool
	Database        database.Config

	Telemetry TelemetryConfig
	JWT       JWTConfig
	PubSub    PubSubConfig
}

// WAQIConfig configures the upstream feed client.
type WAQIConfig struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// CollectionConfig configures the collection pipeline.
type CollectionConfig struct {
	// Concurrency is the number of queries in flight. Default: 1
	Concurrency int

	// MaxDays is the largest accepted date range. Default: airquality.DefaultMaxDays
	MaxDays int

	// LiveMaxDays is the largest range the API collects inside a request.
	// Longer ranges go through the worker. Default: DefaultLiveMaxDays
	LiveMaxDays int

	// LocationsFile is an optional JSON file replacing the built-in locations.
	LocationsFile string

	// Locations is the validated location set.
	Locations []airquality.Location
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	// SampleRatio is the share of traces kept, from OTEL_TRACES_SAMPLER_ARG.
	SampleRatio float64
}

// JWTConfig configures operator token validation. An empty SigningKey
// disables the admin endpoints.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
}

// PubSubConfig configures the worker subscription. An empty SubscriptionName
// disables the subscriber.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a validated Config from environment variables.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Env:        getEnvOrDefault("APP_ENV", "development"),
		Port:       getEnvOrDefault("APP_PORT", "8080"),
		RequireTLS: os.Getenv("REQUIRE_TLS") == "true",
		WAQI: WAQIConfig{
			Token:   strings.TrimSpace(os.Getenv("WAQI_TOKEN")),
			BaseURL: getEnvOrDefault("WAQI_BASE_URL", waqi.DefaultBaseURL),
		},
		Collection: CollectionConfig{
			LocationsFile: os.Getenv("LOCATIONS_FILE"),
		},
		DatabaseEnabled: os.Getenv("DB_ENABLED") == "true",
		Database:        database.ConfigFromEnv(),
		Telemetry: TelemetryConfig{
			Enabled:      os.Getenv("OTEL_ENABLED") == "true",
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		},
		JWT: JWTConfig{
			SigningKey: os.Getenv("JWT_SIGNING_KEY"),
			Issuer:     getEnvOrDefault("JWT_ISSUER", "https://api.ukair.example"),
			Audience:   getEnvOrDefault("JWT_AUDIENCE", "ukair-admin"),
		},
		PubSub: PubSubConfig{
			ProjectID:        os.Getenv("PUBSUB_PROJECT_ID"),
			SubscriptionName: os.Getenv("PUBSUB_SUBSCRIPTION"),
		},
	}

	level, err := zerolog.ParseLevel(strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	if cfg.WAQI.Timeout, err = getEnvDuration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Collection.Concurrency, err = getEnvInt("CONCURRENCY", 1); err != nil {
		return nil, err
	}
	if cfg.Collection.MaxDays, err = getEnvInt("MAX_DAYS", airquality.DefaultMaxDays); err != nil {
		return nil, err
	}
	if cfg.Collection.LiveMaxDays, err = getEnvInt("LIVE_MAX_DAYS", DefaultLiveMaxDays); err != nil {
		return nil, err
	}

	if cfg.Telemetry.SampleRatio, err = getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1); err != nil {
		return nil, err
	}

	if cfg.Collection.Locations, err = loadLocations(cfg.Collection.LocationsFile); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.WAQI.Token == "" {
		return ErrMissingToken
	}
	if c.WAQI.Timeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.WAQI.Timeout)
	}
	if c.Collection.Concurrency < 1 {
		return fmt.Errorf("CONCURRENCY must be at least 1, got %d", c.Collection.Concurrency)
	}
	if c.Collection.MaxDays < 1 {
		return fmt.Errorf("MAX_DAYS must be at least 1, got %d", c.Collection.MaxDays)
	}
	if c.Collection.LiveMaxDays < 1 || c.Collection.LiveMaxDays > c.Collection.MaxDays {
		return fmt.Errorf("LIVE_MAX_DAYS must be between 1 and MAX_DAYS (%d), got %d",
			c.Collection.MaxDays, c.Collection.LiveMaxDays)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be between 0 and 1, got %g", c.Telemetry.SampleRatio)
	}
	if c.PubSub.SubscriptionName != "" && c.PubSub.ProjectID == "" {
		return errors.New("PUBSUB_PROJECT_ID is required when PUBSUB_SUBSCRIPTION is set")
	}
	return airquality.ValidateLocations(c.Collection.Locations)
}

// AdminEnabled reports whether operator tokens can be validated.
func (c *Config) AdminEnabled() bool {
	return c.JWT.SigningKey != ""
}

// LiveBudget is the longest a live collection can take: every query of the
// largest live range using its full request timeout.
func (c *Config) LiveBudget() time.Duration {
	queries := c.Collection.LiveMaxDays * len(c.Collection.Locations)
	concurrency := max(c.Collection.Concurrency, 1)
	rounds := (queries + concurrency - 1) / concurrency
	return time.Duration(rounds)*c.WAQI.Timeout + liveMargin
}

func loadLocations(path string) ([]airquality.Location, error) {
	if path == "" {
		return airquality.DefaultLocations(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open LOCATIONS_FILE: %w", err)
	}
	defer f.Close()

	locations, err := airquality.LoadLocations(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return locations, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
