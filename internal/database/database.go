// Package database connects the run archive to PostgreSQL and keeps its
// schema current.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds database connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// ApplicationName is reported to Postgres so archive sessions are
	// identifiable in pg_stat_activity.
	ApplicationName string

	// MaxConns bounds the pool. Archive writes use one connection per run.
	MaxConns int32
	// MinConns keeps idle connections open for run listing.
	MinConns        int32
	ConnMaxLifetime time.Duration

	// ConnectTimeout bounds the initial connect and ping.
	ConnectTimeout time.Duration

	// AutoMigrate applies pending archive migrations at startup.
	AutoMigrate bool
}

// ConfigFromEnv creates a Config from DB_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnvOrDefault("DB_USER", "ukair"),
		Password:        getEnvOrDefault("DB_PASSWORD", "localdev"),
		Database:        getEnvOrDefault("DB_NAME", "ukair"),
		SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
		ApplicationName: getEnvOrDefault("DB_APPLICATION_NAME", "ukair"),
		MaxConns:        int32(getEnvInt("DB_MAX_CONNS", 4)), //nolint:gosec // small config value
		MinConns:        int32(getEnvInt("DB_MIN_CONNS", 0)), //nolint:gosec // small config value
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		ConnectTimeout:  getEnvDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		AutoMigrate:     getEnvOrDefault("DB_AUTO_MIGRATE", "true") == "true",
	}
}

// ConnectionString returns the PostgreSQL URL used by the pool.
func (c Config) ConnectionString() string {
	return c.url(url.Values{}).String()
}

// MigrationURL returns the URL for the golang-migrate postgres driver. The
// archive's version table is kept apart from other schemas' migrations.
func (c Config) MigrationURL() string {
	return c.url(url.Values{"x-migrations-table": {"archive_schema_migrations"}}).String()
}

func (c Config) url(query url.Values) *url.URL {
	query.Set("sslmode", c.SSLMode)
	return &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: query.Encode(),
	}
}

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	if cfg.ApplicationName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s: %w", cfg.Database, err)
	}

	return pool, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return d
}
