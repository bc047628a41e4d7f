package airquality

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ukair/ukair/internal/telemetry"
)

const (
	// DefaultMaxDays bounds the size of a date range accepted by the Collector.
	DefaultMaxDays = 366
)

// Fetcher executes a single Query against an upstream provider.
type Fetcher interface {
	// Name identifies the provider for logs and metrics.
	Name() string

	// Fetch issues one request for q and normalizes the response.
	Fetch(ctx context.Context, q Query) (*Reading, error)
}

// CollectorConfig holds configuration for the Collector.
type CollectorConfig struct {
	// Fetcher is the provider used for every query.
	Fetcher Fetcher

	// Logger for collection runs.
	Logger zerolog.Logger

	// Concurrency is the number of queries in flight at once.
	// Default: 1 (strictly sequential)
	Concurrency int

	// MaxDays is the largest date range accepted.
	// Default: DefaultMaxDays
	MaxDays int

	// Metrics records each fetch (optional).
	Metrics *telemetry.ProviderMetrics
}

// Collector runs the enumerate, fetch and normalize pipeline.
type Collector struct {
	fetcher     Fetcher
	logger      zerolog.Logger
	concurrency int
	maxDays     int
	metrics     *telemetry.ProviderMetrics
}

// NewCollector creates a new Collector.
func NewCollector(cfg CollectorConfig) *Collector {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	maxDays := cfg.MaxDays
	if maxDays <= 0 {
		maxDays = DefaultMaxDays
	}

	return &Collector{
		fetcher:     cfg.Fetcher,
		logger:      cfg.Logger,
		concurrency: concurrency,
		maxDays:     maxDays,
		metrics:     cfg.Metrics,
	}
}

// Outcome is the result of one Query: exactly one of Reading and Err is set.
type Outcome struct {
	Query   Query
	Reading *Reading
	Err     error
}

// OK reports whether the query produced a Reading.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Reading != nil
}

// Failure records a query that produced no Reading.
type Failure struct {
	Query Query
	Err   error
}

// Result is the output of one collection run.
type Result struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration

	// Range is the date range collected, nil for current conditions.
	Range *DateRange

	Attempted int
	Succeeded int
	Failed    int

	// Readings are in query order with failed queries skipped.
	Readings []*Reading

	// Failures are in query order.
	Failures []Failure
}

// Collect enumerates the queries for locations and dates and fetches each one.
// Configuration errors are returned before any fetch; per-query failures are
// logged and reported in Result.Failures without stopping the run.
func (c *Collector) Collect(ctx context.Context, locations []Location, dates *DateRange) (*Result, error) {
	if err := ValidateLocations(locations); err != nil {
		return nil, err
	}
	if dates != nil {
		if err := dates.Validate(); err != nil {
			return nil, err
		}
		if days := dates.Days(); days > c.maxDays {
			return nil, fmt.Errorf("%w: %d days exceeds %d", ErrDateRangeTooLong, days, c.maxDays)
		}
	}

	queries, err := Enumerate(locations, dates)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	logger := c.logger.With().Str("provider", c.fetcher.Name()).Logger()

	event := logger.Info().
		Int("queries", len(queries)).
		Int("concurrency", c.concurrency)
	if dates != nil {
		event = event.Str("range", dates.String())
	}
	event.Msg("starting collection")

	outcomes := c.run(ctx, queries)

	result := &Result{
		StartedAt: startTime,
		Range:     dates,
		Attempted: len(queries),
		Readings:  make([]*Reading, 0, len(queries)),
	}
	for _, o := range outcomes {
		if o.OK() {
			result.Succeeded++
			result.Readings = append(result.Readings, o.Reading)
			continue
		}
		result.Failed++
		result.Failures = append(result.Failures, Failure{Query: o.Query, Err: o.Err})
	}

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(startTime)

	logger.Info().
		Dur("duration", result.Duration).
		Int("attempted", result.Attempted).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("collection completed")

	return result, nil
}

// run fetches every query and returns outcomes indexed like queries.
func (c *Collector) run(ctx context.Context, queries []Query) []Outcome {
	outcomes := make([]Outcome, len(queries))

	if c.concurrency == 1 || len(queries) <= 1 {
		for i, q := range queries {
			outcomes[i] = c.fetchOne(ctx, q)
		}
		return outcomes
	}

	work := make(chan int, len(queries))
	for i := range queries {
		work <- i
	}
	close(work)

	workers := c.concurrency
	if workers > len(queries) {
		workers = len(queries)
	}

	// Each worker writes only the slots it pulls, so no locking is needed.
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				outcomes[i] = c.fetchOne(ctx, queries[i])
			}
		}()
	}
	wg.Wait()

	return outcomes
}

func (c *Collector) fetchOne(ctx context.Context, q Query) Outcome {
	start := time.Now()
	reading, err := c.fetcher.Fetch(ctx, q)
	c.metrics.RecordRequest(c.fetcher.Name(), "feed", time.Since(start), err)

	if err == nil && reading == nil {
		err = fmt.Errorf("provider %s returned no reading", c.fetcher.Name())
	}
	if err != nil {
		c.logger.Warn().
			Err(err).
			Int("query", q.Index).
			Str("region", q.Location.Region).
			Str("city", q.Location.City).
			Str("date", q.DateString()).
			Msg("query failed, skipping")
		return Outcome{Query: q, Err: err}
	}

	return Outcome{Query: q, Reading: reading}
}
