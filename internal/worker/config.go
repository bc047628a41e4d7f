// Package worker runs collection jobs outside the request path.
package worker

import (
	"time"

	"github.com/ukair/ukair/internal/airquality"
)

// runMargin covers archiving and scheduling on top of the fetch budget.
const runMargin = time.Minute

// JobConfig holds configuration for the collection job.
type JobConfig struct {
	// Locations are the places collected on every run.
	// If empty, uses airquality.DefaultLocations.
	Locations []airquality.Location

	// RequestTimeout is the per-query upstream timeout. It sizes the run deadline.
	// Default: 10 seconds
	RequestTimeout time.Duration

	// Concurrency is the number of queries the collector runs at once.
	// Default: 1
	Concurrency int

	// Timeout, when positive, replaces the deadline derived from the query count.
	Timeout time.Duration
}

// DefaultJobConfig returns the default job configuration.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		Locations:      airquality.DefaultLocations(),
		RequestTimeout: 10 * time.Second,
		Concurrency:    1,
	}
}

// HealthCheckConfig returns a configuration that collects current conditions
// for the first location only.
func (c JobConfig) HealthCheckConfig() JobConfig {
	hc := JobConfig{
		RequestTimeout: c.RequestTimeout,
		Concurrency:    1,
		Timeout:        30 * time.Second,
	}
	if len(c.Locations) > 0 {
		hc.Locations = c.Locations[:1]
	}
	return hc
}

// RunTimeout is the deadline for a run over dates (nil for current
// conditions). Every query may use its full request timeout, so a run the
// collector accepts is never cut short.
func (c JobConfig) RunTimeout(dates *airquality.DateRange) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	days := 1
	if dates != nil {
		days = max(dates.Days(), 1)
	}
	return c.budget(days)
}

// MaxRunTimeout is the deadline of the longest run a collector limited to
// maxDays accepts.
func (c JobConfig) MaxRunTimeout(maxDays int) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return c.budget(max(maxDays, 1))
}

func (c JobConfig) budget(days int) time.Duration {
	queries := days * len(c.Locations)
	concurrency := max(c.Concurrency, 1)
	rounds := (queries + concurrency - 1) / concurrency
	return time.Duration(rounds)*c.RequestTimeout + runMargin
}
