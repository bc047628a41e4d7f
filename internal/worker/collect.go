package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ukair/ukair/internal/airquality"
	"github.com/ukair/ukair/internal/archive"
)

// Collector runs a collection over a set of locations.
type Collector interface {
	Collect(ctx context.Context, locations []airquality.Location, dates *airquality.DateRange) (*airquality.Result, error)
}

// CollectionJob runs collections and archives the results.
type CollectionJob struct {
	config    JobConfig
	logger    zerolog.Logger
	collector Collector

	// Archive is optional; runs are not stored when nil.
	archive archive.Repository

	// Metrics
	metrics *JobMetrics
}

// JobMetrics tracks collection job statistics.
type JobMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns         int64
	FailedRuns        int64
	ArchivedRuns      int64
	SucceededQueries  int64
	FailedQueries     int64
	ReadingsCollected int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// CollectionJobConfig holds configuration for creating a CollectionJob.
type CollectionJobConfig struct {
	Config    JobConfig
	Logger    zerolog.Logger
	Collector Collector
	Archive   archive.Repository
}

// NewCollectionJob creates a new collection job.
func NewCollectionJob(cfg CollectionJobConfig) *CollectionJob {
	config := cfg.Config
	if len(config.Locations) == 0 {
		config.Locations = airquality.DefaultLocations()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultJobConfig().RequestTimeout
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}

	return &CollectionJob{
		config:    config,
		logger:    cfg.Logger,
		collector: cfg.Collector,
		archive:   cfg.Archive,
		metrics:   &JobMetrics{},
	}
}

// JobResult contains the result of a collection job.
type JobResult struct {
	*airquality.Result

	// RunID is the archive ID, empty when the run was not archived.
	RunID string
}

// Run collects readings for the configured locations over dates (nil for
// current conditions) and archives them. Per-query failures are reported in
// the result; an error means the run could not start or could not be archived.
func (j *CollectionJob) Run(ctx context.Context, dates *airquality.DateRange) (*JobResult, error) {
	deadline := j.config.RunTimeout(dates)
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	logger := j.logger.With().
		Int("locations", len(j.config.Locations)).
		Dur("deadline", deadline).
		Logger()
	if dates != nil {
		logger = logger.With().Str("range", dates.String()).Logger()
	}
	logger.Info().Msg("starting collection job")

	result, err := j.collector.Collect(ctx, j.config.Locations, dates)
	if err != nil {
		j.recordFailure()
		return nil, fmt.Errorf("collect: %w", err)
	}

	jobResult := &JobResult{Result: result}

	if j.archive != nil {
		run := archive.NewRun(result)
		if err := j.archive.Save(ctx, run); err != nil {
			j.recordFailure()
			return nil, fmt.Errorf("archive run: %w", err)
		}
		jobResult.RunID = run.ID
	}

	j.updateMetrics(jobResult)

	logger.Info().
		Str("run_id", jobResult.RunID).
		Dur("duration", result.Duration).
		Int("attempted", result.Attempted).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("collection job completed")

	return jobResult, nil
}

func (j *CollectionJob) recordFailure() {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.FailedRuns++
	j.metrics.LastRunAt = time.Now()
}

func (j *CollectionJob) updateMetrics(result *JobResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	if result.RunID != "" {
		j.metrics.ArchivedRuns++
	}
	j.metrics.SucceededQueries += int64(result.Succeeded)
	j.metrics.FailedQueries += int64(result.Failed)
	j.metrics.ReadingsCollected += int64(len(result.Readings))
	j.metrics.LastRunAt = result.FinishedAt
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *CollectionJob) GetMetrics() JobMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return JobMetrics{
		TotalRuns:         j.metrics.TotalRuns,
		FailedRuns:        j.metrics.FailedRuns,
		ArchivedRuns:      j.metrics.ArchivedRuns,
		SucceededQueries:  j.metrics.SucceededQueries,
		FailedQueries:     j.metrics.FailedQueries,
		ReadingsCollected: j.metrics.ReadingsCollected,
		LastRunAt:         j.metrics.LastRunAt,
		LastRunDuration:   j.metrics.LastRunDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *CollectionJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":         m.TotalRuns,
		"failed_runs":        m.FailedRuns,
		"archived_runs":      m.ArchivedRuns,
		"succeeded_queries":  m.SucceededQueries,
		"failed_queries":     m.FailedQueries,
		"readings_collected": m.ReadingsCollected,
		"last_run_at":        m.LastRunAt,
		"last_run_duration":  m.LastRunDuration.String(),
		"total_duration":     m.TotalDuration.String(),
	}
}

// Config returns the job configuration with defaults applied.
func (j *CollectionJob) Config() JobConfig {
	return j.config
}

// WithConfig returns a job sharing this job's collector and logger but with a
// different configuration and no archive.
func (j *CollectionJob) WithConfig(config JobConfig) *CollectionJob {
	return NewCollectionJob(CollectionJobConfig{
		Config:    config,
		Logger:    j.logger,
		Collector: j.collector,
	})
}
