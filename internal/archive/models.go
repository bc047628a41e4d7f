// Package archive stores completed collection runs and their readings.
package archive

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ukair/ukair/internal/airquality"
)

var (
	// ErrRunNotFound is returned when a run ID is unknown.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidCursor is returned when a list cursor names no archived run.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Run is an archived collection.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time

	// Range is nil for current-conditions runs.
	Range *airquality.DateRange

	Attempted int
	Failed    int

	// Readings are in collection order.
	Readings []*airquality.Reading
}

// NewRun creates a Run with a fresh ID from a collection result.
func NewRun(result *airquality.Result) *Run {
	return &Run{
		ID:         uuid.New().String(),
		StartedAt:  result.StartedAt.UTC(),
		FinishedAt: result.FinishedAt.UTC(),
		Range:      result.Range,
		Attempted:  result.Attempted,
		Failed:     result.Failed,
		Readings:   result.Readings,
	}
}

// Succeeded returns the number of queries that produced a reading.
func (r *Run) Succeeded() int {
	return r.Attempted - r.Failed
}

// Summary is a Run without its readings, used for listings.
type Summary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Range      *airquality.DateRange
	Attempted  int
	Failed     int
}

// Summary returns the run's summary.
func (r *Run) Summary() Summary {
	return Summary{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Range:      r.Range,
		Attempted:  r.Attempted,
		Failed:     r.Failed,
	}
}
