package airquality_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukair/ukair/internal/airquality"
)

var (
	errTransport = errors.New("connection refused")
	errStatus    = errors.New("status error")
)

// fakeFetcher returns a reading with AQI equal to the query index unless the
// city (optionally on a date) is listed in failures.
type fakeFetcher struct {
	failures map[string]error
	delay    time.Duration

	mu    sync.Mutex
	calls []airquality.Query
	count atomic.Int32
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(_ context.Context, q airquality.Query) (*airquality.Reading, error) {
	f.count.Add(1)
	f.mu.Lock()
	f.calls = append(f.calls, q)
	f.mu.Unlock()

	if f.delay > 0 {
		// Later queries finish first to shake out ordering bugs.
		time.Sleep(f.delay / time.Duration(q.Index+1))
	}

	key := q.Location.City
	if q.Date != nil {
		key += "@" + q.DateString()
	}
	if err, ok := f.failures[key]; ok {
		return nil, err
	}
	if err, ok := f.failures[q.Location.City]; ok {
		return nil, err
	}

	return airquality.NewReading(q.Location, q.Date, airquality.Some(q.Index), map[airquality.Pollutant]airquality.Value[float64]{
		airquality.PollutantPM25: airquality.Some(float64(q.Index) + 0.5),
	}), nil
}

func fiveLocations() []airquality.Location {
	return []airquality.Location{
		{Region: "Wales", City: "Cardiff"},
		{Region: "Scotland", City: "Edinburgh"},
		{Region: "Northern Ireland", City: "Belfast"},
		{Region: "London", City: "London"},
		{Region: "North West England", City: "Manchester"},
	}
}

func cities(readings []*airquality.Reading) []string {
	out := make([]string, 0, len(readings))
	for _, r := range readings {
		out = append(out, r.City)
	}
	return out
}

func TestCollector_Collect_AllSucceed(t *testing.T) {
	fetcher := &fakeFetcher{}
	collector := airquality.NewCollector(airquality.CollectorConfig{
		Fetcher: fetcher,
		Logger:  zerolog.Nop(),
	})

	result, err := collector.Collect(context.Background(), fiveLocations(), nil)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Attempted)
	assert.Equal(t, 5, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Empty(t, result.Failures)
	assert.Nil(t, result.Range)
	assert.Equal(t, []string{"Cardiff", "Edinburgh", "Belfast", "London", "Manchester"}, cities(result.Readings))
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
}

func TestCollector_Collect_TransportFailureSkipped(t *testing.T) {
	fetcher := &fakeFetcher{failures: map[string]error{"Belfast": errTransport}}
	collector := airquality.NewCollector(airquality.CollectorConfig{
		Fetcher: fetcher,
		Logger:  zerolog.Nop(),
	})

	result, err := collector.Collect(context.Background(), fiveLocations(), nil)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Attempted)
	assert.Equal(t, 4, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"Cardiff", "Edinburgh", "London", "Manchester"}, cities(result.Readings))

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "Belfast", result.Failures[0].Query.Location.City)
	assert.ErrorIs(t, result.Failures[0].Err, errTransport)
}

func TestCollector_Collect_StatusErrorDoesNotStopRun(t *testing.T) {
	fetcher := &fakeFetcher{failures: map[string]error{"Cardiff@2024-01-01": errStatus}}
	collector := airquality.NewCollector(airquality.CollectorConfig{
		Fetcher: fetcher,
		Logger:  zerolog.Nop(),
	})

	r := &airquality.DateRange{Start: date("2024-01-01"), End: date("2024-01-02")}
	result, err := collector.Collect(context.Background(), fiveLocations()[:2], r)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Attempted)
	assert.Equal(t, 3, result.Succeeded)
	require.Len(t, result.Readings, 3)

	// The next query after the failure is still collected.
	assert.Equal(t, "Edinburgh", result.Readings[0].City)
	assert.Equal(t, "2024-01-01", result.Readings[0].DateString())
	assert.Equal(t, "Cardiff", result.Readings[1].City)
	assert.Equal(t, "2024-01-02", result.Readings[1].DateString())
	assert.Equal(t, r, result.Range)
}

func TestCollector_Collect_AllFail(t *testing.T) {
	failures := make(map[string]error)
	for _, loc := range fiveLocations() {
		failures[loc.City] = errTransport
	}
	collector := airquality.NewCollector(airquality.CollectorConfig{
		Fetcher: &fakeFetcher{failures: failures},
		Logger:  zerolog.Nop(),
	})

	result, err := collector.Collect(context.Background(), fiveLocations(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 5, result.Failed)
	assert.Empty(t, result.Readings)
}

func TestCollector_Collect_NilReadingIsFailure(t *testing.T) {
	collector := airquality.NewCollector(airquality.CollectorConfig{
		Fetcher: nilFetcher{},
		Logger:  zerolog.Nop(),
	})

	result, err := collector.Collect(context.Background(), fiveLocations()[:1], nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, result.Readings)
}

type nilFetcher struct{}

func (nilFetcher) Name() string { return "nil" }

func (nilFetcher) Fetch(context.Context, airquality.Query) (*airquality.Reading, error) {
	return nil, nil
}

func TestCollector_Collect_ParallelMatchesSequential(t *testing.T) {
	r := &airquality.DateRange{Start: date("2024-03-01"), End: date("2024-03-03")}
	failures := map[string]error{"London@2024-03-02": errTransport}

	sequential := airquality.NewCollector(airquality.CollectorConfig{
		Fetcher: &fakeFetcher{failures: failures},
		Logger:  zerolog.Nop(),
	})
	parallel := airquality.NewCollector(airquality.CollectorConfig{
		Fetcher:     &fakeFetcher{failures: failures, delay: 20 * time.Millisecond},
		Logger:      zerolog.Nop(),
		Concurrency: 4,
	})

	want, err := sequential.Collect(context.Background(), fiveLocations(), r)
	require.NoError(t, err)
	got, err := parallel.Collect(context.Background(), fiveLocations(), r)
	require.NoError(t, err)

	require.Len(t, got.Readings, len(want.Readings))
	for i := range want.Readings {
		assert.Equal(t, want.Readings[i].City, got.Readings[i].City, "reading %d", i)
		assert.Equal(t, want.Readings[i].DateString(), got.Readings[i].DateString(), "reading %d", i)
		assert.Equal(t, want.Readings[i].AQI, got.Readings[i].AQI, "reading %d", i)
	}
	assert.Equal(t, want.Failed, got.Failed)
	assert.Equal(t, 14, got.Succeeded)
}

func TestCollector_Collect_SequentialOrder(t *testing.T) {
	fetcher := &fakeFetcher{}
	collector := airquality.NewCollector(airquality.CollectorConfig{
		Fetcher: fetcher,
		Logger:  zerolog.Nop(),
	})

	_, err := collector.Collect(context.Background(), fiveLocations(), nil)
	require.NoError(t, err)

	require.Len(t, fetcher.calls, 5)
	for i, q := range fetcher.calls {
		assert.Equal(t, i, q.Index)
	}
}

func TestCollector_Collect_ConfigErrorsBeforeFetch(t *testing.T) {
	tests := []struct {
		name      string
		locations []airquality.Location
		dates     *airquality.DateRange
		maxDays   int
		wantErr   error
	}{
		{
			name:    "no locations",
			wantErr: airquality.ErrNoLocations,
		},
		{
			name: "duplicate region",
			locations: []airquality.Location{
				{Region: "Wales", City: "Cardiff"},
				{Region: "Wales", City: "Swansea"},
			},
			wantErr: airquality.ErrDuplicateRegion,
		},
		{
			name:      "reversed range",
			locations: fiveLocations(),
			dates:     &airquality.DateRange{Start: date("2024-02-01"), End: date("2024-01-01")},
			wantErr:   airquality.ErrInvalidDateRange,
		},
		{
			name:      "range too long",
			locations: fiveLocations(),
			dates:     &airquality.DateRange{Start: date("2024-01-01"), End: date("2024-01-08")},
			maxDays:   7,
			wantErr:   airquality.ErrDateRangeTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{}
			collector := airquality.NewCollector(airquality.CollectorConfig{
				Fetcher: fetcher,
				Logger:  zerolog.Nop(),
				MaxDays: tt.maxDays,
			})

			result, err := collector.Collect(context.Background(), tt.locations, tt.dates)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
			assert.Equal(t, int32(0), fetcher.count.Load())
		})
	}
}

func TestCollector_Collect_MaxDaysInclusive(t *testing.T) {
	collector := airquality.NewCollector(airquality.CollectorConfig{
		Fetcher: &fakeFetcher{},
		Logger:  zerolog.Nop(),
		MaxDays: 7,
	})

	r := &airquality.DateRange{Start: date("2024-01-01"), End: date("2024-01-07")}
	result, err := collector.Collect(context.Background(), fiveLocations()[:1], r)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Attempted)
}

func TestCollector_Collect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	collector := airquality.NewCollector(airquality.CollectorConfig{
		Fetcher: ctxFetcher{},
		Logger:  zerolog.Nop(),
	})

	result, err := collector.Collect(ctx, fiveLocations(), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Failed)
	for _, f := range result.Failures {
		assert.ErrorIs(t, f.Err, context.Canceled)
	}
}

type ctxFetcher struct{}

func (ctxFetcher) Name() string { return "ctx" }

func (ctxFetcher) Fetch(ctx context.Context, q airquality.Query) (*airquality.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q.Location.City, err)
	}
	return airquality.NewReading(q.Location, q.Date, airquality.None[int](), nil), nil
}
