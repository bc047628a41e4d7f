package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ukair/ukair/internal/airquality"
)

// PostgresRepository is a PostgreSQL implementation of Repository. The
// schema comes from Migrations.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL run repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save stores a run and its readings in one transaction.
func (r *PostgresRepository) Save(ctx context.Context, run *Run) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("parse run id: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback error is not critical

	var rangeStart, rangeEnd *time.Time
	if run.Range != nil {
		rangeStart, rangeEnd = &run.Range.Start, &run.Range.End
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO collection_runs (id, started_at, finished_at, range_start, range_end, attempted, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, run.StartedAt, run.FinishedAt, rangeStart, rangeEnd, run.Attempted, run.Failed)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	query := `
		INSERT INTO run_readings (
			run_id, seq, region, city, lat, lon, reading_date,
			aqi, pm25, pm10, no2, so2, co, o3
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	for i, reading := range run.Readings {
		var lat, lon *float64
		if c := reading.Coordinates; c != nil {
			lat, lon = &c.Lat, &c.Lon
		}

		_, err = tx.Exec(ctx, query,
			id, i, reading.Region, reading.City, lat, lon, reading.Date,
			reading.AQI.Ptr(),
			reading.PM25.Ptr(),
			reading.PM10.Ptr(),
			reading.NO2.Ptr(),
			reading.SO2.Ptr(),
			reading.CO.Ptr(),
			reading.O3.Ptr(),
		)
		if err != nil {
			return fmt.Errorf("insert reading %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

// Get retrieves a run with its readings.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id::text, started_at, finished_at, range_start, range_end, attempted, failed
		FROM collection_runs
		WHERE id::text = $1
	`, id)

	summary, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	readings, err := r.readings(ctx, summary.ID)
	if err != nil {
		return nil, err
	}

	return &Run{
		ID:         summary.ID,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Range:      summary.Range,
		Attempted:  summary.Attempted,
		Failed:     summary.Failed,
		Readings:   readings,
	}, nil
}

func (r *PostgresRepository) readings(ctx context.Context, runID string) ([]*airquality.Reading, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT region, city, lat, lon, reading_date, aqi, pm25, pm10, no2, so2, co, o3
		FROM run_readings
		WHERE run_id::text = $1
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []*airquality.Reading
	for rows.Next() {
		var (
			loc                             airquality.Location
			lat, lon                        *float64
			date                            *time.Time
			aqi                             *int
			pm25, pm10, no2, so2, co, ozone *float64
		)
		if err := rows.Scan(&loc.Region, &loc.City, &lat, &lon, &date, &aqi,
			&pm25, &pm10, &no2, &so2, &co, &ozone); err != nil {
			return nil, err
		}
		if lat != nil && lon != nil {
			loc.Coordinates = &airquality.Coordinates{Lat: *lat, Lon: *lon}
		}
		if date != nil {
			d := airquality.Day(*date)
			date = &d
		}

		readings = append(readings, airquality.NewReading(loc, date, airquality.FromPtr(aqi),
			map[airquality.Pollutant]airquality.Value[float64]{
				airquality.PollutantPM25: airquality.FromPtr(pm25),
				airquality.PollutantPM10: airquality.FromPtr(pm10),
				airquality.PollutantNO2:  airquality.FromPtr(no2),
				airquality.PollutantSO2:  airquality.FromPtr(so2),
				airquality.PollutantCO:   airquality.FromPtr(co),
				airquality.PollutantO3:   airquality.FromPtr(ozone),
			}))
	}

	return readings, rows.Err()
}

// List retrieves run summaries, newest first.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	// Fetch one extra to determine if there are more results
	fetchLimit := limit + 1

	var (
		rows pgx.Rows
		err  error
	)
	if opts.Cursor == "" {
		rows, err = r.pool.Query(ctx, `
			SELECT id::text, started_at, finished_at, range_start, range_end, attempted, failed
			FROM collection_runs
			ORDER BY started_at DESC, id DESC
			LIMIT $1
		`, fetchLimit)
	} else {
		var (
			cursorAt time.Time
			cursorID uuid.UUID
		)
		err = r.pool.QueryRow(ctx, `
			SELECT started_at, id FROM collection_runs WHERE id::text = $1
		`, opts.Cursor).Scan(&cursorAt, &cursorID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCursor
		}
		if err != nil {
			return nil, fmt.Errorf("resolve cursor: %w", err)
		}

		rows, err = r.pool.Query(ctx, `
			SELECT id::text, started_at, finished_at, range_start, range_end, attempted, failed
			FROM collection_runs
			WHERE (started_at, id) < ($1, $2)
			ORDER BY started_at DESC, id DESC
			LIMIT $3
		`, cursorAt, cursorID, fetchLimit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &ListResult{
		Items: summaries,
	}

	if len(summaries) > limit {
		result.Items = summaries[:limit]
		result.NextCursor = summaries[limit-1].ID
	}

	return result, nil
}

func scanSummary(row pgx.Row) (Summary, error) {
	var (
		s                    Summary
		rangeStart, rangeEnd *time.Time
	)
	if err := row.Scan(&s.ID, &s.StartedAt, &s.FinishedAt, &rangeStart, &rangeEnd, &s.Attempted, &s.Failed); err != nil {
		return Summary{}, err
	}
	if rangeStart != nil && rangeEnd != nil {
		s.Range = &airquality.DateRange{Start: airquality.Day(*rangeStart), End: airquality.Day(*rangeEnd)}
	}
	return s, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
