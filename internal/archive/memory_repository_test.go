package archive_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukair/ukair/internal/airquality"
	"github.com/ukair/ukair/internal/archive"
)

func newResult(started time.Time) *airquality.Result {
	reading := airquality.NewReading(
		airquality.Location{Region: "Wales", City: "Cardiff"},
		nil, airquality.Some(42), nil)

	return &airquality.Result{
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Attempted:  2,
		Succeeded:  1,
		Failed:     1,
		Readings:   []*airquality.Reading{reading},
	}
}

func TestNewRun(t *testing.T) {
	started := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	run := archive.NewRun(newResult(started))

	_, err := uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, started, run.StartedAt)
	assert.Equal(t, 2, run.Attempted)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.Succeeded())
	require.Len(t, run.Readings, 1)

	other := archive.NewRun(newResult(started))
	assert.NotEqual(t, run.ID, other.ID)
}

func TestInMemoryRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := archive.NewInMemoryRepository()

	run := archive.NewRun(newResult(time.Now()))
	require.NoError(t, repo.Save(ctx, run))

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	require.Len(t, got.Readings, 1)
	assert.Equal(t, "Cardiff", got.Readings[0].City)
	assert.Equal(t, airquality.Some(42), got.Readings[0].AQI)
}

func TestInMemoryRepository_GetNotFound(t *testing.T) {
	repo := archive.NewInMemoryRepository()

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, archive.ErrRunNotFound)
}

func TestInMemoryRepository_SaveCopiesReadings(t *testing.T) {
	ctx := context.Background()
	repo := archive.NewInMemoryRepository()

	run := archive.NewRun(newResult(time.Now()))
	require.NoError(t, repo.Save(ctx, run))

	run.Readings = append(run.Readings, run.Readings[0])
	run.Failed = 0

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got.Readings, 1)
	assert.Equal(t, 1, got.Failed)
}

func TestInMemoryRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := archive.NewInMemoryRepository()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		run := archive.NewRun(newResult(base.Add(time.Duration(i) * time.Hour)))
		require.NoError(t, repo.Save(ctx, run))
		ids = append(ids, run.ID)
	}

	page, err := repo.List(ctx, archive.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[4], page.Items[0].ID)
	assert.Equal(t, ids[3], page.Items[1].ID)
	assert.Equal(t, ids[3], page.NextCursor)

	page, err = repo.List(ctx, archive.ListOptions{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[2], page.Items[0].ID)
	assert.Equal(t, ids[1], page.Items[1].ID)

	page, err = repo.List(ctx, archive.ListOptions{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ids[0], page.Items[0].ID)
	assert.Empty(t, page.NextCursor)
}

func TestInMemoryRepository_ListEmpty(t *testing.T) {
	page, err := archive.NewInMemoryRepository().List(context.Background(), archive.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.NextCursor)
}

func TestInMemoryRepository_ListUnknownCursor(t *testing.T) {
	repo := archive.NewInMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, archive.NewRun(newResult(time.Now()))))

	page, err := repo.List(ctx, archive.ListOptions{Cursor: "00000000-0000-0000-0000-000000000000"})
	assert.ErrorIs(t, err, archive.ErrInvalidCursor)
	assert.Nil(t, page)
}
