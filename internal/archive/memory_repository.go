package archive

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/ukair/ukair/internal/airquality"
)

// InMemoryRepository is an in-memory implementation of Repository.
// It is used when no database is configured and in tests.
type InMemoryRepository struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewInMemoryRepository creates a new in-memory run repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		runs: make(map[string]*Run),
	}
}

// Save stores a run.
func (r *InMemoryRepository) Save(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *run
	cpy.Readings = append([]*airquality.Reading(nil), run.Readings...)
	r.runs[run.ID] = &cpy
	return nil
}

// Get retrieves a run by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}

	// Return a copy
	cpy := *run
	return &cpy, nil
}

// List retrieves run summaries, newest first. The cursor is the ID of the
// last run on the previous page.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]Summary, 0, len(r.runs))
	for _, run := range r.runs {
		summaries = append(summaries, run.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].StartedAt.Equal(summaries[j].StartedAt) {
			return summaries[i].ID > summaries[j].ID
		}
		return summaries[i].StartedAt.After(summaries[j].StartedAt)
	})

	if opts.Cursor != "" {
		i := slices.IndexFunc(summaries, func(s Summary) bool { return s.ID == opts.Cursor })
		if i < 0 {
			return nil, ErrInvalidCursor
		}
		summaries = summaries[i+1:]
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
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

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
