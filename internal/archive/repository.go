package archive

import "context"

// ListOptions contains options for listing runs.
type ListOptions struct {
	Limit  int
	Cursor string
}

// ListResult contains the results of listing runs.
type ListResult struct {
	Items      []Summary
	NextCursor string
}

// Repository defines the interface for run persistence.
type Repository interface {
	// Save stores a run and its readings.
	Save(ctx context.Context, run *Run) error

	// Get retrieves a run with its readings.
	// Returns ErrRunNotFound if the run doesn't exist.
	Get(ctx context.Context, id string) (*Run, error)

	// List retrieves run summaries, newest first.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
}

const defaultListLimit = 50
