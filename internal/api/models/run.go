package models

import (
	"github.com/ukair/ukair/internal/archive"
	"github.com/ukair/ukair/internal/dashboard"
)

// RunSummary is an archived run without its readings.
type RunSummary struct {
	ID         string     `json:"id"`
	StartedAt  Timestamp  `json:"startedAt"`
	FinishedAt Timestamp  `json:"finishedAt"`
	Range      *DateRange `json:"range,omitempty"`
	Attempted  int        `json:"attempted"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
}

// NewRunSummary converts an archive summary.
func NewRunSummary(s archive.Summary) RunSummary {
	return RunSummary{
		ID:         s.ID,
		StartedAt:  Timestamp(s.StartedAt),
		FinishedAt: Timestamp(s.FinishedAt),
		Range:      NewDateRange(s.Range),
		Attempted:  s.Attempted,
		Succeeded:  s.Attempted - s.Failed,
		Failed:     s.Failed,
	}
}

// Run is an archived run with its readings.
type Run struct {
	RunSummary
	Readings []dashboard.Row `json:"readings"`
}

// NewRun converts an archived run.
func NewRun(r *archive.Run) Run {
	return Run{
		RunSummary: NewRunSummary(r.Summary()),
		Readings:   dashboard.Table(r.Readings),
	}
}

// RunList is a page of run summaries.
type RunList struct {
	Items []RunSummary      `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
