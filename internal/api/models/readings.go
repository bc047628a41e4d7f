package models

import (
	"github.com/ukair/ukair/internal/airquality"
	"github.com/ukair/ukair/internal/dashboard"
)

// DateRange is an inclusive calendar date range.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NewDateRange converts an optional domain range.
func NewDateRange(r *airquality.DateRange) *DateRange {
	if r == nil {
		return nil
	}
	return &DateRange{
		Start: r.Start.Format(airquality.DateLayout),
		End:   r.End.Format(airquality.DateLayout),
	}
}

// CollectionSummary describes how many queries a collection attempted.
type CollectionSummary struct {
	Attempted  int        `json:"attempted"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	DurationMs int64      `json:"durationMs"`
	Range      *DateRange `json:"range,omitempty"`
}

// NewCollectionSummary builds the summary of a collection result.
func NewCollectionSummary(result *airquality.Result) CollectionSummary {
	return CollectionSummary{
		Attempted:  result.Attempted,
		Succeeded:  result.Succeeded,
		Failed:     result.Failed,
		DurationMs: result.Duration.Milliseconds(),
		Range:      NewDateRange(result.Range),
	}
}

// FailedQuery identifies a query that produced no reading.
type FailedQuery struct {
	Region string `json:"region"`
	City   string `json:"city"`
	Date   string `json:"date,omitempty"`
	Error  string `json:"error"`
}

// NewFailedQueries converts collection failures.
func NewFailedQueries(failures []airquality.Failure) []FailedQuery {
	out := make([]FailedQuery, 0, len(failures))
	for _, f := range failures {
		out = append(out, FailedQuery{
			Region: f.Query.Location.Region,
			City:   f.Query.Location.City,
			Date:   f.Query.DateString(),
			Error:  f.Err.Error(),
		})
	}
	return out
}

// ReadingsResponse is the table view of a collection.
type ReadingsResponse struct {
	Summary  CollectionSummary `json:"summary"`
	Readings []dashboard.Row   `json:"readings"`
	Failures []FailedQuery     `json:"failures"`
}

// ChartResponse is the AQI bar chart series.
type ChartResponse struct {
	Summary CollectionSummary      `json:"summary"`
	Points  []dashboard.ChartPoint `json:"points"`
}

// MarkersResponse is the set of map markers.
type MarkersResponse struct {
	Summary CollectionSummary  `json:"summary"`
	Markers []dashboard.Marker `json:"markers"`
}

// PollutantInfo describes one pollutant column of a reading.
type PollutantInfo struct {
	Code        airquality.Pollutant `json:"code"`
	Label       string               `json:"label"`
	Description string               `json:"description"`
}

// NewPollutantInfos describes every reported pollutant in column order.
func NewPollutantInfos() []PollutantInfo {
	infos := make([]PollutantInfo, 0, len(airquality.Pollutants))
	for _, p := range airquality.Pollutants {
		infos = append(infos, PollutantInfo{Code: p, Label: p.Label(), Description: p.Description()})
	}
	return infos
}

// LocationsResponse lists the configured locations and the pollutants
// reported for each of them.
type LocationsResponse struct {
	Locations  []airquality.Location `json:"locations"`
	Pollutants []PollutantInfo       `json:"pollutants"`
}

// CreateRunRequest asks for a collection to be run and archived.
// Both dates empty means current conditions.
type CreateRunRequest struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}
