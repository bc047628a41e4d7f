package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ukair/ukair/internal/airquality"
	"github.com/ukair/ukair/internal/api/middleware"
	"github.com/ukair/ukair/internal/api/models"
	"github.com/ukair/ukair/internal/api/response"
	"github.com/ukair/ukair/internal/dashboard"
)

// Collector runs a collection over a set of locations.
type Collector interface {
	Collect(ctx context.Context, locations []airquality.Location, dates *airquality.DateRange) (*airquality.Result, error)
}

// ReadingsHandler serves live collections in their table, CSV, chart and map views.
type ReadingsHandler struct {
	collector Collector
	locations []airquality.Location
	maxDays   int
}

// NewReadingsHandler creates a new ReadingsHandler. Ranges longer than
// maxDays are rejected before any fetch; zero means no limit.
func NewReadingsHandler(collector Collector, locations []airquality.Location, maxDays int) *ReadingsHandler {
	return &ReadingsHandler{
		collector: collector,
		locations: locations,
		maxDays:   maxDays,
	}
}

// ListLocations handles GET /v1/locations - configured locations and the
// pollutants reported for them.
func (h *ReadingsHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations := h.locations
	if locations == nil {
		locations = []airquality.Location{}
	}
	response.JSON(w, r, http.StatusOK, models.LocationsResponse{
		Locations:  locations,
		Pollutants: models.NewPollutantInfos(),
	})
}

// GetReadings handles GET /v1/readings - table view of a live collection.
func (h *ReadingsHandler) GetReadings(w http.ResponseWriter, r *http.Request) {
	result, ok := h.collect(w, r)
	if !ok {
		return
	}

	resp := models.ReadingsResponse{
		Summary:  models.NewCollectionSummary(result),
		Readings: dashboard.Table(result.Readings),
		Failures: models.NewFailedQueries(result.Failures),
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, resp)
}

// GetReadingsCSV handles GET /v1/readings.csv - CSV export of a live collection.
func (h *ReadingsHandler) GetReadingsCSV(w http.ResponseWriter, r *http.Request) {
	result, ok := h.collect(w, r)
	if !ok {
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.CSV(w, r, csvFilename("ukair-readings", result.Range), result.Readings)
}

// GetAQIChart handles GET /v1/charts/aqi - AQI bar chart series.
func (h *ReadingsHandler) GetAQIChart(w http.ResponseWriter, r *http.Request) {
	result, ok := h.collect(w, r)
	if !ok {
		return
	}

	resp := models.ChartResponse{
		Summary: models.NewCollectionSummary(result),
		Points:  dashboard.AQIChart(result.Readings),
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, resp)
}

// GetMarkers handles GET /v1/map/markers - current-conditions map markers.
func (h *ReadingsHandler) GetMarkers(w http.ResponseWriter, r *http.Request) {
	result, ok := h.run(w, r, nil)
	if !ok {
		return
	}

	resp := models.MarkersResponse{
		Summary: models.NewCollectionSummary(result),
		Markers: dashboard.Markers(result.Readings),
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, resp)
}

// collect parses the optional start/end query parameters and runs a collection.
// It writes the error response itself and returns false on failure.
func (h *ReadingsHandler) collect(w http.ResponseWriter, r *http.Request) (*airquality.Result, bool) {
	q := r.URL.Query()
	dates, fieldErrors := parseDateRange(q.Get("start"), q.Get("end"), h.maxDays)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid date range", fieldErrors)
		return nil, false
	}
	return h.run(w, r, dates)
}

func (h *ReadingsHandler) run(w http.ResponseWriter, r *http.Request, dates *airquality.DateRange) (*airquality.Result, bool) {
	result, ok := runCollection(w, r, h.collector, h.locations, dates)
	if !ok {
		return nil, false
	}
	if result.Attempted > 0 && result.Succeeded == 0 {
		response.UpstreamUnavailable(w, r, "no location returned a reading")
		return nil, false
	}
	return result, true
}

// runCollection runs a collection and maps configuration errors to problems.
func runCollection(
	w http.ResponseWriter,
	r *http.Request,
	collector Collector,
	locations []airquality.Location,
	dates *airquality.DateRange,
) (*airquality.Result, bool) {
	result, err := collector.Collect(r.Context(), locations, dates)
	if err != nil {
		switch {
		case errors.Is(err, airquality.ErrDateRangeTooLong):
			response.BadRequest(w, r, "invalid date range", []models.FieldError{
				{Field: "end", Message: err.Error()},
			})
		case errors.Is(err, airquality.ErrInvalidDateRange):
			response.BadRequest(w, r, "invalid date range", []models.FieldError{
				{Field: "end", Message: "must not be before start"},
			})
		default:
			response.InternalError(w, r, "collection failed")
		}
		return nil, false
	}
	middleware.RecordCollection(r.Context(), result)
	return result, true
}

// parseDateRange validates an optional start/end pair and, when maxDays is
// positive, its length. Both empty means current conditions and yields a nil range.
func parseDateRange(start, end string, maxDays int) (*airquality.DateRange, []models.FieldError) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)

	var fieldErrors []models.FieldError
	for _, f := range []struct{ name, value string }{{"start", start}, {"end", end}} {
		if f.value == "" {
			continue
		}
		if _, err := time.Parse(airquality.DateLayout, f.value); err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   f.name,
				Message: "must be a date in YYYY-MM-DD format",
			})
		}
	}
	if len(fieldErrors) > 0 {
		return nil, fieldErrors
	}

	dates, err := airquality.ParseDateRange(start, end)
	if err != nil {
		switch {
		case errors.Is(err, airquality.ErrIncompleteRange):
			missing := "start"
			if end == "" {
				missing = "end"
			}
			return nil, []models.FieldError{{Field: missing, Message: "required when the other date is given"}}
		case errors.Is(err, airquality.ErrInvalidDateRange):
			return nil, []models.FieldError{{Field: "end", Message: "must not be before start"}}
		default:
			return nil, []models.FieldError{{Field: "start", Message: err.Error()}}
		}
	}
	if dates != nil && maxDays > 0 && dates.Days() > maxDays {
		return nil, []models.FieldError{{
			Field:   "end",
			Message: fmt.Sprintf("range covers %d days, at most %d allowed", dates.Days(), maxDays),
		}}
	}
	return dates, nil
}

func csvFilename(prefix string, dates *airquality.DateRange) string {
	if dates == nil {
		return prefix + ".csv"
	}
	return prefix + "_" + dates.Start.Format(airquality.DateLayout) + "_" + dates.End.Format(airquality.DateLayout) + ".csv"
}
