package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ukair/ukair/internal/airquality"
	"github.com/ukair/ukair/internal/api/middleware"
	"github.com/ukair/ukair/internal/api/models"
	"github.com/ukair/ukair/internal/api/response"
	"github.com/ukair/ukair/internal/archive"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// RunsHandler runs collections on demand and serves the run archive.
type RunsHandler struct {
	collector Collector
	locations []airquality.Location
	maxDays   int
	runs      archive.Repository
	logger    zerolog.Logger
}

// NewRunsHandler creates a new RunsHandler. Runs are collected inside the
// request, so their ranges share the live limit maxDays (zero means none).
func NewRunsHandler(
	collector Collector,
	locations []airquality.Location,
	maxDays int,
	runs archive.Repository,
	logger zerolog.Logger,
) *RunsHandler {
	return &RunsHandler{
		collector: collector,
		locations: locations,
		maxDays:   maxDays,
		runs:      runs,
		logger:    logger,
	}
}

// CreateRun handles POST /v1/admin/runs - collect and archive synchronously.
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var input models.CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	dates, fieldErrors := parseDateRange(input.Start, input.End, h.maxDays)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid date range", fieldErrors)
		return
	}

	result, ok := runCollection(w, r, h.collector, h.locations, dates)
	if !ok {
		return
	}

	run := archive.NewRun(result)
	middleware.RecordRun(r.Context(), run.ID)
	if err := h.runs.Save(r.Context(), run); err != nil {
		h.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to archive run")
		response.InternalError(w, r, "failed to archive run")
		return
	}

	h.logger.Info().
		Str("run_id", run.ID).
		Str("operator", middleware.GetOperator(r.Context())).
		Int("attempted", result.Attempted).
		Int("failed", result.Failed).
		Msg("collection run archived")

	response.Created(w, r, "/v1/runs/"+run.ID, models.NewRun(run))
}

// ListRuns handles GET /v1/runs - archived runs, newest first.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunsLimit {
			response.BadRequest(w, r, "invalid limit", []models.FieldError{
				{Field: "limit", Message: "must be an integer between 1 and " + strconv.Itoa(maxRunsLimit)},
			})
			return
		}
		limit = n
	}

	page, err := h.runs.List(r.Context(), archive.ListOptions{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if errors.Is(err, archive.ErrInvalidCursor) {
		response.BadRequest(w, r, "invalid cursor", []models.FieldError{
			{Field: "cursor", Message: "must be the next_cursor of a previous page"},
		})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list runs")
		response.InternalError(w, r, "failed to list runs")
		return
	}

	list := models.RunList{
		Items: make([]models.RunSummary, 0, len(page.Items)),
		Meta:  models.PagedResponseMeta{Limit: limit},
	}
	for _, s := range page.Items {
		list.Items = append(list.Items, models.NewRunSummary(s))
	}
	if page.NextCursor != "" {
		next := page.NextCursor
		list.Meta.NextCursor = &next
	}

	response.JSON(w, r, http.StatusOK, list)
}

// GetRun handles GET /v1/runs/{runId}.
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.load(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewRun(run))
}

// GetRunCSV handles GET /v1/runs/{runId}/readings.csv.
func (h *RunsHandler) GetRunCSV(w http.ResponseWriter, r *http.Request) {
	run, ok := h.load(w, r)
	if !ok {
		return
	}
	response.CSV(w, r, csvFilename("ukair-run-"+run.ID, run.Range), run.Readings)
}

func (h *RunsHandler) load(w http.ResponseWriter, r *http.Request) (*archive.Run, bool) {
	runID := chi.URLParam(r, "runId")
	if runID == "" {
		response.BadRequest(w, r, "runId is required", nil)
		return nil, false
	}

	run, err := h.runs.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, archive.ErrRunNotFound) {
			response.NotFound(w, r, "run")
			return nil, false
		}
		h.logger.Error().Err(err).Str("run_id", runID).Msg("failed to load run")
		response.InternalError(w, r, "failed to load run")
		return nil, false
	}
	middleware.RecordRun(r.Context(), run.ID)
	return run, true
}
