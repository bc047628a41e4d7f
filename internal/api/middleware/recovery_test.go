package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukair/ukair/internal/api/middleware"
	"github.com/ukair/ukair/internal/api/models"
)

func TestRecovery_WritesProblemAndLogsWithRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Get("/v1/runs/{runId}", func(w http.ResponseWriter, r *http.Request) {
		panic("nil run")
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/abc", http.NoBody)
	req.Header.Set("X-Request-Id", "req-panic-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var problem models.Problem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&problem))
	assert.Equal(t, models.ProblemTypeInternal, problem.Type)
	assert.Equal(t, "req-panic-1", problem.TraceID)
	assert.Equal(t, "/v1/runs/abc", problem.Instance)

	lines := decodeLogLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "panic recovered", lines[0]["message"])
	assert.Equal(t, "req-panic-1", lines[0]["request_id"])
	assert.Equal(t, "/v1/runs/{runId}", lines[0]["route"])
	assert.Equal(t, "nil run", lines[0]["panic"])
	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, float64(500), lines[1]["status"])
}

func TestRecovery_WithoutLoggerUsesFallback(t *testing.T) {
	var buf bytes.Buffer

	handler := middleware.RequestID(middleware.Recovery(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/readings", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	entry := lastLogLine(t, &buf)
	assert.Equal(t, "panic recovered", entry["message"])
	assert.Contains(t, entry["request_id"], "req_")
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	handler := middleware.Recovery(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/readings.csv", http.NoBody))
	})
}
