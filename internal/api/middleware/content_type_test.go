package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukair/ukair/internal/api/middleware"
	"github.com/ukair/ukair/internal/api/models"
)

func TestContentTypeJSON(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/v1/readings", "application/json"},
		{"/v1/readings.csv", ""},
		{"/v1/runs/abc/readings.csv", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var atHandler string
			handler := middleware.ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atHandler = w.Header().Get("Content-Type")
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			assert.Equal(t, tt.want, atHandler)
		})
	}
}

func TestRequireJSON(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{"json", http.MethodPost, "application/json", http.StatusCreated},
		{"json with charset", http.MethodPost, "application/json; charset=utf-8", http.StatusCreated},
		{"no content type", http.MethodPost, "", http.StatusCreated},
		{"form", http.MethodPost, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"csv", http.MethodPut, "text/csv", http.StatusUnsupportedMediaType},
		{"json lookalike", http.MethodPost, "application/jsonp", http.StatusUnsupportedMediaType},
		{"get ignores header", http.MethodGet, "text/plain", http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.RequestID(middleware.RequireJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
			})))

			req := httptest.NewRequest(tt.method, "/v1/admin/runs", strings.NewReader(`{}`))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequireJSON_WritesProblem(t *testing.T) {
	handler := middleware.RequestID(middleware.RequireJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/runs", strings.NewReader("start=2024-01-01"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Request-Id", "req-admin-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&problem))
	assert.Equal(t, models.ProblemTypeUnsupportedType, problem.Type)
	assert.Equal(t, http.StatusUnsupportedMediaType, problem.Status)
	assert.Equal(t, "req-admin-1", problem.TraceID)
	assert.Equal(t, "/v1/admin/runs", problem.Instance)
	assert.Contains(t, problem.Detail, "application/x-www-form-urlencoded")
}
