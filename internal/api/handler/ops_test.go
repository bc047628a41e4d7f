package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukair/ukair/internal/api/handler"
	"github.com/ukair/ukair/internal/provider/resilience"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

func TestOpsHandler_HealthCheck(t *testing.T) {
	h := handler.NewOpsHandler("1.2.3", "2024-05-01T00:00:00Z", nil, nil)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "1.2.3", body["details"].(map[string]interface{})["version"])
}

func TestOpsHandler_ReadinessCheck(t *testing.T) {
	tests := []struct {
		name     string
		database handler.Pinger
		want     int
	}{
		{"no database", nil, http.StatusOK},
		{"database up", fakePinger{}, http.StatusOK},
		{"database down", fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewOpsHandler("dev", "", nil, tt.database)

			rec := httptest.NewRecorder()
			h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestOpsHandler_SystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("waqi")
	cfg.Registry = registry
	resilience.NewClient(cfg)
	registry.RecordSuccess("waqi")

	h := handler.NewOpsHandler("dev", "", registry, nil)

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "OK", body["status"])

	subsystems := body["subsystems"].([]interface{})
	require.Len(t, subsystems, 1)
	assert.Equal(t, "archive", subsystems[0].(map[string]interface{})["name"])
	assert.Equal(t, "in-memory", subsystems[0].(map[string]interface{})["detail"])

	providers := body["providers"].([]interface{})
	require.Len(t, providers, 1)
	provider := providers[0].(map[string]interface{})
	assert.Equal(t, "waqi", provider["provider"])
	assert.Equal(t, "OK", provider["status"])
	assert.Equal(t, "closed", provider["circuitState"])
	assert.Contains(t, provider, "lastSuccessAt")
}

func TestOpsHandler_SystemStatus_DatabaseDown(t *testing.T) {
	h := handler.NewOpsHandler("dev", "", nil, fakePinger{err: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "DEGRADED", body["status"])

	archiveStatus := body["subsystems"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "FAIL", archiveStatus["status"])
	assert.Equal(t, "connection refused", archiveStatus["detail"])
	assert.Empty(t, body["providers"])
}
