// Package handler provides HTTP handlers for the UK air quality API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ukair/ukair/internal/api/models"
	"github.com/ukair/ukair/internal/api/response"
	"github.com/ukair/ukair/internal/provider/resilience"
)

// Pinger checks that a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	database  Pinger
}

// NewOpsHandler creates a new OpsHandler.
// registry and database may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, database Pinger) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		database:  database,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.database.Ping(ctx); err != nil {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"database": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{h.archiveStatus(r.Context())},
		Providers:  []models.ProviderStatus{},
	}

	if h.registry != nil {
		for _, ph := range h.registry.GetAllHealth() {
			status.Providers = append(status.Providers, providerStatus(ph))
		}
	}

	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}
	for _, p := range status.Providers {
		status.Status = worst(status.Status, p.Status)
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) archiveStatus(ctx context.Context) models.SubsystemStatus {
	if h.database == nil {
		detail := "in-memory"
		return models.SubsystemStatus{Name: "archive", Status: models.HealthStatusOK, Detail: &detail}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.database.Ping(ctx); err != nil {
		detail := err.Error()
		return models.SubsystemStatus{Name: "archive", Status: models.HealthStatusFail, Detail: &detail}
	}
	detail := "postgres"
	return models.SubsystemStatus{Name: "archive", Status: models.HealthStatusOK, Detail: &detail}
}

func providerStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:       ph.Name,
		Status:         models.HealthStatusOK,
		CircuitState:   ph.CircuitState.String(),
		BreakerMode:    ph.Mode.String(),
		StateChangedAt: models.TimestampPtr(ph.StateChangedAt),
		LastSuccessAt:  models.TimestampPtr(ph.LastSuccessAt),
		LastFailureAt:  models.TimestampPtr(ph.LastFailureAt),
	}
	switch {
	case ph.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case ph.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}

// worst returns the more severe of two statuses. A failing dependency only
// degrades the service as a whole.
func worst(current, next models.HealthStatus) models.HealthStatus {
	if next == models.HealthStatusOK || current == models.HealthStatusDegraded {
		return current
	}
	return models.HealthStatusDegraded
}
