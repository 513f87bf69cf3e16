package api

import (
	"github.com/gin-gonic/gin"

	"github.com/docfoundry/docfoundry/pkg/resilience"
)

// ResilienceHandler exposes the coordinator's operational surface: aggregate
// stats, per-operation breaker states, and on-demand health and backup runs.
type ResilienceHandler struct {
	coordinator *resilience.Coordinator
}

// NewResilienceHandler creates a new resilience handler
func NewResilienceHandler(coordinator *resilience.Coordinator) *ResilienceHandler {
	return &ResilienceHandler{coordinator: coordinator}
}

// Stats handles GET /api/v1/resilience/stats
func (h *ResilienceHandler) Stats(c *gin.Context) {
	SuccessResponse(c, h.coordinator.Stats())
}

// ResetStats handles POST /api/v1/resilience/stats/reset
func (h *ResilienceHandler) ResetStats(c *gin.Context) {
	h.coordinator.ResetStats()
	SuccessResponse(c, gin.H{"reset": true})
}

// Breakers handles GET /api/v1/resilience/breakers
func (h *ResilienceHandler) Breakers(c *gin.Context) {
	states := h.coordinator.BreakerStates()
	SuccessResponse(c, gin.H{
		"breakers": states,
		"count":    len(states),
	})
}

// ServiceHealth handles GET /api/v1/resilience/services
func (h *ResilienceHandler) ServiceHealth(c *gin.Context) {
	records := h.coordinator.ServiceHealthRecords()
	SuccessResponse(c, gin.H{
		"services": records,
		"count":    len(records),
	})
}

// RunHealthCheck handles POST /api/v1/resilience/health-check. It runs one
// synchronous probe cycle in addition to whatever the background loop does.
func (h *ResilienceHandler) RunHealthCheck(c *gin.Context) {
	status := h.coordinator.CheckHealth(c.Request.Context())
	SuccessResponse(c, gin.H{
		"status":   status,
		"services": h.coordinator.ServiceHealthRecords(),
	})
}

// RunBackups handles POST /api/v1/resilience/backups
func (h *ResilienceHandler) RunBackups(c *gin.Context) {
	records := h.coordinator.RunBackups(c.Request.Context())
	failed := 0
	for _, record := range records {
		if record.Outcome == resilience.BackupOutcomeFailed {
			failed++
		}
	}
	SuccessResponse(c, gin.H{
		"backups": records,
		"count":   len(records),
		"failed":  failed,
	})
}
