package handlers

import (
	"condogate/internal/config"
	"condogate/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check endpoints
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ============================================================
// GET /api/v1/health - liveness + database check
// ============================================================
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "up"
	if err := config.HealthCheck(); err != nil {
		dbStatus = "down"
	}

	return response.Success(c, "Service is healthy", fiber.Map{
		"status":   "ok",
		"database": dbStatus,
	})
}
