package handlers

import (
	"condogate/internal/core/services"
	"condogate/internal/pkg/pagination"
	"condogate/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// NotificationHandler handles household notification endpoints
type NotificationHandler struct {
	notifyService *services.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifyService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifyService: notifyService}
}

// ============================================================
// GET /api/v1/notifications - notifications addressed to the session's person
// ============================================================
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	personID := actorPersonID(c)
	if personID == nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	params := pagination.GetParams(c)
	notifications, total, err := h.notifyService.ListForPerson(c.UserContext(), *personID, params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Notifications retrieved", pagination.NewPage(notifications, params, total))
}

// ============================================================
// POST /api/v1/notifications - message a unit's household
// ============================================================
func (h *NotificationHandler) Send(c *fiber.Ctx) error {
	var input struct {
		UnitID  uint   `json:"unit_id"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if input.UnitID == 0 || input.Message == "" {
		return response.BadRequest(c, "unit_id and message are required")
	}
	if input.Kind == "" {
		input.Kind = "message"
	}

	// Delivery is asynchronous; the request only confirms acceptance.
	h.notifyService.NotifyHousehold(input.UnitID, input.Kind, input.Message, actorPersonID(c))
	return response.Success(c, "Notification queued", nil)
}
