package handlers

import (
	"condogate/internal/core/domain"
	"condogate/internal/core/services"
	"condogate/internal/pkg/pagination"
	"condogate/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AccountHandler handles credential account endpoints
type AccountHandler struct {
	accountService *services.AccountService
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accountService *services.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// actorPersonID resolves the acting person from the session, if any.
func actorPersonID(c *fiber.Ctx) *uint {
	if personID, ok := c.Locals("personID").(uint); ok && personID != 0 {
		return &personID
	}
	return nil
}

// ============================================================
// POST /api/v1/accounts - open a credential account
// ============================================================
func (h *AccountHandler) Create(c *fiber.Ctx) error {
	var input services.CreateAccountInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if input.PersonID == 0 {
		return response.BadRequest(c, "person_id is required")
	}

	account, err := h.accountService.CreateAccount(c.UserContext(), input, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Account created", account.ToResponse())
}

// ============================================================
// GET /api/v1/accounts/:id - account detail
// ============================================================
func (h *AccountHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid account ID")
	}

	account, err := h.accountService.GetAccount(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Account retrieved", account.ToResponse())
}

// ============================================================
// PATCH /api/v1/accounts/:id/status - activate or deactivate
// ============================================================
func (h *AccountHandler) SetStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid account ID")
	}

	var input struct {
		Status  domain.Status `json:"status"`
		Reason  string        `json:"reason"`
		Cascade bool          `json:"cascade"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	cascaded, err := h.accountService.SetAccountStatus(c.UserContext(), id, input.Status, input.Reason, input.Cascade, actorFrom(c), actorPersonID(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Account status updated", fiber.Map{"accounts_cascaded": cascaded})
}

// ============================================================
// DELETE /api/v1/accounts/:id - one-way soft delete
// ============================================================
func (h *AccountHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid account ID")
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.accountService.DeleteAccount(c.UserContext(), id, input.Reason, actorFrom(c), actorPersonID(c)); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Account deleted", nil)
}

// ============================================================
// POST /api/v1/auth/login - authenticate and issue a session token
// ============================================================
func (h *AccountHandler) Login(c *fiber.Ctx) error {
	var input services.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.accountService.Authenticate(c.UserContext(), input)
	if err != nil {
		// Credential failures all collapse to one message so the
		// endpoint does not leak which accounts exist.
		return response.Unauthorized(c, "Invalid credentials")
	}
	return response.Success(c, "Login successful", result)
}

// ============================================================
// POST /api/v1/auth/change-password
// ============================================================
func (h *AccountHandler) ChangePassword(c *fiber.Ctx) error {
	accountID, ok := c.Locals("accountID").(uint)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var input struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.accountService.ChangePassword(c.UserContext(), accountID, input.OldPassword, input.NewPassword); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Password changed", nil)
}

// ============================================================
// GET /api/v1/auth/profile - occupancy view of the session account
// ============================================================
func (h *AccountHandler) Profile(c *fiber.Ctx) error {
	accountID, ok := c.Locals("accountID").(uint)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	profile, err := h.accountService.GetProfile(c.UserContext(), accountID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Profile retrieved", profile)
}

// ============================================================
// GET /api/v1/accounts/:id/events - account event ledger
// ============================================================
func (h *AccountHandler) ListEvents(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid account ID")
	}

	params := pagination.GetParams(c)
	events, total, err := h.accountService.ListEvents(c.UserContext(), id, params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Account events retrieved", pagination.NewPage(events, params, total))
}
