package handlers

import (
	"condogate/internal/core/domain"
	"condogate/internal/core/services"
	"condogate/internal/pkg/pagination"
	"condogate/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// TokenHandler handles access token (QR) endpoints
type TokenHandler struct {
	tokenService *services.TokenService
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(tokenService *services.TokenService) *TokenHandler {
	return &TokenHandler{tokenService: tokenService}
}

// sessionAccountID requires an authenticated account.
func sessionAccountID(c *fiber.Ctx) (uint, bool) {
	accountID, ok := c.Locals("accountID").(uint)
	return accountID, ok && accountID != 0
}

// ============================================================
// POST /api/v1/tokens/self - issue a token for the holder's own entry
// ============================================================
func (h *TokenHandler) IssueSelf(c *fiber.Ctx) error {
	accountID, ok := sessionAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var input services.IssueSelfTokenInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	input.AccountID = accountID

	token, err := h.tokenService.IssueSelfToken(c.UserContext(), input, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Token issued", token.ToResponse())
}

// ============================================================
// POST /api/v1/tokens/visitor - issue a token for a named visitor
// ============================================================
func (h *TokenHandler) IssueVisitor(c *fiber.Ctx) error {
	accountID, ok := sessionAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var input services.IssueVisitorTokenInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	input.AccountID = accountID

	token, err := h.tokenService.IssueVisitorToken(c.UserContext(), input, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Visitor token issued", token.ToResponse())
}

// ============================================================
// GET /api/v1/tokens/validate/:value - read-only gate check
// ============================================================
func (h *TokenHandler) Validate(c *fiber.Ctx) error {
	value := c.Params("value")
	if value == "" {
		return response.BadRequest(c, "Token value is required")
	}

	result, err := h.tokenService.Validate(c.UserContext(), value)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Token validated", result)
}

// ============================================================
// PATCH /api/v1/tokens/:id/void - cancel a valid token
// ============================================================
func (h *TokenHandler) Void(c *fiber.Ctx) error {
	accountID, ok := sessionAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid token ID")
	}

	if err := h.tokenService.Void(c.UserContext(), id, accountID, actorFrom(c)); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Token voided", nil)
}

// ============================================================
// GET /api/v1/tokens - tokens issued by the session account
// ============================================================
func (h *TokenHandler) List(c *fiber.Ctx) error {
	accountID, ok := sessionAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	params := pagination.GetParams(c)
	state := domain.TokenState(c.Query("state"))

	tokens, total, err := h.tokenService.ListByAccount(c.UserContext(), accountID, state, params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Tokens retrieved", pagination.NewPage(tokens, params, total))
}

// ============================================================
// GET /api/v1/units/:id/tokens - tokens bound to a unit
// ============================================================
func (h *TokenHandler) ListByUnit(c *fiber.Ctx) error {
	unitID, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid unit ID")
	}

	params := pagination.GetParams(c)
	tokens, total, err := h.tokenService.ListByUnit(c.UserContext(), unitID, params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Tokens retrieved", pagination.NewPage(tokens, params, total))
}
