package handlers

import (
	"time"

	"condogate/internal/adapters/persistence/repositories"
	"condogate/internal/core/domain"
	"condogate/internal/core/services"
	"condogate/internal/pkg/clock"
	"condogate/internal/pkg/pagination"
	"condogate/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AccessHandler handles gate event, statistics and one-time code endpoints
type AccessHandler struct {
	accessService   *services.AccessService
	authCodeService *services.AuthCodeService
}

// NewAccessHandler creates a new access handler
func NewAccessHandler(accessService *services.AccessService, authCodeService *services.AuthCodeService) *AccessHandler {
	return &AccessHandler{
		accessService:   accessService,
		authCodeService: authCodeService,
	}
}

// ============================================================
// POST /api/v1/access - record a gate access attempt
// ============================================================
func (h *AccessHandler) Record(c *fiber.Ctx) error {
	var input services.RecordAccessInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	event, err := h.accessService.RecordAccess(c.UserContext(), input, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Access recorded", event)
}

// ============================================================
// GET /api/v1/access/:id - access event detail
// ============================================================
func (h *AccessHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid event ID")
	}

	event, err := h.accessService.GetEvent(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Access event retrieved", event)
}

// parseTimeQuery reads an RFC3339 or date-only query parameter as a
// zone-naive instant.
func parseTimeQuery(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			naive := clock.Naive(t)
			return &naive, nil
		}
	}
	return nil, domain.Validationf("invalid %s timestamp %q", name, raw)
}

// ============================================================
// GET /api/v1/access - list access events (filters + pagination)
// ============================================================
func (h *AccessHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	filter := repositories.EventFilter{
		Kind:    domain.AccessKind(c.Query("kind")),
		Outcome: domain.AccessOutcome(c.Query("outcome")),
	}
	if unitID := c.QueryInt("unit_id"); unitID > 0 {
		filter.UnitID = uint(unitID)
	}

	var err error
	if filter.From, err = parseTimeQuery(c, "from"); err != nil {
		return response.FromError(c, err)
	}
	if filter.To, err = parseTimeQuery(c, "to"); err != nil {
		return response.FromError(c, err)
	}

	events, total, err := h.accessService.ListEvents(c.UserContext(), filter, params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Access events retrieved", pagination.NewPage(events, params, total))
}

// ============================================================
// POST /api/v1/access/:id/correct - supersede a recorded event
// ============================================================
func (h *AccessHandler) Correct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid event ID")
	}

	var input struct {
		Outcome     domain.AccessOutcome `json:"outcome"`
		Observation string               `json:"observation"`
		Reason      string               `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	event, err := h.accessService.CorrectEvent(c.UserContext(), id, input.Outcome, input.Observation, input.Reason, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Access event corrected", event)
}

// ============================================================
// POST /api/v1/access/phone - record a phone authorization attempt
// ============================================================
func (h *AccessHandler) RecordPhoneAuthorization(c *fiber.Ctx) error {
	var input services.PhoneAuthorizationInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	pa, err := h.accessService.RecordPhoneAuthorization(c.UserContext(), input, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Phone authorization recorded", pa)
}

// ============================================================
// GET /api/v1/access/statistics?from=&to= - period aggregates
// ============================================================
func (h *AccessHandler) Statistics(c *fiber.Ctx) error {
	from, err := parseTimeQuery(c, "from")
	if err != nil {
		return response.FromError(c, err)
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		return response.FromError(c, err)
	}
	if from == nil || to == nil {
		return response.BadRequest(c, "from and to are required")
	}

	stats, err := h.accessService.Statistics(c.UserContext(), *from, *to)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Statistics computed", stats)
}

// ============================================================
// POST /api/v1/codes - issue a one-time gate code
// ============================================================
func (h *AccessHandler) IssueCode(c *fiber.Ctx) error {
	var input struct {
		ResidentPersonID uint `json:"resident_person_id"`
		TTLMinutes       int  `json:"ttl_minutes"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if input.TTLMinutes <= 0 {
		input.TTLMinutes = 15
	}

	issued, err := h.authCodeService.Issue(c.UserContext(), input.ResidentPersonID,
		time.Duration(input.TTLMinutes)*time.Minute, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Code issued", issued)
}

// ============================================================
// POST /api/v1/codes/redeem - consume a one-time gate code
// ============================================================
func (h *AccessHandler) RedeemCode(c *fiber.Ctx) error {
	var input struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.authCodeService.Redeem(c.UserContext(), input.Code, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Code redeemed", result)
}
