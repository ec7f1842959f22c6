package handlers

import (
	"strconv"

	"condogate/internal/core/services"
	"condogate/internal/pkg/pagination"
	"condogate/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// OccupancyHandler handles unit, owner, resident and household endpoints
type OccupancyHandler struct {
	occupancyService *services.OccupancyService
}

// NewOccupancyHandler creates a new occupancy handler
func NewOccupancyHandler(occupancyService *services.OccupancyService) *OccupancyHandler {
	return &OccupancyHandler{occupancyService: occupancyService}
}

// actorFrom resolves the acting identity from the session, falling back
// to "system" for unauthenticated gate endpoints.
func actorFrom(c *fiber.Ctx) string {
	if username, ok := c.Locals("username").(string); ok && username != "" {
		return username
	}
	return "system"
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// ============================================================
// POST /api/v1/units - register a housing unit
// ============================================================
func (h *OccupancyHandler) CreateUnit(c *fiber.Ctx) error {
	var input struct {
		Block string `json:"block"`
		Unit  string `json:"unit"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	unit, err := h.occupancyService.CreateUnit(c.UserContext(), input.Block, input.Unit, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Unit created", unit)
}

// ============================================================
// GET /api/v1/units - list housing units
// ============================================================
func (h *OccupancyHandler) ListUnits(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	units, total, err := h.occupancyService.ListUnits(c.UserContext(), params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Units retrieved", pagination.NewPage(units, params, total))
}

// ============================================================
// GET /api/v1/units/:id/household - current occupancy of a unit
// ============================================================
func (h *OccupancyHandler) GetHousehold(c *fiber.Ctx) error {
	unitID, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid unit ID")
	}

	household, err := h.occupancyService.GetHousehold(c.UserContext(), unitID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Household retrieved", household)
}

// ============================================================
// POST /api/v1/owners - register the titular owner of a unit
// ============================================================
func (h *OccupancyHandler) RegisterOwner(c *fiber.Ctx) error {
	var input services.RegisterOwnerInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if input.UnitID == 0 {
		return response.BadRequest(c, "unit_id is required")
	}

	ownership, err := h.occupancyService.RegisterOwner(c.UserContext(), input, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Owner registered", ownership)
}

// ============================================================
// POST /api/v1/owners/consort - register spouse or co-owner
// ============================================================
func (h *OccupancyHandler) RegisterConsort(c *fiber.Ctx) error {
	var input services.RegisterConsortInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if input.UnitID == 0 {
		return response.BadRequest(c, "unit_id is required")
	}

	ownership, err := h.occupancyService.RegisterConsort(c.UserContext(), input, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Consort registered", ownership)
}

// ============================================================
// POST /api/v1/owners/retire - end every active ownership of a unit
// ============================================================
func (h *OccupancyHandler) RetireOwner(c *fiber.Ctx) error {
	var input struct {
		UnitID uint   `json:"unit_id"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if input.UnitID == 0 {
		return response.BadRequest(c, "unit_id is required")
	}

	if err := h.occupancyService.RetireOwner(c.UserContext(), input.UnitID, input.Reason, actorFrom(c)); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Ownership retired", nil)
}

// ============================================================
// POST /api/v1/owners/transfer - transfer the titular ownership
// ============================================================
func (h *OccupancyHandler) TransferOwnership(c *fiber.Ctx) error {
	var input services.TransferOwnershipInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if input.UnitID == 0 {
		return response.BadRequest(c, "unit_id is required")
	}

	ownership, err := h.occupancyService.TransferOwnership(c.UserContext(), input, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Ownership transferred", ownership)
}

// ============================================================
// POST /api/v1/residents - install the active resident of a unit
// ============================================================
func (h *OccupancyHandler) RegisterResident(c *fiber.Ctx) error {
	var input services.RegisterResidentInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if input.UnitID == 0 {
		return response.BadRequest(c, "unit_id is required")
	}

	residency, err := h.occupancyService.RegisterResident(c.UserContext(), input, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Resident registered", residency)
}

// ============================================================
// PATCH /api/v1/residents/:id/deactivate - end a residency
// ============================================================
func (h *OccupancyHandler) DeactivateResidency(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid residency ID")
	}

	var input struct {
		Reason string `json:"reason"`
	}
	_ = c.BodyParser(&input)

	if err := h.occupancyService.DeactivateResidency(c.UserContext(), id, input.Reason, actorFrom(c)); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Residency deactivated", nil)
}

// ============================================================
// PATCH /api/v1/residents/:id/reactivate - restore a residency
// ============================================================
func (h *OccupancyHandler) ReactivateResidency(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid residency ID")
	}

	if err := h.occupancyService.ReactivateResidency(c.UserContext(), id, actorFrom(c)); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Residency reactivated", nil)
}

// ============================================================
// POST /api/v1/members - add a family member to a household
// ============================================================
func (h *OccupancyHandler) AddFamilyMember(c *fiber.Ctx) error {
	var input services.AddMemberInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if input.UnitID == 0 {
		return response.BadRequest(c, "unit_id is required")
	}

	membership, err := h.occupancyService.AddFamilyMember(c.UserContext(), input, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Family member added", membership)
}

// ============================================================
// PATCH /api/v1/members/:id/deactivate - remove a family member
// ============================================================
func (h *OccupancyHandler) DeactivateMembership(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}

	var input struct {
		Reason string `json:"reason"`
	}
	_ = c.BodyParser(&input)

	if err := h.occupancyService.DeactivateMembership(c.UserContext(), id, input.Reason, actorFrom(c)); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Membership deactivated", nil)
}

// ============================================================
// PATCH /api/v1/members/:id/reactivate - restore a family member
// ============================================================
func (h *OccupancyHandler) ReactivateMembership(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}

	if err := h.occupancyService.ReactivateMembership(c.UserContext(), id, actorFrom(c)); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Membership reactivated", nil)
}

// ============================================================
// POST /api/v1/vehicles - register a vehicle
// ============================================================
func (h *OccupancyHandler) RegisterVehicle(c *fiber.Ctx) error {
	var input struct {
		PersonID uint   `json:"person_id"`
		Plate    string `json:"plate"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	vehicle, err := h.occupancyService.RegisterVehicle(c.UserContext(), input.PersonID, input.Plate, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Vehicle registered", vehicle)
}

// ============================================================
// POST /api/v1/guards - add a guard to the roster
// ============================================================
func (h *OccupancyHandler) RegisterGuard(c *fiber.Ctx) error {
	var input struct {
		PersonID  uint   `json:"person_id"`
		GuardCode string `json:"guard_code"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	guard, err := h.occupancyService.RegisterGuard(c.UserContext(), input.PersonID, input.GuardCode, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Guard registered", guard)
}

// ============================================================
// GET /api/v1/audit/:entity/:id - change history of one entity
// ============================================================
func (h *OccupancyHandler) ChangeLog(c *fiber.Ctx) error {
	entity := c.Params("entity")
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid entity ID")
	}

	params := pagination.GetParams(c)
	entries, total, err := h.occupancyService.ChangeLog(c.UserContext(), entity, id, params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Change log retrieved", pagination.NewPage(entries, params, total))
}

// ============================================================
// PUT /api/v1/persons/:id - amend a person's civil data
// ============================================================
func (h *OccupancyHandler) UpdatePerson(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid person ID")
	}

	var input services.UpdatePersonInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	person, err := h.occupancyService.UpdatePerson(c.UserContext(), id, input, actorFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Person updated", person)
}

// ============================================================
// GET /api/v1/units/:id - housing unit detail
// ============================================================
func (h *OccupancyHandler) GetUnit(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid unit ID")
	}

	unit, err := h.occupancyService.GetUnit(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Unit retrieved", unit)
}
