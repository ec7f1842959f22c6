package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"condogate/internal/adapters/persistence/models"
	"condogate/internal/adapters/persistence/repositories"
	"condogate/internal/core/domain"
	"condogate/internal/pkg/clock"

	"gorm.io/gorm"
)

// serializableTx runs fn inside a serializable transaction. Every
// invariant that spans more than one row (one active titular per unit,
// one active person per identification, and so on) is checked and
// committed under this isolation level; a plain check-then-insert under
// read committed would let two concurrent registrations both pass the
// check.
func serializableTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// PersonInput carries the civil data needed to register a person.
type PersonInput struct {
	Identification     string     `json:"identification" validate:"required"`
	IdentificationType string     `json:"identification_type"`
	Nationality        string     `json:"nationality"`
	FirstNames         string     `json:"first_names" validate:"required"`
	LastNames          string     `json:"last_names" validate:"required"`
	BirthDate          *time.Time `json:"birth_date"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone"`
	AltAddress         string     `json:"alt_address"`
}

func (in *PersonInput) validate() error {
	if in.Identification == "" {
		return domain.Validationf("identification is required")
	}
	if in.FirstNames == "" || in.LastNames == "" {
		return domain.Validationf("first and last names are required")
	}
	return nil
}

// RegisterOwnerInput registers a unit owner, optionally as its resident.
type RegisterOwnerInput struct {
	UnitID       uint        `json:"unit_id" validate:"required"`
	Person       PersonInput `json:"person"`
	AlsoResident bool        `json:"also_resident"`
}

// RegisterConsortInput registers the spouse or co-owner of a unit.
type RegisterConsortInput struct {
	UnitID uint             `json:"unit_id" validate:"required"`
	Kind   domain.OwnerKind `json:"kind" validate:"required"`
	Person PersonInput      `json:"person"`
}

// RegisterResidentInput installs a person as the active resident of a unit.
// Either PersonID references an existing person or Person carries the data
// for a new one.
type RegisterResidentInput struct {
	UnitID   uint         `json:"unit_id" validate:"required"`
	PersonID uint         `json:"person_id"`
	Person   *PersonInput `json:"person,omitempty"`
}

// AddMemberInput attaches a person to the resident household of a unit.
type AddMemberInput struct {
	UnitID         uint            `json:"unit_id" validate:"required"`
	Relation       domain.Relation `json:"relation" validate:"required"`
	RelationDetail *string         `json:"relation_detail,omitempty"`
	Person         PersonInput     `json:"person"`
}

// TransferOwnershipInput replaces the titular owner of a unit.
type TransferOwnershipInput struct {
	UnitID   uint        `json:"unit_id" validate:"required"`
	NewOwner PersonInput `json:"new_owner"`
	Reason   string      `json:"reason"`
}

// OccupancyService manages housing units, persons, ownerships, residencies
// and family memberships.
type OccupancyService struct {
	db            *gorm.DB
	occupancyRepo *repositories.OccupancyRepository
	auditRepo     *repositories.AuditRepository
	clock         clock.Clock
}

// NewOccupancyService creates a new occupancy service.
func NewOccupancyService(
	db *gorm.DB,
	occupancyRepo *repositories.OccupancyRepository,
	auditRepo *repositories.AuditRepository,
	clk clock.Clock,
) *OccupancyService {
	return &OccupancyService{
		db:            db,
		occupancyRepo: occupancyRepo,
		auditRepo:     auditRepo,
		clock:         clk,
	}
}

// appendLog writes one change-log entry inside the caller's transaction.
// Log failures abort the transaction; mutations without a trail are worse
// than a rejected request.
func appendLog(ctx context.Context, repo *repositories.AuditRepository, entity string, entityID uint, operation, actor string, oldValue, newValue interface{}, at time.Time) error {
	entry := &models.Bitacora{
		Entity:    entity,
		EntityID:  strconv.FormatUint(uint64(entityID), 10),
		Operation: operation,
		CreatedAt: at,
		CreatedBy: actor,
	}
	if oldValue != nil {
		if b, err := json.Marshal(oldValue); err == nil {
			s := string(b)
			entry.OldValue = &s
		}
	}
	if newValue != nil {
		if b, err := json.Marshal(newValue); err == nil {
			s := string(b)
			entry.NewValue = &s
		}
	}
	return repo.AppendLog(ctx, entry)
}

// CreateUnit registers a housing unit. Block+unit pairs are unique across
// the complex.
func (s *OccupancyService) CreateUnit(ctx context.Context, block, unit, actor string) (*models.HousingUnit, error) {
	if block == "" || unit == "" {
		return nil, domain.Validationf("block and unit are required")
	}

	now := s.clock.Now()
	created := &models.HousingUnit{
		Block:     block,
		Unit:      unit,
		Lifecycle: models.NewLifecycle(actor, now),
	}

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)

		existing, err := repo.FindUnitByCode(ctx, block, unit)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.Conflictf("unit %s-%s already exists", block, unit)
		}
		if err := repo.CreateUnit(ctx, created); err != nil {
			return err
		}
		return appendLog(ctx, s.auditRepo.WithTx(tx), "housing_unit", created.ID, "create", actor, nil, created, now)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Housing unit %s-%s created (ID %d)", block, unit, created.ID)
	return created, nil
}

// GetUnit returns a housing unit by ID.
func (s *OccupancyService) GetUnit(ctx context.Context, id uint) (*models.HousingUnit, error) {
	unit, err := s.occupancyRepo.GetUnitByID(ctx, id)
	if err != nil {
		return nil, domain.NotFoundf("unit %d not found", id)
	}
	return unit, nil
}

// ListUnits returns non-deleted units with pagination.
func (s *OccupancyService) ListUnits(ctx context.Context, offset, limit int) ([]*models.HousingUnit, int64, error) {
	return s.occupancyRepo.ListUnits(ctx, offset, limit)
}

// findOrCreatePerson reuses the active person holding the identification or
// creates a new one. Runs inside the caller's transaction.
func findOrCreatePerson(ctx context.Context, repo *repositories.OccupancyRepository, in PersonInput, actor string, now time.Time) (*models.Person, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	existing, err := repo.FindActivePersonByIdentification(ctx, in.Identification)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return createPerson(ctx, repo, in, actor, now)
}

// createPersonStrict registers a brand-new person. Owner and consort
// registration never adopt an existing identity; a known identification is
// a conflict there, unlike resident and transfer flows which reuse it.
func createPersonStrict(ctx context.Context, repo *repositories.OccupancyRepository, in PersonInput, actor string, now time.Time) (*models.Person, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	existing, err := repo.FindActivePersonByIdentification(ctx, in.Identification)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.Conflictf("identification %s is already registered", in.Identification)
	}
	return createPerson(ctx, repo, in, actor, now)
}

func createPerson(ctx context.Context, repo *repositories.OccupancyRepository, in PersonInput, actor string, now time.Time) (*models.Person, error) {
	idType := in.IdentificationType
	if idType == "" {
		idType = "cedula"
	}
	person := &models.Person{
		Identification:     in.Identification,
		IdentificationType: idType,
		FirstNames:         in.FirstNames,
		LastNames:          in.LastNames,
		BirthDate:          in.BirthDate,
		Email:              in.Email,
		Phone:              in.Phone,
		AltAddress:         in.AltAddress,
		Lifecycle:          models.NewLifecycle(actor, now),
	}
	if in.Nationality != "" {
		person.Nationality = in.Nationality
	}
	if err := repo.CreatePerson(ctx, person); err != nil {
		return nil, err
	}
	return person, nil
}

// RegisterOwner registers the titular owner of a unit, creating the person
// if needed and optionally installing them as the unit's resident.
func (s *OccupancyService) RegisterOwner(ctx context.Context, in RegisterOwnerInput, actor string) (*models.Ownership, error) {
	now := s.clock.Now()
	var ownership *models.Ownership

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)
		audit := s.auditRepo.WithTx(tx)

		if _, err := repo.GetUnitByID(ctx, in.UnitID); err != nil {
			return domain.NotFoundf("unit %d not found", in.UnitID)
		}

		titular, err := repo.FindActiveTitular(ctx, in.UnitID)
		if err != nil {
			return err
		}
		if titular != nil {
			return domain.Conflictf("unit %d already has an active titular owner", in.UnitID)
		}

		person, err := createPersonStrict(ctx, repo, in.Person, actor, now)
		if err != nil {
			return err
		}

		ownership = &models.Ownership{
			UnitID:    in.UnitID,
			PersonID:  person.ID,
			Kind:      domain.OwnerTitular,
			FromDate:  now,
			Lifecycle: models.NewLifecycle(actor, now),
		}
		if err := repo.CreateOwnership(ctx, ownership); err != nil {
			return err
		}
		if err := appendLog(ctx, audit, "ownership", ownership.ID, "create", actor, nil, ownership, now); err != nil {
			return err
		}

		if in.AlsoResident {
			if err := s.installResident(ctx, repo, audit, in.UnitID, person.ID, actor, now); err != nil {
				return err
			}
		}
		ownership.Person = person
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Titular owner registered on unit %d (person %d)", in.UnitID, ownership.PersonID)
	return ownership, nil
}

// RegisterConsort registers the spouse or co-owner of a unit. A unit can
// hold at most one active spouse-or-co-owner, and only while a titular
// exists.
func (s *OccupancyService) RegisterConsort(ctx context.Context, in RegisterConsortInput, actor string) (*models.Ownership, error) {
	if in.Kind != domain.OwnerSpouse && in.Kind != domain.OwnerCoOwner {
		return nil, domain.Validationf("kind must be spouse or co_owner")
	}

	now := s.clock.Now()
	var ownership *models.Ownership

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)

		titular, err := repo.FindActiveTitular(ctx, in.UnitID)
		if err != nil {
			return err
		}
		if titular == nil {
			return domain.InvalidStatef("unit %d has no active titular owner", in.UnitID)
		}

		consort, err := repo.FindActiveConsort(ctx, in.UnitID)
		if err != nil {
			return err
		}
		if consort != nil {
			return domain.Conflictf("unit %d already has an active %s", in.UnitID, consort.Kind)
		}

		person, err := createPersonStrict(ctx, repo, in.Person, actor, now)
		if err != nil {
			return err
		}

		ownership = &models.Ownership{
			UnitID:    in.UnitID,
			PersonID:  person.ID,
			Kind:      in.Kind,
			FromDate:  now,
			Lifecycle: models.NewLifecycle(actor, now),
		}
		if err := repo.CreateOwnership(ctx, ownership); err != nil {
			return err
		}
		ownership.Person = person
		return appendLog(ctx, s.auditRepo.WithTx(tx), "ownership", ownership.ID, "create", actor, nil, ownership, now)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ %s registered on unit %d (person %d)", in.Kind, in.UnitID, ownership.PersonID)
	return ownership, nil
}

// installResident creates or reactivates the residency of a person on a
// unit. Runs inside the caller's transaction; the one-active-residency
// invariant is re-checked here regardless of what the caller already saw.
func (s *OccupancyService) installResident(ctx context.Context, repo *repositories.OccupancyRepository, audit *repositories.AuditRepository, unitID, personID uint, actor string, now time.Time) error {
	current, err := repo.FindActiveResidencyByUnit(ctx, unitID)
	if err != nil {
		return err
	}
	if current != nil {
		return domain.Conflictf("unit %d already has an active resident", unitID)
	}

	elsewhere, err := repo.FindActiveResidencyByPerson(ctx, personID)
	if err != nil {
		return err
	}
	if elsewhere != nil {
		return domain.Conflictf("person %d is already the active resident of unit %d", personID, elsewhere.UnitID)
	}

	// Re-registering a person who lived here before reactivates the old
	// row instead of inserting a duplicate.
	reusable, err := repo.FindReusableResidency(ctx, unitID, personID)
	if err != nil {
		return err
	}
	if reusable != nil {
		old := *reusable
		reusable.FromDate = now
		reusable.UntilDate = nil
		reusable.Reason = nil
		reusable.Activate(actor, now)
		if err := repo.UpdateResidency(ctx, reusable); err != nil {
			return err
		}
		return appendLog(ctx, audit, "residency", reusable.ID, "reactivate", actor, old, reusable, now)
	}

	residency := &models.Residency{
		UnitID:    unitID,
		PersonID:  personID,
		FromDate:  now,
		Lifecycle: models.NewLifecycle(actor, now),
	}
	if err := repo.CreateResidency(ctx, residency); err != nil {
		return err
	}
	return appendLog(ctx, audit, "residency", residency.ID, "create", actor, nil, residency, now)
}

// RegisterResident installs the active resident of a unit.
func (s *OccupancyService) RegisterResident(ctx context.Context, in RegisterResidentInput, actor string) (*models.Residency, error) {
	now := s.clock.Now()
	var residency *models.Residency

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)
		audit := s.auditRepo.WithTx(tx)

		if _, err := repo.GetUnitByID(ctx, in.UnitID); err != nil {
			return domain.NotFoundf("unit %d not found", in.UnitID)
		}

		personID := in.PersonID
		if personID == 0 {
			if in.Person == nil {
				return domain.Validationf("person_id or person data is required")
			}
			person, err := findOrCreatePerson(ctx, repo, *in.Person, actor, now)
			if err != nil {
				return err
			}
			personID = person.ID
		} else {
			person, err := repo.GetPersonByID(ctx, personID)
			if err != nil {
				return domain.NotFoundf("person %d not found", personID)
			}
			if !person.IsActive() {
				return domain.InvalidStatef("person %d is not active", personID)
			}
		}

		if err := s.installResident(ctx, repo, audit, in.UnitID, personID, actor, now); err != nil {
			return err
		}

		res, err := repo.FindActiveResidencyByUnit(ctx, in.UnitID)
		if err != nil {
			return err
		}
		residency = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Resident installed on unit %d (person %d)", in.UnitID, residency.PersonID)
	return residency, nil
}

// AddFamilyMember attaches a person to the household of a unit's active
// resident. Exclusive relations (father, mother, husband, wife) admit at
// most one active holder per unit.
func (s *OccupancyService) AddFamilyMember(ctx context.Context, in AddMemberInput, actor string) (*models.FamilyMembership, error) {
	if !in.Relation.Valid() {
		return nil, domain.Validationf("unknown relation %q", in.Relation)
	}
	if in.Relation == domain.RelationOther && (in.RelationDetail == nil || *in.RelationDetail == "") {
		return nil, domain.Validationf("relation %q requires a description", in.Relation)
	}

	now := s.clock.Now()
	var membership *models.FamilyMembership

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)

		residency, err := repo.FindActiveResidencyByUnit(ctx, in.UnitID)
		if err != nil {
			return err
		}
		if residency == nil {
			return domain.InvalidStatef("unit %d has no active resident", in.UnitID)
		}

		person, err := findOrCreatePerson(ctx, repo, in.Person, actor, now)
		if err != nil {
			return err
		}
		if person.ID == residency.PersonID {
			return domain.Validationf("the resident cannot be their own family member")
		}

		existing, err := repo.FindActiveMembership(ctx, in.UnitID, person.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.Conflictf("person %d is already an active member of unit %d", person.ID, in.UnitID)
		}

		if in.Relation.ExclusivePerUnit() {
			holder, err := repo.FindActiveMembershipByRelation(ctx, in.UnitID, in.Relation)
			if err != nil {
				return err
			}
			if holder != nil {
				return domain.Conflictf("unit %d already has an active %s", in.UnitID, in.Relation)
			}
		}

		membership = &models.FamilyMembership{
			UnitID:           in.UnitID,
			ResidentPersonID: residency.PersonID,
			MemberPersonID:   person.ID,
			Relation:         in.Relation,
			RelationDetail:   in.RelationDetail,
			Lifecycle:        models.NewLifecycle(actor, now),
		}
		if err := repo.CreateMembership(ctx, membership); err != nil {
			return err
		}
		membership.MemberPerson = person
		return appendLog(ctx, s.auditRepo.WithTx(tx), "family_membership", membership.ID, "create", actor, nil, membership, now)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Family member added on unit %d (person %d, %s)", in.UnitID, membership.MemberPersonID, in.Relation)
	return membership, nil
}

// DeactivateResidency ends the residency, recording the end date and reason.
func (s *OccupancyService) DeactivateResidency(ctx context.Context, residencyID uint, reason, actor string) error {
	now := s.clock.Now()

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)

		residency, err := repo.GetResidencyByID(ctx, residencyID)
		if err != nil {
			return domain.NotFoundf("residency %d not found", residencyID)
		}
		if !residency.IsActive() {
			return domain.InvalidStatef("residency %d is not active", residencyID)
		}

		old := *residency
		residency.UntilDate = &now
		if reason != "" {
			residency.Reason = &reason
		}
		residency.Deactivate(actor, now)
		if err := repo.UpdateResidency(ctx, residency); err != nil {
			return err
		}
		return appendLog(ctx, s.auditRepo.WithTx(tx), "residency", residency.ID, "deactivate", actor, old, residency, now)
	})
	if err != nil {
		return err
	}

	log.Printf("✅ Residency %d deactivated", residencyID)
	return nil
}

// ReactivateResidency restores an ended residency, subject to the same
// uniqueness checks as a fresh registration. Deleted rows stay down.
func (s *OccupancyService) ReactivateResidency(ctx context.Context, residencyID uint, actor string) error {
	now := s.clock.Now()

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)

		residency, err := repo.GetResidencyByID(ctx, residencyID)
		if err != nil {
			return domain.NotFoundf("residency %d not found", residencyID)
		}
		if residency.Deleted {
			return domain.InvalidStatef("residency %d is deleted", residencyID)
		}
		if residency.IsActive() {
			return domain.InvalidStatef("residency %d is already active", residencyID)
		}

		current, err := repo.FindActiveResidencyByUnit(ctx, residency.UnitID)
		if err != nil {
			return err
		}
		if current != nil {
			return domain.Conflictf("unit %d already has an active resident", residency.UnitID)
		}
		elsewhere, err := repo.FindActiveResidencyByPerson(ctx, residency.PersonID)
		if err != nil {
			return err
		}
		if elsewhere != nil {
			return domain.Conflictf("person %d is already the active resident of unit %d", residency.PersonID, elsewhere.UnitID)
		}

		old := *residency
		residency.UntilDate = nil
		residency.Reason = nil
		residency.Activate(actor, now)
		if err := repo.UpdateResidency(ctx, residency); err != nil {
			return err
		}
		return appendLog(ctx, s.auditRepo.WithTx(tx), "residency", residency.ID, "reactivate", actor, old, residency, now)
	})
	if err != nil {
		return err
	}

	log.Printf("✅ Residency %d reactivated", residencyID)
	return nil
}

// DeactivateMembership removes a family member from the active household.
func (s *OccupancyService) DeactivateMembership(ctx context.Context, membershipID uint, reason, actor string) error {
	now := s.clock.Now()

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)

		membership, err := repo.GetMembershipByID(ctx, membershipID)
		if err != nil {
			return domain.NotFoundf("membership %d not found", membershipID)
		}
		if !membership.IsActive() {
			return domain.InvalidStatef("membership %d is not active", membershipID)
		}

		old := *membership
		membership.Deactivate(actor, now)
		if err := repo.UpdateMembership(ctx, membership); err != nil {
			return err
		}
		entry := &models.Bitacora{
			Entity:    "family_membership",
			EntityID:  strconv.FormatUint(uint64(membership.ID), 10),
			Operation: "deactivate",
			CreatedAt: now,
			CreatedBy: actor,
		}
		if reason != "" {
			entry.Description = &reason
		}
		if b, err := json.Marshal(old); err == nil {
			v := string(b)
			entry.OldValue = &v
		}
		if b, err := json.Marshal(membership); err == nil {
			v := string(b)
			entry.NewValue = &v
		}
		return s.auditRepo.WithTx(tx).AppendLog(ctx, entry)
	})
	if err != nil {
		return err
	}

	log.Printf("✅ Membership %d deactivated", membershipID)
	return nil
}

// ReactivateMembership restores a deactivated family member, re-checking
// relation exclusivity against the current household.
func (s *OccupancyService) ReactivateMembership(ctx context.Context, membershipID uint, actor string) error {
	now := s.clock.Now()

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)

		membership, err := repo.GetMembershipByID(ctx, membershipID)
		if err != nil {
			return domain.NotFoundf("membership %d not found", membershipID)
		}
		if membership.Deleted {
			return domain.InvalidStatef("membership %d is deleted", membershipID)
		}
		if membership.IsActive() {
			return domain.InvalidStatef("membership %d is already active", membershipID)
		}

		existing, err := repo.FindActiveMembership(ctx, membership.UnitID, membership.MemberPersonID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.Conflictf("person %d is already an active member of unit %d", membership.MemberPersonID, membership.UnitID)
		}
		if membership.Relation.ExclusivePerUnit() {
			holder, err := repo.FindActiveMembershipByRelation(ctx, membership.UnitID, membership.Relation)
			if err != nil {
				return err
			}
			if holder != nil {
				return domain.Conflictf("unit %d already has an active %s", membership.UnitID, membership.Relation)
			}
		}

		old := *membership
		membership.Activate(actor, now)
		if err := repo.UpdateMembership(ctx, membership); err != nil {
			return err
		}
		return appendLog(ctx, s.auditRepo.WithTx(tx), "family_membership", membership.ID, "reactivate", actor, old, membership, now)
	})
	if err != nil {
		return err
	}

	log.Printf("✅ Membership %d reactivated", membershipID)
	return nil
}

// RetireOwner ends every active ownership on the unit (titular plus spouse
// or co-owner) in one transaction, stamping end dates and the reason.
func (s *OccupancyService) RetireOwner(ctx context.Context, unitID uint, reason, actor string) error {
	now := s.clock.Now()

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)
		audit := s.auditRepo.WithTx(tx)

		if _, err := repo.GetUnitByID(ctx, unitID); err != nil {
			return domain.NotFoundf("unit %d not found", unitID)
		}

		titular, err := repo.FindActiveTitular(ctx, unitID)
		if err != nil {
			return err
		}
		if titular == nil {
			return domain.InvalidStatef("unit %d has no active titular owner", unitID)
		}

		retire := func(o *models.Ownership) error {
			old := *o
			o.UntilDate = &now
			if reason != "" {
				o.Reason = &reason
			}
			o.Deactivate(actor, now)
			if err := repo.UpdateOwnership(ctx, o); err != nil {
				return err
			}
			return appendLog(ctx, audit, "ownership", o.ID, "retire", actor, old, o, now)
		}

		if err := retire(titular); err != nil {
			return err
		}

		consort, err := repo.FindActiveConsort(ctx, unitID)
		if err != nil {
			return err
		}
		if consort != nil {
			if err := retire(consort); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("✅ Ownership retired on unit %d", unitID)
	return nil
}

// TransferOwnership retires the current titular (and consort) and installs
// the new owner in the same transaction. A returning owner's old ownership
// row is reactivated rather than duplicated. When the departing titular
// held the residency, the residency moves to the new owner atomically so
// the unit is never left with a stale resident.
func (s *OccupancyService) TransferOwnership(ctx context.Context, in TransferOwnershipInput, actor string) (*models.Ownership, error) {
	now := s.clock.Now()
	var newOwnership *models.Ownership

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)
		audit := s.auditRepo.WithTx(tx)

		titular, err := repo.FindActiveTitular(ctx, in.UnitID)
		if err != nil {
			return err
		}
		if titular == nil {
			return domain.NotFoundf("unit %d has no active titular owner", in.UnitID)
		}

		newOwner, err := findOrCreatePerson(ctx, repo, in.NewOwner, actor, now)
		if err != nil {
			return err
		}
		if newOwner.ID == titular.PersonID {
			return domain.Validationf("new owner is already the titular of unit %d", in.UnitID)
		}

		reason := in.Reason
		if reason == "" {
			reason = "ownership transfer"
		}

		retire := func(o *models.Ownership) error {
			old := *o
			o.UntilDate = &now
			o.Reason = &reason
			o.Deactivate(actor, now)
			if err := repo.UpdateOwnership(ctx, o); err != nil {
				return err
			}
			return appendLog(ctx, audit, "ownership", o.ID, "retire", actor, old, o, now)
		}
		if err := retire(titular); err != nil {
			return err
		}
		consort, err := repo.FindActiveConsort(ctx, in.UnitID)
		if err != nil {
			return err
		}
		if consort != nil {
			if err := retire(consort); err != nil {
				return err
			}
		}

		reusable, err := repo.FindReusableOwnership(ctx, in.UnitID, newOwner.ID)
		if err != nil {
			return err
		}
		if reusable != nil {
			old := *reusable
			reusable.Kind = domain.OwnerTitular
			reusable.FromDate = now
			reusable.UntilDate = nil
			reusable.Reason = nil
			reusable.Activate(actor, now)
			if err := repo.UpdateOwnership(ctx, reusable); err != nil {
				return err
			}
			if err := appendLog(ctx, audit, "ownership", reusable.ID, "reactivate", actor, old, reusable, now); err != nil {
				return err
			}
			newOwnership = reusable
		} else {
			newOwnership = &models.Ownership{
				UnitID:    in.UnitID,
				PersonID:  newOwner.ID,
				Kind:      domain.OwnerTitular,
				FromDate:  now,
				Lifecycle: models.NewLifecycle(actor, now),
			}
			if err := repo.CreateOwnership(ctx, newOwnership); err != nil {
				return err
			}
			if err := appendLog(ctx, audit, "ownership", newOwnership.ID, "create", actor, nil, newOwnership, now); err != nil {
				return err
			}
		}

		// Residency continuity: when the outgoing titular was also the
		// active resident, the incoming titular takes over the residency
		// in the same transaction. Any other resident is untouched.
		residency, err := repo.FindActiveResidencyByUnit(ctx, in.UnitID)
		if err != nil {
			return err
		}
		if residency != nil && residency.PersonID == titular.PersonID {
			old := *residency
			residency.UntilDate = &now
			residency.Reason = &reason
			residency.Deactivate(actor, now)
			if err := repo.UpdateResidency(ctx, residency); err != nil {
				return err
			}
			if err := appendLog(ctx, audit, "residency", residency.ID, "deactivate", actor, old, residency, now); err != nil {
				return err
			}
			if err := s.installResident(ctx, repo, audit, in.UnitID, newOwner.ID, actor, now); err != nil {
				return err
			}
		}

		newOwnership.Person = newOwner
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Ownership of unit %d transferred to person %d", in.UnitID, newOwnership.PersonID)
	return newOwnership, nil
}

// GetHousehold returns the active resident and family members of a unit.
type Household struct {
	Unit       *models.HousingUnit        `json:"unit"`
	Residency  *models.Residency          `json:"residency,omitempty"`
	Owners     []*models.Ownership        `json:"owners"`
	Members    []*models.FamilyMembership `json:"members"`
}

// GetHousehold assembles the unit's current occupancy picture.
func (s *OccupancyService) GetHousehold(ctx context.Context, unitID uint) (*Household, error) {
	unit, err := s.occupancyRepo.GetUnitByID(ctx, unitID)
	if err != nil {
		return nil, domain.NotFoundf("unit %d not found", unitID)
	}

	residency, err := s.occupancyRepo.FindActiveResidencyByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if residency != nil {
		person, err := s.occupancyRepo.GetPersonByID(ctx, residency.PersonID)
		if err == nil {
			residency.Person = person
		}
	}

	owners, err := s.occupancyRepo.ListOwnershipsByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	members, err := s.occupancyRepo.ListActiveMembershipsByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	return &Household{Unit: unit, Residency: residency, Owners: owners, Members: members}, nil
}

// householdPersonIDs collects the person IDs attached to a unit's active
// household: the resident plus active family members. Computed fresh at
// call time inside the caller's transaction.
func householdPersonIDs(ctx context.Context, repo *repositories.OccupancyRepository, unitID uint) ([]uint, error) {
	var ids []uint

	residency, err := repo.FindActiveResidencyByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if residency != nil {
		ids = append(ids, residency.PersonID)
	}

	members, err := repo.ListActiveMembershipsByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		ids = append(ids, m.MemberPersonID)
	}
	return ids, nil
}

// RegisterVehicle attaches a vehicle to a person. Plates are unique.
func (s *OccupancyService) RegisterVehicle(ctx context.Context, personID uint, plate, actor string) (*models.Vehicle, error) {
	if plate == "" {
		return nil, domain.Validationf("plate is required")
	}

	now := s.clock.Now()
	vehicle := &models.Vehicle{
		PersonID:  personID,
		Plate:     plate,
		Lifecycle: models.NewLifecycle(actor, now),
	}

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)

		if _, err := repo.GetPersonByID(ctx, personID); err != nil {
			return domain.NotFoundf("person %d not found", personID)
		}
		existing, err := repo.FindVehicleByPlate(ctx, plate)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.Conflictf("plate %s is already registered", plate)
		}
		if err := repo.CreateVehicle(ctx, vehicle); err != nil {
			return err
		}
		return appendLog(ctx, s.auditRepo.WithTx(tx), "vehicle", vehicle.ID, "create", actor, nil, vehicle, now)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Vehicle %s registered for person %d", plate, personID)
	return vehicle, nil
}

// RegisterGuard adds a person to the guard roster.
func (s *OccupancyService) RegisterGuard(ctx context.Context, personID uint, guardCode, actor string) (*models.Guard, error) {
	if guardCode == "" {
		return nil, domain.Validationf("guard code is required")
	}

	now := s.clock.Now()
	guard := &models.Guard{
		PersonID:  personID,
		GuardCode: guardCode,
		Lifecycle: models.NewLifecycle(actor, now),
	}

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)

		if _, err := repo.GetPersonByID(ctx, personID); err != nil {
			return domain.NotFoundf("person %d not found", personID)
		}
		existing, err := repo.FindActiveGuardByPerson(ctx, personID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.Conflictf("person %d is already an active guard", personID)
		}
		if err := repo.CreateGuard(ctx, guard); err != nil {
			return err
		}
		return appendLog(ctx, s.auditRepo.WithTx(tx), "guard", guard.ID, "create", actor, nil, guard, now)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Guard %s registered (person %d)", guardCode, personID)
	return guard, nil
}

// ChangeLog returns the recorded change history of one entity, newest
// first. Entity names match the ones written at mutation time ("unit",
// "ownership", "residency", "membership", "account", "vehicle", "guard").
func (s *OccupancyService) ChangeLog(ctx context.Context, entity string, entityID uint, offset, limit int) ([]*models.Bitacora, int64, error) {
	if entity == "" {
		return nil, 0, domain.Validationf("entity is required")
	}
	return s.auditRepo.ListLogByEntity(ctx, entity, strconv.FormatUint(uint64(entityID), 10), offset, limit)
}

// UpdatePersonInput carries the civil fields a person may amend. The
// identification itself is identity and never changes.
type UpdatePersonInput struct {
	FirstNames string     `json:"first_names"`
	LastNames  string     `json:"last_names"`
	BirthDate  *time.Time `json:"birth_date"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	AltAddress string     `json:"alt_address"`
}

// UpdatePerson amends a person's civil data, logging the before and after
// snapshots.
func (s *OccupancyService) UpdatePerson(ctx context.Context, personID uint, in UpdatePersonInput, actor string) (*models.Person, error) {
	now := s.clock.Now()
	var updated *models.Person

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := s.occupancyRepo.WithTx(tx)

		person, err := repo.GetPersonByID(ctx, personID)
		if err != nil {
			return domain.NotFoundf("person %d not found", personID)
		}
		before := *person

		if in.FirstNames != "" {
			person.FirstNames = in.FirstNames
		}
		if in.LastNames != "" {
			person.LastNames = in.LastNames
		}
		if in.BirthDate != nil {
			person.BirthDate = in.BirthDate
		}
		if in.Email != "" {
			person.Email = in.Email
		}
		if in.Phone != "" {
			person.Phone = in.Phone
		}
		if in.AltAddress != "" {
			person.AltAddress = in.AltAddress
		}
		person.Touch(actor, now)

		if err := repo.UpdatePerson(ctx, person); err != nil {
			return err
		}
		updated = person
		return appendLog(ctx, s.auditRepo.WithTx(tx), "person", person.ID, "update", actor, before, person, now)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Person %d updated", personID)
	return updated, nil
}
