package repositories

import (
	"context"
	"errors"

	"condogate/internal/adapters/persistence/models"
	"condogate/internal/core/domain"

	"gorm.io/gorm"
)

// OccupancyRepository handles housing units, persons and their occupancy
// relations (ownerships, residencies, family memberships).
type OccupancyRepository struct {
	db *gorm.DB
}

// NewOccupancyRepository creates a new occupancy repository.
func NewOccupancyRepository(db *gorm.DB) *OccupancyRepository {
	return &OccupancyRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *OccupancyRepository) WithTx(tx *gorm.DB) *OccupancyRepository {
	return &OccupancyRepository{db: tx}
}

// ============================================================
// Housing Units
// ============================================================

// CreateUnit creates a housing unit.
func (r *OccupancyRepository) CreateUnit(ctx context.Context, unit *models.HousingUnit) error {
	return r.db.WithContext(ctx).Create(unit).Error
}

// GetUnitByID gets a housing unit by ID.
func (r *OccupancyRepository) GetUnitByID(ctx context.Context, id uint) (*models.HousingUnit, error) {
	var unit models.HousingUnit
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&unit).Error
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

// FindUnitByCode looks a unit up by its block+unit pair. Absent is (nil, nil).
func (r *OccupancyRepository) FindUnitByCode(ctx context.Context, block, unit string) (*models.HousingUnit, error) {
	var u models.HousingUnit
	err := r.db.WithContext(ctx).Where("block = ? AND unit = ?", block, unit).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUnits lists non-deleted units with pagination.
func (r *OccupancyRepository) ListUnits(ctx context.Context, offset, limit int) ([]*models.HousingUnit, int64, error) {
	var units []*models.HousingUnit
	var total int64

	q := r.db.WithContext(ctx).Model(&models.HousingUnit{}).Where("deleted = ?", false)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("block, unit").Offset(offset).Limit(limit).Find(&units).Error; err != nil {
		return nil, 0, err
	}
	return units, total, nil
}

// ============================================================
// Persons
// ============================================================

// CreatePerson creates a person.
func (r *OccupancyRepository) CreatePerson(ctx context.Context, person *models.Person) error {
	return r.db.WithContext(ctx).Create(person).Error
}

// GetPersonByID gets a person by ID.
func (r *OccupancyRepository) GetPersonByID(ctx context.Context, id uint) (*models.Person, error) {
	var person models.Person
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&person).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// FindActivePersonByIdentification returns the active, non-deleted person
// holding the identification number, or (nil, nil).
func (r *OccupancyRepository) FindActivePersonByIdentification(ctx context.Context, identification string) (*models.Person, error) {
	var person models.Person
	err := r.db.WithContext(ctx).
		Where("identification = ? AND status = ? AND deleted = ?",
			identification, domain.StatusActive, false).
		First(&person).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// UpdatePerson saves a person.
func (r *OccupancyRepository) UpdatePerson(ctx context.Context, person *models.Person) error {
	return r.db.WithContext(ctx).Save(person).Error
}

// ============================================================
// Ownerships
// ============================================================

// CreateOwnership creates an ownership row.
func (r *OccupancyRepository) CreateOwnership(ctx context.Context, o *models.Ownership) error {
	return r.db.WithContext(ctx).Create(o).Error
}

// UpdateOwnership saves an ownership row.
func (r *OccupancyRepository) UpdateOwnership(ctx context.Context, o *models.Ownership) error {
	return r.db.WithContext(ctx).Save(o).Error
}

// FindActiveTitular returns the active titular ownership of a unit, or
// (nil, nil).
func (r *OccupancyRepository) FindActiveTitular(ctx context.Context, unitID uint) (*models.Ownership, error) {
	var o models.Ownership
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND kind = ? AND status = ? AND deleted = ?",
			unitID, domain.OwnerTitular, domain.StatusActive, false).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// FindActiveConsort returns the active spouse or co-owner ownership of a
// unit, or (nil, nil).
func (r *OccupancyRepository) FindActiveConsort(ctx context.Context, unitID uint) (*models.Ownership, error) {
	var o models.Ownership
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND kind IN ? AND status = ? AND deleted = ?",
			unitID, []domain.OwnerKind{domain.OwnerSpouse, domain.OwnerCoOwner},
			domain.StatusActive, false).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// FindReusableOwnership returns the newest inactive, non-deleted ownership
// row of a person on a unit so transfers can reactivate instead of
// duplicating. Absent is (nil, nil).
func (r *OccupancyRepository) FindReusableOwnership(ctx context.Context, unitID, personID uint) (*models.Ownership, error) {
	var o models.Ownership
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND person_id = ? AND status = ? AND deleted = ?",
			unitID, personID, domain.StatusInactive, false).
		Order("id DESC").
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOwnershipsByUnit lists non-deleted ownerships of a unit.
func (r *OccupancyRepository) ListOwnershipsByUnit(ctx context.Context, unitID uint) ([]*models.Ownership, error) {
	var owners []*models.Ownership
	err := r.db.WithContext(ctx).
		Preload("Person").
		Where("unit_id = ? AND deleted = ?", unitID, false).
		Order("id").
		Find(&owners).Error
	return owners, err
}

// ============================================================
// Residencies
// ============================================================

// CreateResidency creates a residency row.
func (r *OccupancyRepository) CreateResidency(ctx context.Context, res *models.Residency) error {
	return r.db.WithContext(ctx).Create(res).Error
}

// UpdateResidency saves a residency row.
func (r *OccupancyRepository) UpdateResidency(ctx context.Context, res *models.Residency) error {
	return r.db.WithContext(ctx).Save(res).Error
}

// GetResidencyByID gets a residency by ID with its unit and person.
func (r *OccupancyRepository) GetResidencyByID(ctx context.Context, id uint) (*models.Residency, error) {
	var res models.Residency
	err := r.db.WithContext(ctx).
		Preload("Unit").
		Preload("Person").
		Where("id = ?", id).
		First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// FindActiveResidencyByUnit returns the active residency of a unit, or
// (nil, nil). At most one exists.
func (r *OccupancyRepository) FindActiveResidencyByUnit(ctx context.Context, unitID uint) (*models.Residency, error) {
	var res models.Residency
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND status = ? AND deleted = ?",
			unitID, domain.StatusActive, false).
		First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// FindActiveResidencyByPerson returns the active residency held by a
// person, or (nil, nil).
func (r *OccupancyRepository) FindActiveResidencyByPerson(ctx context.Context, personID uint) (*models.Residency, error) {
	var res models.Residency
	err := r.db.WithContext(ctx).
		Where("person_id = ? AND status = ? AND deleted = ?",
			personID, domain.StatusActive, false).
		First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// FindReusableResidency returns the newest inactive, non-deleted residency
// row of a person on a unit, or (nil, nil).
func (r *OccupancyRepository) FindReusableResidency(ctx context.Context, unitID, personID uint) (*models.Residency, error) {
	var res models.Residency
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND person_id = ? AND status = ? AND deleted = ?",
			unitID, personID, domain.StatusInactive, false).
		Order("id DESC").
		First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ============================================================
// Family Memberships
// ============================================================

// CreateMembership creates a family membership row.
func (r *OccupancyRepository) CreateMembership(ctx context.Context, m *models.FamilyMembership) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// UpdateMembership saves a family membership row.
func (r *OccupancyRepository) UpdateMembership(ctx context.Context, m *models.FamilyMembership) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// GetMembershipByID gets a membership by ID with its unit and persons.
func (r *OccupancyRepository) GetMembershipByID(ctx context.Context, id uint) (*models.FamilyMembership, error) {
	var m models.FamilyMembership
	err := r.db.WithContext(ctx).
		Preload("Unit").
		Preload("MemberPerson").
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindActiveMembership returns the active membership of a person on a
// unit, or (nil, nil). At most one exists per (unit, member).
func (r *OccupancyRepository) FindActiveMembership(ctx context.Context, unitID, memberPersonID uint) (*models.FamilyMembership, error) {
	var m models.FamilyMembership
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND member_person_id = ? AND status = ? AND deleted = ?",
			unitID, memberPersonID, domain.StatusActive, false).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindActiveMembershipByRelation returns the active holder of an exclusive
// relation on a unit, or (nil, nil).
func (r *OccupancyRepository) FindActiveMembershipByRelation(ctx context.Context, unitID uint, relation domain.Relation) (*models.FamilyMembership, error) {
	var m models.FamilyMembership
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND relation = ? AND status = ? AND deleted = ?",
			unitID, relation, domain.StatusActive, false).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindActiveMembershipByPerson returns the active membership held by a
// person on any unit, or (nil, nil).
func (r *OccupancyRepository) FindActiveMembershipByPerson(ctx context.Context, memberPersonID uint) (*models.FamilyMembership, error) {
	var m models.FamilyMembership
	err := r.db.WithContext(ctx).
		Where("member_person_id = ? AND status = ? AND deleted = ?",
			memberPersonID, domain.StatusActive, false).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListActiveMembershipsByUnit lists the active family memberships of a
// unit with member persons preloaded.
func (r *OccupancyRepository) ListActiveMembershipsByUnit(ctx context.Context, unitID uint) ([]*models.FamilyMembership, error) {
	var memberships []*models.FamilyMembership
	err := r.db.WithContext(ctx).
		Preload("MemberPerson").
		Where("unit_id = ? AND status = ? AND deleted = ?",
			unitID, domain.StatusActive, false).
		Order("id").
		Find(&memberships).Error
	return memberships, err
}

// ============================================================
// Vehicles & Guards
// ============================================================

// CreateVehicle creates a vehicle row.
func (r *OccupancyRepository) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	return r.db.WithContext(ctx).Create(v).Error
}

// FindVehicleByPlate looks up a non-deleted vehicle by plate, or (nil, nil).
func (r *OccupancyRepository) FindVehicleByPlate(ctx context.Context, plate string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := r.db.WithContext(ctx).
		Where("plate = ? AND deleted = ?", plate, false).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateGuard creates a guard row.
func (r *OccupancyRepository) CreateGuard(ctx context.Context, g *models.Guard) error {
	return r.db.WithContext(ctx).Create(g).Error
}

// FindActiveGuardByPerson returns the active guard record of a person, or
// (nil, nil).
func (r *OccupancyRepository) FindActiveGuardByPerson(ctx context.Context, personID uint) (*models.Guard, error) {
	var g models.Guard
	err := r.db.WithContext(ctx).
		Where("person_id = ? AND status = ? AND deleted = ?",
			personID, domain.StatusActive, false).
		First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}
