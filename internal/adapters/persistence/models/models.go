package models

import (
	"time"

	"condogate/internal/core/domain"

	"gorm.io/gorm"
)

// ============================================================
// Occupancy Registry Tables
// ============================================================

// HousingUnit represents one dwelling identified by block+unit code.
type HousingUnit struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Block     string `gorm:"size:10;not null;uniqueIndex:uq_housing_unit" json:"block"`
	Unit      string `gorm:"size:10;not null;uniqueIndex:uq_housing_unit" json:"unit"`
	Lifecycle `gorm:"embedded"`
}

func (HousingUnit) TableName() string {
	return "housing_units"
}

// Person represents a natural person known to the complex.
//
// At most one active, non-deleted Person may exist per identification
// number. The check runs inside the registration transaction; it is not a
// plain unique index because inactive and deleted duplicates are allowed.
type Person struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Identification     string     `gorm:"size:20;not null;index" json:"identification"`
	IdentificationType string     `gorm:"size:10;not null" json:"identification_type"`
	Nationality        string     `gorm:"size:50;default:'Ecuador'" json:"nationality"`
	FirstNames         string     `gorm:"size:100;not null" json:"first_names"`
	LastNames          string     `gorm:"size:100;not null" json:"last_names"`
	BirthDate          *time.Time `json:"birth_date,omitempty"`
	Email              string     `gorm:"size:100" json:"email,omitempty"`
	Phone              string     `gorm:"size:10" json:"phone,omitempty"`
	AltAddress         string     `gorm:"size:120" json:"alt_address,omitempty"`
	Lifecycle          `gorm:"embedded"`
}

func (Person) TableName() string {
	return "persons"
}

// FullName joins first and last names for display.
func (p *Person) FullName() string {
	return p.FirstNames + " " + p.LastNames
}

// Ownership links a person to a unit as titular, spouse, co-owner or child.
type Ownership struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UnitID    uint             `gorm:"not null;index" json:"unit_id"`
	PersonID  uint             `gorm:"not null;index" json:"person_id"`
	Kind      domain.OwnerKind `gorm:"size:20;not null;default:'titular'" json:"kind"`
	FromDate  time.Time        `gorm:"not null" json:"from_date"`
	UntilDate *time.Time       `json:"until_date,omitempty"`
	Reason    *string          `gorm:"type:text" json:"reason,omitempty"`
	Lifecycle `gorm:"embedded"`

	Unit   *HousingUnit `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	Person *Person      `gorm:"foreignKey:PersonID" json:"person,omitempty"`
}

func (Ownership) TableName() string {
	return "ownerships"
}

// Residency is the occupant with day-to-day access rights over a unit.
// At most one active residency per unit; an active residency has no
// end date set.
type Residency struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UnitID    uint       `gorm:"not null;index" json:"unit_id"`
	PersonID  uint       `gorm:"not null;index" json:"person_id"`
	FromDate  time.Time  `gorm:"not null" json:"from_date"`
	UntilDate *time.Time `json:"until_date,omitempty"`
	Reason    *string    `gorm:"type:text" json:"reason,omitempty"`
	Lifecycle `gorm:"embedded"`

	Unit   *HousingUnit `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	Person *Person      `gorm:"foreignKey:PersonID" json:"person,omitempty"`
}

func (Residency) TableName() string {
	return "residencies"
}

// FamilyMembership attaches a person to a resident's household with a
// declared relation.
type FamilyMembership struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UnitID           uint            `gorm:"not null;index" json:"unit_id"`
	ResidentPersonID uint            `gorm:"not null;index" json:"resident_person_id"`
	MemberPersonID   uint            `gorm:"not null;index" json:"member_person_id"`
	Relation         domain.Relation `gorm:"size:20;not null" json:"relation"`
	RelationDetail   *string         `gorm:"size:100" json:"relation_detail,omitempty"`
	Lifecycle        `gorm:"embedded"`

	Unit           *HousingUnit `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	ResidentPerson *Person      `gorm:"foreignKey:ResidentPersonID" json:"resident_person,omitempty"`
	MemberPerson   *Person      `gorm:"foreignKey:MemberPersonID" json:"member_person,omitempty"`
}

func (FamilyMembership) TableName() string {
	return "family_memberships"
}

// Vehicle is a registered vehicle belonging to a person.
type Vehicle struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	PersonID  uint   `gorm:"not null;index" json:"person_id"`
	Plate     string `gorm:"size:10;not null;uniqueIndex" json:"plate"`
	Lifecycle `gorm:"embedded"`

	Person *Person `gorm:"foreignKey:PersonID" json:"person,omitempty"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

// Guard is a security guard on the complex roster.
type Guard struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	PersonID  uint   `gorm:"not null;index" json:"person_id"`
	GuardCode string `gorm:"size:20;not null;uniqueIndex" json:"guard_code"`
	Lifecycle `gorm:"embedded"`

	Person *Person `gorm:"foreignKey:PersonID" json:"person,omitempty"`
}

func (Guard) TableName() string {
	return "guards"
}

// ============================================================
// Audit Trail
// ============================================================

// Bitacora is a generic before/after audit snapshot. Append-only and not
// governed by business invariants.
type Bitacora struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Entity        string    `gorm:"size:50;not null" json:"entity"`
	EntityID      string    `gorm:"size:50;not null" json:"entity_id"`
	Operation     string    `gorm:"size:20;not null" json:"operation"`
	ActorPersonID *uint     `json:"actor_person_id,omitempty"`
	OldValue      *string   `gorm:"type:json" json:"old_value,omitempty"`
	NewValue      *string   `gorm:"type:json" json:"new_value,omitempty"`
	Description   *string   `gorm:"type:text" json:"description,omitempty"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	CreatedBy     string    `gorm:"size:20;not null" json:"created_by"`
}

func (Bitacora) TableName() string {
	return "bitacora"
}

// AutoMigrate creates or updates every table managed by the application.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&HousingUnit{},
		&Person{},
		&Ownership{},
		&Residency{},
		&FamilyMembership{},
		&Vehicle{},
		&Guard{},
		&Account{},
		&AccountEvent{},
		&Visitor{},
		&AccessToken{},
		&AccessEvent{},
		&PhoneAuthorization{},
		&AuthCode{},
		&Notification{},
		&NotificationTarget{},
		&Bitacora{},
	)
}
