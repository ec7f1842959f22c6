package models

import (
	"time"

	"condogate/internal/core/domain"
)

// ============================================================
// Access Token & Access Event Tables
// ============================================================

// Visitor is a lightweight, reusable identity record scoped to one housing
// unit. Issuing several tokens for the same identification within a unit
// reuses one visitor row.
type Visitor struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	UnitID         uint   `gorm:"not null;index" json:"unit_id"`
	Identification string `gorm:"size:20;not null;index" json:"identification"`
	FirstNames     string `gorm:"size:100" json:"first_names"`
	LastNames      string `gorm:"size:100" json:"last_names"`
	Lifecycle      `gorm:"embedded"`

	Unit *HousingUnit `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
}

func (Visitor) TableName() string {
	return "visitors"
}

// FullName joins the visitor's names for display.
func (v *Visitor) FullName() string {
	return v.FirstNames + " " + v.LastNames
}

// AccessToken is a time-boxed, single-use opaque credential granting
// physical entry. State valid is the only non-terminal state; expired is
// derived from the clock at read time and only materialised opportunistically.
type AccessToken struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	AccountID  uint             `gorm:"not null;index" json:"account_id"`
	UnitID     uint             `gorm:"not null;index" json:"unit_id"`
	VisitorID  *uint            `gorm:"index" json:"visitor_id,omitempty"`
	Token      string           `gorm:"size:64;not null;uniqueIndex" json:"token"`
	ValidFrom  time.Time        `gorm:"not null" json:"valid_from"`
	ValidUntil time.Time        `gorm:"not null" json:"valid_until"`
	UsedAt     *time.Time       `json:"used_at,omitempty"`
	State      domain.TokenState `gorm:"size:20;not null" json:"state"`
	SoftDelete `gorm:"embedded"`
	Audit      `gorm:"embedded"`

	Account *Account     `gorm:"foreignKey:AccountID" json:"-"`
	Unit    *HousingUnit `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	Visitor *Visitor     `gorm:"foreignKey:VisitorID" json:"visitor,omitempty"`
}

func (AccessToken) TableName() string {
	return "access_tokens"
}

// ExpiredAt reports whether the token window has closed at instant now.
// The window is [ValidFrom, ValidUntil): the end instant itself is expired.
func (t *AccessToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ValidUntil)
}

// AccessTokenResponse is the DTO returned by token endpoints.
type AccessTokenResponse struct {
	ID         uint              `json:"id"`
	Token      string            `json:"token"`
	Channel    string            `json:"channel"`
	State      domain.TokenState `json:"state"`
	ValidFrom  time.Time         `json:"valid_from"`
	ValidUntil time.Time         `json:"valid_until"`
	Visitor    string            `json:"visitor,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ToResponse maps a token to its DTO, labelling it self or visitor issued.
func (t *AccessToken) ToResponse() *AccessTokenResponse {
	resp := &AccessTokenResponse{
		ID:         t.ID,
		Token:      t.Token,
		Channel:    "self",
		State:      t.State,
		ValidFrom:  t.ValidFrom,
		ValidUntil: t.ValidUntil,
		CreatedAt:  t.CreatedAt,
	}
	if t.VisitorID != nil {
		resp.Channel = "visitor"
		if t.Visitor != nil {
			resp.Visitor = t.Visitor.FullName()
		}
	}
	return resp
}

// AccessEvent is one immutable record of a physical-access attempt.
// Rows are never mutated; corrections soft-delete and insert a new row.
type AccessEvent struct {
	ID                 uint                 `gorm:"primaryKey" json:"id"`
	Kind               domain.AccessKind    `gorm:"size:30;not null" json:"kind"`
	UnitID             uint                 `gorm:"not null;index" json:"unit_id"`
	Outcome            domain.AccessOutcome `gorm:"size:30;not null" json:"outcome"`
	Reason             *string              `gorm:"size:30" json:"reason,omitempty"`
	GuardPersonID      *uint                `json:"guard_person_id,omitempty"`
	AuthorizerPersonID *uint                `json:"authorizer_person_id,omitempty"`
	VisitorID          *uint                `gorm:"index" json:"visitor_id,omitempty"`
	VehicleID          *uint                `json:"vehicle_id,omitempty"`
	PlateDetected      *string              `gorm:"size:10" json:"plate_detected,omitempty"`
	BiometricOK        *bool                `json:"biometric_ok,omitempty"`
	PlateOK            *bool                `json:"plate_ok,omitempty"`
	Attempts           int                  `gorm:"not null;default:0" json:"attempts"`
	Observation        *string              `gorm:"type:text" json:"observation,omitempty"`
	SoftDelete         `gorm:"embedded"`
	CreatedAt          time.Time `gorm:"not null;index" json:"created_at"`
	CreatedBy          string    `gorm:"size:20;not null" json:"created_by"`

	Unit    *HousingUnit `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	Visitor *Visitor     `gorm:"foreignKey:VisitorID" json:"visitor,omitempty"`
	Vehicle *Vehicle     `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
}

func (AccessEvent) TableName() string {
	return "access_events"
}

// PhoneAuthorization records one phone-callback authorization attempt tied
// to an access event.
type PhoneAuthorization struct {
	ID            uint                 `gorm:"primaryKey" json:"id"`
	AccessEventID uint                 `gorm:"not null;index" json:"access_event_id"`
	Phone         string               `gorm:"size:15" json:"phone"`
	Outcome       *domain.PhoneOutcome `gorm:"size:20" json:"outcome,omitempty"`
	Attempts      int                  `gorm:"not null;default:0" json:"attempts"`
	StartedAt     *time.Time           `json:"started_at,omitempty"`
	EndedAt       *time.Time           `json:"ended_at,omitempty"`
	SoftDelete    `gorm:"embedded"`
	Audit         `gorm:"embedded"`

	AccessEvent *AccessEvent `gorm:"foreignKey:AccessEventID" json:"-"`
}

func (PhoneAuthorization) TableName() string {
	return "phone_authorizations"
}

// AuthCode is a one-time numeric authorization code issued to a resident.
// It mirrors the token lifecycle: valid, then exactly one of expired, used
// or void. Only the SHA256 digest is stored.
type AuthCode struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	ResidentPersonID uint              `gorm:"not null;index" json:"resident_person_id"`
	CodeHash         string            `gorm:"size:64;not null;uniqueIndex" json:"-"`
	GeneratedAt      time.Time         `gorm:"not null" json:"generated_at"`
	ExpiresAt        time.Time         `gorm:"not null" json:"expires_at"`
	UsedAt           *time.Time        `json:"used_at,omitempty"`
	State            domain.TokenState `gorm:"size:20;not null" json:"state"`
	SoftDelete       `gorm:"embedded"`
	Audit            `gorm:"embedded"`

	ResidentPerson *Person `gorm:"foreignKey:ResidentPersonID" json:"-"`
}

func (AuthCode) TableName() string {
	return "auth_codes"
}

// ExpiredAt reports whether the code window has closed at instant now.
func (c *AuthCode) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ============================================================
// Notification Tables
// ============================================================

// Notification is one outbound message fanned out to residents.
type Notification struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	Kind           string  `gorm:"size:30;not null" json:"kind"`
	Message        string  `gorm:"type:text;not null" json:"message"`
	SenderPersonID *uint   `json:"sender_person_id,omitempty"`
	SoftDelete     `gorm:"embedded"`
	Audit          `gorm:"embedded"`

	Targets []NotificationTarget `gorm:"foreignKey:NotificationID" json:"targets,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}

// NotificationTarget is one recipient row of a notification.
type NotificationTarget struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	NotificationID    uint       `gorm:"not null;index" json:"notification_id"`
	RecipientPersonID uint       `gorm:"not null;index" json:"recipient_person_id"`
	Delivered         bool       `gorm:"not null;default:false" json:"delivered"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	Error             *string    `gorm:"type:text" json:"error,omitempty"`
	SoftDelete        `gorm:"embedded"`
	Audit             `gorm:"embedded"`
}

func (NotificationTarget) TableName() string {
	return "notification_targets"
}
