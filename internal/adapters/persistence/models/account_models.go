package models

import (
	"time"

	"condogate/internal/core/domain"
)

// ============================================================
// Credential Account Tables
// ============================================================

// Account is a usable credential bound to one person, one external
// identity-provider reference and one login name.
type Account struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	PersonID     uint       `gorm:"not null;index" json:"person_id"`
	Username     string     `gorm:"size:50;not null;uniqueIndex" json:"username"`
	PasswordHash *string    `gorm:"type:text" json:"-"`
	ExternalUID  string     `gorm:"size:128;not null;uniqueIndex" json:"external_uid"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	Lifecycle    `gorm:"embedded"`

	Person *Person `gorm:"foreignKey:PersonID" json:"person,omitempty"`
}

func (Account) TableName() string {
	return "accounts"
}

// AccountEvent is one append-only audit row for an account. Events are never
// updated or removed.
type AccountEvent struct {
	ID            uint                    `gorm:"primaryKey" json:"id"`
	AccountID     uint                    `gorm:"not null;index" json:"account_id"`
	Kind          domain.AccountEventKind `gorm:"size:30;not null" json:"kind"`
	Reason        *string                 `gorm:"type:text" json:"reason,omitempty"`
	ActorPersonID *uint                   `json:"actor_person_id,omitempty"`
	CreatedAt     time.Time               `gorm:"not null" json:"created_at"`
	CreatedBy     string                  `gorm:"size:20;not null" json:"created_by"`

	Account *Account `gorm:"foreignKey:AccountID" json:"-"`
}

func (AccountEvent) TableName() string {
	return "account_events"
}

// AccountResponse is the DTO returned by account endpoints.
type AccountResponse struct {
	ID          uint          `json:"id"`
	PersonID    uint          `json:"person_id"`
	Username    string        `json:"username"`
	ExternalUID string        `json:"external_uid"`
	Status      domain.Status `json:"status"`
	Deleted     bool          `json:"deleted"`
	FullName    string        `json:"full_name,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ToResponse maps an account to its DTO.
func (a *Account) ToResponse() *AccountResponse {
	resp := &AccountResponse{
		ID:          a.ID,
		PersonID:    a.PersonID,
		Username:    a.Username,
		ExternalUID: a.ExternalUID,
		Status:      a.Status,
		Deleted:     a.Deleted,
		CreatedAt:   a.CreatedAt,
	}
	if a.Person != nil {
		resp.FullName = a.Person.FullName()
	}
	return resp
}
