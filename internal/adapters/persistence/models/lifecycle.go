package models

import (
	"time"

	"condogate/internal/core/domain"
)

// Audit carries the creator/updater trail shared by every table. Timestamps
// are zone-naive local values supplied by the injected clock, never set by
// GORM auto-time hooks.
type Audit struct {
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	CreatedBy string     `gorm:"size:20;not null" json:"created_by"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	UpdatedBy *string    `gorm:"size:20" json:"updated_by,omitempty"`
}

// Touch records who updated the row and when.
func (a *Audit) Touch(by string, at time.Time) {
	a.UpdatedAt = &at
	a.UpdatedBy = &by
}

// SoftDelete is the one-way deletion marker. Rows are never hard-deleted.
type SoftDelete struct {
	Deleted       bool    `gorm:"not null;default:false" json:"deleted"`
	DeletedReason *string `gorm:"type:text" json:"deleted_reason,omitempty"`
}

// Lifecycle is the shared status + soft-delete + audit shape composed into
// every mutable entity. Invariant, universal: deleted implies inactive.
type Lifecycle struct {
	Status     domain.Status `gorm:"size:10;not null;default:'active'" json:"status"`
	SoftDelete `gorm:"embedded"`
	Audit      `gorm:"embedded"`
}

// NewLifecycle returns an active, non-deleted lifecycle created by the
// given actor at the given instant.
func NewLifecycle(by string, at time.Time) Lifecycle {
	return Lifecycle{
		Status: domain.StatusActive,
		Audit:  Audit{CreatedAt: at, CreatedBy: by},
	}
}

// IsActive reports whether the row is active and not deleted.
func (l *Lifecycle) IsActive() bool {
	return l.Status == domain.StatusActive && !l.Deleted
}

// Deactivate flips the row to inactive.
func (l *Lifecycle) Deactivate(by string, at time.Time) {
	l.Status = domain.StatusInactive
	l.Touch(by, at)
}

// Activate flips the row back to active. Callers must reject deleted rows
// first; activating never resurrects a deleted record.
func (l *Lifecycle) Activate(by string, at time.Time) {
	l.Status = domain.StatusActive
	l.Touch(by, at)
}

// MarkDeleted applies the one-way soft delete, forcing the status invariant
// (deleted implies inactive) in the same write.
func (l *Lifecycle) MarkDeleted(reason, by string, at time.Time) {
	l.Deleted = true
	l.DeletedReason = &reason
	l.Status = domain.StatusInactive
	l.Touch(by, at)
}
