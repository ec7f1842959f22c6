package repositories

import (
	"context"
	"time"

	"condogate/internal/adapters/persistence/models"
	"condogate/internal/core/domain"

	"gorm.io/gorm"
)

// AccessRepository handles the immutable access event ledger, phone
// authorizations and the statistics queries built on top of them.
type AccessRepository struct {
	db *gorm.DB
}

// NewAccessRepository creates a new access repository.
func NewAccessRepository(db *gorm.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *AccessRepository) WithTx(tx *gorm.DB) *AccessRepository {
	return &AccessRepository{db: tx}
}

// CreateEvent appends an access event. Events are never updated after
// creation.
func (r *AccessRepository) CreateEvent(ctx context.Context, event *models.AccessEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// GetEventByID gets an access event with its unit, visitor and vehicle.
func (r *AccessRepository) GetEventByID(ctx context.Context, id uint) (*models.AccessEvent, error) {
	var event models.AccessEvent
	err := r.db.WithContext(ctx).
		Preload("Unit").
		Preload("Visitor").
		Preload("Vehicle").
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// EventFilter narrows access event listings.
type EventFilter struct {
	UnitID  uint
	Kind    domain.AccessKind
	Outcome domain.AccessOutcome
	From    *time.Time
	To      *time.Time
}

// ListEvents lists non-deleted access events matching the filter, newest
// first.
func (r *AccessRepository) ListEvents(ctx context.Context, filter EventFilter, offset, limit int) ([]*models.AccessEvent, int64, error) {
	var events []*models.AccessEvent
	var total int64

	q := r.db.WithContext(ctx).Model(&models.AccessEvent{}).Where("deleted = ?", false)
	if filter.UnitID != 0 {
		q = q.Where("unit_id = ?", filter.UnitID)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.Outcome != "" {
		q = q.Where("outcome = ?", filter.Outcome)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Unit").
		Preload("Visitor").
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// rangeQuery scopes event aggregates to non-deleted rows within [from, to].
// Columns are table-qualified so aggregates that join housing_units do not
// hit ambiguous-column errors.
func (r *AccessRepository) rangeQuery(ctx context.Context, from, to time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.AccessEvent{}).
		Where("access_events.deleted = ? AND access_events.created_at >= ? AND access_events.created_at <= ?", false, from, to)
}

// CountInRange counts events within a period.
func (r *AccessRepository) CountInRange(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.rangeQuery(ctx, from, to).Count(&count).Error
	return count, err
}

// CountByOutcomes counts events within a period whose outcome belongs to
// the given set.
func (r *AccessRepository) CountByOutcomes(ctx context.Context, from, to time.Time, outcomes []domain.AccessOutcome) (int64, error) {
	var count int64
	err := r.rangeQuery(ctx, from, to).
		Where("outcome IN ?", outcomes).
		Count(&count).Error
	return count, err
}

// CountDistinctVisitors counts distinct visitors seen within a period.
func (r *AccessRepository) CountDistinctVisitors(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.rangeQuery(ctx, from, to).
		Where("visitor_id IS NOT NULL").
		Distinct("visitor_id").
		Count(&count).Error
	return count, err
}

// BucketCount is one row of a grouped aggregate.
type BucketCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// CountByKind groups events within a period by entry kind.
func (r *AccessRepository) CountByKind(ctx context.Context, from, to time.Time) ([]BucketCount, error) {
	var rows []BucketCount
	err := r.rangeQuery(ctx, from, to).
		Select("kind AS label, COUNT(*) AS count").
		Group("kind").
		Order("count DESC, kind").
		Scan(&rows).Error
	return rows, err
}

// CountByOutcome groups events within a period by outcome.
func (r *AccessRepository) CountByOutcome(ctx context.Context, from, to time.Time) ([]BucketCount, error) {
	var rows []BucketCount
	err := r.rangeQuery(ctx, from, to).
		Select("outcome AS label, COUNT(*) AS count").
		Group("outcome").
		Order("count DESC, outcome").
		Scan(&rows).Error
	return rows, err
}

// UnitCount is one row of the busiest-units aggregate.
type UnitCount struct {
	UnitID uint   `json:"unit_id"`
	Block  string `json:"block"`
	Unit   string `json:"unit"`
	Count  int64  `json:"count"`
}

// topUnitsOrder breaks count ties deterministically by unit code.
const topUnitsOrder = "count DESC, housing_units.block ASC, housing_units.unit ASC"

// TopUnits returns the units with the most events within a period, up to
// limit rows.
func (r *AccessRepository) TopUnits(ctx context.Context, from, to time.Time, limit int) ([]UnitCount, error) {
	var rows []UnitCount
	err := r.rangeQuery(ctx, from, to).
		Select("access_events.unit_id AS unit_id, housing_units.block AS block, housing_units.unit AS unit, COUNT(*) AS count").
		Joins("JOIN housing_units ON housing_units.id = access_events.unit_id").
		Group("access_events.unit_id, housing_units.block, housing_units.unit").
		Order(topUnitsOrder).
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// ============================================================
// Phone authorizations
// ============================================================

// CreatePhoneAuthorization records a phone authorization attempt.
func (r *AccessRepository) CreatePhoneAuthorization(ctx context.Context, pa *models.PhoneAuthorization) error {
	return r.db.WithContext(ctx).Create(pa).Error
}

// ListPhoneAuthorizationsByEvent lists the phone authorization attempts
// of an access event in call order.
func (r *AccessRepository) ListPhoneAuthorizationsByEvent(ctx context.Context, eventID uint) ([]*models.PhoneAuthorization, error) {
	var rows []*models.PhoneAuthorization
	err := r.db.WithContext(ctx).
		Where("access_event_id = ?", eventID).
		Order("id").
		Find(&rows).Error
	return rows, err
}
