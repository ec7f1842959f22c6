package repositories

import (
	"context"
	"time"

	"condogate/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// AuditRepository handles the append-only change log and the outbound
// notification queue.
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *AuditRepository) WithTx(tx *gorm.DB) *AuditRepository {
	return &AuditRepository{db: tx}
}

// AppendLog appends a change log entry. Entries are never updated.
func (r *AuditRepository) AppendLog(ctx context.Context, entry *models.Bitacora) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListLogByEntity lists the change log of one entity row, newest first.
func (r *AuditRepository) ListLogByEntity(ctx context.Context, entity, entityID string, offset, limit int) ([]*models.Bitacora, int64, error) {
	var entries []*models.Bitacora
	var total int64

	q := r.db.WithContext(ctx).Model(&models.Bitacora{}).
		Where("entity = ? AND entity_id = ?", entity, entityID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// CreateNotification creates a notification with its targets.
func (r *AuditRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// MarkNotificationDelivered flags a notification target as delivered at
// the given instant, or records the delivery error.
func (r *AuditRepository) MarkNotificationDelivered(ctx context.Context, targetID uint, at time.Time, deliveryErr *string) error {
	updates := map[string]interface{}{
		"delivered":    deliveryErr == nil,
		"delivered_at": at,
		"error":        deliveryErr,
	}
	return r.db.WithContext(ctx).
		Model(&models.NotificationTarget{}).
		Where("id = ?", targetID).
		Updates(updates).Error
}

// ListNotificationsByPerson lists notifications targeted at a person,
// newest first.
func (r *AuditRepository) ListNotificationsByPerson(ctx context.Context, personID uint, offset, limit int) ([]*models.Notification, int64, error) {
	var notifications []*models.Notification
	var total int64

	sub := r.db.Model(&models.NotificationTarget{}).
		Select("notification_id").
		Where("recipient_person_id = ?", personID)

	q := r.db.WithContext(ctx).Model(&models.Notification{}).Where("id IN (?)", sub)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&notifications).Error; err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}
