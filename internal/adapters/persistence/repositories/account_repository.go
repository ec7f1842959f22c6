package repositories

import (
	"context"
	"errors"

	"condogate/internal/adapters/persistence/models"
	"condogate/internal/core/domain"

	"gorm.io/gorm"
)

// AccountRepository handles credential accounts and their event ledger.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository.
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *AccountRepository) WithTx(tx *gorm.DB) *AccountRepository {
	return &AccountRepository{db: tx}
}

// Create creates an account.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// GetByID gets an account by ID with its person.
func (r *AccountRepository) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Preload("Person").
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByUsername looks up a non-deleted account by username, or (nil, nil).
func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Preload("Person").
		Where("username = ? AND deleted = ?", username, false).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindActiveByPerson returns the non-deleted account of a person, or
// (nil, nil). Inactive accounts count against person uniqueness, so the
// lookup ignores status.
func (r *AccountRepository) FindActiveByPerson(ctx context.Context, personID uint) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("person_id = ? AND deleted = ?", personID, false).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByExternalUID looks up a non-deleted account by its push gateway
// UID, or (nil, nil).
func (r *AccountRepository) FindByExternalUID(ctx context.Context, uid string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("external_uid = ? AND deleted = ?", uid, false).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Update saves an account.
func (r *AccountRepository) Update(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

// ListByPersonIDs lists the non-deleted accounts belonging to any of the
// given persons. Used by household cascades.
func (r *AccountRepository) ListByPersonIDs(ctx context.Context, personIDs []uint) ([]*models.Account, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}
	var accounts []*models.Account
	err := r.db.WithContext(ctx).
		Where("person_id IN ? AND deleted = ?", personIDs, false).
		Order("id").
		Find(&accounts).Error
	return accounts, err
}

// CreateEvent appends an account event. Events are never updated.
func (r *AccountRepository) CreateEvent(ctx context.Context, event *models.AccountEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListEventsByAccount lists the event ledger of an account, newest first.
func (r *AccountRepository) ListEventsByAccount(ctx context.Context, accountID uint, offset, limit int) ([]*models.AccountEvent, int64, error) {
	var events []*models.AccountEvent
	var total int64

	q := r.db.WithContext(ctx).Model(&models.AccountEvent{}).Where("account_id = ?", accountID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// CountEventsByKind counts events of one kind for an account.
func (r *AccountRepository) CountEventsByKind(ctx context.Context, accountID uint, kind domain.AccountEventKind) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AccountEvent{}).
		Where("account_id = ? AND kind = ?", accountID, kind).
		Count(&count).Error
	return count, err
}
