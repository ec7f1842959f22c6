package repositories

import (
	"context"
	"errors"

	"condogate/internal/adapters/persistence/models"
	"condogate/internal/core/domain"

	"gorm.io/gorm"
)

// TokenRepository handles access tokens and the visitor directory.
type TokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository.
func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *TokenRepository) WithTx(tx *gorm.DB) *TokenRepository {
	return &TokenRepository{db: tx}
}

// CreateToken creates an access token.
func (r *TokenRepository) CreateToken(ctx context.Context, token *models.AccessToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// GetTokenByID gets a token by ID with its unit and visitor.
func (r *TokenRepository) GetTokenByID(ctx context.Context, id uint) (*models.AccessToken, error) {
	var token models.AccessToken
	err := r.db.WithContext(ctx).
		Preload("Unit").
		Preload("Visitor").
		Where("id = ?", id).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// FindByValue looks a token up by its opaque string value, or (nil, nil).
// Deleted tokens are included so callers can report deletion distinctly.
func (r *TokenRepository) FindByValue(ctx context.Context, value string) (*models.AccessToken, error) {
	var token models.AccessToken
	err := r.db.WithContext(ctx).
		Preload("Unit").
		Preload("Visitor").
		Where("token = ?", value).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// UpdateToken saves a token.
func (r *TokenRepository) UpdateToken(ctx context.Context, token *models.AccessToken) error {
	return r.db.WithContext(ctx).Save(token).Error
}

// ListByAccount lists the non-deleted tokens issued by an account, newest
// first, optionally filtered by state.
func (r *TokenRepository) ListByAccount(ctx context.Context, accountID uint, state domain.TokenState, offset, limit int) ([]*models.AccessToken, int64, error) {
	var tokens []*models.AccessToken
	var total int64

	q := r.db.WithContext(ctx).Model(&models.AccessToken{}).
		Where("account_id = ? AND deleted = ?", accountID, false)
	if state != "" {
		q = q.Where("state = ?", state)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Visitor").
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&tokens).Error
	if err != nil {
		return nil, 0, err
	}
	return tokens, total, nil
}

// ListByUnit lists the non-deleted tokens scoped to a unit, newest first.
func (r *TokenRepository) ListByUnit(ctx context.Context, unitID uint, offset, limit int) ([]*models.AccessToken, int64, error) {
	var tokens []*models.AccessToken
	var total int64

	q := r.db.WithContext(ctx).Model(&models.AccessToken{}).
		Where("unit_id = ? AND deleted = ?", unitID, false)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Visitor").
		Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&tokens).Error
	if err != nil {
		return nil, 0, err
	}
	return tokens, total, nil
}

// ============================================================
// Visitors
// ============================================================

// CreateVisitor creates a visitor row.
func (r *TokenRepository) CreateVisitor(ctx context.Context, visitor *models.Visitor) error {
	return r.db.WithContext(ctx).Create(visitor).Error
}

// FindVisitor returns the non-deleted visitor identified on a unit, or
// (nil, nil). Visitor identities are reused per unit, never duplicated.
func (r *TokenRepository) FindVisitor(ctx context.Context, unitID uint, identification string) (*models.Visitor, error) {
	var visitor models.Visitor
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND identification = ? AND deleted = ?",
			unitID, identification, false).
		First(&visitor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &visitor, nil
}

// UpdateVisitor saves a visitor row.
func (r *TokenRepository) UpdateVisitor(ctx context.Context, visitor *models.Visitor) error {
	return r.db.WithContext(ctx).Save(visitor).Error
}
