package repositories

import (
	"context"
	"errors"

	"condogate/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// AuthCodeRepository handles one-time gate authorization codes.
type AuthCodeRepository struct {
	db *gorm.DB
}

// NewAuthCodeRepository creates a new auth code repository.
func NewAuthCodeRepository(db *gorm.DB) *AuthCodeRepository {
	return &AuthCodeRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *AuthCodeRepository) WithTx(tx *gorm.DB) *AuthCodeRepository {
	return &AuthCodeRepository{db: tx}
}

// Create creates an auth code row.
func (r *AuthCodeRepository) Create(ctx context.Context, code *models.AuthCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

// FindByHash looks a code up by its digest, or (nil, nil). Codes are
// stored hashed, never in clear.
func (r *AuthCodeRepository) FindByHash(ctx context.Context, hash string) (*models.AuthCode, error) {
	var code models.AuthCode
	err := r.db.WithContext(ctx).
		Where("code_hash = ?", hash).
		First(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// Update saves an auth code row.
func (r *AuthCodeRepository) Update(ctx context.Context, code *models.AuthCode) error {
	return r.db.WithContext(ctx).Save(code).Error
}
