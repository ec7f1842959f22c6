package services

import (
	"context"
	"log"
	"time"

	"condogate/internal/adapters/persistence/models"
	"condogate/internal/adapters/persistence/repositories"
	"condogate/internal/core/domain"
	"condogate/internal/pkg/clock"
	"condogate/internal/pkg/password"
	"condogate/internal/pkg/token"

	"gorm.io/gorm"
)

// codeLength is the length of one-time gate codes. Short enough to read
// over the phone, long enough that guessing within the validity window is
// not practical.
const codeLength = 6

// IssuedCode carries the one-time code in clear exactly once, at issue
// time. Only its digest is persisted.
type IssuedCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedemptionResult identifies who a redeemed code belonged to.
type RedemptionResult struct {
	ResidentPersonID uint `json:"resident_person_id"`
	UnitID           uint `json:"unit_id"`
}

// AuthCodeService issues and redeems one-time numeric gate codes. Codes
// follow the same lifecycle as access tokens: valid until exactly one of
// used, expired or void, with expiry judged lazily against the clock.
type AuthCodeService struct {
	db            *gorm.DB
	authCodeRepo  *repositories.AuthCodeRepository
	occupancyRepo *repositories.OccupancyRepository
	clock         clock.Clock
}

// NewAuthCodeService creates a new auth code service.
func NewAuthCodeService(
	db *gorm.DB,
	authCodeRepo *repositories.AuthCodeRepository,
	occupancyRepo *repositories.OccupancyRepository,
	clk clock.Clock,
) *AuthCodeService {
	return &AuthCodeService{
		db:            db,
		authCodeRepo:  authCodeRepo,
		occupancyRepo: occupancyRepo,
		clock:         clk,
	}
}

// Issue generates a one-time code for an active resident, valid for ttl
// from now. The clear code is returned once and never stored.
func (s *AuthCodeService) Issue(ctx context.Context, residentPersonID uint, ttl time.Duration, actor string) (*IssuedCode, error) {
	if ttl <= 0 {
		return nil, domain.Validationf("ttl must be positive")
	}

	now := s.clock.Now()
	var issued *IssuedCode

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		occupancy := s.occupancyRepo.WithTx(tx)
		codes := s.authCodeRepo.WithTx(tx)

		residency, err := occupancy.FindActiveResidencyByPerson(ctx, residentPersonID)
		if err != nil {
			return err
		}
		if residency == nil {
			return domain.InvalidStatef("person %d is not an active resident", residentPersonID)
		}

		code, err := token.NewNumeric(codeLength)
		if err != nil {
			return domain.Internalf("code generation failed: %v", err)
		}

		row := &models.AuthCode{
			ResidentPersonID: residentPersonID,
			CodeHash:         password.HashCode(code),
			GeneratedAt:      now,
			ExpiresAt:        now.Add(ttl),
			State:            domain.TokenValid,
			Audit:            models.Audit{CreatedAt: now, CreatedBy: actor},
		}
		if err := codes.Create(ctx, row); err != nil {
			return err
		}

		issued = &IssuedCode{Code: code, ExpiresAt: row.ExpiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ One-time code issued for person %d", residentPersonID)
	return issued, nil
}

// Redeem consumes a presented code. A code past its window is materialised
// as expired on first contact; a spent or unknown code is rejected without
// side effects.
func (s *AuthCodeService) Redeem(ctx context.Context, code, actor string) (*RedemptionResult, error) {
	if code == "" {
		return nil, domain.Validationf("code is required")
	}

	now := s.clock.Now()
	var result *RedemptionResult

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		codes := s.authCodeRepo.WithTx(tx)
		occupancy := s.occupancyRepo.WithTx(tx)

		row, err := codes.FindByHash(ctx, password.HashCode(code))
		if err != nil {
			return err
		}
		if row == nil || row.Deleted {
			return domain.NotFoundf("unknown code")
		}

		switch row.State {
		case domain.TokenUsed:
			return domain.InvalidStatef("code already used")
		case domain.TokenVoid:
			return domain.InvalidStatef("code is void")
		case domain.TokenExpired:
			return domain.InvalidStatef("code expired")
		}

		if row.ExpiredAt(now) {
			row.State = domain.TokenExpired
			row.Touch(actor, now)
			if err := codes.Update(ctx, row); err != nil {
				return err
			}
			return domain.InvalidStatef("code expired")
		}

		row.State = domain.TokenUsed
		row.UsedAt = &now
		row.Touch(actor, now)
		if err := codes.Update(ctx, row); err != nil {
			return err
		}

		residency, err := occupancy.FindActiveResidencyByPerson(ctx, row.ResidentPersonID)
		if err != nil {
			return err
		}
		result = &RedemptionResult{ResidentPersonID: row.ResidentPersonID}
		if residency != nil {
			result.UnitID = residency.UnitID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ One-time code redeemed for person %d", result.ResidentPersonID)
	return result, nil
}
