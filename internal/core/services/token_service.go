package services

import (
	"context"
	"log"
	"time"

	"condogate/internal/adapters/persistence/models"
	"condogate/internal/adapters/persistence/repositories"
	"condogate/internal/core/domain"
	"condogate/internal/pkg/clock"
	"condogate/internal/pkg/token"

	"gorm.io/gorm"
)

// IssueSelfTokenInput issues a token for the account holder's own entry.
type IssueSelfTokenInput struct {
	AccountID  uint      `json:"account_id" validate:"required"`
	ValidFrom  time.Time `json:"valid_from" validate:"required"`
	ValidUntil time.Time `json:"valid_until" validate:"required"`
}

// IssueVisitorTokenInput issues a token for a named visitor of the
// account holder's unit.
type IssueVisitorTokenInput struct {
	AccountID      uint      `json:"account_id" validate:"required"`
	Identification string    `json:"identification" validate:"required"`
	FirstNames     string    `json:"first_names"`
	LastNames      string    `json:"last_names"`
	ValidFrom      time.Time `json:"valid_from" validate:"required"`
	ValidUntil     time.Time `json:"valid_until" validate:"required"`
}

// ValidationResult is the read-only verdict on a presented token.
type ValidationResult struct {
	OK      bool                        `json:"ok"`
	Reason  domain.AccessOutcome        `json:"reason,omitempty"`
	Token   *models.AccessToken         `json:"-"`
	Detail  *models.AccessTokenResponse `json:"token,omitempty"`
}

// TokenService issues, validates and consumes access tokens.
type TokenService struct {
	db          *gorm.DB
	tokenRepo   *repositories.TokenRepository
	accountRepo *repositories.AccountRepository
	occupancy   *repositories.OccupancyRepository
	notifier    *NotificationService
	clock       clock.Clock
	tokenLength int
}

// NewTokenService creates a new token service.
func NewTokenService(
	db *gorm.DB,
	tokenRepo *repositories.TokenRepository,
	accountRepo *repositories.AccountRepository,
	occupancy *repositories.OccupancyRepository,
	notifier *NotificationService,
	clk clock.Clock,
	tokenLength int,
) *TokenService {
	if tokenLength <= 0 {
		tokenLength = token.DefaultLength
	}
	return &TokenService{
		db:          db,
		tokenRepo:   tokenRepo,
		accountRepo: accountRepo,
		occupancy:   occupancy,
		notifier:    notifier,
		clock:       clk,
		tokenLength: tokenLength,
	}
}

// issuerUnit resolves the unit an account may issue tokens for. The
// account must be active and its person an active occupant.
func (s *TokenService) issuerUnit(ctx context.Context, accounts *repositories.AccountRepository, occupancy *repositories.OccupancyRepository, accountID uint) (*models.Account, uint, error) {
	account, err := accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, 0, domain.NotFoundf("account %d not found", accountID)
	}
	if !account.IsActive() {
		return nil, 0, domain.InvalidStatef("account %d is not active", accountID)
	}

	role, unitID, err := occupantRole(ctx, occupancy, account.PersonID)
	if err != nil {
		return nil, 0, err
	}
	if role == "" {
		return nil, 0, domain.Conflictf("account %d has no active occupancy", accountID)
	}
	return account, unitID, nil
}

func validateWindow(validFrom, validUntil, now time.Time) error {
	if validFrom.IsZero() || validUntil.IsZero() {
		return domain.Validationf("valid_from and valid_until are required")
	}
	if !validFrom.Before(validUntil) {
		return domain.Validationf("valid_from must precede valid_until")
	}
	if validFrom.Before(now) {
		return domain.Validationf("valid_from cannot be in the past")
	}
	return nil
}

// IssueSelfToken issues an entry token bound to the account holder's own
// unit, with no visitor attached.
func (s *TokenService) IssueSelfToken(ctx context.Context, in IssueSelfTokenInput, actor string) (*models.AccessToken, error) {
	now := s.clock.Now()
	in.ValidFrom = clock.Naive(in.ValidFrom)
	in.ValidUntil = clock.Naive(in.ValidUntil)
	if err := validateWindow(in.ValidFrom, in.ValidUntil, now); err != nil {
		return nil, err
	}

	var issued *models.AccessToken

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		tokens := s.tokenRepo.WithTx(tx)

		account, unitID, err := s.issuerUnit(ctx, s.accountRepo.WithTx(tx), s.occupancy.WithTx(tx), in.AccountID)
		if err != nil {
			return err
		}

		value, err := token.New(s.tokenLength)
		if err != nil {
			return domain.Internalf("token generation failed: %v", err)
		}

		issued = &models.AccessToken{
			AccountID:  account.ID,
			UnitID:     unitID,
			Token:      value,
			ValidFrom:  in.ValidFrom,
			ValidUntil: in.ValidUntil,
			State:      domain.TokenValid,
			Audit:      models.Audit{CreatedAt: now, CreatedBy: actor},
		}
		return tokens.CreateToken(ctx, issued)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Self token issued for account %d (unit %d)", in.AccountID, issued.UnitID)
	s.notifier.TokenIssued(issued)
	return issued, nil
}

// IssueVisitorToken issues an entry token for a named visitor. The visitor
// identity is stored once per (unit, identification) pair; repeat visits
// reuse the existing row.
func (s *TokenService) IssueVisitorToken(ctx context.Context, in IssueVisitorTokenInput, actor string) (*models.AccessToken, error) {
	if in.Identification == "" {
		return nil, domain.Validationf("visitor identification is required")
	}
	now := s.clock.Now()
	in.ValidFrom = clock.Naive(in.ValidFrom)
	in.ValidUntil = clock.Naive(in.ValidUntil)
	if err := validateWindow(in.ValidFrom, in.ValidUntil, now); err != nil {
		return nil, err
	}

	var issued *models.AccessToken

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		tokens := s.tokenRepo.WithTx(tx)

		account, unitID, err := s.issuerUnit(ctx, s.accountRepo.WithTx(tx), s.occupancy.WithTx(tx), in.AccountID)
		if err != nil {
			return err
		}

		visitor, err := tokens.FindVisitor(ctx, unitID, in.Identification)
		if err != nil {
			return err
		}
		if visitor == nil {
			visitor = &models.Visitor{
				UnitID:         unitID,
				Identification: in.Identification,
				FirstNames:     in.FirstNames,
				LastNames:      in.LastNames,
				Lifecycle:      models.NewLifecycle(actor, now),
			}
			if err := tokens.CreateVisitor(ctx, visitor); err != nil {
				return err
			}
		} else if in.FirstNames != "" || in.LastNames != "" {
			// Repeat visit may correct the stored names.
			visitor.FirstNames = in.FirstNames
			visitor.LastNames = in.LastNames
			visitor.Touch(actor, now)
			if err := tokens.UpdateVisitor(ctx, visitor); err != nil {
				return err
			}
		}

		value, err := token.New(s.tokenLength)
		if err != nil {
			return domain.Internalf("token generation failed: %v", err)
		}

		issued = &models.AccessToken{
			AccountID:  account.ID,
			UnitID:     unitID,
			VisitorID:  &visitor.ID,
			Token:      value,
			ValidFrom:  in.ValidFrom,
			ValidUntil: in.ValidUntil,
			State:      domain.TokenValid,
			Audit:      models.Audit{CreatedAt: now, CreatedBy: actor},
		}
		if err := tokens.CreateToken(ctx, issued); err != nil {
			return err
		}
		issued.Visitor = visitor
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Visitor token issued for account %d (unit %d, visitor %d)", in.AccountID, issued.UnitID, *issued.VisitorID)
	s.notifier.TokenIssued(issued)
	return issued, nil
}

// Validate inspects a presented token without changing anything. Checks
// run in strict precedence order: unknown value, deleted, expired, already
// used. Expiry outranks the used state and is judged against the clock
// even while the stored state still says valid; nothing sweeps tokens in
// the background.
func (s *TokenService) Validate(ctx context.Context, value string) (*ValidationResult, error) {
	now := s.clock.Now()

	t, err := s.tokenRepo.FindByValue(ctx, value)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return &ValidationResult{OK: false, Reason: domain.OutcomeCodeInvalid}, nil
	}
	if t.Deleted {
		return &ValidationResult{OK: false, Reason: domain.OutcomeCodeInvalid, Token: t}, nil
	}
	if t.State == domain.TokenExpired || t.ExpiredAt(now) {
		return &ValidationResult{OK: false, Reason: domain.OutcomeCodeExpired, Token: t, Detail: t.ToResponse()}, nil
	}
	if t.State == domain.TokenUsed {
		return &ValidationResult{OK: false, Reason: domain.OutcomeCodeUsed, Token: t, Detail: t.ToResponse()}, nil
	}
	if t.State == domain.TokenVoid {
		return &ValidationResult{OK: false, Reason: domain.OutcomeCodeInvalid, Token: t, Detail: t.ToResponse()}, nil
	}
	if now.Before(t.ValidFrom) {
		return &ValidationResult{OK: false, Reason: domain.OutcomeCodeExpired, Token: t, Detail: t.ToResponse()}, nil
	}
	return &ValidationResult{OK: true, Token: t, Detail: t.ToResponse()}, nil
}

// consume marks a valid token used inside the caller's transaction; the
// terminal state commits atomically with the access event built on it.
// A token found expired at consumption time is materialised as expired.
// A rejected consumption returns the rejection outcome (plus the token,
// when it resolved) with a nil error; errors are infrastructure failures.
func (s *TokenService) consume(ctx context.Context, tokens *repositories.TokenRepository, value, actor string, now time.Time) (*models.AccessToken, domain.AccessOutcome, error) {
	t, err := tokens.FindByValue(ctx, value)
	if err != nil {
		return nil, "", err
	}
	if t == nil || t.Deleted {
		return nil, domain.OutcomeCodeInvalid, nil
	}

	// Same precedence as Validate: expiry outranks the used state. Only a
	// valid token is materialised; used and void are already terminal.
	if t.State == domain.TokenExpired || t.ExpiredAt(now) {
		if t.State == domain.TokenValid {
			t.State = domain.TokenExpired
			t.Touch(actor, now)
			if err := tokens.UpdateToken(ctx, t); err != nil {
				return nil, "", err
			}
		}
		return t, domain.OutcomeCodeExpired, nil
	}
	if t.State == domain.TokenUsed {
		return t, domain.OutcomeCodeUsed, nil
	}
	if t.State == domain.TokenVoid {
		return t, domain.OutcomeCodeInvalid, nil
	}
	if now.Before(t.ValidFrom) {
		return t, domain.OutcomeCodeExpired, nil
	}

	t.State = domain.TokenUsed
	t.UsedAt = &now
	t.Touch(actor, now)
	if err := tokens.UpdateToken(ctx, t); err != nil {
		return nil, "", err
	}
	return t, domain.OutcomeAuthorized, nil
}

// Void cancels a valid token. Only the issuing account may void it, and
// only from the valid state.
func (s *TokenService) Void(ctx context.Context, tokenID, accountID uint, actor string) error {
	now := s.clock.Now()

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		tokens := s.tokenRepo.WithTx(tx)

		t, err := tokens.GetTokenByID(ctx, tokenID)
		if err != nil {
			return domain.NotFoundf("token %d not found", tokenID)
		}
		if t.AccountID != accountID {
			return domain.Validationf("token %d does not belong to account %d", tokenID, accountID)
		}
		if t.Deleted {
			return domain.InvalidStatef("token %d is deleted", tokenID)
		}
		if t.State != domain.TokenValid {
			return domain.InvalidStatef("token %d is %s", tokenID, t.State)
		}
		if t.ExpiredAt(now) {
			t.State = domain.TokenExpired
			t.Touch(actor, now)
			if err := tokens.UpdateToken(ctx, t); err != nil {
				return err
			}
			return domain.InvalidStatef("token %d expired", tokenID)
		}

		t.State = domain.TokenVoid
		t.Touch(actor, now)
		return tokens.UpdateToken(ctx, t)
	})
	if err != nil {
		return err
	}

	log.Printf("✅ Token %d voided", tokenID)
	return nil
}

// ListByAccount returns the tokens issued by an account, newest first.
// Stored state is reported as-is; a stale valid row whose window has
// passed is presented as expired without being written back.
func (s *TokenService) ListByAccount(ctx context.Context, accountID uint, state domain.TokenState, offset, limit int) ([]*models.AccessTokenResponse, int64, error) {
	rows, total, err := s.tokenRepo.ListByAccount(ctx, accountID, state, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	return s.present(rows), total, nil
}

// ListByUnit returns every token bound to a unit, newest first, regardless
// of issuing account.
func (s *TokenService) ListByUnit(ctx context.Context, unitID uint, offset, limit int) ([]*models.AccessTokenResponse, int64, error) {
	rows, total, err := s.tokenRepo.ListByUnit(ctx, unitID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return s.present(rows), total, nil
}

func (s *TokenService) present(rows []*models.AccessToken) []*models.AccessTokenResponse {
	now := s.clock.Now()
	out := make([]*models.AccessTokenResponse, 0, len(rows))
	for _, t := range rows {
		resp := t.ToResponse()
		if t.State == domain.TokenValid && t.ExpiredAt(now) {
			resp.State = domain.TokenExpired
		}
		out = append(out, resp)
	}
	return out
}
