package services

import (
	"context"
	"log"
	"time"

	"condogate/internal/adapters/persistence/models"
	"condogate/internal/adapters/persistence/repositories"
	"condogate/internal/core/domain"
	"condogate/internal/pkg/clock"
	"condogate/internal/pkg/jwt"
	"condogate/internal/pkg/password"

	"gorm.io/gorm"
)

// CreateAccountInput creates a credential account for an occupant.
type CreateAccountInput struct {
	PersonID    uint   `json:"person_id" validate:"required"`
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password"`
	ExternalUID string `json:"external_uid" validate:"required"`
}

// LoginInput authenticates an account.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult carries the issued session token and account snapshot.
type LoginResult struct {
	Token   string                  `json:"token"`
	Account *models.AccountResponse `json:"account"`
}

// Profile is the occupancy view of an account: who the person is and how
// they are attached to a unit.
type Profile struct {
	Account      *models.AccountResponse `json:"account"`
	Person       *models.Person          `json:"person"`
	Role         domain.OccupantRole     `json:"role"`
	UnitID       uint                    `json:"unit_id"`
	Logins       int64                   `json:"logins"`
	FailedLogins int64                   `json:"failed_logins"`
}

// AccountService manages credential accounts, their event ledger and
// authentication.
type AccountService struct {
	db            *gorm.DB
	accountRepo   *repositories.AccountRepository
	occupancyRepo *repositories.OccupancyRepository
	clock         clock.Clock
	jwtSecret     string
	jwtExpiryHrs  int
}

// NewAccountService creates a new account service.
func NewAccountService(
	db *gorm.DB,
	accountRepo *repositories.AccountRepository,
	occupancyRepo *repositories.OccupancyRepository,
	clk clock.Clock,
	jwtSecret string,
	jwtExpiryHrs int,
) *AccountService {
	return &AccountService{
		db:            db,
		accountRepo:   accountRepo,
		occupancyRepo: occupancyRepo,
		clock:         clk,
		jwtSecret:     jwtSecret,
		jwtExpiryHrs:  jwtExpiryHrs,
	}
}

// occupantRole resolves how a person is attached to a unit right now:
// active resident or active family member. Runs against the repo the
// caller supplies, so it sees transaction state when called inside one.
func occupantRole(ctx context.Context, repo *repositories.OccupancyRepository, personID uint) (domain.OccupantRole, uint, error) {
	residency, err := repo.FindActiveResidencyByPerson(ctx, personID)
	if err != nil {
		return "", 0, err
	}
	if residency != nil {
		return domain.RoleResident, residency.UnitID, nil
	}

	membership, err := repo.FindActiveMembershipByPerson(ctx, personID)
	if err != nil {
		return "", 0, err
	}
	if membership != nil {
		return domain.RoleFamilyMember, membership.UnitID, nil
	}
	return "", 0, nil
}

// CreateAccount opens a credential account for a person who is currently
// an active resident or family member. One non-deleted account per person,
// one account per username and per external UID. The account_created
// event commits atomically with the account row.
func (s *AccountService) CreateAccount(ctx context.Context, in CreateAccountInput, actor string) (*models.Account, error) {
	if in.Username == "" {
		return nil, domain.Validationf("username is required")
	}
	if in.ExternalUID == "" {
		return nil, domain.Validationf("external_uid is required")
	}

	now := s.clock.Now()
	var account *models.Account

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		accounts := s.accountRepo.WithTx(tx)
		occupancy := s.occupancyRepo.WithTx(tx)

		person, err := occupancy.GetPersonByID(ctx, in.PersonID)
		if err != nil {
			return domain.NotFoundf("person %d not found", in.PersonID)
		}
		if !person.IsActive() {
			return domain.InvalidStatef("person %d is not active", in.PersonID)
		}

		role, _, err := occupantRole(ctx, occupancy, in.PersonID)
		if err != nil {
			return err
		}
		if role == "" {
			return domain.InvalidStatef("person %d is not an active resident or family member", in.PersonID)
		}

		if existing, err := accounts.FindActiveByPerson(ctx, in.PersonID); err != nil {
			return err
		} else if existing != nil {
			return domain.Conflictf("person %d already has an account", in.PersonID)
		}
		if existing, err := accounts.FindByUsername(ctx, in.Username); err != nil {
			return err
		} else if existing != nil {
			return domain.Conflictf("username %s is taken", in.Username)
		}
		if existing, err := accounts.FindByExternalUID(ctx, in.ExternalUID); err != nil {
			return err
		} else if existing != nil {
			return domain.Conflictf("external uid is already bound to an account")
		}

		account = &models.Account{
			PersonID:    in.PersonID,
			Username:    in.Username,
			ExternalUID: in.ExternalUID,
			Lifecycle:   models.NewLifecycle(actor, now),
		}
		if in.Password != "" {
			hash, err := password.Hash(in.Password)
			if err != nil {
				return domain.Internalf("password hashing failed: %v", err)
			}
			account.PasswordHash = &hash
		}
		if err := accounts.Create(ctx, account); err != nil {
			return err
		}

		account.Person = person
		return accounts.CreateEvent(ctx, &models.AccountEvent{
			AccountID: account.ID,
			Kind:      domain.EventAccountCreated,
			CreatedAt: now,
			CreatedBy: actor,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Account %s created for person %d", in.Username, in.PersonID)
	return account, nil
}

// GetAccount returns an account by ID.
func (s *AccountService) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.NotFoundf("account %d not found", id)
	}
	return account, nil
}

// SetAccountStatus activates or deactivates one account, appending the
// matching event in the same transaction. Deleted accounts cannot change
// status, and the trigger account must actually change state.
//
// With cascade set, and when the account's person currently holds the
// active residency of some unit, every other account whose person is an
// active family member of that unit gets the same status in the same
// transaction. The household is computed fresh at call time, never from a
// stored roster. Cascaded accounts already at the target state and deleted
// accounts are skipped without error. Returns how many household accounts
// were cascaded, the trigger excluded.
func (s *AccountService) SetAccountStatus(ctx context.Context, accountID uint, status domain.Status, reason string, cascade bool, actor string, actorPersonID *uint) (int, error) {
	if status != domain.StatusActive && status != domain.StatusInactive {
		return 0, domain.Validationf("unknown status %q", status)
	}

	now := s.clock.Now()
	cascaded := 0

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		accounts := s.accountRepo.WithTx(tx)
		occupancy := s.occupancyRepo.WithTx(tx)

		account, err := accounts.GetByID(ctx, accountID)
		if err != nil {
			return domain.NotFoundf("account %d not found", accountID)
		}
		if account.Deleted {
			return domain.InvalidStatef("account %d is deleted", accountID)
		}
		if account.Status == status {
			return domain.InvalidStatef("account %d is already %s", accountID, status)
		}

		kind := domain.EventAccountDeactivated
		if status == domain.StatusActive {
			account.Activate(actor, now)
			kind = domain.EventAccountActivated
		} else {
			account.Deactivate(actor, now)
		}
		if err := accounts.Update(ctx, account); err != nil {
			return err
		}
		if err := accounts.CreateEvent(ctx, statusEvent(account.ID, kind, reason, actor, actorPersonID, now)); err != nil {
			return err
		}

		if !cascade {
			return nil
		}

		// Cascade only fans out from a resident's account. A family
		// member triggering with cascade changes nothing beyond itself.
		residency, err := occupancy.FindActiveResidencyByPerson(ctx, account.PersonID)
		if err != nil {
			return err
		}
		if residency == nil {
			return nil
		}

		members, err := occupancy.ListActiveMembershipsByUnit(ctx, residency.UnitID)
		if err != nil {
			return err
		}
		memberIDs := make([]uint, 0, len(members))
		for _, m := range members {
			memberIDs = append(memberIDs, m.MemberPersonID)
		}
		rows, err := accounts.ListByPersonIDs(ctx, memberIDs)
		if err != nil {
			return err
		}

		followKind := domain.EventAccountLocked
		if status == domain.StatusActive {
			followKind = domain.EventAccountUnlocked
		}

		for _, follower := range rows {
			if follower.ID == account.ID || follower.Deleted || follower.Status == status {
				continue
			}
			if status == domain.StatusActive {
				follower.Activate(actor, now)
			} else {
				follower.Deactivate(actor, now)
			}
			if err := accounts.Update(ctx, follower); err != nil {
				return err
			}
			if err := accounts.CreateEvent(ctx, statusEvent(follower.ID, followKind, reason, actor, actorPersonID, now)); err != nil {
				return err
			}
			cascaded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Printf("✅ Account %d set %s (%d household account(s) cascaded)", accountID, status, cascaded)
	return cascaded, nil
}

func statusEvent(accountID uint, kind domain.AccountEventKind, reason, actor string, actorPersonID *uint, now time.Time) *models.AccountEvent {
	event := &models.AccountEvent{
		AccountID:     accountID,
		Kind:          kind,
		ActorPersonID: actorPersonID,
		CreatedAt:     now,
		CreatedBy:     actor,
	}
	if reason != "" {
		event.Reason = &reason
	}
	return event
}

// DeleteAccount soft-deletes an account. Deletion is one-way: the account
// drops to inactive in the same write and can never be reactivated.
func (s *AccountService) DeleteAccount(ctx context.Context, accountID uint, reason, actor string, actorPersonID *uint) error {
	if reason == "" {
		return domain.Validationf("a deletion reason is required")
	}

	now := s.clock.Now()

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		accounts := s.accountRepo.WithTx(tx)

		account, err := accounts.GetByID(ctx, accountID)
		if err != nil {
			return domain.NotFoundf("account %d not found", accountID)
		}
		if account.Deleted {
			return domain.InvalidStatef("account %d is already deleted", accountID)
		}

		account.MarkDeleted(reason, actor, now)
		if err := accounts.Update(ctx, account); err != nil {
			return err
		}
		return accounts.CreateEvent(ctx, &models.AccountEvent{
			AccountID:     account.ID,
			Kind:          domain.EventAccountDeleted,
			Reason:        &reason,
			ActorPersonID: actorPersonID,
			CreatedAt:     now,
			CreatedBy:     actor,
		})
	})
	if err != nil {
		return err
	}

	log.Printf("✅ Account %d deleted", accountID)
	return nil
}

// Authenticate verifies credentials and issues a session token. Both the
// success and the failure path leave an event in the ledger.
func (s *AccountService) Authenticate(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if in.Username == "" || in.Password == "" {
		return nil, domain.Validationf("username and password are required")
	}

	now := s.clock.Now()

	account, err := s.accountRepo.FindByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.NotFoundf("invalid credentials")
	}
	if !account.IsActive() {
		return nil, domain.InvalidStatef("account is not active")
	}
	if account.PasswordHash == nil {
		return nil, domain.InvalidStatef("account has no password set")
	}

	if !password.Verify(in.Password, *account.PasswordHash) {
		_ = s.accountRepo.CreateEvent(ctx, &models.AccountEvent{
			AccountID: account.ID,
			Kind:      domain.EventLoginFailure,
			CreatedAt: now,
			CreatedBy: account.Username,
		})
		return nil, domain.Validationf("invalid credentials")
	}

	role := "resident"
	if r, _, err := occupantRole(ctx, s.occupancyRepo, account.PersonID); err == nil && r != "" {
		role = string(r)
	}

	tokenString, err := jwt.Generate(account.ID, account.PersonID, account.Username, role, s.jwtSecret, s.jwtExpiryHrs)
	if err != nil {
		return nil, domain.Internalf("token generation failed: %v", err)
	}

	account.LastLoginAt = &now
	if err := s.accountRepo.Update(ctx, account); err != nil {
		return nil, err
	}
	if err := s.accountRepo.CreateEvent(ctx, &models.AccountEvent{
		AccountID: account.ID,
		Kind:      domain.EventLoginSuccess,
		CreatedAt: now,
		CreatedBy: account.Username,
	}); err != nil {
		return nil, err
	}

	log.Printf("✅ Account %s logged in", account.Username)
	return &LoginResult{Token: tokenString, Account: account.ToResponse()}, nil
}

// ChangePassword replaces the account password after verifying the
// current one.
func (s *AccountService) ChangePassword(ctx context.Context, accountID uint, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return domain.Validationf("new password must be at least 8 characters")
	}

	now := s.clock.Now()

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return domain.NotFoundf("account %d not found", accountID)
	}
	if !account.IsActive() {
		return domain.InvalidStatef("account is not active")
	}
	if account.PasswordHash != nil && !password.Verify(oldPassword, *account.PasswordHash) {
		return domain.Validationf("current password is incorrect")
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return domain.Internalf("password hashing failed: %v", err)
	}
	account.PasswordHash = &hash
	account.Touch(account.Username, now)
	if err := s.accountRepo.Update(ctx, account); err != nil {
		return err
	}

	return s.accountRepo.CreateEvent(ctx, &models.AccountEvent{
		AccountID: account.ID,
		Kind:      domain.EventPasswordChanged,
		CreatedAt: now,
		CreatedBy: account.Username,
	})
}

// GetProfile assembles the occupancy view of an account.
func (s *AccountService) GetProfile(ctx context.Context, accountID uint) (*Profile, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, domain.NotFoundf("account %d not found", accountID)
	}

	role, unitID, err := occupantRole(ctx, s.occupancyRepo, account.PersonID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, domain.InvalidStatef("account %d is not attached to any unit", accountID)
	}

	logins, err := s.accountRepo.CountEventsByKind(ctx, accountID, domain.EventLoginSuccess)
	if err != nil {
		return nil, err
	}
	failures, err := s.accountRepo.CountEventsByKind(ctx, accountID, domain.EventLoginFailure)
	if err != nil {
		return nil, err
	}

	return &Profile{
		Account:      account.ToResponse(),
		Person:       account.Person,
		Role:         role,
		UnitID:       unitID,
		Logins:       logins,
		FailedLogins: failures,
	}, nil
}

// ListEvents returns the event ledger of an account, newest first.
func (s *AccountService) ListEvents(ctx context.Context, accountID uint, offset, limit int) ([]*models.AccountEvent, int64, error) {
	if _, err := s.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, 0, domain.NotFoundf("account %d not found", accountID)
	}
	return s.accountRepo.ListEventsByAccount(ctx, accountID, offset, limit)
}
