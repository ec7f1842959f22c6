package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"condogate/internal/adapters/persistence/models"
	"condogate/internal/adapters/persistence/repositories"
	"condogate/internal/pkg/clock"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires every service against an in-memory database and a fixed
// clock pinned at 2025-03-10 08:00 local time.
type testEnv struct {
	db        *gorm.DB
	clk       *clock.Fixed
	occupancy *OccupancyService
	accounts  *AccountService
	tokens    *TokenService
	access    *AccessService
	codes     *AuthCodeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	clk := clock.NewFixed(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))

	occupancyRepo := repositories.NewOccupancyRepository(db)
	accountRepo := repositories.NewAccountRepository(db)
	tokenRepo := repositories.NewTokenRepository(db)
	accessRepo := repositories.NewAccessRepository(db)
	authCodeRepo := repositories.NewAuthCodeRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	notifier := NewNotificationService(auditRepo, accountRepo, occupancyRepo, nil, nil, clk)
	occupancy := NewOccupancyService(db, occupancyRepo, auditRepo, clk)
	accounts := NewAccountService(db, accountRepo, occupancyRepo, clk, "test-secret", 24)
	tokens := NewTokenService(db, tokenRepo, accountRepo, occupancyRepo, notifier, clk, 32)
	access := NewAccessService(db, accessRepo, tokens, occupancyRepo, notifier, clk)
	codes := NewAuthCodeService(db, authCodeRepo, occupancyRepo, clk)

	return &testEnv{
		db:        db,
		clk:       clk,
		occupancy: occupancy,
		accounts:  accounts,
		tokens:    tokens,
		access:    access,
		codes:     codes,
	}
}

var personSeq int

// person builds unique civil data for registration inputs.
func person(name string) PersonInput {
	personSeq++
	return PersonInput{
		Identification: fmt.Sprintf("09%08d", personSeq),
		FirstNames:     name,
		LastNames:      "Tester",
		Email:          strings.ToLower(name) + "@example.com",
		Phone:          "0991234567",
	}
}

// unitWithResident registers a unit plus an owner who also lives there,
// returning the unit ID and the resident's person ID.
func (e *testEnv) unitWithResident(t *testing.T, block, unit string) (uint, uint) {
	t.Helper()
	ctx := context.Background()

	u, err := e.occupancy.CreateUnit(ctx, block, unit, "admin")
	require.NoError(t, err)

	ownership, err := e.occupancy.RegisterOwner(ctx, RegisterOwnerInput{
		UnitID:       u.ID,
		Person:       person("Owner" + block + unit),
		AlsoResident: true,
	}, "admin")
	require.NoError(t, err)

	return u.ID, ownership.PersonID
}

// accountFor opens an account for a person already attached to a unit.
func (e *testEnv) accountFor(t *testing.T, personID uint, username string) *models.Account {
	t.Helper()

	account, err := e.accounts.CreateAccount(context.Background(), CreateAccountInput{
		PersonID:    personID,
		Username:    username,
		Password:    "secret-pass-123",
		ExternalUID: "uid-" + username,
	}, "admin")
	require.NoError(t, err)
	return account
}
