package services

import (
	"context"
	"testing"

	"condogate/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccountRequiresActiveOccupant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A person with no residency or membership cannot get an account.
	unit, err := env.occupancy.CreateUnit(ctx, "A", "1", "admin")
	require.NoError(t, err)
	ownership, err := env.occupancy.RegisterOwner(ctx, RegisterOwnerInput{
		UnitID: unit.ID,
		Person: person("AbsenteeOwner"),
	}, "admin")
	require.NoError(t, err)

	_, err = env.accounts.CreateAccount(ctx, CreateAccountInput{
		PersonID:    ownership.PersonID,
		Username:    "absentee",
		ExternalUID: "uid-absentee",
	}, "admin")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCreateAccountUniqueness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")
	env.accountFor(t, residentID, "resident1")

	// One account per person, even an inactive one blocks a second.
	_, err := env.accounts.CreateAccount(ctx, CreateAccountInput{
		PersonID:    residentID,
		Username:    "resident1b",
		ExternalUID: "uid-resident1b",
	}, "admin")
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Username and external UID are unique across persons.
	member, err := env.occupancy.AddFamilyMember(ctx, AddMemberInput{
		UnitID:   1,
		Relation: domain.RelationSon,
		Person:   person("Junior"),
	}, "admin")
	require.NoError(t, err)

	_, err = env.accounts.CreateAccount(ctx, CreateAccountInput{
		PersonID:    member.MemberPersonID,
		Username:    "resident1",
		ExternalUID: "uid-junior",
	}, "admin")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = env.accounts.CreateAccount(ctx, CreateAccountInput{
		PersonID:    member.MemberPersonID,
		Username:    "junior",
		ExternalUID: "uid-resident1",
	}, "admin")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSetAccountStatusWritesLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")

	_, err := env.accounts.SetAccountStatus(ctx, account.ID, domain.StatusInactive, "late fees", false, "admin", nil)
	require.NoError(t, err)

	// Same state twice is an invalid transition, not a silent no-op.
	_, err = env.accounts.SetAccountStatus(ctx, account.ID, domain.StatusInactive, "", false, "admin", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = env.accounts.SetAccountStatus(ctx, account.ID, domain.StatusActive, "paid", false, "admin", nil)
	require.NoError(t, err)

	events, total, err := env.accounts.ListEvents(ctx, account.ID, 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total) // created, deactivated, activated

	kinds := make([]domain.AccountEventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, domain.EventAccountCreated)
	assert.Contains(t, kinds, domain.EventAccountDeactivated)
	assert.Contains(t, kinds, domain.EventAccountActivated)
}

func TestCascadeLocksWholeHousehold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, residentID := env.unitWithResident(t, "A", "1")
	residentAcc := env.accountFor(t, residentID, "resident1")

	son, err := env.occupancy.AddFamilyMember(ctx, AddMemberInput{
		UnitID:   unitID,
		Relation: domain.RelationSon,
		Person:   person("SonA"),
	}, "admin")
	require.NoError(t, err)
	sonAcc := env.accountFor(t, son.MemberPersonID, "son-a")

	daughter, err := env.occupancy.AddFamilyMember(ctx, AddMemberInput{
		UnitID:   unitID,
		Relation: domain.RelationDaughter,
		Person:   person("DaughterA"),
	}, "admin")
	require.NoError(t, err)
	daughterAcc := env.accountFor(t, daughter.MemberPersonID, "daughter-a")

	cascaded, err := env.accounts.SetAccountStatus(ctx, residentAcc.ID, domain.StatusInactive, "unpaid dues", true, "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cascaded)

	for _, acc := range []uint{residentAcc.ID, sonAcc.ID, daughterAcc.ID} {
		got, err := env.accounts.GetAccount(ctx, acc)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInactive, got.Status)

		_, total, err := env.accounts.ListEvents(ctx, acc, 0, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 2, total) // created, then deactivated or locked
	}

	// Re-asserting the state the account already holds is an invalid
	// transition, cascade or not.
	_, err = env.accounts.SetAccountStatus(ctx, residentAcc.ID, domain.StatusInactive, "again", true, "admin", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	// A member removed from the household is out of scope next time.
	require.NoError(t, env.occupancy.DeactivateMembership(ctx, daughter.ID, "moved", "admin"))
	cascaded, err = env.accounts.SetAccountStatus(ctx, residentAcc.ID, domain.StatusActive, "settled", true, "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cascaded)

	got, err := env.accounts.GetAccount(ctx, daughterAcc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInactive, got.Status)

	// A family member's account cascades nothing beyond itself.
	cascaded, err = env.accounts.SetAccountStatus(ctx, sonAcc.ID, domain.StatusInactive, "own doing", true, "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cascaded)

	got, err = env.accounts.GetAccount(ctx, residentAcc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestDeleteAccountIsOneWay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")

	require.NoError(t, env.accounts.DeleteAccount(ctx, account.ID, "left the complex", "admin", nil))

	got, err := env.accounts.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Equal(t, domain.StatusInactive, got.Status)

	// Deleted rows do not come back, through any path.
	_, err = env.accounts.SetAccountStatus(ctx, account.ID, domain.StatusActive, "", false, "admin", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	err = env.accounts.DeleteAccount(ctx, account.ID, "again", "admin", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestAuthenticateAndChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")

	result, err := env.accounts.Authenticate(ctx, LoginInput{
		Username: "resident1",
		Password: "secret-pass-123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, account.ID, result.Account.ID)

	_, err = env.accounts.Authenticate(ctx, LoginInput{
		Username: "resident1",
		Password: "wrong",
	})
	require.Error(t, err)

	require.NoError(t, env.accounts.ChangePassword(ctx, account.ID, "secret-pass-123", "brand-new-pass"))

	_, err = env.accounts.Authenticate(ctx, LoginInput{
		Username: "resident1",
		Password: "secret-pass-123",
	})
	require.Error(t, err)
	_, err = env.accounts.Authenticate(ctx, LoginInput{
		Username: "resident1",
		Password: "brand-new-pass",
	})
	require.NoError(t, err)

	// Ledger saw the failures and the change.
	events, _, err := env.accounts.ListEvents(ctx, account.ID, 0, 20)
	require.NoError(t, err)
	kinds := map[domain.AccountEventKind]int{}
	for _, e := range events {
		kinds[e.Kind]++
	}
	assert.Equal(t, 2, kinds[domain.EventLoginSuccess])
	assert.Equal(t, 2, kinds[domain.EventLoginFailure])
	assert.Equal(t, 1, kinds[domain.EventPasswordChanged])
}

func TestGetProfileResolvesRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, residentID := env.unitWithResident(t, "A", "1")
	residentAcc := env.accountFor(t, residentID, "resident1")

	profile, err := env.accounts.GetProfile(ctx, residentAcc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleResident, profile.Role)
	assert.Equal(t, unitID, profile.UnitID)

	member, err := env.occupancy.AddFamilyMember(ctx, AddMemberInput{
		UnitID:   unitID,
		Relation: domain.RelationDaughter,
		Person:   person("Dot"),
	}, "admin")
	require.NoError(t, err)
	memberAcc := env.accountFor(t, member.MemberPersonID, "dot")

	profile, err = env.accounts.GetProfile(ctx, memberAcc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleFamilyMember, profile.Role)
	assert.Equal(t, unitID, profile.UnitID)
}
