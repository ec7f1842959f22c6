package services

import (
	"context"
	"testing"

	"condogate/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterOwnerRejectsSecondTitular(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, _ := env.unitWithResident(t, "A", "1")

	_, err := env.occupancy.RegisterOwner(ctx, RegisterOwnerInput{
		UnitID: unitID,
		Person: person("Second"),
	}, "admin")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRegisterConsortRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unit, err := env.occupancy.CreateUnit(ctx, "B", "1", "admin")
	require.NoError(t, err)

	// No titular yet: spouse registration is premature.
	_, err = env.occupancy.RegisterConsort(ctx, RegisterConsortInput{
		UnitID: unit.ID,
		Kind:   domain.OwnerSpouse,
		Person: person("EarlySpouse"),
	}, "admin")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = env.occupancy.RegisterOwner(ctx, RegisterOwnerInput{
		UnitID: unit.ID,
		Person: person("TheOwner"),
	}, "admin")
	require.NoError(t, err)

	_, err = env.occupancy.RegisterConsort(ctx, RegisterConsortInput{
		UnitID: unit.ID,
		Kind:   domain.OwnerSpouse,
		Person: person("FirstSpouse"),
	}, "admin")
	require.NoError(t, err)

	// A second spouse or co-owner on the same unit is a conflict.
	_, err = env.occupancy.RegisterConsort(ctx, RegisterConsortInput{
		UnitID: unit.ID,
		Kind:   domain.OwnerCoOwner,
		Person: person("SecondSpouse"),
	}, "admin")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestOneActiveResidencyPerUnitAndPerson(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, residentID := env.unitWithResident(t, "A", "1")

	// The unit already has a resident.
	_, err := env.occupancy.RegisterResident(ctx, RegisterResidentInput{
		UnitID: unitID,
		Person: ptrPerson(person("Intruder")),
	}, "admin")
	assert.ErrorIs(t, err, domain.ErrConflict)

	// The same person cannot hold a second residency elsewhere.
	other, err := env.occupancy.CreateUnit(ctx, "A", "2", "admin")
	require.NoError(t, err)
	_, err = env.occupancy.RegisterResident(ctx, RegisterResidentInput{
		UnitID:   other.ID,
		PersonID: residentID,
	}, "admin")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func ptrPerson(p PersonInput) *PersonInput { return &p }

func TestFamilyMemberExclusiveRelations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, _ := env.unitWithResident(t, "A", "1")

	_, err := env.occupancy.AddFamilyMember(ctx, AddMemberInput{
		UnitID:   unitID,
		Relation: domain.RelationMother,
		Person:   person("Mama"),
	}, "admin")
	require.NoError(t, err)

	// Only one active mother per unit.
	_, err = env.occupancy.AddFamilyMember(ctx, AddMemberInput{
		UnitID:   unitID,
		Relation: domain.RelationMother,
		Person:   person("OtherMama"),
	}, "admin")
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Non-exclusive relations repeat freely.
	_, err = env.occupancy.AddFamilyMember(ctx, AddMemberInput{
		UnitID:   unitID,
		Relation: domain.RelationSon,
		Person:   person("SonOne"),
	}, "admin")
	require.NoError(t, err)
	_, err = env.occupancy.AddFamilyMember(ctx, AddMemberInput{
		UnitID:   unitID,
		Relation: domain.RelationSon,
		Person:   person("SonTwo"),
	}, "admin")
	require.NoError(t, err)
}

func TestMembershipReactivationRechecksExclusivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, _ := env.unitWithResident(t, "A", "1")

	first, err := env.occupancy.AddFamilyMember(ctx, AddMemberInput{
		UnitID:   unitID,
		Relation: domain.RelationFather,
		Person:   person("PapaOne"),
	}, "admin")
	require.NoError(t, err)

	require.NoError(t, env.occupancy.DeactivateMembership(ctx, first.ID, "moved out", "admin"))

	_, err = env.occupancy.AddFamilyMember(ctx, AddMemberInput{
		UnitID:   unitID,
		Relation: domain.RelationFather,
		Person:   person("PapaTwo"),
	}, "admin")
	require.NoError(t, err)

	// The first father cannot come back while the slot is filled.
	err = env.occupancy.ReactivateMembership(ctx, first.ID, "admin")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestTransferOwnershipMovesResidencyAtomically(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, oldOwnerID := env.unitWithResident(t, "C", "7")

	transferred, err := env.occupancy.TransferOwnership(ctx, TransferOwnershipInput{
		UnitID:   unitID,
		NewOwner: person("Buyer"),
		Reason:   "sale",
	}, "admin")
	require.NoError(t, err)
	assert.NotEqual(t, oldOwnerID, transferred.PersonID)
	assert.Equal(t, domain.OwnerTitular, transferred.Kind)

	household, err := env.occupancy.GetHousehold(ctx, unitID)
	require.NoError(t, err)
	require.NotNil(t, household.Residency)
	assert.Equal(t, transferred.PersonID, household.Residency.PersonID)

	// The departing owner's rows ended, not vanished.
	activeOwners := 0
	for _, o := range household.Owners {
		if o.IsActive() {
			activeOwners++
		}
	}
	assert.Equal(t, 1, activeOwners)
	assert.Len(t, household.Owners, 2)
}

func TestTransferOwnershipLeavesOtherResidentAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unit, err := env.occupancy.CreateUnit(ctx, "D", "2", "admin")
	require.NoError(t, err)
	_, err = env.occupancy.RegisterOwner(ctx, RegisterOwnerInput{
		UnitID: unit.ID,
		Person: person("AbsenteeOwner"),
	}, "admin")
	require.NoError(t, err)

	tenant := person("Tenant")
	residency, err := env.occupancy.RegisterResident(ctx, RegisterResidentInput{
		UnitID: unit.ID,
		Person: &tenant,
	}, "admin")
	require.NoError(t, err)

	// The departing titular never lived there; the tenant's residency
	// survives the sale untouched.
	_, err = env.occupancy.TransferOwnership(ctx, TransferOwnershipInput{
		UnitID:   unit.ID,
		NewOwner: person("NextOwner"),
		Reason:   "sale",
	}, "admin")
	require.NoError(t, err)

	household, err := env.occupancy.GetHousehold(ctx, unit.ID)
	require.NoError(t, err)
	require.NotNil(t, household.Residency)
	assert.Equal(t, residency.PersonID, household.Residency.PersonID)
}

func TestTransferOwnershipReusesReturningOwnersRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, firstOwnerID := env.unitWithResident(t, "C", "8")
	firstHousehold, err := env.occupancy.GetHousehold(ctx, unitID)
	require.NoError(t, err)
	firstOwnershipID := firstHousehold.Owners[0].ID

	second, err := env.occupancy.TransferOwnership(ctx, TransferOwnershipInput{
		UnitID:   unitID,
		NewOwner: person("Interim"),
		Reason:   "sale",
	}, "admin")
	require.NoError(t, err)
	require.NotEqual(t, firstOwnerID, second.PersonID)

	// Selling back to the original owner reactivates the original row.
	firstOwnerPerson, err := env.occupancy.occupancyRepo.GetPersonByID(ctx, firstOwnerID)
	require.NoError(t, err)

	back, err := env.occupancy.TransferOwnership(ctx, TransferOwnershipInput{
		UnitID: unitID,
		NewOwner: PersonInput{
			Identification: firstOwnerPerson.Identification,
			FirstNames:     firstOwnerPerson.FirstNames,
			LastNames:      firstOwnerPerson.LastNames,
		},
		Reason: "buy-back",
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, firstOwnershipID, back.ID)
	assert.Equal(t, firstOwnerID, back.PersonID)
	assert.True(t, back.IsActive())
}

func TestVehiclePlateUniqueness(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")

	_, err := env.occupancy.RegisterVehicle(ctx, residentID, "ABC-1234", "admin")
	require.NoError(t, err)

	_, err = env.occupancy.RegisterVehicle(ctx, residentID, "ABC-1234", "admin")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdatePersonWritesChangeLog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")

	before, err := env.occupancy.occupancyRepo.GetPersonByID(ctx, residentID)
	require.NoError(t, err)

	updated, err := env.occupancy.UpdatePerson(ctx, residentID, UpdatePersonInput{
		Email: "new@example.com",
		Phone: "0987654321",
	}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, "0987654321", updated.Phone)
	assert.Equal(t, before.Identification, updated.Identification)
	assert.Equal(t, before.FirstNames, updated.FirstNames)

	entries, total, err := env.occupancy.ChangeLog(ctx, "person", residentID, 0, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "update", entries[0].Operation)
	require.NotNil(t, entries[0].OldValue)
	assert.Contains(t, *entries[0].OldValue, before.Email)

	_, err = env.occupancy.UpdatePerson(ctx, 9999, UpdatePersonInput{Email: "x@example.com"}, "admin")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConsortCannotAlreadyOwnTheUnit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, _ := env.unitWithResident(t, "A", "1")

	spouse := person("Spouse")
	_, err := env.occupancy.RegisterConsort(ctx, RegisterConsortInput{
		UnitID: unitID,
		Kind:   domain.OwnerSpouse,
		Person: spouse,
	}, "admin")
	require.NoError(t, err)

	// A known identification can never back a second consort row.
	_, err = env.occupancy.RegisterConsort(ctx, RegisterConsortInput{
		UnitID: unitID,
		Kind:   domain.OwnerCoOwner,
		Person: spouse,
	}, "admin")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestOwnerRegistrationRejectsKnownIdentification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resident := person("KnownOne")
	unitB, err := env.occupancy.CreateUnit(ctx, "B", "9", "admin")
	require.NoError(t, err)
	_, err = env.occupancy.RegisterOwner(ctx, RegisterOwnerInput{
		UnitID: unitB.ID,
		Person: resident,
	}, "admin")
	require.NoError(t, err)

	// Registering an owner elsewhere under the same identification is a
	// conflict, never a silent adoption of the existing person.
	unitC, err := env.occupancy.CreateUnit(ctx, "C", "9", "admin")
	require.NoError(t, err)
	_, err = env.occupancy.RegisterOwner(ctx, RegisterOwnerInput{
		UnitID: unitC.ID,
		Person: resident,
	}, "admin")
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Same rule for the consort slot.
	_, err = env.occupancy.RegisterConsort(ctx, RegisterConsortInput{
		UnitID: unitB.ID,
		Kind:   domain.OwnerSpouse,
		Person: resident,
	}, "admin")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestAddFamilyMemberOtherRequiresDescription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, _ := env.unitWithResident(t, "A", "1")

	_, err := env.occupancy.AddFamilyMember(ctx, AddMemberInput{
		UnitID:   unitID,
		Relation: domain.RelationOther,
		Person:   person("Nanny"),
	}, "admin")
	assert.ErrorIs(t, err, domain.ErrValidation)

	detail := "live-in caretaker"
	member, err := env.occupancy.AddFamilyMember(ctx, AddMemberInput{
		UnitID:         unitID,
		Relation:       domain.RelationOther,
		RelationDetail: &detail,
		Person:         person("Nanny"),
	}, "admin")
	require.NoError(t, err)
	require.NotNil(t, member.RelationDetail)
	assert.Equal(t, detail, *member.RelationDetail)
}

func TestRetireOwnerTwiceIsInvalidState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, _ := env.unitWithResident(t, "A", "1")

	require.NoError(t, env.occupancy.RetireOwner(ctx, unitID, "estate settled", "admin"))

	// The unit exists but holds no active titular anymore.
	err := env.occupancy.RetireOwner(ctx, unitID, "again", "admin")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	err = env.occupancy.RetireOwner(ctx, 9999, "ghost", "admin")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
