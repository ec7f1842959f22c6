package services

import (
	"context"
	"testing"
	"time"

	"condogate/internal/adapters/persistence/models"
	"condogate/internal/adapters/persistence/repositories"
	"condogate/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// issueVisitorToken is a fixture shortcut on the default 08:00-10:00 window.
func (e *testEnv) issueVisitorToken(t *testing.T, accountID uint, identification string) *models.AccessToken {
	t.Helper()

	from, until := window(8, 10)
	issued, err := e.tokens.IssueVisitorToken(context.Background(), IssueVisitorTokenInput{
		AccountID:      accountID,
		Identification: identification,
		FirstNames:     "Visit",
		LastNames:      "Or",
		ValidFrom:      from,
		ValidUntil:     until,
	}, "resident1")
	require.NoError(t, err)
	return issued
}

func TestRecordAccessConsumesTokenOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")
	issued := env.issueVisitorToken(t, account.ID, "1712345678")

	env.clk.Set(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	event, err := env.access.RecordAccess(ctx, RecordAccessInput{
		Kind:       domain.AccessQRVisitor,
		TokenValue: issued.Token,
	}, "gate")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAuthorized, event.Outcome)
	assert.Equal(t, unitID, event.UnitID)
	assert.Equal(t, *issued.VisitorID, *event.VisitorID)

	// The spent token committed with the event.
	result, err := env.tokens.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, domain.TokenUsed, result.Token.State)

	// Replaying the token is recorded, rejected as already spent.
	replay, err := env.access.RecordAccess(ctx, RecordAccessInput{
		Kind:       domain.AccessQRVisitor,
		TokenValue: issued.Token,
	}, "gate")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCodeUsed, replay.Outcome)
	assert.Equal(t, unitID, replay.UnitID)
}

func TestRecordAccessExpiredTokenMaterialises(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")
	issued := env.issueVisitorToken(t, account.ID, "1712345678")

	env.clk.Set(time.Date(2025, 3, 10, 10, 1, 0, 0, time.UTC))

	event, err := env.access.RecordAccess(ctx, RecordAccessInput{
		Kind:       domain.AccessQRVisitor,
		TokenValue: issued.Token,
	}, "gate")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCodeExpired, event.Outcome)

	// First contact past the window wrote the expired state down.
	result, err := env.tokens.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenExpired, result.Token.State)
}

func TestRecordAccessBiometricFailureLeavesTokenValid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")
	issued := env.issueVisitorToken(t, account.ID, "1712345678")

	env.clk.Set(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	failed := false
	event, err := env.access.RecordAccess(ctx, RecordAccessInput{
		Kind:        domain.AccessQRVisitor,
		UnitID:      unitID,
		TokenValue:  issued.Token,
		BiometricOK: &failed,
	}, "gate")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeBiometricFailure, event.Outcome)

	// The token survives for a retry.
	result, err := env.tokens.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.True(t, result.OK)
}

func TestRecordAccessManualKindAndVehicleMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, residentID := env.unitWithResident(t, "A", "1")
	vehicle, err := env.occupancy.RegisterVehicle(ctx, residentID, "PCX-3421", "admin")
	require.NoError(t, err)

	plate := "PCX-3421"
	event, err := env.access.RecordAccess(ctx, RecordAccessInput{
		Kind:          domain.AccessResidentAuto,
		UnitID:        unitID,
		Outcome:       domain.OutcomeAuthorized,
		PlateDetected: &plate,
	}, "gate")
	require.NoError(t, err)
	require.NotNil(t, event.VehicleID)
	assert.Equal(t, vehicle.ID, *event.VehicleID)

	// Manual kinds insist on an explicit outcome.
	_, err = env.access.RecordAccess(ctx, RecordAccessInput{
		Kind:   domain.AccessGuardManual,
		UnitID: unitID,
	}, "gate")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCorrectEventSupersedesImmutableRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, _ := env.unitWithResident(t, "A", "1")

	event, err := env.access.RecordAccess(ctx, RecordAccessInput{
		Kind:    domain.AccessGuardManual,
		UnitID:  unitID,
		Outcome: domain.OutcomeRejected,
	}, "gate")
	require.NoError(t, err)

	replacement, err := env.access.CorrectEvent(ctx, event.ID, domain.OutcomeAuthorized, "gate misread the document", "guard typo", "supervisor")
	require.NoError(t, err)
	assert.NotEqual(t, event.ID, replacement.ID)
	assert.Equal(t, domain.OutcomeAuthorized, replacement.Outcome)

	original, err := env.access.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.True(t, original.Deleted)
	assert.Equal(t, domain.OutcomeRejected, original.Outcome)

	// A superseded row cannot be corrected again.
	_, err = env.access.CorrectEvent(ctx, event.ID, domain.OutcomeCancelled, "", "again", "supervisor")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestStatisticsBucketsPartitionTotal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitA, residentA := env.unitWithResident(t, "A", "1")
	unitB, _ := env.unitWithResident(t, "A", "2")
	account := env.accountFor(t, residentA, "resident1")

	// Two authorized entries through tokens on unit A. Issuance happens
	// at 08:00 while the window is still ahead; the gate reads at 09:00.
	tokens := make([]*models.AccessToken, 0, 2)
	for _, id := range []string{"1711111111", "1722222222"} {
		tokens = append(tokens, env.issueVisitorToken(t, account.ID, id))
	}
	env.clk.Set(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	for _, issued := range tokens {
		_, err := env.access.RecordAccess(ctx, RecordAccessInput{
			Kind:       domain.AccessQRVisitor,
			TokenValue: issued.Token,
		}, "gate")
		require.NoError(t, err)
	}

	// One rejected and one pending on unit B.
	_, err := env.access.RecordAccess(ctx, RecordAccessInput{
		Kind:    domain.AccessVisitorNoQR,
		UnitID:  unitB,
		Outcome: domain.OutcomeNotAuthorized,
	}, "gate")
	require.NoError(t, err)
	_, err = env.access.RecordAccess(ctx, RecordAccessInput{
		Kind:    domain.AccessGuardManual,
		UnitID:  unitB,
		Outcome: domain.OutcomeCancelled,
	}, "gate")
	require.NoError(t, err)

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC)
	stats, err := env.access.Statistics(ctx, from, to)
	require.NoError(t, err)

	assert.EqualValues(t, 4, stats.Total)
	assert.EqualValues(t, 2, stats.Authorized)
	assert.EqualValues(t, 1, stats.Rejected)
	assert.EqualValues(t, 1, stats.Pending)
	assert.Equal(t, stats.Total, stats.Authorized+stats.Rejected+stats.Pending)
	assert.EqualValues(t, 2, stats.DistinctVisitors)

	require.Len(t, stats.TopUnits, 2)
	assert.Equal(t, unitA, stats.TopUnits[0].UnitID)
	assert.EqualValues(t, 2, stats.TopUnits[0].Count)
}

func TestTopUnitsTieBreaksByUnitCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitB2, _ := env.unitWithResident(t, "B", "2")
	unitA1, _ := env.unitWithResident(t, "A", "1")

	for _, unitID := range []uint{unitB2, unitA1} {
		_, err := env.access.RecordAccess(ctx, RecordAccessInput{
			Kind:    domain.AccessGuardManual,
			UnitID:  unitID,
			Outcome: domain.OutcomeAuthorized,
		}, "gate")
		require.NoError(t, err)
	}

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC)
	stats, err := env.access.Statistics(ctx, from, to)
	require.NoError(t, err)

	// Equal counts rank by block then unit, ascending.
	require.Len(t, stats.TopUnits, 2)
	assert.Equal(t, unitA1, stats.TopUnits[0].UnitID)
	assert.Equal(t, unitB2, stats.TopUnits[1].UnitID)
}

func TestPhoneAuthorizationAttachesToEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, _ := env.unitWithResident(t, "A", "1")
	event, err := env.access.RecordAccess(ctx, RecordAccessInput{
		Kind:    domain.AccessVisitorNoQR,
		UnitID:  unitID,
		Outcome: domain.OutcomeAuthorized,
	}, "gate")
	require.NoError(t, err)

	pa, err := env.access.RecordPhoneAuthorization(ctx, PhoneAuthorizationInput{
		AccessEventID: event.ID,
		Phone:         "0991234567",
		Outcome:       domain.PhoneAccepted,
		Attempts:      1,
	}, "gate")
	require.NoError(t, err)
	assert.Equal(t, event.ID, pa.AccessEventID)

	rows, err := repositories.NewAccessRepository(env.db).ListPhoneAuthorizationsByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestListEventsFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitA, _ := env.unitWithResident(t, "A", "1")
	unitB, _ := env.unitWithResident(t, "A", "2")

	for i := 0; i < 3; i++ {
		_, err := env.access.RecordAccess(ctx, RecordAccessInput{
			Kind:    domain.AccessGuardManual,
			UnitID:  unitA,
			Outcome: domain.OutcomeAuthorized,
		}, "gate")
		require.NoError(t, err)
	}
	_, err := env.access.RecordAccess(ctx, RecordAccessInput{
		Kind:    domain.AccessVisitorNoQR,
		UnitID:  unitB,
		Outcome: domain.OutcomeRejected,
	}, "gate")
	require.NoError(t, err)

	events, total, err := env.access.ListEvents(ctx, repositories.EventFilter{UnitID: unitA}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, events, 3)

	_, total, err = env.access.ListEvents(ctx, repositories.EventFilter{Outcome: domain.OutcomeRejected}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}
