package services

import (
	"context"
	"testing"
	"time"

	"condogate/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueCodeRequiresActiveResident(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unit, err := env.occupancy.CreateUnit(ctx, "A", "1", "admin")
	require.NoError(t, err)

	// An absentee owner is not a resident and gets no code.
	ownership, err := env.occupancy.RegisterOwner(ctx, RegisterOwnerInput{
		UnitID: unit.ID,
		Person: person("Absentee"),
	}, "admin")
	require.NoError(t, err)

	_, err = env.codes.Issue(ctx, ownership.PersonID, 15*time.Minute, "resident-app")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = env.codes.Issue(ctx, ownership.PersonID, 0, "resident-app")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRedeemCodeOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, residentID := env.unitWithResident(t, "A", "1")

	issued, err := env.codes.Issue(ctx, residentID, 15*time.Minute, "resident-app")
	require.NoError(t, err)
	assert.Len(t, issued.Code, 6)
	assert.Equal(t, env.clk.Now().Add(15*time.Minute), issued.ExpiresAt)

	result, err := env.codes.Redeem(ctx, issued.Code, "gate")
	require.NoError(t, err)
	assert.Equal(t, residentID, result.ResidentPersonID)
	assert.Equal(t, unitID, result.UnitID)

	// A spent code stays spent.
	_, err = env.codes.Redeem(ctx, issued.Code, "gate")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRedeemCodeLazyExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")

	issued, err := env.codes.Issue(ctx, residentID, 15*time.Minute, "resident-app")
	require.NoError(t, err)

	env.clk.Advance(16 * time.Minute)

	// First contact past the window both rejects and records the expiry.
	_, err = env.codes.Redeem(ctx, issued.Code, "gate")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	// The expired state persisted, so the rejection repeats identically.
	_, err = env.codes.Redeem(ctx, issued.Code, "gate")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRedeemUnknownCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.codes.Redeem(ctx, "000000", "gate")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.codes.Redeem(ctx, "", "gate")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
