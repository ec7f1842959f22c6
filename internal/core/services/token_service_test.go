package services

import (
	"context"
	"testing"
	"time"

	"condogate/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// window returns a validity window on the fixed test day.
func window(fromHour, untilHour int) (time.Time, time.Time) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	return day.Add(time.Duration(fromHour) * time.Hour), day.Add(time.Duration(untilHour) * time.Hour)
}

func TestIssueSelfToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")

	from, until := window(8, 10)
	issued, err := env.tokens.IssueSelfToken(ctx, IssueSelfTokenInput{
		AccountID:  account.ID,
		ValidFrom:  from,
		ValidUntil: until,
	}, "resident1")
	require.NoError(t, err)
	assert.Len(t, issued.Token, 32)
	assert.Equal(t, domain.TokenValid, issued.State)
	assert.Nil(t, issued.VisitorID)

	// Inverted windows are rejected.
	_, err = env.tokens.IssueSelfToken(ctx, IssueSelfTokenInput{
		AccountID:  account.ID,
		ValidFrom:  until,
		ValidUntil: from,
	}, "resident1")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestIssueSelfTokenRequiresActiveAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")
	_, err := env.accounts.SetAccountStatus(ctx, account.ID, domain.StatusInactive, "locked", false, "admin", nil)
	require.NoError(t, err)

	from, until := window(8, 10)
	_, err = env.tokens.IssueSelfToken(ctx, IssueSelfTokenInput{
		AccountID:  account.ID,
		ValidFrom:  from,
		ValidUntil: until,
	}, "resident1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestVisitorIdentityIsReusedPerUnit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")

	from, until := window(8, 10)
	first, err := env.tokens.IssueVisitorToken(ctx, IssueVisitorTokenInput{
		AccountID:      account.ID,
		Identification: "1712345678",
		FirstNames:     "Maria",
		LastNames:      "Visita",
		ValidFrom:      from,
		ValidUntil:     until,
	}, "resident1")
	require.NoError(t, err)

	second, err := env.tokens.IssueVisitorToken(ctx, IssueVisitorTokenInput{
		AccountID:      account.ID,
		Identification: "1712345678",
		FirstNames:     "Maria Jose",
		LastNames:      "Visita",
		ValidFrom:      from,
		ValidUntil:     until,
	}, "resident1")
	require.NoError(t, err)

	assert.Equal(t, *first.VisitorID, *second.VisitorID)
	assert.NotEqual(t, first.Token, second.Token)
	// The repeat visit corrected the stored name.
	assert.Equal(t, "Maria Jose", second.Visitor.FirstNames)
}

func TestValidateTokenWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")

	from, until := window(8, 10)
	issued, err := env.tokens.IssueSelfToken(ctx, IssueSelfTokenInput{
		AccountID:  account.ID,
		ValidFrom:  from,
		ValidUntil: until,
	}, "resident1")
	require.NoError(t, err)

	// 09:00 - inside the window.
	env.clk.Set(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	result, err := env.tokens.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.True(t, result.OK)

	// 10:01 - past the window; the verdict says expired while the stored
	// row, never swept, still reads valid.
	env.clk.Set(time.Date(2025, 3, 10, 10, 1, 0, 0, time.UTC))
	result, err = env.tokens.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, domain.OutcomeCodeExpired, result.Reason)
	assert.Equal(t, domain.TokenValid, result.Token.State)

	// 07:00 - before the window opens.
	env.clk.Set(time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC))
	result, err = env.tokens.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, domain.OutcomeCodeExpired, result.Reason)

	// Unknown values never resolve.
	result, err = env.tokens.Validate(ctx, "no-such-token")
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, domain.OutcomeCodeInvalid, result.Reason)
}

func TestVoidToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")

	from, until := window(8, 10)
	issued, err := env.tokens.IssueSelfToken(ctx, IssueSelfTokenInput{
		AccountID:  account.ID,
		ValidFrom:  from,
		ValidUntil: until,
	}, "resident1")
	require.NoError(t, err)

	env.clk.Set(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, env.tokens.Void(ctx, issued.ID, account.ID, "resident1"))

	result, err := env.tokens.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.False(t, result.OK)

	// Void is terminal.
	err = env.tokens.Void(ctx, issued.ID, account.ID, "resident1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestListByAccountReportsLazyExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")

	from, until := window(8, 10)
	_, err := env.tokens.IssueSelfToken(ctx, IssueSelfTokenInput{
		AccountID:  account.ID,
		ValidFrom:  from,
		ValidUntil: until,
	}, "resident1")
	require.NoError(t, err)

	env.clk.Set(time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC))
	tokens, total, err := env.tokens.ListByAccount(ctx, account.ID, "", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, domain.TokenExpired, tokens[0].State)
}

func TestIssueRejectsPastValidFrom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")

	// The clock sits at 08:00; a window opening at 07:00 is history.
	from, until := window(7, 10)
	_, err := env.tokens.IssueSelfToken(ctx, IssueSelfTokenInput{
		AccountID:  account.ID,
		ValidFrom:  from,
		ValidUntil: until,
	}, "resident1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.tokens.IssueVisitorToken(ctx, IssueVisitorTokenInput{
		AccountID:      account.ID,
		Identification: "1705050505",
		FirstNames:     "Late",
		LastNames:      "Window",
		ValidFrom:      from,
		ValidUntil:     until,
	}, "resident1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	// A window opening exactly now is still issuable.
	from, until = window(8, 10)
	_, err = env.tokens.IssueSelfToken(ctx, IssueSelfTokenInput{
		AccountID:  account.ID,
		ValidFrom:  from,
		ValidUntil: until,
	}, "resident1")
	require.NoError(t, err)
}

func TestValidateReportsSpentTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, residentID := env.unitWithResident(t, "A", "1")
	account := env.accountFor(t, residentID, "resident1")
	issued := env.issueVisitorToken(t, account.ID, "1706060606")

	env.clk.Set(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	_, err := env.access.RecordAccess(ctx, RecordAccessInput{
		Kind:       domain.AccessQRVisitor,
		TokenValue: issued.Token,
	}, "gate")
	require.NoError(t, err)

	// A spent token reads as used, not as an unknown value.
	result, err := env.tokens.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, domain.OutcomeCodeUsed, result.Reason)

	// Once the window has passed, expiry outranks the used state.
	env.clk.Set(time.Date(2025, 3, 10, 10, 1, 0, 0, time.UTC))
	result, err = env.tokens.Validate(ctx, issued.Token)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, domain.OutcomeCodeExpired, result.Reason)
}

func TestIssueWithoutOccupancyIsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unitID, _ := env.unitWithResident(t, "A", "1")

	member, err := env.occupancy.AddFamilyMember(ctx, AddMemberInput{
		UnitID:   unitID,
		Relation: domain.RelationSon,
		Person:   person("SonA"),
	}, "admin")
	require.NoError(t, err)
	account := env.accountFor(t, member.MemberPersonID, "son-a")

	require.NoError(t, env.occupancy.DeactivateMembership(ctx, member.ID, "moved out", "admin"))

	from, until := window(8, 10)
	_, err = env.tokens.IssueSelfToken(ctx, IssueSelfTokenInput{
		AccountID:  account.ID,
		ValidFrom:  from,
		ValidUntil: until,
	}, "son-a")
	assert.ErrorIs(t, err, domain.ErrConflict)
}
