package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralLifecycle(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := Referral{ReferralID: "ref_1", Status: ReferralStatusPending}

	require.NoError(t, r.Transition(ReferralStatusConverted, at))
	assert.True(t, r.Converted)
	require.NotNil(t, r.ConvertedAt)
	assert.Equal(t, at, *r.ConvertedAt)

	require.NoError(t, r.Transition(ReferralStatusCredited, at))
	require.NoError(t, r.Transition(ReferralStatusPaid, at))

	err := r.Transition(ReferralStatusPending, at)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Equal(t, ReferralStatusPaid, r.Status)
}

func TestExpiredReferralIsTerminal(t *testing.T) {
	r := Referral{ReferralID: "ref_2", Status: ReferralStatusPending}
	require.NoError(t, r.Transition(ReferralStatusExpired, time.Now()))
	require.ErrorIs(t, r.Transition(ReferralStatusConverted, time.Now()), ErrInvalidStateTransition)
	assert.False(t, r.Status.HasConverted())
}

func TestPayoutLifecycle(t *testing.T) {
	at := time.Now().UTC()
	cases := []struct {
		from PayoutStatus
		to   PayoutStatus
		ok   bool
	}{
		{PayoutStatusPending, PayoutStatusProcessing, true},
		{PayoutStatusPending, PayoutStatusCancelled, true},
		{PayoutStatusPending, PayoutStatusCompleted, false},
		{PayoutStatusProcessing, PayoutStatusCompleted, true},
		{PayoutStatusProcessing, PayoutStatusFailed, true},
		{PayoutStatusProcessing, PayoutStatusCancelled, false},
		{PayoutStatusCompleted, PayoutStatusFailed, false},
		{PayoutStatusFailed, PayoutStatusProcessing, false},
	}
	for _, tc := range cases {
		p := Payout{PayoutID: "pay_1", Status: tc.from}
		err := p.Transition(tc.to, at)
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
			assert.Equal(t, tc.to, p.Status)
			assert.Equal(t, tc.to.Terminal(), p.ProcessedAt != nil)
			continue
		}
		require.ErrorIs(t, err, ErrInvalidStateTransition, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.from, p.Status)
	}
}

func TestPartnerLifecycle(t *testing.T) {
	assert.True(t, CanTransitionPartner(PartnerStatusPendingApproval, PartnerStatusActive))
	assert.True(t, CanTransitionPartner(PartnerStatusActive, PartnerStatusSuspended))
	assert.True(t, CanTransitionPartner(PartnerStatusSuspended, PartnerStatusActive))
	assert.False(t, CanTransitionPartner(PartnerStatusActive, PartnerStatusPendingApproval))
}

func TestPartnerBalanceOperations(t *testing.T) {
	p := Partner{}
	p.Credit(money(t, "100"))
	require.NoError(t, p.CheckBalances())

	require.NoError(t, p.Reserve(money(t, "60")))
	assert.Equal(t, "40.00", p.AvailableEarnings().StringFixed(2))
	require.ErrorIs(t, p.Reserve(money(t, "40.01")), ErrInsufficientBalance)

	require.NoError(t, p.Settle(money(t, "60")))
	assert.Equal(t, "40.00", p.PendingEarnings.StringFixed(2))
	assert.Equal(t, "60.00", p.PaidEarnings.StringFixed(2))
	assert.True(t, p.ReservedEarnings.IsZero())
	require.NoError(t, p.CheckBalances())

	require.ErrorIs(t, p.Release(money(t, "1")), ErrConsistencyViolation)

	p.TotalEarnings = money(t, "99")
	require.ErrorIs(t, p.CheckBalances(), ErrConsistencyViolation)
}

func TestClickWithinWindow(t *testing.T) {
	clicked := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Click{ClickID: "clk_1", ClickedAt: clicked}
	window := Partner{CookieDurationDays: 30}.CookieWindow()

	assert.True(t, c.WithinWindow(window, clicked.Add(30*24*time.Hour)))
	assert.False(t, c.WithinWindow(window, clicked.Add(30*24*time.Hour+time.Second)))
	assert.Equal(t, 30*24*time.Hour, Partner{}.CookieWindow())
}
