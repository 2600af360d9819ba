package application_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/application"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

func TestConversionCreditsBronzeCommission(t *testing.T) {
	h := newHarness(t)
	p := h.activePartner(t, "u-alice")
	r1 := h.refer(t, p, "r1@example.com")

	res := h.convert(t, r1, "pm-1", "50")

	assert.Equal(t, application.OutcomeCredited, res.Outcome)
	assert.Equal(t, domain.ReferralStatusCredited, res.Referral.Status)
	assert.True(t, res.Referral.Converted)
	require.NotNil(t, res.Referral.TierSnapshot)
	assert.Equal(t, "Bronze", res.Referral.TierSnapshot.Name)
	requireMoney(t, "10.00", res.Referral.AmountEarned)
	require.NotNil(t, res.Earning)
	assert.Equal(t, domain.EarningKindCommission, res.Earning.Kind)

	got := h.partner(t, p.PartnerID)
	requireMoney(t, "10.00", got.PendingEarnings)
	requireMoney(t, "10.00", got.TotalEarnings)
	assert.True(t, got.PaidEarnings.IsZero())
}

func TestTierPromotionDoesNotRewriteCreditedAmounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.activePartner(t, "u-alice")
	r1 := h.refer(t, p, "r01@example.com")
	h.convert(t, r1, "pm-r1", "50")

	for i := 2; i <= 20; i++ {
		h.refer(t, p, fmt.Sprintf("r%02d@example.com", i))
	}
	promoted := h.partner(t, p.PartnerID)
	assert.Equal(t, 20, promoted.LifetimeReferrals)
	assert.Equal(t, "Silver", promoted.Tier)

	r21 := h.refer(t, p, "r21@example.com")
	res := h.convert(t, r21, "pm-r21", "100")
	assert.Equal(t, "Silver", res.Referral.TierSnapshot.Name)
	requireMoney(t, "18.00", res.Referral.AmountEarned)

	credited, err := h.svc.ListReferrals(ctx, adminActor(""), application.ListInput{PartnerID: p.PartnerID, Status: "credited"})
	require.NoError(t, err)
	require.Equal(t, 2, credited.Total)
	for _, ref := range credited.Items {
		if ref.ReferralID == r1.ReferralID {
			requireMoney(t, "10.00", ref.AmountEarned)
			assert.Equal(t, "Bronze", ref.TierSnapshot.Name)
		}
	}

	// 10 + 18 in commissions plus the 10 and 20 referral bonuses.
	got := h.partner(t, p.PartnerID)
	requireMoney(t, "63.00", got.PendingEarnings)
	requireMoney(t, "63.00", got.TotalEarnings)
}

func TestConversionReplayCreditsOnce(t *testing.T) {
	h := newHarness(t)
	p := h.activePartner(t, "u-alice")
	ref := h.refer(t, p, "r1@example.com")

	first := h.convert(t, ref, "pm-1", "50")
	second := h.convert(t, ref, "pm-1", "50")

	assert.Equal(t, application.OutcomeCredited, first.Outcome)
	assert.Equal(t, application.OutcomeAlreadyCredited, second.Outcome)
	assert.Equal(t, first.Earning.EarningID, second.Earning.EarningID)
	requireMoney(t, "10.00", h.partner(t, p.PartnerID).PendingEarnings)
}

func TestConversionByIdentityAndLaterPayments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.activePartner(t, "u-alice")
	ref := h.refer(t, p, "r1@example.com")
	other := h.refer(t, p, "r2@example.com")

	res, err := h.svc.RecordConversion(ctx, application.ConversionInput{ReferredIdentity: "R1@example.com", PaymentID: "pm-1", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)
	assert.Equal(t, ref.ReferralID, res.Referral.ReferralID)

	later, err := h.svc.RecordConversion(ctx, application.ConversionInput{ReferralID: ref.ReferralID, PaymentID: "pm-2", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)
	assert.Equal(t, application.OutcomeIgnored, later.Outcome)

	_, err = h.svc.RecordConversion(ctx, application.ConversionInput{ReferralID: other.ReferralID, PaymentID: "pm-1", Amount: decimal.NewFromInt(50)})
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = h.svc.RecordConversion(ctx, application.ConversionInput{ReferralID: ref.ReferralID, PaymentID: "pm-3", Amount: decimal.RequireFromString("1.005")})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.svc.RecordConversion(ctx, application.ConversionInput{ReferredIdentity: "nobody@example.com", PaymentID: "pm-4", Amount: decimal.NewFromInt(5)})
	require.ErrorIs(t, err, domain.ErrNotFound)

	requireMoney(t, "10.00", h.partner(t, p.PartnerID).PendingEarnings)
}

func TestOngoingRevenueShareUsesSnapshot(t *testing.T) {
	h := newHarness(t, func(cfg *application.Config) { cfg.OngoingRevenueShare = true })
	p := h.activePartner(t, "u-alice")
	ref := h.refer(t, p, "r1@example.com")
	h.convert(t, ref, "pm-1", "50")

	res := h.convert(t, ref, "pm-2", "50")
	assert.Equal(t, application.OutcomeRevenueShare, res.Outcome)
	assert.Equal(t, domain.EarningKindRevenueShare, res.Earning.Kind)
	requireMoney(t, "5.00", res.Earning.Amount)
	requireMoney(t, "15.00", res.Referral.AmountEarned)
	requireMoney(t, "15.00", h.partner(t, p.PartnerID).PendingEarnings)
}

func TestConcurrentConversionReplaysCreditOnce(t *testing.T) {
	h := newHarness(t)
	p := h.activePartner(t, "u-alice")
	ref := h.refer(t, p, "r1@example.com")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[application.ConversionOutcome]int{}
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.svc.RecordConversion(context.Background(), application.ConversionInput{ReferralID: ref.ReferralID, PaymentID: "pm-race", Amount: decimal.NewFromInt(50)})
			assert.NoError(t, err)
			mu.Lock()
			outcomes[res.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, outcomes[application.OutcomeCredited])
	assert.Equal(t, 7, outcomes[application.OutcomeAlreadyCredited])
	requireMoney(t, "10.00", h.partner(t, p.PartnerID).PendingEarnings)
}

func TestExpireStaleReferrals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.activePartner(t, "u-alice")
	stale := h.refer(t, p, "stale@example.com")
	converted := h.refer(t, p, "paid@example.com")
	h.convert(t, converted, "pm-1", "50")

	h.clock.Advance(181 * 24 * time.Hour)
	fresh := h.refer(t, p, "fresh@example.com")

	n, err := h.svc.ExpireStaleReferrals(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again, err := h.svc.ExpireStaleReferrals(ctx, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, again)

	_, err = h.svc.RecordConversion(ctx, application.ConversionInput{ReferralID: stale.ReferralID, PaymentID: "pm-late", Amount: decimal.NewFromInt(50)})
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	expired, err := h.svc.ListReferrals(ctx, adminActor(""), application.ListInput{PartnerID: p.PartnerID, Status: "expired"})
	require.NoError(t, err)
	require.Equal(t, 1, expired.Total)
	assert.Equal(t, stale.ReferralID, expired.Items[0].ReferralID)

	pending, err := h.svc.ListReferrals(ctx, adminActor(""), application.ListInput{PartnerID: p.PartnerID, Status: "pending"})
	require.NoError(t, err)
	require.Equal(t, 1, pending.Total)
	assert.Equal(t, fresh.ReferralID, pending.Items[0].ReferralID)

	got := h.partner(t, p.PartnerID)
	assert.Equal(t, 3, got.LifetimeReferrals)
	requireMoney(t, "10.00", got.PendingEarnings)
}
