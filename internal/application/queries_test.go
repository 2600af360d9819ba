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
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/cache"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/application"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

func TestFunnelGroupsClicksAndReferralsByUTM(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.activePartner(t, "u-alice")
	spring := domain.UTM{Source: "newsletter", Medium: "email", Campaign: "spring"}

	for i := 0; i < 3; i++ {
		_, err := h.svc.TrackClick(ctx, application.TrackClickInput{ReferralCode: p.ReferralCode, UTM: spring})
		require.NoError(t, err)
	}
	_, err := h.svc.TrackClick(ctx, application.TrackClickInput{ReferralCode: p.ReferralCode})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := h.svc.ResolveAttribution(ctx, application.SignupInput{ReferredIdentity: fmt.Sprintf("s%d@example.com", i), ReferralCode: p.ReferralCode, UTM: spring})
		require.NoError(t, err)
	}
	bare := h.refer(t, p, "bare@example.com")
	h.convert(t, bare, "pm-1", "20")

	report, err := h.svc.GetFunnel(ctx, partnerActor("u-alice", ""), "")
	require.NoError(t, err)
	assert.Equal(t, 4, report.Overall.Clicks)
	assert.Equal(t, 3, report.Overall.Signups)
	assert.Equal(t, 1, report.Overall.Conversions)
	require.Len(t, report.ByUTM, 2)
	assert.Equal(t, "newsletter", report.ByUTM[0].UTM.Source)
	assert.Equal(t, 3, report.ByUTM[0].Clicks)
	assert.Equal(t, 2, report.ByUTM[0].Signups)
	assert.Equal(t, domain.UnattributedBucket, report.ByUTM[1].UTM.Campaign)
	assert.Equal(t, 1, report.ByUTM[1].Conversions)

	_, err = h.svc.GetFunnel(ctx, partnerActor("u-stranger", ""), p.PartnerID)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestTierProgress(t *testing.T) {
	h := newHarness(t)
	p := h.activePartner(t, "u-alice")
	for i := 0; i < 5; i++ {
		h.refer(t, p, fmt.Sprintf("t%d@example.com", i))
	}

	progress, err := h.svc.GetTierProgress(context.Background(), partnerActor("u-alice", ""), "")
	require.NoError(t, err)
	assert.Equal(t, "Bronze", progress.Current.Name)
	require.NotNil(t, progress.Next)
	assert.Equal(t, "Silver", progress.Next.Name)
	assert.Equal(t, 15, progress.ReferralsToNext)
	assert.Equal(t, 5, progress.LifetimeReferrals)
}

func TestDashboardIsCachedUntilLedgerChanges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.activePartner(t, "u-alice")
	ref := h.refer(t, p, "r1@example.com")
	actor := partnerActor("u-alice", "")

	first, err := h.svc.GetDashboard(ctx, actor)
	require.NoError(t, err)
	assert.True(t, first.Available.IsZero())
	assert.Equal(t, 1, first.Funnel.Signups)
	require.Len(t, first.Milestones, 4)
	assert.Equal(t, 9, first.Milestones[0].Remaining)

	cached, err := h.dashboard.Get(ctx, p.PartnerID)
	require.NoError(t, err)
	assert.NotNil(t, cached)

	h.convert(t, ref, "pm-1", "50")
	cached, err = h.dashboard.Get(ctx, p.PartnerID)
	require.NoError(t, err)
	assert.Nil(t, cached)

	second, err := h.svc.GetDashboard(ctx, actor)
	require.NoError(t, err)
	requireMoney(t, "10.00", second.Available)
	requireMoney(t, "10.00", second.Partner.PendingEarnings)
	assert.Equal(t, 1, second.Funnel.Conversions)

	_, err = h.svc.GetDashboard(ctx, partnerActor("u-nobody", ""))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLeaderboardRanksOptedInActivePartners(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	optIn := true
	alice := h.activePartner(t, "u-alice")
	bob := h.activePartner(t, "u-bob")
	carol := h.activePartner(t, "u-carol")
	for _, user := range []string{"u-alice", "u-bob"} {
		_, err := h.svc.UpdateSettings(ctx, partnerActor(user, "optin-"+user), application.UpdateSettingsInput{LeaderboardOptIn: &optIn})
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		h.refer(t, bob, fmt.Sprintf("b%d@example.com", i))
	}
	h.refer(t, alice, "a0@example.com")
	for i := 0; i < 5; i++ {
		h.refer(t, carol, fmt.Sprintf("c%d@example.com", i))
	}

	rows, err := h.svc.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, bob.PartnerID, rows[0].PartnerID)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 3, rows[0].LifetimeReferrals)
	assert.Equal(t, alice.PartnerID, rows[1].PartnerID)
	assert.Equal(t, 2, rows[1].Rank)

	_, err = h.svc.SuspendPartner(ctx, adminActor("suspend-bob"), application.PartnerStatusInput{PartnerID: bob.PartnerID})
	require.NoError(t, err)
	rows, err = h.svc.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, alice.PartnerID, rows[0].PartnerID)
}

func TestReady(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.svc.Ready(context.Background()))
}

func TestListReferralsNormalizesPage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.activePartner(t, "u-alice")
	for i := 0; i < 3; i++ {
		h.refer(t, p, fmt.Sprintf("page-%d@example.com", i))
	}

	page, err := h.svc.ListReferrals(ctx, partnerActor("u-alice", ""), application.ListInput{Limit: 500, Offset: -4})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 3)

	page, err = h.svc.ListReferrals(ctx, partnerActor("u-alice", ""), application.ListInput{Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 20, page.Limit)
	assert.Equal(t, 2, page.Offset)
	assert.Len(t, page.Items, 1)
}

// racingCache commits a write between the dashboard snapshot and its store.
type racingCache struct {
	*cache.MemoryDashboardCache
	once      sync.Once
	beforeSet func()
}

func (c *racingCache) Set(ctx context.Context, partnerID string, generation int64, raw []byte, ttl time.Duration) error {
	c.once.Do(c.beforeSet)
	return c.MemoryDashboardCache.Set(ctx, partnerID, generation, raw, ttl)
}

func TestDashboardBuiltBeforeAWriteIsNotCached(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.activePartner(t, "u-alice")
	ref := h.refer(t, p, "r1@example.com")
	racing := &racingCache{MemoryDashboardCache: h.dashboard}
	svc := h.serviceWith(func(d *application.Dependencies) { d.Dashboards = racing })
	racing.beforeSet = func() {
		_, err := svc.RecordConversion(ctx, application.ConversionInput{
			ReferralID: ref.ReferralID,
			PaymentID:  "pm-race",
			Amount:     decimal.RequireFromString("50"),
		})
		require.NoError(t, err)
	}

	stale, err := svc.GetDashboard(ctx, partnerActor("u-alice", ""))
	require.NoError(t, err)
	assert.True(t, stale.Partner.PendingEarnings.IsZero())

	cached, err := h.dashboard.Get(ctx, p.PartnerID)
	require.NoError(t, err)
	assert.Nil(t, cached)

	fresh, err := svc.GetDashboard(ctx, partnerActor("u-alice", ""))
	require.NoError(t, err)
	requireMoney(t, "10.00", fresh.Partner.PendingEarnings)
	requireMoney(t, "10.00", fresh.Available)
	requireMoney(t, "10.00", h.partner(t, p.PartnerID).PendingEarnings)
}
