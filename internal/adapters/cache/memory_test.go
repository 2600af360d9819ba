package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

func TestMemoryDashboardCacheExpiresEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryDashboardCache()
	c.nowFn = func() time.Time { return now }

	raw, err := c.Get(ctx, "ptn_1")
	require.NoError(t, err)
	require.Nil(t, raw)

	payload := []byte(`{"tier":"Bronze"}`)
	require.NoError(t, c.Set(ctx, "ptn_1", 0, payload, time.Minute))
	payload[0] = 'X'

	raw, err = c.Get(ctx, "ptn_1")
	require.NoError(t, err)
	require.Equal(t, `{"tier":"Bronze"}`, string(raw))

	now = now.Add(2 * time.Minute)
	raw, err = c.Get(ctx, "ptn_1")
	require.NoError(t, err)
	require.Nil(t, raw)

	require.NoError(t, c.Set(ctx, "ptn_2", 0, []byte("{}"), 0))
	now = now.Add(24 * time.Hour)
	raw, err = c.Get(ctx, "ptn_2")
	require.NoError(t, err)
	require.NotNil(t, raw)

	require.NoError(t, c.Invalidate(ctx, "ptn_2"))
	raw, err = c.Get(ctx, "ptn_2")
	require.NoError(t, err)
	require.Nil(t, raw)
}

func TestMemoryDashboardCacheRejectsStaleGeneration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryDashboardCache()

	gen, err := c.Generation(ctx, "ptn_1")
	require.NoError(t, err)
	require.Zero(t, gen)

	require.NoError(t, c.Invalidate(ctx, "ptn_1"))
	require.NoError(t, c.Set(ctx, "ptn_1", gen, []byte(`{"pending":"0.00"}`), time.Minute))
	raw, err := c.Get(ctx, "ptn_1")
	require.NoError(t, err)
	require.Nil(t, raw)

	gen, err = c.Generation(ctx, "ptn_1")
	require.NoError(t, err)
	require.Equal(t, int64(1), gen)
	require.NoError(t, c.Set(ctx, "ptn_1", gen, []byte(`{"pending":"10.00"}`), time.Minute))
	raw, err = c.Get(ctx, "ptn_1")
	require.NoError(t, err)
	require.Equal(t, `{"pending":"10.00"}`, string(raw))

	other, err := c.Generation(ctx, "ptn_2")
	require.NoError(t, err)
	require.Zero(t, other)
}

func TestMemoryLeaderboardRanking(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLeaderboard()
	require.NoError(t, l.Upsert(ctx, "ptn_a", 4))
	require.NoError(t, l.Upsert(ctx, "ptn_b", 9))
	require.NoError(t, l.Upsert(ctx, "ptn_c", 4))
	require.NoError(t, l.Upsert(ctx, "ptn_d", 1))
	require.NoError(t, l.Upsert(ctx, "ptn_d", 6))

	top, err := l.Top(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, []ports.LeaderboardEntry{
		{PartnerID: "ptn_b", LifetimeReferrals: 9},
		{PartnerID: "ptn_d", LifetimeReferrals: 6},
		{PartnerID: "ptn_c", LifetimeReferrals: 4},
	}, top)

	require.NoError(t, l.Remove(ctx, "ptn_b"))
	require.NoError(t, l.Remove(ctx, "ptn_missing"))
	top, err = l.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	require.Equal(t, "ptn_d", top[0].PartnerID)
}
