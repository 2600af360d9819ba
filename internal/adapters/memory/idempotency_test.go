package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

func TestIdempotencyClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	repo := NewIdempotencyRepository()

	require.NoError(t, repo.Reserve(ctx, "k1", "hash-a", now, now.Add(time.Minute)))
	require.ErrorIs(t, repo.Reserve(ctx, "k1", "hash-a", now, now.Add(time.Minute)), domain.ErrIdempotencyInProgress)
	require.ErrorIs(t, repo.Reserve(ctx, "k1", "hash-a", now, now.Add(time.Minute)), domain.ErrConflict)
	require.ErrorIs(t, repo.Reserve(ctx, "k1", "hash-b", now, now.Add(time.Minute)), domain.ErrIdempotencyConflict)

	rec, err := repo.Get(ctx, "k1", now)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Empty(t, rec.ResponseBody)

	require.NoError(t, repo.Complete(ctx, "k1", 201, []byte(`{"id":"pay_1"}`), now.Add(24*time.Hour)))
	require.NoError(t, repo.Release(ctx, "k1"))
	rec, err = repo.Get(ctx, "k1", now.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, 201, rec.ResponseCode)
	require.JSONEq(t, `{"id":"pay_1"}`, string(rec.ResponseBody))
}

func TestIdempotencyReleaseAndExpiredTakeover(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	repo := NewIdempotencyRepository()

	require.NoError(t, repo.Reserve(ctx, "k1", "hash-a", now, now.Add(time.Minute)))
	require.NoError(t, repo.Release(ctx, "k1"))
	require.NoError(t, repo.Reserve(ctx, "k1", "hash-a", now, now.Add(time.Minute)))

	later := now.Add(2 * time.Minute)
	require.NoError(t, repo.Reserve(ctx, "k1", "hash-b", later, later.Add(time.Minute)))
	rec, err := repo.Get(ctx, "k1", later)
	require.NoError(t, err)
	require.Equal(t, "hash-b", rec.RequestHash)
}
