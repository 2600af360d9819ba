package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

func TestOutboxFailuresAndDeadLettering(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		for _, id := range []string{"rec_1", "rec_2"} {
			err := tx.Outbox().Enqueue(ctx, ports.OutboxRecord{
				RecordID:   id,
				EventClass: domain.CanonicalEventClassDomain,
				Envelope:   contracts.EventEnvelope{EventID: "evt_" + id},
				CreatedAt:  at,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	var attempts []int
	for i := 0; i < 2; i++ {
		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
			n, err := tx.Outbox().RecordFailure(ctx, "rec_1", "broker down", at)
			attempts = append(attempts, n)
			return err
		}))
	}
	require.Equal(t, []int{1, 2}, attempts)

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Outbox().MarkDeadLettered(ctx, "rec_1", at)
	}))
	require.NoError(t, store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		pending, err := tx.Outbox().ListPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		require.Equal(t, "rec_2", pending[0].RecordID)
		require.Zero(t, pending[0].Attempts)
		return nil
	}))

	err := store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		_, err := tx.Outbox().RecordFailure(ctx, "rec_missing", "x", at)
		return err
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}
