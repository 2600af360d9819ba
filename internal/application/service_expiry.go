package application

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

// ExpireStaleReferrals moves pending referrals older than the grace period
// to expired, one batch per call. Each referral commits on its own so a late
// conversion racing the sweep wins or loses cleanly.
func (s *Service) ExpireStaleReferrals(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		now = s.nowFn()
	}
	cutoff := now.Add(-s.cfg.ReferralGracePeriod)
	var stale []domain.Referral
	err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		rows, err := tx.Referrals().ListPendingCreatedBefore(ctx, cutoff, s.cfg.ExpiryBatchSize)
		stale = rows
		return err
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		done, err := s.expireReferral(ctx, candidate.ReferralID, cutoff, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "referral expiry failed",
				"operation", "expire_referrals",
				"outcome", "failure",
				"referral_id", candidate.ReferralID,
				"error", err,
			)
			continue
		}
		if done {
			expired++
		}
	}
	if expired > 0 {
		s.metrics.ReferralsExpired(expired)
		s.logger.InfoContext(ctx, "stale referrals expired", "operation", "expire_referrals", "outcome", "success", "count", expired)
	}
	return expired, nil
}

func (s *Service) expireReferral(ctx context.Context, referralID string, cutoff, now time.Time) (bool, error) {
	done := false
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		ref, err := tx.Referrals().GetByID(ctx, referralID)
		if err != nil {
			return err
		}
		if _, err := tx.Partners().GetForUpdate(ctx, ref.PartnerID); err != nil {
			return err
		}
		if ref, err = tx.Referrals().GetByID(ctx, referralID); err != nil {
			return err
		}
		if ref.Status != domain.ReferralStatusPending || !ref.CreatedAt.Before(cutoff) {
			return nil
		}
		if err := ref.Transition(domain.ReferralStatusExpired, now); err != nil {
			return err
		}
		if err := tx.Referrals().Update(ctx, ref); err != nil {
			return err
		}
		if err := s.enqueueReferralExpired(ctx, tx, ref, ""); err != nil {
			return err
		}
		done = true
		return s.appendAudit(ctx, tx, ref.PartnerID, "partner.referral.expired", "system", "grace period elapsed", map[string]string{"referral_id": ref.ReferralID})
	})
	return done, err
}
