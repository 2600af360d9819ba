package application

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

const referralCodeLength = 8

func (s *Service) ApplyPartner(ctx context.Context, actor Actor, in ApplyPartnerInput) (domain.Partner, error) {
	if err := requireSubject(actor); err != nil {
		return domain.Partner{}, err
	}
	in.Email = domain.NormalizeIdentity(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return domain.Partner{}, fmt.Errorf("%w: email", domain.ErrInvalidInput)
	}
	request := map[string]any{"op": "apply_partner", "user": actor.SubjectID, "email": in.Email, "display_name": in.DisplayName}
	return idempotent(ctx, s, actor, 201, request, func() (domain.Partner, error) {
		var created domain.Partner
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
			if _, err := tx.Partners().GetByUserID(ctx, actor.SubjectID); err == nil {
				return fmt.Errorf("%w: user already has a partner account", domain.ErrConflict)
			} else if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			code, err := s.uniqueReferralCode(ctx, tx)
			if err != nil {
				return err
			}
			now := s.nowFn()
			created = domain.Partner{
				PartnerID:              newID("ptr_"),
				UserID:                 actor.SubjectID,
				Email:                  in.Email,
				DisplayName:            in.DisplayName,
				ReferralCode:           code,
				Tier:                   s.cfg.Tiers.TierFor(0).Name,
				TotalEarnings:          decimal.Zero,
				PendingEarnings:        decimal.Zero,
				PaidEarnings:           decimal.Zero,
				ReservedEarnings:       decimal.Zero,
				MinimumPayoutThreshold: s.cfg.DefaultMinimumPayout,
				CookieDurationDays:     s.cfg.DefaultCookieDays,
				NotificationPreference: domain.NotifyEmail,
				Status:                 domain.PartnerStatusPendingApproval,
				Version:                1,
				CreatedAt:              now,
				UpdatedAt:              now,
			}
			if err := tx.Partners().Create(ctx, created); err != nil {
				return err
			}
			return s.appendAudit(ctx, tx, created.PartnerID, "partner.applied", actor.SubjectID, "", map[string]string{"referral_code": code})
		})
		return created, err
	})
}

func (s *Service) uniqueReferralCode(ctx context.Context, tx ports.Tx) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := randomReferralCode(referralCodeLength)
		if err != nil {
			return "", err
		}
		if _, err := tx.Partners().GetByReferralCode(ctx, code); errors.Is(err, domain.ErrNotFound) {
			return code, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: could not allocate referral code", domain.ErrConflict)
}

// ApprovePartner activates a partner still awaiting approval.
func (s *Service) ApprovePartner(ctx context.Context, actor Actor, in PartnerStatusInput) (domain.Partner, error) {
	return s.changePartnerStatus(ctx, actor, in, domain.PartnerStatusPendingApproval, domain.PartnerStatusActive, "partner.approved")
}

func (s *Service) SuspendPartner(ctx context.Context, actor Actor, in PartnerStatusInput) (domain.Partner, error) {
	return s.changePartnerStatus(ctx, actor, in, "", domain.PartnerStatusSuspended, "partner.suspended")
}

// ReactivatePartner lifts a suspension. It never approves an application.
func (s *Service) ReactivatePartner(ctx context.Context, actor Actor, in PartnerStatusInput) (domain.Partner, error) {
	return s.changePartnerStatus(ctx, actor, in, domain.PartnerStatusSuspended, domain.PartnerStatusActive, "partner.reactivated")
}

// changePartnerStatus moves a partner to `to`. A non-empty from pins the
// only source state the action accepts; a partner already in `to` is a no-op.
func (s *Service) changePartnerStatus(ctx context.Context, actor Actor, in PartnerStatusInput, from, to domain.PartnerStatus, action string) (domain.Partner, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Partner{}, err
	}
	in.PartnerID = strings.TrimSpace(in.PartnerID)
	in.Reason = strings.TrimSpace(in.Reason)
	if in.PartnerID == "" {
		return domain.Partner{}, domain.ErrInvalidInput
	}
	request := map[string]any{"op": action, "actor": actor.SubjectID, "partner_id": in.PartnerID, "reason": in.Reason}
	out, err := idempotent(ctx, s, actor, 200, request, func() (domain.Partner, error) {
		var updated domain.Partner
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
			p, err := tx.Partners().GetForUpdate(ctx, in.PartnerID)
			if err != nil {
				return err
			}
			if p.Status == to {
				updated = p
				return nil
			}
			if (from != "" && p.Status != from) || !domain.CanTransitionPartner(p.Status, to) {
				return fmt.Errorf("%w: partner %s %s -> %s", domain.ErrInvalidStateTransition, p.PartnerID, p.Status, to)
			}
			p.Status = to
			if err := s.savePartner(ctx, tx, &p); err != nil {
				return err
			}
			updated = p
			return s.appendAudit(ctx, tx, p.PartnerID, action, actor.SubjectID, in.Reason, nil)
		})
		return updated, err
	})
	if err != nil {
		return domain.Partner{}, err
	}
	s.afterCommit(ctx, out)
	return out, nil
}

func (s *Service) GetPartner(ctx context.Context, actor Actor, partnerID string) (domain.Partner, error) {
	var out domain.Partner
	err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		p, err := s.partnerForActor(ctx, tx, actor, partnerID)
		out = p
		return err
	})
	return out, err
}

func (s *Service) UpdateSettings(ctx context.Context, actor Actor, in UpdateSettingsInput) (domain.Partner, error) {
	if err := requireSubject(actor); err != nil {
		return domain.Partner{}, err
	}
	var pref domain.NotificationPreference
	if in.NotificationPreference != nil {
		p, err := domain.ParseNotificationPreference(*in.NotificationPreference)
		if err != nil {
			return domain.Partner{}, err
		}
		pref = p
	}
	if in.CookieDurationDays != nil && (*in.CookieDurationDays < domain.MinCookieDurationDays || *in.CookieDurationDays > domain.MaxCookieDurationDays) {
		return domain.Partner{}, fmt.Errorf("%w: cookie duration must be between %d and %d days", domain.ErrInvalidInput, domain.MinCookieDurationDays, domain.MaxCookieDurationDays)
	}
	var threshold decimal.Decimal
	if in.MinimumPayoutThreshold != nil {
		v, err := domain.ParseMoney(*in.MinimumPayoutThreshold)
		if err != nil {
			return domain.Partner{}, err
		}
		if v.LessThan(s.cfg.MinimumPayoutFloor) {
			return domain.Partner{}, fmt.Errorf("%w: minimum payout below %s", domain.ErrInvalidInput, s.cfg.MinimumPayoutFloor.StringFixed(2))
		}
		threshold = v
	}
	request := map[string]any{"op": "update_settings", "user": actor.SubjectID, "cookie_days": in.CookieDurationDays, "leaderboard": in.LeaderboardOptIn, "notify": pref, "min_payout": threshold.String()}
	out, err := idempotent(ctx, s, actor, 200, request, func() (domain.Partner, error) {
		var updated domain.Partner
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
			own, err := tx.Partners().GetByUserID(ctx, actor.SubjectID)
			if err != nil {
				return err
			}
			p, err := tx.Partners().GetForUpdate(ctx, own.PartnerID)
			if err != nil {
				return err
			}
			meta := map[string]string{}
			if in.CookieDurationDays != nil {
				p.CookieDurationDays = *in.CookieDurationDays
				meta["cookie_duration_days"] = fmt.Sprint(p.CookieDurationDays)
			}
			if in.LeaderboardOptIn != nil {
				p.LeaderboardOptIn = *in.LeaderboardOptIn
				meta["leaderboard_opt_in"] = fmt.Sprint(p.LeaderboardOptIn)
			}
			if in.NotificationPreference != nil {
				p.NotificationPreference = pref
				meta["notification_preference"] = string(pref)
			}
			if in.MinimumPayoutThreshold != nil {
				p.MinimumPayoutThreshold = threshold
				meta["minimum_payout_threshold"] = threshold.StringFixed(2)
			}
			if err := s.savePartner(ctx, tx, &p); err != nil {
				return err
			}
			updated = p
			return s.appendAudit(ctx, tx, p.PartnerID, "partner.settings.updated", actor.SubjectID, "", meta)
		})
		return updated, err
	})
	if err != nil {
		return domain.Partner{}, err
	}
	s.afterCommit(ctx, out)
	return out, nil
}
