package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

// growth collects what a lifetime increment changed so metrics are only
// reported once the transaction commits.
type growth struct {
	newTier string
	awards  []domain.MilestoneAward
}

func (s *Service) reportGrowth(g growth) {
	if g.newTier != "" {
		s.metrics.TierChanged(g.newTier)
	}
	for _, a := range g.awards {
		s.metrics.MilestoneAwarded(a.MilestoneID)
		s.metrics.CommissionCredited(string(domain.EarningKindMilestoneBonus), a.BonusAmount.InexactFloat64())
	}
}

// recordReferralGrowth counts one new referral on a locked partner,
// recomputes the cached tier and awards every milestone that became due.
// The caller saves the partner.
func (s *Service) recordReferralGrowth(ctx context.Context, tx ports.Tx, p *domain.Partner, traceID string, now time.Time) (growth, error) {
	p.LifetimeReferrals++
	previous := p.Tier
	p.Tier = s.cfg.Tiers.TierFor(p.LifetimeReferrals).Name
	g := growth{}
	if previous != p.Tier {
		g.newTier = p.Tier
		if err := s.enqueueTierChanged(ctx, tx, *p, previous, traceID, now); err != nil {
			return growth{}, err
		}
		if err := s.appendAudit(ctx, tx, p.PartnerID, "partner.tier.changed", "system", "", map[string]string{"from": previous, "to": p.Tier}); err != nil {
			return growth{}, err
		}
	}
	awards, err := s.awardDueMilestones(ctx, tx, p, "", traceID, now)
	if err != nil {
		return growth{}, err
	}
	g.awards = awards
	return g, nil
}

// awardDueMilestones grants met milestones the partner does not hold yet.
// A non-empty only restricts the check to that milestone.
func (s *Service) awardDueMilestones(ctx context.Context, tx ports.Tx, p *domain.Partner, only, traceID string, now time.Time) ([]domain.MilestoneAward, error) {
	existing, err := tx.Awards().ListByPartner(ctx, p.PartnerID)
	if err != nil {
		return nil, err
	}
	awarded := make(map[string]bool, len(existing))
	for _, a := range existing {
		awarded[a.MilestoneID] = true
	}
	out := make([]domain.MilestoneAward, 0)
	for _, m := range s.cfg.Milestones.Due(p.LifetimeReferrals, awarded) {
		if only != "" && m.MilestoneID != only {
			continue
		}
		award := domain.MilestoneAward{AwardID: newID("award_"), PartnerID: p.PartnerID, MilestoneID: m.MilestoneID, BonusAmount: m.BonusAmount, AwardedAt: now}
		if err := tx.Awards().Create(ctx, award); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			return nil, err
		}
		earning := domain.Earning{
			EarningID: newID("earn_"),
			PartnerID: p.PartnerID,
			AwardID:   award.AwardID,
			Kind:      domain.EarningKindMilestoneBonus,
			Amount:    m.BonusAmount,
			Status:    domain.EarningStatusCredited,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Earnings().Create(ctx, earning); err != nil {
			return nil, err
		}
		p.Credit(m.BonusAmount)
		if err := s.enqueueMilestoneAwarded(ctx, tx, award, traceID); err != nil {
			return nil, err
		}
		if err := s.appendAudit(ctx, tx, p.PartnerID, "partner.milestone.awarded", "system", "", map[string]string{"milestone_id": m.MilestoneID, "bonus": m.BonusAmount.StringFixed(2)}); err != nil {
			return nil, err
		}
		out = append(out, award)
	}
	return out, nil
}

// EvaluateMilestones awards every milestone the partner has met but not yet
// received. Replays award nothing.
func (s *Service) EvaluateMilestones(ctx context.Context, actor Actor, partnerID string) ([]domain.MilestoneAward, error) {
	return s.evaluateMilestones(ctx, actor, partnerID, "")
}

// EvaluateMilestone checks a single milestone. It returns nil when the
// milestone is not met yet or was already awarded.
func (s *Service) EvaluateMilestone(ctx context.Context, actor Actor, partnerID, milestoneID string) (*domain.MilestoneAward, error) {
	milestoneID = strings.TrimSpace(milestoneID)
	if _, err := s.cfg.Milestones.Get(milestoneID); err != nil {
		return nil, err
	}
	awards, err := s.evaluateMilestones(ctx, actor, partnerID, milestoneID)
	if err != nil || len(awards) == 0 {
		return nil, err
	}
	return &awards[0], nil
}

func (s *Service) evaluateMilestones(ctx context.Context, actor Actor, partnerID, only string) ([]domain.MilestoneAward, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	partnerID = strings.TrimSpace(partnerID)
	if partnerID == "" {
		return nil, domain.ErrInvalidInput
	}
	var (
		awards  []domain.MilestoneAward
		touched domain.Partner
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		p, err := tx.Partners().GetForUpdate(ctx, partnerID)
		if err != nil {
			return err
		}
		awards, err = s.awardDueMilestones(ctx, tx, &p, only, actor.RequestID, s.nowFn())
		if err != nil || len(awards) == 0 {
			return err
		}
		if err := s.savePartner(ctx, tx, &p); err != nil {
			return err
		}
		touched = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(awards) > 0 {
		s.reportGrowth(growth{awards: awards})
		s.afterCommit(ctx, touched)
	}
	return awards, nil
}
