package application

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

const maxPageSize = 100

func pageOf(in ListInput) ports.Page {
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := in.Offset
	if offset < 0 {
		offset = 0
	}
	return ports.Page{Limit: limit, Offset: offset}
}

func (s *Service) ListReferrals(ctx context.Context, actor Actor, in ListInput) (ReferralPage, error) {
	var status domain.ReferralStatus
	if raw := strings.TrimSpace(in.Status); raw != "" {
		parsed, err := domain.ParseReferralStatus(raw)
		if err != nil {
			return ReferralPage{}, err
		}
		status = parsed
	}
	var out ReferralPage
	err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		p, err := s.partnerForActor(ctx, tx, actor, in.PartnerID)
		if err != nil {
			return err
		}
		page := pageOf(in)
		rows, total, err := tx.Referrals().ListByPartner(ctx, p.PartnerID, status, page)
		out = ReferralPage{Items: rows, Total: total, Limit: page.Limit, Offset: page.Offset}
		return err
	})
	return out, err
}

func (s *Service) ListEarnings(ctx context.Context, actor Actor, in ListInput) (EarningPage, error) {
	var out EarningPage
	err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		p, err := s.partnerForActor(ctx, tx, actor, in.PartnerID)
		if err != nil {
			return err
		}
		page := pageOf(in)
		rows, total, err := tx.Earnings().ListByPartner(ctx, p.PartnerID, page)
		out = EarningPage{Items: rows, Total: total, Limit: page.Limit, Offset: page.Offset}
		return err
	})
	return out, err
}

// GetFunnel aggregates the partner's clicks and referrals by UTM bucket.
func (s *Service) GetFunnel(ctx context.Context, actor Actor, partnerID string) (domain.FunnelReport, error) {
	var out domain.FunnelReport
	err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		p, err := s.partnerForActor(ctx, tx, actor, partnerID)
		if err != nil {
			return err
		}
		out, err = s.funnelFor(ctx, tx, p.PartnerID)
		return err
	})
	return out, err
}

func (s *Service) funnelFor(ctx context.Context, tx ports.Tx, partnerID string) (domain.FunnelReport, error) {
	clicks, err := tx.Clicks().ListByPartner(ctx, partnerID)
	if err != nil {
		return domain.FunnelReport{}, err
	}
	referrals, err := tx.Referrals().ListAllByPartner(ctx, partnerID)
	if err != nil {
		return domain.FunnelReport{}, err
	}
	return domain.BuildFunnel(clicks, referrals), nil
}

func (s *Service) GetTierProgress(ctx context.Context, actor Actor, partnerID string) (TierProgress, error) {
	var out TierProgress
	err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		p, err := s.partnerForActor(ctx, tx, actor, partnerID)
		if err != nil {
			return err
		}
		out = s.tierProgress(p)
		return nil
	})
	return out, err
}

func (s *Service) tierProgress(p domain.Partner) TierProgress {
	next, gap := s.cfg.Tiers.NextTierAndGap(p.LifetimeReferrals)
	return TierProgress{
		Current:           s.cfg.Tiers.TierFor(p.LifetimeReferrals),
		Next:              next,
		ReferralsToNext:   gap,
		LifetimeReferrals: p.LifetimeReferrals,
	}
}

// GetDashboard assembles the partner's balances, tier progress, milestone
// progress and overall funnel. The result is cached per partner until a
// write touches it; the cache generation is read before the snapshot so a
// write committed in between makes the store a no-op.
func (s *Service) GetDashboard(ctx context.Context, actor Actor) (Dashboard, error) {
	if err := requireSubject(actor); err != nil {
		return Dashboard{}, err
	}
	var own domain.Partner
	err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		p, err := tx.Partners().GetByUserID(ctx, actor.SubjectID)
		own = p
		return err
	})
	if err != nil {
		return Dashboard{}, err
	}
	if cached, ok := s.cachedDashboard(ctx, own.PartnerID); ok {
		return cached, nil
	}
	generation, cacheable := s.dashboardGeneration(ctx, own.PartnerID)

	var out Dashboard
	err = s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		p, err := tx.Partners().GetByID(ctx, own.PartnerID)
		if err != nil {
			return err
		}
		awards, err := tx.Awards().ListByPartner(ctx, p.PartnerID)
		if err != nil {
			return err
		}
		awarded := make(map[string]bool, len(awards))
		for _, a := range awards {
			awarded[a.MilestoneID] = true
		}
		funnel, err := s.funnelFor(ctx, tx, p.PartnerID)
		if err != nil {
			return err
		}
		out = Dashboard{
			Partner:    p,
			Available:  p.AvailableEarnings(),
			Tier:       s.tierProgress(p),
			Milestones: s.cfg.Milestones.Progress(p.LifetimeReferrals, awarded),
			Funnel:     funnel.Overall,
		}
		return nil
	})
	if err != nil {
		return Dashboard{}, err
	}
	if cacheable {
		s.storeDashboard(ctx, out, generation)
	}
	return out, nil
}

func (s *Service) cachedDashboard(ctx context.Context, partnerID string) (Dashboard, bool) {
	if s.dashboards == nil {
		return Dashboard{}, false
	}
	raw, err := s.dashboards.Get(ctx, partnerID)
	if err != nil {
		s.logger.WarnContext(ctx, "dashboard cache read failed", "operation", "get_dashboard", "outcome", "degraded", "partner_id", partnerID, "error", err)
		return Dashboard{}, false
	}
	if raw == nil {
		return Dashboard{}, false
	}
	var out Dashboard
	if err := json.Unmarshal(raw, &out); err != nil {
		return Dashboard{}, false
	}
	return out, true
}

func (s *Service) dashboardGeneration(ctx context.Context, partnerID string) (int64, bool) {
	if s.dashboards == nil {
		return 0, false
	}
	gen, err := s.dashboards.Generation(ctx, partnerID)
	if err != nil {
		s.logger.WarnContext(ctx, "dashboard cache generation read failed", "operation", "get_dashboard", "outcome", "degraded", "partner_id", partnerID, "error", err)
		return 0, false
	}
	return gen, true
}

func (s *Service) storeDashboard(ctx context.Context, d Dashboard, generation int64) {
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := s.dashboards.Set(ctx, d.Partner.PartnerID, generation, raw, s.cfg.DashboardCacheTTL); err != nil {
		s.logger.WarnContext(ctx, "dashboard cache write failed", "operation", "get_dashboard", "outcome", "degraded", "partner_id", d.Partner.PartnerID, "error", err)
	}
}

// GetLeaderboard ranks opted-in active partners by lifetime referrals. The
// ranking index is consulted first; the store is the fallback.
func (s *Service) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > s.cfg.LeaderboardSize {
		limit = s.cfg.LeaderboardSize
	}
	var out []LeaderboardRow
	err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		partners, err := s.leaderboardPartners(ctx, tx, limit)
		if err != nil {
			return err
		}
		out = make([]LeaderboardRow, 0, len(partners))
		for _, p := range partners {
			out = append(out, LeaderboardRow{
				Rank:              len(out) + 1,
				PartnerID:         p.PartnerID,
				DisplayName:       p.DisplayName,
				Tier:              p.Tier,
				LifetimeReferrals: p.LifetimeReferrals,
			})
		}
		return nil
	})
	return out, err
}

func (s *Service) leaderboardPartners(ctx context.Context, tx ports.Tx, limit int) ([]domain.Partner, error) {
	if s.leaderboard != nil {
		entries, err := s.leaderboard.Top(ctx, limit)
		if err == nil && len(entries) > 0 {
			out := make([]domain.Partner, 0, len(entries))
			for _, e := range entries {
				p, err := tx.Partners().GetByID(ctx, e.PartnerID)
				if err != nil {
					continue
				}
				if !p.LeaderboardOptIn || p.Status != domain.PartnerStatusActive {
					continue
				}
				out = append(out, p)
			}
			return out, nil
		}
		if err != nil {
			s.logger.WarnContext(ctx, "leaderboard index read failed", "operation", "get_leaderboard", "outcome", "degraded", "error", err)
		}
	}
	return tx.Partners().ListLeaderboard(ctx, limit)
}

func (s *Service) ListAuditLogs(ctx context.Context, actor Actor, partnerID string) ([]domain.AuditLog, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var out []domain.AuditLog
	err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		if _, err := tx.Partners().GetByID(ctx, strings.TrimSpace(partnerID)); err != nil {
			return err
		}
		rows, err := tx.AuditLogs().ListByPartner(ctx, strings.TrimSpace(partnerID))
		out = rows
		return err
	})
	return out, err
}
