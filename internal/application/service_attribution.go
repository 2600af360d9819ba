package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

func (s *Service) TrackClick(ctx context.Context, in TrackClickInput) (TrackClickResult, error) {
	code := domain.NormalizeReferralCode(in.ReferralCode)
	if code == "" {
		return TrackClickResult{}, domain.ErrInvalidInput
	}
	var out TrackClickResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		p, err := tx.Partners().GetByReferralCode(ctx, code)
		if err != nil {
			return err
		}
		if p.Status != domain.PartnerStatusActive {
			return fmt.Errorf("%w: partner is %s", domain.ErrAttributionDenied, p.Status)
		}
		click := domain.Click{
			ClickID:       newID("clk_"),
			PartnerID:     p.PartnerID,
			ReferralCode:  code,
			UTM:           normalizeUTM(in.UTM),
			ReferrerURL:   strings.TrimSpace(in.ReferrerURL),
			IPHash:        sha256Hex(strings.TrimSpace(in.ClientIP)),
			UserAgentHash: sha256Hex(strings.TrimSpace(in.UserAgent)),
			ClickedAt:     s.nowFn(),
		}
		if err := tx.Clicks().Append(ctx, click); err != nil {
			return err
		}
		out = TrackClickResult{ClickID: click.ClickID, PartnerID: p.PartnerID, RedirectURL: s.signupURL(code), CookieMaxAge: p.CookieWindow()}
		return s.enqueueClickTracked(ctx, tx, click)
	})
	return out, err
}

func (s *Service) signupURL(code string) string {
	u, err := url.Parse(s.cfg.PublicBaseURL)
	if err != nil {
		return s.cfg.PublicBaseURL
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/signup"
	q := u.Query()
	q.Set("ref", code)
	u.RawQuery = q.Encode()
	return u.String()
}

// ResolveAttribution binds a signup to at most one partner. An explicit
// referral code wins over the click cookie. A cookie outside the partner's
// window, or no referral signal at all, yields OutcomeNoAttribution.
func (s *Service) ResolveAttribution(ctx context.Context, in SignupInput) (AttributionResult, error) {
	identity := domain.NormalizeIdentity(in.ReferredIdentity)
	if identity == "" {
		return AttributionResult{}, fmt.Errorf("%w: referred identity", domain.ErrInvalidInput)
	}
	code := domain.NormalizeReferralCode(in.ReferralCode)
	clickID := strings.TrimSpace(in.ClickID)
	if code == "" && clickID == "" {
		return AttributionResult{Outcome: OutcomeNoAttribution}, nil
	}
	now := s.nowFn()
	if in.SignedUpAt.IsZero() {
		in.SignedUpAt = now
	}

	var (
		result  = AttributionResult{Outcome: OutcomeNoAttribution}
		touched domain.Partner
		g       growth
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		var click *domain.Click
		if clickID != "" {
			c, err := tx.Clicks().GetByID(ctx, clickID)
			switch {
			case err == nil:
				click = &c
			case errors.Is(err, domain.ErrNotFound):
			default:
				return err
			}
		}

		var partnerID string
		if code != "" {
			p, err := tx.Partners().GetByReferralCode(ctx, code)
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: unknown referral code", domain.ErrAttributionDenied)
			} else if err != nil {
				return err
			}
			partnerID = p.PartnerID
			if click != nil && click.PartnerID != partnerID {
				click = nil
			}
		} else {
			if click == nil {
				return nil
			}
			partnerID = click.PartnerID
		}

		p, err := tx.Partners().GetForUpdate(ctx, partnerID)
		if err != nil {
			return err
		}
		if p.Status != domain.PartnerStatusActive {
			return fmt.Errorf("%w: partner is %s", domain.ErrAttributionDenied, p.Status)
		}
		if code == "" && !click.WithinWindow(p.CookieWindow(), in.SignedUpAt) {
			return nil
		}
		if identity == domain.NormalizeIdentity(p.Email) || (in.UserID != "" && in.UserID == p.UserID) {
			return fmt.Errorf("%w: self referral", domain.ErrAttributionDenied)
		}

		existing, err := tx.Referrals().GetByIdentity(ctx, identity)
		switch {
		case err == nil && existing.PartnerID == p.PartnerID:
			result = AttributionResult{Outcome: OutcomeReplayed, Referral: &existing}
			return nil
		case err == nil:
			return domain.ErrDuplicateAttribution
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		utm := normalizeUTM(in.UTM)
		ref := domain.Referral{
			ReferralID:       newID("ref_"),
			PartnerID:        p.PartnerID,
			ReferredIdentity: identity,
			Status:           domain.ReferralStatusPending,
			AmountEarned:     decimal.Zero,
			UTM:              utm,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if click != nil {
			ref.ClickID = click.ClickID
			if utm == (domain.UTM{}) {
				ref.UTM = click.UTM
			}
		}
		if err := tx.Referrals().Create(ctx, ref); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return domain.ErrDuplicateAttribution
			}
			return err
		}
		g, err = s.recordReferralGrowth(ctx, tx, &p, in.TraceID, now)
		if err != nil {
			return err
		}
		if err := s.savePartner(ctx, tx, &p); err != nil {
			return err
		}
		if err := s.enqueueReferralAttributed(ctx, tx, ref, in.TraceID); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, tx, p.PartnerID, "partner.referral.attributed", "system", "", map[string]string{"referral_id": ref.ReferralID}); err != nil {
			return err
		}
		touched = p
		result = AttributionResult{Outcome: OutcomeAttributed, Referral: &ref}
		return nil
	})
	if err != nil {
		return AttributionResult{}, err
	}
	s.metrics.ReferralAttributed(string(result.Outcome))
	if result.Outcome == OutcomeAttributed {
		s.reportGrowth(g)
		s.afterCommit(ctx, touched)
	}
	return result, nil
}

// HandleSignup attributes a signup without ever failing it on business
// grounds: rejections are logged and reported as unattributed.
func (s *Service) HandleSignup(ctx context.Context, in SignupInput) (AttributionResult, error) {
	result, err := s.ResolveAttribution(ctx, in)
	if err == nil {
		return result, nil
	}
	if !isDomainError(err) {
		return AttributionResult{}, err
	}
	s.metrics.ReferralAttributed(attributionRejection(err))
	s.logger.WarnContext(ctx, "signup left unattributed",
		"operation", "handle_signup",
		"outcome", "degraded",
		"referral_code", domain.NormalizeReferralCode(in.ReferralCode),
		"click_id", in.ClickID,
		"trace_id", in.TraceID,
		"error", err,
	)
	return AttributionResult{Outcome: OutcomeNoAttribution}, nil
}

func attributionRejection(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateAttribution):
		return "duplicate"
	case errors.Is(err, domain.ErrAttributionDenied):
		return "denied"
	default:
		return "rejected"
	}
}

func normalizeUTM(u domain.UTM) domain.UTM {
	return domain.UTM{
		Source:   strings.ToLower(strings.TrimSpace(u.Source)),
		Medium:   strings.ToLower(strings.TrimSpace(u.Medium)),
		Campaign: strings.TrimSpace(u.Campaign),
	}
}
