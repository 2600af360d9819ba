package http

import (
	"strings"
	"time"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/application"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func toPartnerResponse(p domain.Partner, baseURL string) contracts.PartnerResponse {
	return contracts.PartnerResponse{
		PartnerID:              p.PartnerID,
		UserID:                 p.UserID,
		Email:                  p.Email,
		DisplayName:            p.DisplayName,
		ReferralCode:           p.ReferralCode,
		ReferralURL:            strings.TrimRight(baseURL, "/") + "/r/" + p.ReferralCode,
		Tier:                   p.Tier,
		LifetimeReferrals:      p.LifetimeReferrals,
		TotalEarnings:          p.TotalEarnings.StringFixed(2),
		PendingEarnings:        p.PendingEarnings.StringFixed(2),
		PaidEarnings:           p.PaidEarnings.StringFixed(2),
		ReservedEarnings:       p.ReservedEarnings.StringFixed(2),
		AvailableEarnings:      p.AvailableEarnings().StringFixed(2),
		MinimumPayoutThreshold: p.MinimumPayoutThreshold.StringFixed(2),
		CookieDurationDays:     p.CookieDurationDays,
		LeaderboardOptIn:       p.LeaderboardOptIn,
		NotificationPreference: string(p.NotificationPreference),
		Status:                 string(p.Status),
		CreatedAt:              formatTime(p.CreatedAt),
		UpdatedAt:              formatTime(p.UpdatedAt),
	}
}

func toReferralResponse(r domain.Referral) contracts.ReferralResponse {
	out := contracts.ReferralResponse{
		ReferralID:          r.ReferralID,
		PartnerID:           r.PartnerID,
		Status:              string(r.Status),
		Converted:           r.Converted,
		ConversionPaymentID: r.ConversionPaymentID,
		AmountEarned:        r.AmountEarned.StringFixed(2),
		PayoutID:            r.PayoutID,
		UTMSource:           r.UTM.Source,
		UTMMedium:           r.UTM.Medium,
		UTMCampaign:         r.UTM.Campaign,
		CreatedAt:           formatTime(r.CreatedAt),
		ConvertedAt:         formatTimePtr(r.ConvertedAt),
	}
	if r.TierSnapshot != nil {
		out.Tier = r.TierSnapshot.Name
	}
	return out
}

func toEarningResponse(e domain.Earning) contracts.EarningResponse {
	return contracts.EarningResponse{
		EarningID:  e.EarningID,
		ReferralID: e.ReferralID,
		AwardID:    e.AwardID,
		Kind:       string(e.Kind),
		PaymentID:  e.PaymentID,
		Amount:     e.Amount.StringFixed(2),
		Status:     string(e.Status),
		PayoutID:   e.PayoutID,
		CreatedAt:  formatTime(e.CreatedAt),
	}
}

func toPayoutResponse(p domain.Payout) contracts.PayoutResponse {
	return contracts.PayoutResponse{
		PayoutID:         p.PayoutID,
		PartnerID:        p.PartnerID,
		Amount:           p.Amount.StringFixed(2),
		Method:           string(p.Method),
		Status:           string(p.Status),
		PaymentReference: p.PaymentReference,
		FailureReason:    p.FailureReason,
		InvoiceID:        p.InvoiceID,
		RequestedAt:      formatTime(p.RequestedAt),
		ProcessedAt:      formatTimePtr(p.ProcessedAt),
	}
}

func toInvoiceResponse(inv domain.Invoice) contracts.InvoiceResponse {
	lines := make([]contracts.InvoiceLineResponse, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lines = append(lines, contracts.InvoiceLineResponse{
			EarningID: l.EarningID, ReferralID: l.ReferralID, Kind: string(l.Kind), Amount: l.Amount.StringFixed(2),
		})
	}
	return contracts.InvoiceResponse{
		InvoiceID:     inv.InvoiceID,
		InvoiceNumber: inv.InvoiceNumber,
		PartnerID:     inv.PartnerID,
		PayoutID:      inv.PayoutID,
		Method:        string(inv.Method),
		Amount:        inv.Amount.StringFixed(2),
		Lines:         lines,
		IssuedAt:      formatTime(inv.IssuedAt),
	}
}

func toTierResponse(t domain.Tier) contracts.TierResponse {
	return contracts.TierResponse{
		Name:                t.Name,
		MinReferrals:        t.MinReferrals,
		FlatFee:             t.FlatFee.StringFixed(2),
		RevenueSharePercent: t.RevenueSharePercent.String(),
	}
}

func toTierProgressResponse(tp application.TierProgress) contracts.TierProgressResponse {
	out := contracts.TierProgressResponse{
		Current:           toTierResponse(tp.Current),
		ReferralsToNext:   tp.ReferralsToNext,
		LifetimeReferrals: tp.LifetimeReferrals,
	}
	if tp.Next != nil {
		next := toTierResponse(*tp.Next)
		out.Next = &next
	}
	return out
}

func toFunnelCounts(c domain.FunnelCounts) contracts.FunnelCountsResponse {
	return contracts.FunnelCountsResponse{
		Clicks:            c.Clicks,
		Signups:           c.Signups,
		Conversions:       c.Conversions,
		Expired:           c.Expired,
		ConversionRate:    c.ConversionRate.StringFixed(2),
		ClickToSignupRate: c.ClickToSignupRate.StringFixed(2),
	}
}

func toFunnelResponse(f domain.FunnelReport) contracts.FunnelResponse {
	rows := make([]contracts.UTMFunnelResponse, 0, len(f.ByUTM))
	for _, row := range f.ByUTM {
		rows = append(rows, contracts.UTMFunnelResponse{
			UTMSource:            row.UTM.Source,
			UTMMedium:            row.UTM.Medium,
			UTMCampaign:          row.UTM.Campaign,
			FunnelCountsResponse: toFunnelCounts(row.FunnelCounts),
		})
	}
	return contracts.FunnelResponse{Overall: toFunnelCounts(f.Overall), ByUTM: rows}
}

func toMilestoneProgress(rows []domain.MilestoneProgress) []contracts.MilestoneProgressResponse {
	out := make([]contracts.MilestoneProgressResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, contracts.MilestoneProgressResponse{
			MilestoneID:       row.Milestone.MilestoneID,
			Name:              row.Milestone.Name,
			ReferralsRequired: row.Milestone.ReferralsRequired,
			BonusAmount:       row.Milestone.BonusAmount.StringFixed(2),
			Awarded:           row.Awarded,
			Remaining:         row.Remaining,
		})
	}
	return out
}

func toAwardResponse(a domain.MilestoneAward) contracts.MilestoneAwardResponse {
	return contracts.MilestoneAwardResponse{
		AwardID:     a.AwardID,
		PartnerID:   a.PartnerID,
		MilestoneID: a.MilestoneID,
		BonusAmount: a.BonusAmount.StringFixed(2),
		AwardedAt:   formatTime(a.AwardedAt),
	}
}
