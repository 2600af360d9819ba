package postgres

import (
	"encoding/json"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

func toDomainPartner(m partnerModel) domain.Partner {
	return domain.Partner{
		PartnerID: m.PartnerID, UserID: m.UserID, Email: m.Email, DisplayName: m.DisplayName,
		ReferralCode: m.ReferralCode, Tier: m.Tier, LifetimeReferrals: m.LifetimeReferrals,
		TotalEarnings: m.TotalEarnings, PendingEarnings: m.PendingEarnings, PaidEarnings: m.PaidEarnings,
		ReservedEarnings: m.ReservedEarnings, MinimumPayoutThreshold: m.MinimumPayoutThreshold,
		CookieDurationDays: m.CookieDurationDays, LeaderboardOptIn: m.LeaderboardOptIn,
		NotificationPreference: domain.NotificationPreference(m.NotificationPreference), Status: domain.PartnerStatus(m.Status),
		Version: m.Version, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func fromDomainPartner(p domain.Partner) partnerModel {
	return partnerModel{
		PartnerID: p.PartnerID, UserID: p.UserID, Email: p.Email, DisplayName: p.DisplayName,
		ReferralCode: p.ReferralCode, Tier: p.Tier, LifetimeReferrals: p.LifetimeReferrals,
		TotalEarnings: p.TotalEarnings, PendingEarnings: p.PendingEarnings, PaidEarnings: p.PaidEarnings,
		ReservedEarnings: p.ReservedEarnings, MinimumPayoutThreshold: p.MinimumPayoutThreshold,
		CookieDurationDays: p.CookieDurationDays, LeaderboardOptIn: p.LeaderboardOptIn,
		NotificationPreference: string(p.NotificationPreference), Status: string(p.Status),
		Version: p.Version, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func toDomainClick(m clickModel) domain.Click {
	return domain.Click{
		ClickID: m.ClickID, PartnerID: m.PartnerID, ReferralCode: m.ReferralCode,
		UTM: domain.UTM{Source: m.UTMSource, Medium: m.UTMMedium, Campaign: m.UTMCampaign}, ReferrerURL: m.ReferrerURL,
		IPHash: m.IPHash, UserAgentHash: m.UserAgentHash, ClickedAt: m.ClickedAt,
	}
}

func fromDomainClick(c domain.Click) clickModel {
	return clickModel{
		ClickID: c.ClickID, PartnerID: c.PartnerID, ReferralCode: c.ReferralCode,
		UTMSource: c.UTM.Source, UTMMedium: c.UTM.Medium, UTMCampaign: c.UTM.Campaign,
		ReferrerURL: c.ReferrerURL, IPHash: c.IPHash, UserAgentHash: c.UserAgentHash, ClickedAt: c.ClickedAt,
	}
}

func toDomainReferral(m referralModel) (domain.Referral, error) {
	out := domain.Referral{
		ReferralID: m.ReferralID, PartnerID: m.PartnerID, ReferredIdentity: m.ReferredIdentity,
		Status: domain.ReferralStatus(m.Status), Converted: m.Converted, ConversionPaymentID: m.ConversionPaymentID,
		AmountEarned: m.AmountEarned, PayoutID: m.PayoutID, ClickID: m.ClickID,
		UTM: domain.UTM{Source: m.UTMSource, Medium: m.UTMMedium, Campaign: m.UTMCampaign}, CreatedAt: m.CreatedAt,
		ConvertedAt: m.ConvertedAt, UpdatedAt: m.UpdatedAt,
	}
	if m.TierSnapshot != nil && *m.TierSnapshot != "" {
		var snap domain.TierSnapshot
		if err := json.Unmarshal([]byte(*m.TierSnapshot), &snap); err != nil {
			return domain.Referral{}, err
		}
		out.TierSnapshot = &snap
	}
	return out, nil
}

func fromDomainReferral(r domain.Referral) (referralModel, error) {
	out := referralModel{
		ReferralID: r.ReferralID, PartnerID: r.PartnerID, ReferredIdentity: r.ReferredIdentity,
		Status: string(r.Status), Converted: r.Converted, ConversionPaymentID: r.ConversionPaymentID,
		AmountEarned: r.AmountEarned, PayoutID: r.PayoutID, ClickID: r.ClickID,
		UTMSource: r.UTM.Source, UTMMedium: r.UTM.Medium, UTMCampaign: r.UTM.Campaign,
		CreatedAt: r.CreatedAt, ConvertedAt: r.ConvertedAt, UpdatedAt: r.UpdatedAt,
	}
	if r.TierSnapshot != nil {
		raw, err := json.Marshal(r.TierSnapshot)
		if err != nil {
			return referralModel{}, err
		}
		snap := string(raw)
		out.TierSnapshot = &snap
	}
	return out, nil
}

func toDomainAward(m awardModel) domain.MilestoneAward {
	return domain.MilestoneAward{
		AwardID: m.AwardID, PartnerID: m.PartnerID, MilestoneID: m.MilestoneID,
		BonusAmount: m.BonusAmount, AwardedAt: m.AwardedAt,
	}
}

func toDomainPayout(m payoutModel) domain.Payout {
	return domain.Payout{
		PayoutID: m.PayoutID, PartnerID: m.PartnerID, Amount: m.Amount, Method: domain.PayoutMethod(m.Method),
		Status: domain.PayoutStatus(m.Status), PaymentReference: m.PaymentReference, FailureReason: m.FailureReason,
		InvoiceID: m.InvoiceID, RequestedAt: m.RequestedAt, ProcessedAt: m.ProcessedAt, UpdatedAt: m.UpdatedAt,
	}
}

func fromDomainPayout(p domain.Payout) payoutModel {
	return payoutModel{
		PayoutID: p.PayoutID, PartnerID: p.PartnerID, Amount: p.Amount, Method: string(p.Method),
		Status: string(p.Status), PaymentReference: p.PaymentReference, FailureReason: p.FailureReason,
		InvoiceID: p.InvoiceID, RequestedAt: p.RequestedAt, ProcessedAt: p.ProcessedAt, UpdatedAt: p.UpdatedAt,
	}
}

func toDomainEarning(m earningModel) domain.Earning {
	return domain.Earning{
		EarningID: m.EarningID, PartnerID: m.PartnerID, ReferralID: m.ReferralID, AwardID: m.AwardID,
		Kind: domain.EarningKind(m.Kind), PaymentID: m.PaymentID, Amount: m.Amount,
		Status: domain.EarningStatus(m.Status), PayoutID: m.PayoutID,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func fromDomainEarning(e domain.Earning) earningModel {
	return earningModel{
		EarningID: e.EarningID, PartnerID: e.PartnerID, ReferralID: e.ReferralID, AwardID: e.AwardID,
		Kind: string(e.Kind), PaymentID: e.PaymentID, Amount: e.Amount,
		Status: string(e.Status), PayoutID: e.PayoutID,
		CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
	}
}

func toDomainInvoice(m invoiceModel) (domain.Invoice, error) {
	out := domain.Invoice{
		InvoiceID: m.InvoiceID, InvoiceNumber: m.InvoiceNumber, PartnerID: m.PartnerID, PayoutID: m.PayoutID,
		Method: domain.PayoutMethod(m.Method), Amount: m.Amount, IssuedAt: m.IssuedAt,
	}
	if err := json.Unmarshal([]byte(m.Lines), &out.Lines); err != nil {
		return domain.Invoice{}, err
	}
	return out, nil
}

func toDomainAuditLog(m auditLogModel) domain.AuditLog {
	out := domain.AuditLog{
		AuditLogID: m.AuditLogID, PartnerID: m.PartnerID, Action: m.Action, ActorID: m.ActorID,
		Reason: m.Reason, CreatedAt: m.CreatedAt,
	}
	_ = json.Unmarshal([]byte(m.Metadata), &out.Metadata)
	return out
}
