package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PartnerStatus string

const (
	PartnerStatusPendingApproval PartnerStatus = "pending_approval"
	PartnerStatusActive          PartnerStatus = "active"
	PartnerStatusSuspended       PartnerStatus = "suspended"
)

var partnerTransitions = map[PartnerStatus][]PartnerStatus{
	PartnerStatusPendingApproval: {PartnerStatusActive, PartnerStatusSuspended},
	PartnerStatusActive:          {PartnerStatusSuspended},
	PartnerStatusSuspended:       {PartnerStatusActive},
}

func CanTransitionPartner(from, to PartnerStatus) bool {
	for _, next := range partnerTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type NotificationPreference string

const (
	NotifyEmail NotificationPreference = "email"
	NotifySMS   NotificationPreference = "sms"
	NotifyNone  NotificationPreference = "none"
)

func ParseNotificationPreference(raw string) (NotificationPreference, error) {
	switch p := NotificationPreference(strings.ToLower(strings.TrimSpace(raw))); p {
	case NotifyEmail, NotifySMS, NotifyNone:
		return p, nil
	default:
		return "", fmt.Errorf("%w: notification preference %q", ErrInvalidInput, raw)
	}
}

const (
	MinCookieDurationDays     = 7
	MaxCookieDurationDays     = 90
	DefaultCookieDurationDays = 30
)

// Partner is the single owning row for every balance and counter of a
// referrer. TotalEarnings always equals PendingEarnings + PaidEarnings.
// ReservedEarnings is the part of PendingEarnings held by open payouts.
type Partner struct {
	PartnerID              string                 `json:"partner_id"`
	UserID                 string                 `json:"user_id"`
	Email                  string                 `json:"email"`
	DisplayName            string                 `json:"display_name"`
	ReferralCode           string                 `json:"referral_code"`
	Tier                   string                 `json:"tier"`
	LifetimeReferrals      int                    `json:"lifetime_referrals"`
	TotalEarnings          decimal.Decimal        `json:"total_earnings"`
	PendingEarnings        decimal.Decimal        `json:"pending_earnings"`
	PaidEarnings           decimal.Decimal        `json:"paid_earnings"`
	ReservedEarnings       decimal.Decimal        `json:"reserved_earnings"`
	MinimumPayoutThreshold decimal.Decimal        `json:"minimum_payout_threshold"`
	CookieDurationDays     int                    `json:"cookie_duration_days"`
	LeaderboardOptIn       bool                   `json:"leaderboard_opt_in"`
	NotificationPreference NotificationPreference `json:"notification_preference"`
	Status                 PartnerStatus          `json:"status"`
	Version                int64                  `json:"version"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
}

// AvailableEarnings is what a new payout request may draw on.
func (p Partner) AvailableEarnings() decimal.Decimal {
	return p.PendingEarnings.Sub(p.ReservedEarnings)
}

func (p Partner) CookieWindow() time.Duration {
	days := p.CookieDurationDays
	if days <= 0 {
		days = DefaultCookieDurationDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// CheckBalances reports ErrConsistencyViolation when the ledger equation or
// the reservation bounds do not hold.
func (p Partner) CheckBalances() error {
	if !p.TotalEarnings.Equal(p.PendingEarnings.Add(p.PaidEarnings)) {
		return fmt.Errorf("%w: total %s != pending %s + paid %s", ErrConsistencyViolation, p.TotalEarnings, p.PendingEarnings, p.PaidEarnings)
	}
	if p.PendingEarnings.IsNegative() || p.PaidEarnings.IsNegative() || p.ReservedEarnings.IsNegative() {
		return fmt.Errorf("%w: negative balance", ErrConsistencyViolation)
	}
	if p.ReservedEarnings.GreaterThan(p.PendingEarnings) {
		return fmt.Errorf("%w: reserved %s exceeds pending %s", ErrConsistencyViolation, p.ReservedEarnings, p.PendingEarnings)
	}
	return nil
}

// Credit adds a newly earned amount to both pending and total.
func (p *Partner) Credit(amount decimal.Decimal) {
	p.PendingEarnings = p.PendingEarnings.Add(amount)
	p.TotalEarnings = p.TotalEarnings.Add(amount)
}

func (p *Partner) Reserve(amount decimal.Decimal) error {
	if amount.GreaterThan(p.AvailableEarnings()) {
		return ErrInsufficientBalance
	}
	p.ReservedEarnings = p.ReservedEarnings.Add(amount)
	return nil
}

func (p *Partner) Release(amount decimal.Decimal) error {
	if amount.GreaterThan(p.ReservedEarnings) {
		return fmt.Errorf("%w: release %s exceeds reserved %s", ErrConsistencyViolation, amount, p.ReservedEarnings)
	}
	p.ReservedEarnings = p.ReservedEarnings.Sub(amount)
	return nil
}

// Settle moves a reserved amount from pending to paid.
func (p *Partner) Settle(amount decimal.Decimal) error {
	if err := p.Release(amount); err != nil {
		return err
	}
	p.PendingEarnings = p.PendingEarnings.Sub(amount)
	p.PaidEarnings = p.PaidEarnings.Add(amount)
	return nil
}

func NormalizeIdentity(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func NormalizeReferralCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
