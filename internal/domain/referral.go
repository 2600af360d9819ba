package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusConverted ReferralStatus = "converted"
	ReferralStatusCredited  ReferralStatus = "credited"
	ReferralStatusPaid      ReferralStatus = "paid"
	ReferralStatusExpired   ReferralStatus = "expired"
)

var referralTransitions = map[ReferralStatus][]ReferralStatus{
	ReferralStatusPending:   {ReferralStatusConverted, ReferralStatusExpired},
	ReferralStatusConverted: {ReferralStatusCredited},
	ReferralStatusCredited:  {ReferralStatusPaid},
}

func ParseReferralStatus(raw string) (ReferralStatus, error) {
	switch s := ReferralStatus(raw); s {
	case ReferralStatusPending, ReferralStatusConverted, ReferralStatusCredited, ReferralStatusPaid, ReferralStatusExpired:
		return s, nil
	default:
		return "", fmt.Errorf("%w: referral status %q", ErrInvalidInput, raw)
	}
}

// CanTransitionReferral reports whether from→to is in the lifecycle table.
func CanTransitionReferral(from, to ReferralStatus) bool {
	for _, next := range referralTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HasConverted is true for converted, credited and paid referrals.
func (s ReferralStatus) HasConverted() bool {
	return s == ReferralStatusConverted || s == ReferralStatusCredited || s == ReferralStatusPaid
}

type UTM struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
}

const UnattributedBucket = "unattributed"

// Bucketed replaces empty fields with the unattributed bucket name.
func (u UTM) Bucketed() UTM {
	out := u
	if out.Source == "" {
		out.Source = UnattributedBucket
	}
	if out.Medium == "" {
		out.Medium = UnattributedBucket
	}
	if out.Campaign == "" {
		out.Campaign = UnattributedBucket
	}
	return out
}

// TierSnapshot freezes the commission terms at conversion time.
type TierSnapshot struct {
	Name                string          `json:"name"`
	FlatFee             decimal.Decimal `json:"flat_fee"`
	RevenueSharePercent decimal.Decimal `json:"revenue_share_percent"`
}

func SnapshotTier(t Tier) *TierSnapshot {
	return &TierSnapshot{Name: t.Name, FlatFee: t.FlatFee, RevenueSharePercent: t.RevenueSharePercent}
}

type Referral struct {
	ReferralID          string          `json:"referral_id"`
	PartnerID           string          `json:"partner_id"`
	ReferredIdentity    string          `json:"referred_identity"`
	Status              ReferralStatus  `json:"status"`
	Converted           bool            `json:"converted"`
	ConversionPaymentID string          `json:"conversion_payment_id,omitempty"`
	AmountEarned        decimal.Decimal `json:"amount_earned"`
	TierSnapshot        *TierSnapshot   `json:"tier_snapshot,omitempty"`
	PayoutID            string          `json:"payout_id,omitempty"`
	ClickID             string          `json:"click_id,omitempty"`
	UTM                 UTM             `json:"utm"`
	CreatedAt           time.Time       `json:"created_at"`
	ConvertedAt         *time.Time      `json:"converted_at,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Transition moves the referral along the lifecycle table.
func (r *Referral) Transition(to ReferralStatus, at time.Time) error {
	if !CanTransitionReferral(r.Status, to) {
		return fmt.Errorf("%w: referral %s %s -> %s", ErrInvalidStateTransition, r.ReferralID, r.Status, to)
	}
	r.Status = to
	r.UpdatedAt = at
	if to == ReferralStatusConverted {
		r.Converted = true
		t := at
		r.ConvertedAt = &t
	}
	return nil
}
