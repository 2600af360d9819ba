package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type EarningKind string

const (
	EarningKindCommission     EarningKind = "commission"
	EarningKindRevenueShare   EarningKind = "revenue_share"
	EarningKindMilestoneBonus EarningKind = "milestone_bonus"
)

type EarningStatus string

const (
	EarningStatusCredited EarningStatus = "credited"
	EarningStatusReserved EarningStatus = "reserved"
	EarningStatusPaid     EarningStatus = "paid"
)

// Earning is one ledger line backing part of a partner's pending or paid
// balance. ReferralID is set for commissions and revenue share, AwardID for
// milestone bonuses.
type Earning struct {
	EarningID  string          `json:"earning_id"`
	PartnerID  string          `json:"partner_id"`
	ReferralID string          `json:"referral_id,omitempty"`
	AwardID    string          `json:"award_id,omitempty"`
	Kind       EarningKind     `json:"kind"`
	PaymentID  string          `json:"payment_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Status     EarningStatus   `json:"status"`
	PayoutID   string          `json:"payout_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// AllocateEarnings tags whole credited earnings, oldest first, whose amounts
// sum exactly to amount. A line that would overshoot is skipped, so a
// referral's commission always settles in a single payout. When no such
// subset exists the error names the closest payable amount below it.
func AllocateEarnings(credited []Earning, amount decimal.Decimal, payoutID string, at time.Time) ([]Earning, error) {
	lines := make([]Earning, 0, len(credited))
	total := decimal.Zero
	for _, e := range credited {
		if e.Status != EarningStatusCredited || e.PayoutID != "" {
			return nil, fmt.Errorf("%w: earning %s already tagged", ErrConsistencyViolation, e.EarningID)
		}
		lines = append(lines, e)
		total = total.Add(e.Amount)
	}
	if total.LessThan(amount) {
		return nil, fmt.Errorf("%w: credited earnings short by %s", ErrConsistencyViolation, amount.Sub(total))
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].CreatedAt.Equal(lines[j].CreatedAt) {
			return lines[i].EarningID < lines[j].EarningID
		}
		return lines[i].CreatedAt.Before(lines[j].CreatedAt)
	})

	var tagged []Earning
	remaining := amount
	for _, e := range lines {
		if !remaining.IsPositive() {
			break
		}
		if e.Amount.GreaterThan(remaining) {
			continue
		}
		e.Status = EarningStatusReserved
		e.PayoutID = payoutID
		e.UpdatedAt = at
		tagged = append(tagged, e)
		remaining = remaining.Sub(e.Amount)
	}
	if remaining.IsPositive() {
		return nil, fmt.Errorf("%w: closest payable amount is %s", ErrUnallocatableAmount, amount.Sub(remaining).StringFixed(2))
	}
	return tagged, nil
}
