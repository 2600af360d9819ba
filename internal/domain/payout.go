package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusCancelled  PayoutStatus = "cancelled"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:    {PayoutStatusProcessing, PayoutStatusCancelled},
	PayoutStatusProcessing: {PayoutStatusCompleted, PayoutStatusFailed},
}

func ParsePayoutStatus(raw string) (PayoutStatus, error) {
	switch s := PayoutStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case PayoutStatusPending, PayoutStatusProcessing, PayoutStatusCompleted, PayoutStatusFailed, PayoutStatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("%w: payout status %q", ErrInvalidInput, raw)
	}
}

func CanTransitionPayout(from, to PayoutStatus) bool {
	for _, next := range payoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s PayoutStatus) Terminal() bool {
	return s == PayoutStatusCompleted || s == PayoutStatusFailed || s == PayoutStatusCancelled
}

type PayoutMethod string

const (
	PayoutMethodBankTransfer PayoutMethod = "bank_transfer"
	PayoutMethodPayPal       PayoutMethod = "paypal"
	PayoutMethodStripe       PayoutMethod = "stripe"
	PayoutMethodCheck        PayoutMethod = "check"
)

func ParsePayoutMethod(raw string) (PayoutMethod, error) {
	switch m := PayoutMethod(strings.ToLower(strings.TrimSpace(raw))); m {
	case PayoutMethodBankTransfer, PayoutMethodPayPal, PayoutMethodStripe, PayoutMethodCheck:
		return m, nil
	default:
		return "", fmt.Errorf("%w: payout method %q", ErrInvalidInput, raw)
	}
}

type Payout struct {
	PayoutID         string          `json:"payout_id"`
	PartnerID        string          `json:"partner_id"`
	Amount           decimal.Decimal `json:"amount"`
	Method           PayoutMethod    `json:"method"`
	Status           PayoutStatus    `json:"status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	InvoiceID        string          `json:"invoice_id,omitempty"`
	RequestedAt      time.Time       `json:"requested_at"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (p *Payout) Transition(to PayoutStatus, at time.Time) error {
	if !CanTransitionPayout(p.Status, to) {
		return fmt.Errorf("%w: payout %s %s -> %s", ErrInvalidStateTransition, p.PayoutID, p.Status, to)
	}
	p.Status = to
	p.UpdatedAt = at
	if to.Terminal() {
		t := at
		p.ProcessedAt = &t
	}
	return nil
}

// ValidatePayoutRequest applies the request rules in order: positive
// amount, available balance, then the minimum threshold with the
// full-balance exception.
func ValidatePayoutRequest(p Partner, amount decimal.Decimal) error {
	if p.Status != PartnerStatusActive {
		return ErrPartnerNotActive
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: payout amount must be positive", ErrInvalidInput)
	}
	if !amount.Equal(amount.Truncate(MoneyPlaces)) {
		return fmt.Errorf("%w: payout amount has sub-cent precision", ErrInvalidInput)
	}
	available := p.AvailableEarnings()
	if amount.GreaterThan(available) {
		return ErrInsufficientBalance
	}
	if amount.LessThan(p.MinimumPayoutThreshold) && !amount.Equal(available) {
		return ErrBelowMinimumThreshold
	}
	return nil
}
