package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Commission is flat fee plus the revenue share of the payment, rounded
// half to even once at the end.
func Commission(snapshot TierSnapshot, paymentAmount decimal.Decimal) (decimal.Decimal, error) {
	if paymentAmount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative payment amount", ErrInvalidInput)
	}
	raw := snapshot.FlatFee.Add(Percent(paymentAmount, snapshot.RevenueSharePercent))
	return RoundMoney(raw), nil
}

// RevenueShare is the recurring share of a later payment; no flat fee.
func RevenueShare(snapshot TierSnapshot, paymentAmount decimal.Decimal) (decimal.Decimal, error) {
	if paymentAmount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative payment amount", ErrInvalidInput)
	}
	return RoundMoney(Percent(paymentAmount, snapshot.RevenueSharePercent)), nil
}
