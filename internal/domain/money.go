package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the stored precision of every monetary amount.
const MoneyPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney applies banker's rounding (half to even) at cent precision.
// Callers must only use it on final amounts, never on intermediate terms.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.RoundBank(MoneyPlaces)
}

// ParseMoney parses a decimal string and rejects values with more than two
// fractional digits instead of silently rounding them.
func ParseMoney(raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", ErrInvalidInput, raw)
	}
	if !v.Equal(v.Truncate(MoneyPlaces)) {
		return decimal.Zero, fmt.Errorf("%w: amount %q has sub-cent precision", ErrInvalidInput, raw)
	}
	return v, nil
}

// Percent returns pct percent of base without rounding.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// SumMoney adds amounts exactly.
func SumMoney(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
