package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is one commission bracket of the partner program.
type Tier struct {
	Name                string          `json:"name" yaml:"name"`
	MinReferrals        int             `json:"min_referrals" yaml:"min_referrals"`
	FlatFee             decimal.Decimal `json:"flat_fee" yaml:"flat_fee"`
	RevenueSharePercent decimal.Decimal `json:"revenue_share_percent" yaml:"revenue_share_percent"`
}

// TierTable is ordered by ascending MinReferrals.
type TierTable []Tier

func DefaultTierTable() TierTable {
	return TierTable{
		{Name: "Bronze", MinReferrals: 0, FlatFee: decimal.NewFromInt(5), RevenueSharePercent: decimal.NewFromInt(10)},
		{Name: "Silver", MinReferrals: 20, FlatFee: decimal.NewFromInt(6), RevenueSharePercent: decimal.NewFromInt(12)},
		{Name: "Gold", MinReferrals: 50, FlatFee: decimal.NewFromInt(8), RevenueSharePercent: decimal.NewFromInt(15)},
		{Name: "Platinum", MinReferrals: 100, FlatFee: decimal.NewFromInt(10), RevenueSharePercent: decimal.NewFromInt(20)},
	}
}

// Validate checks that thresholds strictly ascend from zero and that names
// and rates are usable.
func (t TierTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: tier table is empty", ErrInvalidInput)
	}
	if t[0].MinReferrals != 0 {
		return fmt.Errorf("%w: lowest tier must start at 0 referrals", ErrInvalidInput)
	}
	seen := map[string]bool{}
	for i, tier := range t {
		name := strings.ToLower(strings.TrimSpace(tier.Name))
		if name == "" || seen[name] {
			return fmt.Errorf("%w: tier %d has empty or duplicate name", ErrInvalidInput, i)
		}
		seen[name] = true
		if tier.FlatFee.IsNegative() || tier.RevenueSharePercent.IsNegative() || tier.RevenueSharePercent.GreaterThan(hundred) {
			return fmt.Errorf("%w: tier %q has out of range rates", ErrInvalidInput, tier.Name)
		}
		if i > 0 && tier.MinReferrals <= t[i-1].MinReferrals {
			return fmt.Errorf("%w: tier %q threshold must exceed %q", ErrInvalidInput, tier.Name, t[i-1].Name)
		}
	}
	return nil
}

// TierFor returns the highest tier whose threshold the count meets.
func (t TierTable) TierFor(lifetimeReferrals int) Tier {
	if len(t) == 0 {
		return Tier{}
	}
	current := t[0]
	for _, tier := range t[1:] {
		if lifetimeReferrals < tier.MinReferrals {
			break
		}
		current = tier
	}
	return current
}

// NextTierAndGap returns the tier after the current one and how many more
// referrals unlock it. The tier is nil at the top of the table.
func (t TierTable) NextTierAndGap(lifetimeReferrals int) (*Tier, int) {
	for i := range t {
		if t[i].MinReferrals > lifetimeReferrals {
			next := t[i]
			return &next, next.MinReferrals - lifetimeReferrals
		}
	}
	return nil, 0
}

// Rank is the index of a tier name in the table, -1 when absent.
func (t TierTable) Rank(name string) int {
	for i, tier := range t {
		if strings.EqualFold(tier.Name, name) {
			return i
		}
	}
	return -1
}
