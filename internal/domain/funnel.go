package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

type FunnelCounts struct {
	Clicks            int             `json:"clicks"`
	Signups           int             `json:"signups"`
	Conversions       int             `json:"conversions"`
	Expired           int             `json:"expired"`
	ConversionRate    decimal.Decimal `json:"conversion_rate"`
	ClickToSignupRate decimal.Decimal `json:"click_to_signup_rate"`
}

type UTMFunnel struct {
	UTM UTM `json:"utm"`
	FunnelCounts
}

type FunnelReport struct {
	Overall FunnelCounts `json:"overall"`
	ByUTM   []UTMFunnel  `json:"by_utm"`
}

// BuildFunnel aggregates clicks and referrals. Expired referrals count as
// signups but are excluded from the conversion-rate denominator. Rates are
// percentages rounded to two places.
func BuildFunnel(clicks []Click, referrals []Referral) FunnelReport {
	groups := map[UTM]*FunnelCounts{}
	overall := FunnelCounts{}
	bucket := func(u UTM) *FunnelCounts {
		key := u.Bucketed()
		g, ok := groups[key]
		if !ok {
			g = &FunnelCounts{}
			groups[key] = g
		}
		return g
	}
	for _, c := range clicks {
		overall.Clicks++
		bucket(c.UTM).Clicks++
	}
	for _, r := range referrals {
		g := bucket(r.UTM)
		overall.Signups++
		g.Signups++
		switch {
		case r.Status == ReferralStatusExpired:
			overall.Expired++
			g.Expired++
		case r.Status.HasConverted():
			overall.Conversions++
			g.Conversions++
		}
	}
	overall.fillRates()
	report := FunnelReport{Overall: overall, ByUTM: make([]UTMFunnel, 0, len(groups))}
	for key, g := range groups {
		g.fillRates()
		report.ByUTM = append(report.ByUTM, UTMFunnel{UTM: key, FunnelCounts: *g})
	}
	sort.Slice(report.ByUTM, func(i, j int) bool {
		a, b := report.ByUTM[i].UTM, report.ByUTM[j].UTM
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Medium != b.Medium {
			return a.Medium < b.Medium
		}
		return a.Campaign < b.Campaign
	})
	return report
}

func (f *FunnelCounts) fillRates() {
	f.ConversionRate = ratePercent(f.Conversions, f.Signups-f.Expired)
	f.ClickToSignupRate = ratePercent(f.Signups, f.Clicks)
}

func ratePercent(num, den int) decimal.Decimal {
	if den <= 0 {
		return decimal.Zero
	}
	return RoundMoney(decimal.NewFromInt(int64(num)).Mul(hundred).Div(decimal.NewFromInt(int64(den))))
}
