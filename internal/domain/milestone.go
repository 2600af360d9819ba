package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Milestone struct {
	MilestoneID       string          `json:"milestone_id" yaml:"id"`
	Name              string          `json:"name" yaml:"name"`
	ReferralsRequired int             `json:"referrals_required" yaml:"referrals_required"`
	BonusAmount       decimal.Decimal `json:"bonus_amount" yaml:"bonus_amount"`
}

type MilestoneAward struct {
	AwardID     string          `json:"award_id"`
	PartnerID   string          `json:"partner_id"`
	MilestoneID string          `json:"milestone_id"`
	BonusAmount decimal.Decimal `json:"bonus_amount"`
	AwardedAt   time.Time       `json:"awarded_at"`
}

type MilestoneCatalog []Milestone

func DefaultMilestones() MilestoneCatalog {
	return MilestoneCatalog{
		{MilestoneID: "referrals-10", Name: "10 referrals", ReferralsRequired: 10, BonusAmount: decimal.NewFromInt(10)},
		{MilestoneID: "referrals-20", Name: "20 referrals", ReferralsRequired: 20, BonusAmount: decimal.NewFromInt(25)},
		{MilestoneID: "referrals-50", Name: "50 referrals", ReferralsRequired: 50, BonusAmount: decimal.NewFromInt(75)},
		{MilestoneID: "referrals-100", Name: "100 referrals", ReferralsRequired: 100, BonusAmount: decimal.NewFromInt(200)},
	}
}

func (c MilestoneCatalog) Validate() error {
	seen := map[string]bool{}
	for _, m := range c {
		id := strings.TrimSpace(m.MilestoneID)
		if id == "" || seen[id] {
			return fmt.Errorf("%w: milestone id %q empty or duplicated", ErrInvalidInput, m.MilestoneID)
		}
		seen[id] = true
		if m.ReferralsRequired <= 0 || !m.BonusAmount.IsPositive() {
			return fmt.Errorf("%w: milestone %q needs positive threshold and bonus", ErrInvalidInput, id)
		}
	}
	return nil
}

func (c MilestoneCatalog) Get(milestoneID string) (Milestone, error) {
	for _, m := range c {
		if m.MilestoneID == milestoneID {
			return m, nil
		}
	}
	return Milestone{}, fmt.Errorf("%w: %s", ErrUnknownMilestone, milestoneID)
}

// Due returns the milestones met by lifetimeReferrals that are not in
// awarded, ordered by threshold.
func (c MilestoneCatalog) Due(lifetimeReferrals int, awarded map[string]bool) []Milestone {
	out := make([]Milestone, 0)
	for _, m := range c {
		if lifetimeReferrals >= m.ReferralsRequired && !awarded[m.MilestoneID] {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReferralsRequired < out[j].ReferralsRequired })
	return out
}

type MilestoneProgress struct {
	Milestone Milestone `json:"milestone"`
	Awarded   bool      `json:"awarded"`
	Remaining int       `json:"remaining"`
}

func (c MilestoneCatalog) Progress(lifetimeReferrals int, awarded map[string]bool) []MilestoneProgress {
	out := make([]MilestoneProgress, 0, len(c))
	for _, m := range c {
		remaining := m.ReferralsRequired - lifetimeReferrals
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, MilestoneProgress{Milestone: m, Awarded: awarded[m.MilestoneID], Remaining: remaining})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Milestone.ReferralsRequired < out[j].Milestone.ReferralsRequired
	})
	return out
}
