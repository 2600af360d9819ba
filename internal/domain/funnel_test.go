package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFunnelGroupsByUTM(t *testing.T) {
	newsletter := UTM{Source: "newsletter", Medium: "email", Campaign: "spring"}
	clicks := []Click{
		{ClickID: "c1", UTM: newsletter},
		{ClickID: "c2", UTM: newsletter},
		{ClickID: "c3", UTM: newsletter},
		{ClickID: "c4", UTM: newsletter},
		{ClickID: "c5"},
	}
	referrals := []Referral{
		{ReferralID: "r1", UTM: newsletter, Status: ReferralStatusCredited},
		{ReferralID: "r2", UTM: newsletter, Status: ReferralStatusPending},
		{ReferralID: "r3", UTM: newsletter, Status: ReferralStatusExpired},
		{ReferralID: "r4", Status: ReferralStatusPaid},
	}

	report := BuildFunnel(clicks, referrals)

	assert.Equal(t, 5, report.Overall.Clicks)
	assert.Equal(t, 4, report.Overall.Signups)
	assert.Equal(t, 2, report.Overall.Conversions)
	assert.Equal(t, 1, report.Overall.Expired)
	assert.Equal(t, "66.67", report.Overall.ConversionRate.StringFixed(2))
	assert.Equal(t, "80.00", report.Overall.ClickToSignupRate.StringFixed(2))

	require.Len(t, report.ByUTM, 2)
	assert.Equal(t, "newsletter", report.ByUTM[0].UTM.Source)
	assert.Equal(t, 4, report.ByUTM[0].Clicks)
	assert.Equal(t, "50.00", report.ByUTM[0].ConversionRate.StringFixed(2))
	assert.Equal(t, UTM{Source: UnattributedBucket, Medium: UnattributedBucket, Campaign: UnattributedBucket}, report.ByUTM[1].UTM)
	assert.Equal(t, "100.00", report.ByUTM[1].ConversionRate.StringFixed(2))
}

func TestBuildFunnelEmpty(t *testing.T) {
	report := BuildFunnel(nil, nil)
	assert.Zero(t, report.Overall.Clicks)
	assert.True(t, report.Overall.ConversionRate.IsZero())
	assert.Empty(t, report.ByUTM)
}
