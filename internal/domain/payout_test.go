package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activePartner(t *testing.T, pending, reserved, threshold string) Partner {
	p := Partner{
		PartnerID:              "ptr_1",
		Status:                 PartnerStatusActive,
		PendingEarnings:        money(t, pending),
		TotalEarnings:          money(t, pending),
		ReservedEarnings:       money(t, reserved),
		MinimumPayoutThreshold: money(t, threshold),
	}
	require.NoError(t, p.CheckBalances())
	return p
}

func TestValidatePayoutRequest(t *testing.T) {
	cases := []struct {
		name    string
		partner Partner
		amount  string
		want    error
	}{
		{name: "ok", partner: activePartner(t, "120", "0", "50"), amount: "60"},
		{name: "full balance under threshold", partner: activePartner(t, "30", "0", "50"), amount: "30"},
		{name: "below threshold", partner: activePartner(t, "120", "0", "50"), amount: "40", want: ErrBelowMinimumThreshold},
		{name: "insufficient", partner: activePartner(t, "120", "0", "50"), amount: "120.01", want: ErrInsufficientBalance},
		{name: "reserved counts against available", partner: activePartner(t, "120", "80", "10"), amount: "50", want: ErrInsufficientBalance},
		{name: "zero", partner: activePartner(t, "120", "0", "50"), amount: "0", want: ErrInvalidInput},
		{name: "sub cent", partner: activePartner(t, "120", "0", "50"), amount: "60.001", want: ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePayoutRequest(tc.partner, money(t, tc.amount))
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestValidatePayoutRequestRequiresActivePartner(t *testing.T) {
	p := activePartner(t, "120", "0", "50")
	p.Status = PartnerStatusSuspended
	require.ErrorIs(t, ValidatePayoutRequest(p, money(t, "60")), ErrPartnerNotActive)
}

func TestParsePayoutMethod(t *testing.T) {
	m, err := ParsePayoutMethod(" PayPal ")
	require.NoError(t, err)
	assert.Equal(t, PayoutMethodPayPal, m)

	_, err = ParsePayoutMethod("crypto")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestBuildInvoice(t *testing.T) {
	issued := time.Date(2026, 4, 9, 15, 0, 0, 0, time.UTC)
	payout := Payout{PayoutID: "pay_ab12-cd34", PartnerID: "ptr_1", Amount: money(t, "25.50"), Method: PayoutMethodStripe}
	earnings := []Earning{
		{EarningID: "e1", ReferralID: "ref_1", Kind: EarningKindCommission, Amount: money(t, "15.50")},
		{EarningID: "e2", Kind: EarningKindMilestoneBonus, Amount: money(t, "10")},
	}

	inv, err := BuildInvoice("inv_1", payout, earnings, issued)
	require.NoError(t, err)
	assert.Equal(t, "INV-20260409-AB12CD34", inv.InvoiceNumber)
	assert.Len(t, inv.Lines, 2)
	assert.Equal(t, PayoutMethodStripe, inv.Method)

	_, err = BuildInvoice("inv_2", payout, earnings[:1], issued)
	require.ErrorIs(t, err, ErrConsistencyViolation)
}
