package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceLine struct {
	EarningID  string          `json:"earning_id"`
	ReferralID string          `json:"referral_id,omitempty"`
	Kind       EarningKind     `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
}

type Invoice struct {
	InvoiceID     string          `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	PartnerID     string          `json:"partner_id"`
	PayoutID      string          `json:"payout_id"`
	Method        PayoutMethod    `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	Lines         []InvoiceLine   `json:"lines"`
	IssuedAt      time.Time       `json:"issued_at"`
}

// InvoiceNumber is unique per payout: issue date plus the payout id stem.
func InvoiceNumber(payoutID string, issuedAt time.Time) string {
	stem := strings.ToUpper(strings.ReplaceAll(strings.TrimPrefix(payoutID, "pay_"), "-", ""))
	return fmt.Sprintf("INV-%s-%s", issuedAt.UTC().Format("20060102"), stem)
}

// BuildInvoice lists every paid earning of a completed payout. The lines
// must sum to the payout amount.
func BuildInvoice(id string, payout Payout, earnings []Earning, issuedAt time.Time) (Invoice, error) {
	lines := make([]InvoiceLine, 0, len(earnings))
	total := decimal.Zero
	for _, e := range earnings {
		lines = append(lines, InvoiceLine{EarningID: e.EarningID, ReferralID: e.ReferralID, Kind: e.Kind, Amount: e.Amount})
		total = total.Add(e.Amount)
	}
	if !total.Equal(payout.Amount) {
		return Invoice{}, fmt.Errorf("%w: invoice lines %s != payout %s", ErrConsistencyViolation, total, payout.Amount)
	}
	return Invoice{
		InvoiceID:     id,
		InvoiceNumber: InvoiceNumber(payout.PayoutID, issuedAt),
		PartnerID:     payout.PartnerID,
		PayoutID:      payout.PayoutID,
		Method:        payout.Method,
		Amount:        payout.Amount,
		Lines:         lines,
		IssuedAt:      issuedAt,
	}, nil
}
