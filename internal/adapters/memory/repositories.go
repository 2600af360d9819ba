package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

// sorted returns the rows of m matching keep in insertion order.
func sorted[T any](m map[string]record[T], keep func(T) bool) []T {
	recs := make([]record[T], 0)
	for _, rec := range m {
		if keep(rec.row) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.row)
	}
	return out
}

func paginate[T any](rows []T, page ports.Page) []T {
	if page.Offset >= len(rows) {
		return []T{}
	}
	end := len(rows)
	if page.Limit > 0 && page.Offset+page.Limit < end {
		end = page.Offset + page.Limit
	}
	return rows[page.Offset:end]
}

func reverse[T any](rows []T) []T {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows
}

type partnerRepo struct{ t *tx }

func (r partnerRepo) Create(_ context.Context, row domain.Partner) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for _, rec := range r.t.st.partners {
		if rec.row.PartnerID == row.PartnerID || rec.row.UserID == row.UserID || rec.row.ReferralCode == row.ReferralCode {
			return domain.ErrConflict
		}
	}
	r.t.st.partners[row.PartnerID] = record[domain.Partner]{row: row, seq: r.t.st.next()}
	return nil
}

func (r partnerRepo) GetByID(_ context.Context, partnerID string) (domain.Partner, error) {
	rec, ok := r.t.st.partners[strings.TrimSpace(partnerID)]
	if !ok {
		return domain.Partner{}, domain.ErrNotFound
	}
	return rec.row, nil
}

func (r partnerRepo) GetForUpdate(ctx context.Context, partnerID string) (domain.Partner, error) {
	return r.GetByID(ctx, partnerID)
}

func (r partnerRepo) GetByUserID(_ context.Context, userID string) (domain.Partner, error) {
	for _, rec := range r.t.st.partners {
		if rec.row.UserID == strings.TrimSpace(userID) {
			return rec.row, nil
		}
	}
	return domain.Partner{}, domain.ErrNotFound
}

func (r partnerRepo) GetByReferralCode(_ context.Context, code string) (domain.Partner, error) {
	for _, rec := range r.t.st.partners {
		if rec.row.ReferralCode == code {
			return rec.row, nil
		}
	}
	return domain.Partner{}, domain.ErrNotFound
}

func (r partnerRepo) Update(_ context.Context, row domain.Partner) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	rec, ok := r.t.st.partners[row.PartnerID]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.row.Version != row.Version-1 {
		return domain.ErrConflict
	}
	rec.row = row
	r.t.st.partners[row.PartnerID] = rec
	return nil
}

func (r partnerRepo) ListLeaderboard(_ context.Context, limit int) ([]domain.Partner, error) {
	rows := sorted(r.t.st.partners, func(p domain.Partner) bool {
		return p.LeaderboardOptIn && p.Status == domain.PartnerStatusActive
	})
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].LifetimeReferrals > rows[j].LifetimeReferrals })
	return paginate(rows, ports.Page{Limit: limit}), nil
}

type referralRepo struct{ t *tx }

func (r referralRepo) Create(_ context.Context, row domain.Referral) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for _, rec := range r.t.st.referrals {
		if rec.row.ReferralID == row.ReferralID || rec.row.ReferredIdentity == row.ReferredIdentity {
			return domain.ErrConflict
		}
	}
	r.t.st.referrals[row.ReferralID] = record[domain.Referral]{row: row, seq: r.t.st.next()}
	return nil
}

func (r referralRepo) GetByID(_ context.Context, referralID string) (domain.Referral, error) {
	rec, ok := r.t.st.referrals[strings.TrimSpace(referralID)]
	if !ok {
		return domain.Referral{}, domain.ErrNotFound
	}
	return rec.row, nil
}

func (r referralRepo) GetByIdentity(_ context.Context, referredIdentity string) (domain.Referral, error) {
	for _, rec := range r.t.st.referrals {
		if rec.row.ReferredIdentity == referredIdentity {
			return rec.row, nil
		}
	}
	return domain.Referral{}, domain.ErrNotFound
}

func (r referralRepo) Update(_ context.Context, row domain.Referral) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	rec, ok := r.t.st.referrals[row.ReferralID]
	if !ok {
		return domain.ErrNotFound
	}
	rec.row = row
	r.t.st.referrals[row.ReferralID] = rec
	return nil
}

func (r referralRepo) ListByPartner(_ context.Context, partnerID string, status domain.ReferralStatus, page ports.Page) ([]domain.Referral, int, error) {
	rows := reverse(sorted(r.t.st.referrals, func(ref domain.Referral) bool {
		return ref.PartnerID == partnerID && (status == "" || ref.Status == status)
	}))
	return paginate(rows, page), len(rows), nil
}

func (r referralRepo) ListAllByPartner(_ context.Context, partnerID string) ([]domain.Referral, error) {
	return sorted(r.t.st.referrals, func(ref domain.Referral) bool { return ref.PartnerID == partnerID }), nil
}

func (r referralRepo) ListPendingCreatedBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Referral, error) {
	rows := sorted(r.t.st.referrals, func(ref domain.Referral) bool {
		return ref.Status == domain.ReferralStatusPending && ref.CreatedAt.Before(cutoff)
	})
	return paginate(rows, ports.Page{Limit: limit}), nil
}

type earningRepo struct{ t *tx }

func (r earningRepo) Create(_ context.Context, row domain.Earning) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for _, rec := range r.t.st.earnings {
		if rec.row.EarningID == row.EarningID || (row.PaymentID != "" && rec.row.PaymentID == row.PaymentID) {
			return domain.ErrConflict
		}
	}
	r.t.st.earnings[row.EarningID] = record[domain.Earning]{row: row, seq: r.t.st.next()}
	return nil
}

func (r earningRepo) Update(_ context.Context, row domain.Earning) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	rec, ok := r.t.st.earnings[row.EarningID]
	if !ok {
		return domain.ErrNotFound
	}
	rec.row = row
	r.t.st.earnings[row.EarningID] = rec
	return nil
}

func (r earningRepo) GetByPaymentID(_ context.Context, paymentID string) (domain.Earning, error) {
	for _, rec := range r.t.st.earnings {
		if paymentID != "" && rec.row.PaymentID == paymentID {
			return rec.row, nil
		}
	}
	return domain.Earning{}, domain.ErrNotFound
}

func (r earningRepo) ListCreditedByPartner(_ context.Context, partnerID string) ([]domain.Earning, error) {
	return sorted(r.t.st.earnings, func(e domain.Earning) bool {
		return e.PartnerID == partnerID && e.Status == domain.EarningStatusCredited
	}), nil
}

func (r earningRepo) ListByPayout(_ context.Context, payoutID string) ([]domain.Earning, error) {
	return sorted(r.t.st.earnings, func(e domain.Earning) bool { return e.PayoutID == payoutID }), nil
}

func (r earningRepo) ListByReferral(_ context.Context, referralID string) ([]domain.Earning, error) {
	return sorted(r.t.st.earnings, func(e domain.Earning) bool { return e.ReferralID == referralID }), nil
}

func (r earningRepo) ListByPartner(_ context.Context, partnerID string, page ports.Page) ([]domain.Earning, int, error) {
	rows := reverse(sorted(r.t.st.earnings, func(e domain.Earning) bool { return e.PartnerID == partnerID }))
	return paginate(rows, page), len(rows), nil
}

type payoutRepo struct{ t *tx }

func (r payoutRepo) Create(_ context.Context, row domain.Payout) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.st.payouts[row.PayoutID]; ok {
		return domain.ErrConflict
	}
	r.t.st.payouts[row.PayoutID] = record[domain.Payout]{row: row, seq: r.t.st.next()}
	return nil
}

func (r payoutRepo) GetByID(_ context.Context, payoutID string) (domain.Payout, error) {
	rec, ok := r.t.st.payouts[strings.TrimSpace(payoutID)]
	if !ok {
		return domain.Payout{}, domain.ErrNotFound
	}
	return rec.row, nil
}

func (r payoutRepo) Update(_ context.Context, row domain.Payout) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	rec, ok := r.t.st.payouts[row.PayoutID]
	if !ok {
		return domain.ErrNotFound
	}
	rec.row = row
	r.t.st.payouts[row.PayoutID] = rec
	return nil
}

func (r payoutRepo) ListByPartner(_ context.Context, partnerID string, page ports.Page) ([]domain.Payout, int, error) {
	rows := reverse(sorted(r.t.st.payouts, func(p domain.Payout) bool { return p.PartnerID == partnerID }))
	return paginate(rows, page), len(rows), nil
}

type awardRepo struct{ t *tx }

func (r awardRepo) Create(_ context.Context, row domain.MilestoneAward) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for _, rec := range r.t.st.awards {
		if rec.row.AwardID == row.AwardID || (rec.row.PartnerID == row.PartnerID && rec.row.MilestoneID == row.MilestoneID) {
			return domain.ErrConflict
		}
	}
	r.t.st.awards[row.AwardID] = record[domain.MilestoneAward]{row: row, seq: r.t.st.next()}
	return nil
}

func (r awardRepo) ListByPartner(_ context.Context, partnerID string) ([]domain.MilestoneAward, error) {
	return sorted(r.t.st.awards, func(a domain.MilestoneAward) bool { return a.PartnerID == partnerID }), nil
}

type invoiceRepo struct{ t *tx }

func (r invoiceRepo) Create(_ context.Context, row domain.Invoice) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for _, rec := range r.t.st.invoices {
		if rec.row.InvoiceID == row.InvoiceID || rec.row.PayoutID == row.PayoutID || rec.row.InvoiceNumber == row.InvoiceNumber {
			return domain.ErrConflict
		}
	}
	r.t.st.invoices[row.InvoiceID] = record[domain.Invoice]{row: row, seq: r.t.st.next()}
	return nil
}

func (r invoiceRepo) GetByID(_ context.Context, invoiceID string) (domain.Invoice, error) {
	rec, ok := r.t.st.invoices[strings.TrimSpace(invoiceID)]
	if !ok {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return rec.row, nil
}

func (r invoiceRepo) GetByPayoutID(_ context.Context, payoutID string) (domain.Invoice, error) {
	for _, rec := range r.t.st.invoices {
		if rec.row.PayoutID == payoutID {
			return rec.row, nil
		}
	}
	return domain.Invoice{}, domain.ErrNotFound
}

type clickRepo struct{ t *tx }

func (r clickRepo) Append(_ context.Context, row domain.Click) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.st.clicks[row.ClickID]; ok {
		return domain.ErrConflict
	}
	r.t.st.clicks[row.ClickID] = record[domain.Click]{row: row, seq: r.t.st.next()}
	return nil
}

func (r clickRepo) GetByID(_ context.Context, clickID string) (domain.Click, error) {
	rec, ok := r.t.st.clicks[strings.TrimSpace(clickID)]
	if !ok {
		return domain.Click{}, domain.ErrNotFound
	}
	return rec.row, nil
}

func (r clickRepo) ListByPartner(_ context.Context, partnerID string) ([]domain.Click, error) {
	return sorted(r.t.st.clicks, func(c domain.Click) bool { return c.PartnerID == partnerID }), nil
}

type auditRepo struct{ t *tx }

func (r auditRepo) Append(_ context.Context, row domain.AuditLog) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	r.t.st.audit = append(r.t.st.audit, row)
	return nil
}

func (r auditRepo) ListByPartner(_ context.Context, partnerID string) ([]domain.AuditLog, error) {
	out := make([]domain.AuditLog, 0)
	for _, row := range r.t.st.audit {
		if row.PartnerID == partnerID {
			out = append(out, row)
		}
	}
	return out, nil
}

type outboxRepo struct{ t *tx }

func (r outboxRepo) Enqueue(_ context.Context, row ports.OutboxRecord) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for _, existing := range r.t.st.outbox {
		if existing.RecordID == row.RecordID {
			return domain.ErrConflict
		}
	}
	r.t.st.outbox = append(r.t.st.outbox, row)
	return nil
}

func (r outboxRepo) ListPending(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	out := make([]ports.OutboxRecord, 0, limit)
	for _, row := range r.t.st.outbox {
		if row.SentAt != nil || row.DeadLetteredAt != nil {
			continue
		}
		out = append(out, row)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r outboxRepo) MarkSent(_ context.Context, recordID string, at time.Time) error {
	return r.update(recordID, func(row *ports.OutboxRecord) { row.SentAt = &at })
}

func (r outboxRepo) RecordFailure(_ context.Context, recordID, cause string, at time.Time) (int, error) {
	attempts := 0
	err := r.update(recordID, func(row *ports.OutboxRecord) {
		row.Attempts++
		row.LastError = cause
		row.LastErrorAt = &at
		attempts = row.Attempts
	})
	return attempts, err
}

func (r outboxRepo) MarkDeadLettered(_ context.Context, recordID string, at time.Time) error {
	return r.update(recordID, func(row *ports.OutboxRecord) { row.DeadLetteredAt = &at })
}

func (r outboxRepo) update(recordID string, fn func(*ports.OutboxRecord)) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for i := range r.t.st.outbox {
		if r.t.st.outbox[i].RecordID == recordID {
			fn(&r.t.st.outbox[i])
			return nil
		}
	}
	return domain.ErrNotFound
}
