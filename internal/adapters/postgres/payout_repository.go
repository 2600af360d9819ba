package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
	"gorm.io/gorm"
)

type payoutRepository struct {
	db *gorm.DB
}

func (r *payoutRepository) Create(ctx context.Context, row domain.Payout) error {
	rec := fromDomainPayout(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *payoutRepository) GetByID(ctx context.Context, payoutID string) (domain.Payout, error) {
	var rec payoutModel
	if err := r.db.WithContext(ctx).Where("payout_id = ?", strings.TrimSpace(payoutID)).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Payout{}, domain.ErrNotFound
		}
		return domain.Payout{}, err
	}
	return toDomainPayout(rec), nil
}

func (r *payoutRepository) Update(ctx context.Context, row domain.Payout) error {
	rec := fromDomainPayout(row)
	res := r.db.WithContext(ctx).Model(&payoutModel{}).
		Where("payout_id = ?", row.PayoutID).
		Select("status", "payment_reference", "failure_reason", "invoice_id", "processed_at", "updated_at").
		Updates(&rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *payoutRepository) ListByPartner(ctx context.Context, partnerID string, page ports.Page) ([]domain.Payout, int, error) {
	q := r.db.WithContext(ctx).Model(&payoutModel{}).Where("partner_id = ?", partnerID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []payoutModel
	if err := q.Order("requested_at desc, payout_id desc").Limit(page.Limit).Offset(page.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.Payout, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainPayout(row))
	}
	return out, int(total), nil
}

type invoiceRepository struct {
	db *gorm.DB
}

func (r *invoiceRepository) Create(ctx context.Context, row domain.Invoice) error {
	lines, err := json.Marshal(row.Lines)
	if err != nil {
		return err
	}
	rec := invoiceModel{
		InvoiceID: row.InvoiceID, InvoiceNumber: row.InvoiceNumber, PartnerID: row.PartnerID, PayoutID: row.PayoutID,
		Method: string(row.Method), Amount: row.Amount, Lines: string(lines), IssuedAt: row.IssuedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *invoiceRepository) take(ctx context.Context, q *gorm.DB) (domain.Invoice, error) {
	var rec invoiceModel
	if err := q.WithContext(ctx).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Invoice{}, domain.ErrNotFound
		}
		return domain.Invoice{}, err
	}
	return toDomainInvoice(rec)
}

func (r *invoiceRepository) GetByID(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	return r.take(ctx, r.db.Where("invoice_id = ?", strings.TrimSpace(invoiceID)))
}

func (r *invoiceRepository) GetByPayoutID(ctx context.Context, payoutID string) (domain.Invoice, error) {
	return r.take(ctx, r.db.Where("payout_id = ?", payoutID))
}
