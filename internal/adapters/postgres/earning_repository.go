package postgres

import (
	"context"
	"errors"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type earningRepository struct {
	db *gorm.DB
}

func (r *earningRepository) Create(ctx context.Context, row domain.Earning) error {
	rec := fromDomainEarning(row)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *earningRepository) Update(ctx context.Context, row domain.Earning) error {
	rec := fromDomainEarning(row)
	res := r.db.WithContext(ctx).Model(&earningModel{}).
		Where("earning_id = ?", row.EarningID).
		Select("amount", "status", "payout_id", "updated_at").
		Updates(&rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *earningRepository) GetByPaymentID(ctx context.Context, paymentID string) (domain.Earning, error) {
	if paymentID == "" {
		return domain.Earning{}, domain.ErrNotFound
	}
	var rec earningModel
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Earning{}, domain.ErrNotFound
		}
		return domain.Earning{}, err
	}
	return toDomainEarning(rec), nil
}

func (r *earningRepository) find(ctx context.Context, q *gorm.DB) ([]domain.Earning, error) {
	var rows []earningModel
	if err := q.WithContext(ctx).Order("created_at asc, earning_id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Earning, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainEarning(row))
	}
	return out, nil
}

func (r *earningRepository) ListCreditedByPartner(ctx context.Context, partnerID string) ([]domain.Earning, error) {
	return r.find(ctx, r.db.Where("partner_id = ? AND status = ?", partnerID, string(domain.EarningStatusCredited)))
}

func (r *earningRepository) ListByPayout(ctx context.Context, payoutID string) ([]domain.Earning, error) {
	return r.find(ctx, r.db.Where("payout_id = ? AND payout_id <> ''", payoutID))
}

func (r *earningRepository) ListByReferral(ctx context.Context, referralID string) ([]domain.Earning, error) {
	return r.find(ctx, r.db.Where("referral_id = ? AND referral_id <> ''", referralID))
}

func (r *earningRepository) ListByPartner(ctx context.Context, partnerID string, page ports.Page) ([]domain.Earning, int, error) {
	q := r.db.WithContext(ctx).Model(&earningModel{}).Where("partner_id = ?", partnerID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []earningModel
	if err := q.Order("created_at desc, earning_id desc").Limit(page.Limit).Offset(page.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.Earning, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainEarning(row))
	}
	return out, int(total), nil
}
