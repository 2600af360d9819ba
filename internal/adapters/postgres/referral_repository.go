package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type referralRepository struct {
	db *gorm.DB
}

// Create skips the insert on an identity collision instead of raising, so
// the surrounding transaction stays usable.
func (r *referralRepository) Create(ctx context.Context, row domain.Referral) error {
	rec, err := fromDomainReferral(row)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *referralRepository) take(ctx context.Context, q *gorm.DB) (domain.Referral, error) {
	var rec referralModel
	if err := q.WithContext(ctx).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Referral{}, domain.ErrNotFound
		}
		return domain.Referral{}, err
	}
	return toDomainReferral(rec)
}

func (r *referralRepository) GetByID(ctx context.Context, referralID string) (domain.Referral, error) {
	return r.take(ctx, r.db.Where("referral_id = ?", strings.TrimSpace(referralID)))
}

func (r *referralRepository) GetByIdentity(ctx context.Context, referredIdentity string) (domain.Referral, error) {
	return r.take(ctx, r.db.Where("referred_identity = ?", referredIdentity))
}

func (r *referralRepository) Update(ctx context.Context, row domain.Referral) error {
	rec, err := fromDomainReferral(row)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&referralModel{}).
		Where("referral_id = ?", row.ReferralID).
		Select("*").Omit("referral_id", "partner_id", "referred_identity", "created_at").
		Updates(&rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *referralRepository) ListByPartner(ctx context.Context, partnerID string, status domain.ReferralStatus, page ports.Page) ([]domain.Referral, int, error) {
	q := r.db.WithContext(ctx).Model(&referralModel{}).Where("partner_id = ?", partnerID)
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []referralModel
	if err := q.Order("created_at desc, referral_id desc").Limit(page.Limit).Offset(page.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out, err := toDomainReferrals(rows)
	return out, int(total), err
}

func (r *referralRepository) ListAllByPartner(ctx context.Context, partnerID string) ([]domain.Referral, error) {
	var rows []referralModel
	if err := r.db.WithContext(ctx).Where("partner_id = ?", partnerID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainReferrals(rows)
}

func (r *referralRepository) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Referral, error) {
	var rows []referralModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(domain.ReferralStatusPending), cutoff).
		Order("created_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainReferrals(rows)
}

func toDomainReferrals(rows []referralModel) ([]domain.Referral, error) {
	out := make([]domain.Referral, 0, len(rows))
	for _, row := range rows {
		ref, err := toDomainReferral(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}
