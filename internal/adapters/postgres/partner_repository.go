package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type partnerRepository struct {
	db *gorm.DB
}

func (r *partnerRepository) Create(ctx context.Context, row domain.Partner) error {
	rec := fromDomainPartner(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *partnerRepository) take(ctx context.Context, q *gorm.DB) (domain.Partner, error) {
	var rec partnerModel
	if err := q.WithContext(ctx).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Partner{}, domain.ErrNotFound
		}
		return domain.Partner{}, err
	}
	return toDomainPartner(rec), nil
}

func (r *partnerRepository) GetByID(ctx context.Context, partnerID string) (domain.Partner, error) {
	return r.take(ctx, r.db.Where("partner_id = ?", strings.TrimSpace(partnerID)))
}

func (r *partnerRepository) GetForUpdate(ctx context.Context, partnerID string) (domain.Partner, error) {
	return r.take(ctx, r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("partner_id = ?", strings.TrimSpace(partnerID)))
}

func (r *partnerRepository) GetByUserID(ctx context.Context, userID string) (domain.Partner, error) {
	return r.take(ctx, r.db.Where("user_id = ?", strings.TrimSpace(userID)))
}

func (r *partnerRepository) GetByReferralCode(ctx context.Context, code string) (domain.Partner, error) {
	return r.take(ctx, r.db.Where("referral_code = ?", code))
}

func (r *partnerRepository) Update(ctx context.Context, row domain.Partner) error {
	rec := fromDomainPartner(row)
	res := r.db.WithContext(ctx).Model(&partnerModel{}).
		Where("partner_id = ? AND version = ?", row.PartnerID, row.Version-1).
		Select("*").Omit("partner_id", "user_id", "referral_code", "created_at").
		Updates(&rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, row.PartnerID); err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}

func (r *partnerRepository) ListLeaderboard(ctx context.Context, limit int) ([]domain.Partner, error) {
	var rows []partnerModel
	err := r.db.WithContext(ctx).
		Where("leaderboard_opt_in AND status = ?", string(domain.PartnerStatusActive)).
		Order("lifetime_referrals desc, created_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Partner, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainPartner(row))
	}
	return out, nil
}
