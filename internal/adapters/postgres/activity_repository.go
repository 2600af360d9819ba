package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type awardRepository struct {
	db *gorm.DB
}

// Create relies on the (partner_id, milestone_id) constraint; a second award
// for the same milestone inserts nothing and reports a conflict.
func (r *awardRepository) Create(ctx context.Context, row domain.MilestoneAward) error {
	rec := awardModel{
		AwardID: row.AwardID, PartnerID: row.PartnerID, MilestoneID: row.MilestoneID,
		BonusAmount: row.BonusAmount, AwardedAt: row.AwardedAt,
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

func (r *awardRepository) ListByPartner(ctx context.Context, partnerID string) ([]domain.MilestoneAward, error) {
	var rows []awardModel
	if err := r.db.WithContext(ctx).Where("partner_id = ?", partnerID).Order("awarded_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.MilestoneAward, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainAward(row))
	}
	return out, nil
}

type clickRepository struct {
	db *gorm.DB
}

func (r *clickRepository) Append(ctx context.Context, row domain.Click) error {
	rec := fromDomainClick(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *clickRepository) GetByID(ctx context.Context, clickID string) (domain.Click, error) {
	var rec clickModel
	if err := r.db.WithContext(ctx).Where("click_id = ?", strings.TrimSpace(clickID)).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Click{}, domain.ErrNotFound
		}
		return domain.Click{}, err
	}
	return toDomainClick(rec), nil
}

func (r *clickRepository) ListByPartner(ctx context.Context, partnerID string) ([]domain.Click, error) {
	var rows []clickModel
	if err := r.db.WithContext(ctx).Where("partner_id = ?", partnerID).Order("clicked_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Click, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainClick(row))
	}
	return out, nil
}

type auditLogRepository struct {
	db *gorm.DB
}

func (r *auditLogRepository) Append(ctx context.Context, row domain.AuditLog) error {
	meta := row.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	rec := auditLogModel{
		AuditLogID: row.AuditLogID, PartnerID: row.PartnerID, Action: row.Action, ActorID: row.ActorID,
		Reason: row.Reason, Metadata: string(raw), CreatedAt: row.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *auditLogRepository) ListByPartner(ctx context.Context, partnerID string) ([]domain.AuditLog, error) {
	var rows []auditLogModel
	if err := r.db.WithContext(ctx).Where("partner_id = ?", partnerID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditLog, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainAuditLog(row))
	}
	return out, nil
}
