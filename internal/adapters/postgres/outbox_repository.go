package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type outboxRepository struct {
	db *gorm.DB
}

func (r *outboxRepository) Enqueue(ctx context.Context, record ports.OutboxRecord) error {
	raw, err := json.Marshal(record.Envelope)
	if err != nil {
		return err
	}
	rec := outboxModel{
		RecordID:   record.RecordID,
		EventClass: record.EventClass,
		Envelope:   string(raw),
		CreatedAt:  record.CreatedAt,
		SentAt:     record.SentAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).Where("sent_at IS NULL AND dead_lettered_at IS NULL").Order("created_at asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ports.OutboxRecord, 0, len(rows))
	for _, row := range rows {
		var env contracts.EventEnvelope
		if err := json.Unmarshal([]byte(row.Envelope), &env); err != nil {
			return nil, err
		}
		out = append(out, ports.OutboxRecord{
			RecordID: row.RecordID, EventClass: row.EventClass, Envelope: env,
			CreatedAt: row.CreatedAt, SentAt: row.SentAt,
			Attempts: row.Attempts, LastError: row.LastError, LastErrorAt: row.LastErrorAt,
		})
	}
	return out, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, recordID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&outboxModel{}).Where("record_id = ?", recordID).Update("sent_at", at).Error
}

// RecordFailure bumps the attempt counter in place and reads it back in the
// same statement.
func (r *outboxRepository) RecordFailure(ctx context.Context, recordID, cause string, at time.Time) (int, error) {
	var out outboxModel
	res := r.db.WithContext(ctx).Model(&out).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "attempts"}}}).
		Where("record_id = ?", recordID).
		Updates(map[string]any{
			"attempts":      gorm.Expr("attempts + 1"),
			"last_error":    cause,
			"last_error_at": at,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, domain.ErrNotFound
	}
	return out.Attempts, nil
}

func (r *outboxRepository) MarkDeadLettered(ctx context.Context, recordID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&outboxModel{}).Where("record_id = ?", recordID).Update("dead_lettered_at", at).Error
}
