package postgres

import (
	"context"
	"database/sql"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(ctx, &gormTx{db: gtx})
	})
}

// View runs fn in a read-only transaction so multi-table reads see one
// snapshot.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(ctx, &gormTx{db: gtx})
	}, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) Partners() ports.PartnerRepository      { return &partnerRepository{db: t.db} }
func (t *gormTx) Referrals() ports.ReferralRepository    { return &referralRepository{db: t.db} }
func (t *gormTx) Earnings() ports.EarningRepository      { return &earningRepository{db: t.db} }
func (t *gormTx) Payouts() ports.PayoutRepository        { return &payoutRepository{db: t.db} }
func (t *gormTx) Awards() ports.MilestoneAwardRepository { return &awardRepository{db: t.db} }
func (t *gormTx) Invoices() ports.InvoiceRepository      { return &invoiceRepository{db: t.db} }
func (t *gormTx) Clicks() ports.ClickRepository          { return &clickRepository{db: t.db} }
func (t *gormTx) AuditLogs() ports.AuditLogRepository    { return &auditLogRepository{db: t.db} }
func (t *gormTx) Outbox() ports.OutboxRepository         { return &outboxRepository{db: t.db} }

var _ ports.Store = (*Store)(nil)
