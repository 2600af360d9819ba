package ports

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

type Page struct {
	Limit  int
	Offset int
}

type PartnerRepository interface {
	Create(ctx context.Context, row domain.Partner) error
	GetByID(ctx context.Context, partnerID string) (domain.Partner, error)
	// GetForUpdate returns the partner row locked until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, partnerID string) (domain.Partner, error)
	GetByUserID(ctx context.Context, userID string) (domain.Partner, error)
	GetByReferralCode(ctx context.Context, code string) (domain.Partner, error)
	// Update returns domain.ErrConflict unless row.Version is exactly one
	// past the stored version.
	Update(ctx context.Context, row domain.Partner) error
	ListLeaderboard(ctx context.Context, limit int) ([]domain.Partner, error)
}

type ReferralRepository interface {
	// Create returns domain.ErrConflict when the referred identity is taken.
	Create(ctx context.Context, row domain.Referral) error
	GetByID(ctx context.Context, referralID string) (domain.Referral, error)
	GetByIdentity(ctx context.Context, referredIdentity string) (domain.Referral, error)
	Update(ctx context.Context, row domain.Referral) error
	ListByPartner(ctx context.Context, partnerID string, status domain.ReferralStatus, page Page) ([]domain.Referral, int, error)
	ListAllByPartner(ctx context.Context, partnerID string) ([]domain.Referral, error)
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Referral, error)
}

type EarningRepository interface {
	Create(ctx context.Context, row domain.Earning) error
	Update(ctx context.Context, row domain.Earning) error
	GetByPaymentID(ctx context.Context, paymentID string) (domain.Earning, error)
	ListCreditedByPartner(ctx context.Context, partnerID string) ([]domain.Earning, error)
	ListByPayout(ctx context.Context, payoutID string) ([]domain.Earning, error)
	ListByReferral(ctx context.Context, referralID string) ([]domain.Earning, error)
	ListByPartner(ctx context.Context, partnerID string, page Page) ([]domain.Earning, int, error)
}

type PayoutRepository interface {
	Create(ctx context.Context, row domain.Payout) error
	GetByID(ctx context.Context, payoutID string) (domain.Payout, error)
	Update(ctx context.Context, row domain.Payout) error
	ListByPartner(ctx context.Context, partnerID string, page Page) ([]domain.Payout, int, error)
}

type MilestoneAwardRepository interface {
	// Create returns domain.ErrConflict when the partner already holds the
	// milestone.
	Create(ctx context.Context, row domain.MilestoneAward) error
	ListByPartner(ctx context.Context, partnerID string) ([]domain.MilestoneAward, error)
}

type InvoiceRepository interface {
	Create(ctx context.Context, row domain.Invoice) error
	GetByID(ctx context.Context, invoiceID string) (domain.Invoice, error)
	GetByPayoutID(ctx context.Context, payoutID string) (domain.Invoice, error)
}

type ClickRepository interface {
	Append(ctx context.Context, row domain.Click) error
	GetByID(ctx context.Context, clickID string) (domain.Click, error)
	ListByPartner(ctx context.Context, partnerID string) ([]domain.Click, error)
}

type AuditLogRepository interface {
	Append(ctx context.Context, row domain.AuditLog) error
	ListByPartner(ctx context.Context, partnerID string) ([]domain.AuditLog, error)
}

type OutboxRecord struct {
	RecordID       string
	EventClass     string
	Envelope       contracts.EventEnvelope
	CreatedAt      time.Time
	SentAt         *time.Time
	Attempts       int
	LastError      string
	LastErrorAt    *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository stages events written in a business transaction.
// ListPending skips sent and dead-lettered records; RecordFailure returns the
// record's attempt count including this failure.
type OutboxRepository interface {
	Enqueue(ctx context.Context, record OutboxRecord) error
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, recordID string, at time.Time) error
	RecordFailure(ctx context.Context, recordID, cause string, at time.Time) (int, error)
	MarkDeadLettered(ctx context.Context, recordID string, at time.Time) error
}

// Tx groups the repositories that share one transaction.
type Tx interface {
	Partners() PartnerRepository
	Referrals() ReferralRepository
	Earnings() EarningRepository
	Payouts() PayoutRepository
	Awards() MilestoneAwardRepository
	Invoices() InvoiceRepository
	Clicks() ClickRepository
	AuditLogs() AuditLogRepository
	Outbox() OutboxRepository
}

// Store runs fn atomically. Any error returned by fn rolls back every write
// made through tx.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

// IdempotencyRepository stores one claim per client key. Reserve fails with
// ErrIdempotencyInProgress while another request holds a live claim for the
// same payload, and Release drops a claim that never completed.
type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, now, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, expiresAt time.Time) error
	Release(ctx context.Context, key string) error
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}
