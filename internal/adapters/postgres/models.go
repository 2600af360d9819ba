package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

type partnerModel struct {
	PartnerID              string          `gorm:"column:partner_id;primaryKey"`
	UserID                 string          `gorm:"column:user_id"`
	Email                  string          `gorm:"column:email"`
	DisplayName            string          `gorm:"column:display_name"`
	ReferralCode           string          `gorm:"column:referral_code"`
	Tier                   string          `gorm:"column:tier"`
	LifetimeReferrals      int             `gorm:"column:lifetime_referrals"`
	TotalEarnings          decimal.Decimal `gorm:"column:total_earnings;type:numeric(20,2)"`
	PendingEarnings        decimal.Decimal `gorm:"column:pending_earnings;type:numeric(20,2)"`
	PaidEarnings           decimal.Decimal `gorm:"column:paid_earnings;type:numeric(20,2)"`
	ReservedEarnings       decimal.Decimal `gorm:"column:reserved_earnings;type:numeric(20,2)"`
	MinimumPayoutThreshold decimal.Decimal `gorm:"column:minimum_payout_threshold;type:numeric(20,2)"`
	CookieDurationDays     int             `gorm:"column:cookie_duration_days"`
	LeaderboardOptIn       bool            `gorm:"column:leaderboard_opt_in"`
	NotificationPreference string          `gorm:"column:notification_preference"`
	Status                 string          `gorm:"column:status"`
	Version                int64           `gorm:"column:version"`
	CreatedAt              time.Time       `gorm:"column:created_at"`
	UpdatedAt              time.Time       `gorm:"column:updated_at"`
}

func (partnerModel) TableName() string { return "partners" }

type clickModel struct {
	ClickID       string    `gorm:"column:click_id;primaryKey"`
	PartnerID     string    `gorm:"column:partner_id"`
	ReferralCode  string    `gorm:"column:referral_code"`
	UTMSource     string    `gorm:"column:utm_source"`
	UTMMedium     string    `gorm:"column:utm_medium"`
	UTMCampaign   string    `gorm:"column:utm_campaign"`
	ReferrerURL   string    `gorm:"column:referrer_url"`
	IPHash        string    `gorm:"column:ip_hash"`
	UserAgentHash string    `gorm:"column:user_agent_hash"`
	ClickedAt     time.Time `gorm:"column:clicked_at"`
}

func (clickModel) TableName() string { return "referral_clicks" }

type referralModel struct {
	ReferralID          string          `gorm:"column:referral_id;primaryKey"`
	PartnerID           string          `gorm:"column:partner_id"`
	ReferredIdentity    string          `gorm:"column:referred_identity"`
	Status              string          `gorm:"column:status"`
	Converted           bool            `gorm:"column:converted"`
	ConversionPaymentID string          `gorm:"column:conversion_payment_id"`
	AmountEarned        decimal.Decimal `gorm:"column:amount_earned;type:numeric(20,2)"`
	TierSnapshot        *string         `gorm:"column:tier_snapshot;type:jsonb"`
	PayoutID            string          `gorm:"column:payout_id"`
	ClickID             string          `gorm:"column:click_id"`
	UTMSource           string          `gorm:"column:utm_source"`
	UTMMedium           string          `gorm:"column:utm_medium"`
	UTMCampaign         string          `gorm:"column:utm_campaign"`
	CreatedAt           time.Time       `gorm:"column:created_at"`
	ConvertedAt         *time.Time      `gorm:"column:converted_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at"`
}

func (referralModel) TableName() string { return "referrals" }

type awardModel struct {
	AwardID     string          `gorm:"column:award_id;primaryKey"`
	PartnerID   string          `gorm:"column:partner_id"`
	MilestoneID string          `gorm:"column:milestone_id"`
	BonusAmount decimal.Decimal `gorm:"column:bonus_amount;type:numeric(20,2)"`
	AwardedAt   time.Time       `gorm:"column:awarded_at"`
}

func (awardModel) TableName() string { return "milestone_awards" }

type payoutModel struct {
	PayoutID         string          `gorm:"column:payout_id;primaryKey"`
	PartnerID        string          `gorm:"column:partner_id"`
	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(20,2)"`
	Method           string          `gorm:"column:method"`
	Status           string          `gorm:"column:status"`
	PaymentReference string          `gorm:"column:payment_reference"`
	FailureReason    string          `gorm:"column:failure_reason"`
	InvoiceID        string          `gorm:"column:invoice_id"`
	RequestedAt      time.Time       `gorm:"column:requested_at"`
	ProcessedAt      *time.Time      `gorm:"column:processed_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
}

func (payoutModel) TableName() string { return "partner_payouts" }

type earningModel struct {
	EarningID  string          `gorm:"column:earning_id;primaryKey"`
	PartnerID  string          `gorm:"column:partner_id"`
	ReferralID string          `gorm:"column:referral_id"`
	AwardID    string          `gorm:"column:award_id"`
	Kind       string          `gorm:"column:kind"`
	PaymentID  string          `gorm:"column:payment_id"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(20,2)"`
	Status     string          `gorm:"column:status"`
	PayoutID   string          `gorm:"column:payout_id"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at"`
}

func (earningModel) TableName() string { return "partner_earnings" }

type invoiceModel struct {
	InvoiceID     string          `gorm:"column:invoice_id;primaryKey"`
	InvoiceNumber string          `gorm:"column:invoice_number"`
	PartnerID     string          `gorm:"column:partner_id"`
	PayoutID      string          `gorm:"column:payout_id"`
	Method        string          `gorm:"column:method"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(20,2)"`
	Lines         string          `gorm:"column:lines;type:jsonb"`
	IssuedAt      time.Time       `gorm:"column:issued_at"`
}

func (invoiceModel) TableName() string { return "partner_invoices" }

type auditLogModel struct {
	AuditLogID string    `gorm:"column:audit_log_id;primaryKey"`
	PartnerID  string    `gorm:"column:partner_id"`
	Action     string    `gorm:"column:action"`
	ActorID    string    `gorm:"column:actor_id"`
	Reason     string    `gorm:"column:reason"`
	Metadata   string    `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (auditLogModel) TableName() string { return "partner_audit_logs" }

type outboxModel struct {
	RecordID       string     `gorm:"column:record_id;primaryKey"`
	EventClass     string     `gorm:"column:event_class"`
	Envelope       string     `gorm:"column:envelope;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	SentAt         *time.Time `gorm:"column:sent_at"`
	Attempts       int        `gorm:"column:attempts"`
	LastError      string     `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "partner_outbox" }

type idempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (idempotencyModel) TableName() string { return "partner_idempotency_keys" }

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "partner_event_dedup" }
