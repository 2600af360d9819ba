package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type DLQRecord struct {
	OriginalEvent EventEnvelope `json:"original_event"`
	ErrorSummary  string        `json:"error_summary"`
	RetryCount    int           `json:"retry_count"`
	FirstSeenAt   time.Time     `json:"first_seen_at"`
	LastErrorAt   time.Time     `json:"last_error_at"`
	SourceTopic   string        `json:"source_topic,omitempty"`
	DLQTopic      string        `json:"dlq_topic,omitempty"`
	TraceID       string        `json:"trace_id,omitempty"`
}

// Input payloads.

type SignupCompletedPayload struct {
	PartnerID    string `json:"partner_id,omitempty"`
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	ReferralCode string `json:"referral_code,omitempty"`
	ClickID      string `json:"click_id,omitempty"`
	UTMSource    string `json:"utm_source,omitempty"`
	UTMMedium    string `json:"utm_medium,omitempty"`
	UTMCampaign  string `json:"utm_campaign,omitempty"`
	SignedUpAt   string `json:"signed_up_at,omitempty"`
}

type PaymentSucceededPayload struct {
	PartnerID        string `json:"partner_id,omitempty"`
	PaymentID        string `json:"payment_id"`
	ReferredIdentity string `json:"referred_identity"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency,omitempty"`
	PaidAt           string `json:"paid_at,omitempty"`
}

type PayoutRailUpdatedPayload struct {
	PartnerID        string `json:"partner_id"`
	PayoutID         string `json:"payout_id"`
	Status           string `json:"status"`
	PaymentReference string `json:"payment_reference,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
}

type MilestonesEvaluatePayload struct {
	PartnerID   string `json:"partner_id"`
	MilestoneID string `json:"milestone_id,omitempty"`
}

// Emitted payloads.

type ReferralAttributedPayload struct {
	PartnerID    string `json:"partner_id"`
	ReferralID   string `json:"referral_id"`
	ClickID      string `json:"click_id,omitempty"`
	UTMSource    string `json:"utm_source,omitempty"`
	UTMMedium    string `json:"utm_medium,omitempty"`
	UTMCampaign  string `json:"utm_campaign,omitempty"`
	AttributedAt string `json:"attributed_at"`
}

type ReferralCreditedPayload struct {
	PartnerID  string `json:"partner_id"`
	ReferralID string `json:"referral_id"`
	EarningID  string `json:"earning_id"`
	Kind       string `json:"kind"`
	PaymentID  string `json:"payment_id"`
	Amount     string `json:"amount"`
	Tier       string `json:"tier"`
	CreditedAt string `json:"credited_at"`
}

type ReferralExpiredPayload struct {
	PartnerID  string `json:"partner_id"`
	ReferralID string `json:"referral_id"`
	ExpiredAt  string `json:"expired_at"`
}

type MilestoneAwardedPayload struct {
	PartnerID   string `json:"partner_id"`
	MilestoneID string `json:"milestone_id"`
	AwardID     string `json:"award_id"`
	BonusAmount string `json:"bonus_amount"`
	AwardedAt   string `json:"awarded_at"`
}

type TierChangedPayload struct {
	PartnerID         string `json:"partner_id"`
	PreviousTier      string `json:"previous_tier"`
	Tier              string `json:"tier"`
	LifetimeReferrals int    `json:"lifetime_referrals"`
	ChangedAt         string `json:"changed_at"`
}

type PayoutEventPayload struct {
	PartnerID        string `json:"partner_id"`
	PayoutID         string `json:"payout_id"`
	Amount           string `json:"amount"`
	Method           string `json:"method"`
	Status           string `json:"status"`
	PaymentReference string `json:"payment_reference,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
	InvoiceNumber    string `json:"invoice_number,omitempty"`
	OccurredAt       string `json:"occurred_at"`
}

type ClickTrackedPayload struct {
	PartnerID   string `json:"partner_id"`
	ClickID     string `json:"click_id"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	IPHash      string `json:"ip_hash,omitempty"`
	TrackedAt   string `json:"tracked_at"`
}
