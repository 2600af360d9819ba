package contracts

type SuccessResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

type ApplyPartnerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"max=120"`
}

type PartnerStatusRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type UpdateSettingsRequest struct {
	CookieDurationDays     *int    `json:"cookie_duration_days,omitempty" validate:"omitempty,min=7,max=90"`
	LeaderboardOptIn       *bool   `json:"leaderboard_opt_in,omitempty"`
	NotificationPreference *string `json:"notification_preference,omitempty" validate:"omitempty,oneof=email sms none"`
	MinimumPayoutThreshold *string `json:"minimum_payout_threshold,omitempty" validate:"omitempty,numeric"`
}

type RequestPayoutRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
	Method string `json:"method" validate:"required"`
}

type PayoutTransitionRequest struct {
	PaymentReference string `json:"payment_reference" validate:"max=200"`
	FailureReason    string `json:"failure_reason" validate:"max=500"`
}

type EvaluateMilestonesRequest struct {
	MilestoneID string `json:"milestone_id"`
}

type SignupRequest struct {
	Email        string `json:"email" validate:"required,email"`
	UserID       string `json:"user_id"`
	ReferralCode string `json:"referral_code"`
	ClickID      string `json:"click_id"`
	UTMSource    string `json:"utm_source"`
	UTMMedium    string `json:"utm_medium"`
	UTMCampaign  string `json:"utm_campaign"`
}

type ConversionRequest struct {
	ReferralID       string `json:"referral_id"`
	ReferredIdentity string `json:"referred_identity" validate:"required_without=ReferralID"`
	PaymentID        string `json:"payment_id" validate:"required"`
	Amount           string `json:"amount" validate:"required,numeric"`
}

type RailUpdateRequest struct {
	PayoutID         string `json:"payout_id" validate:"required"`
	Status           string `json:"status" validate:"required,oneof=processing completed failed"`
	PaymentReference string `json:"payment_reference"`
	FailureReason    string `json:"failure_reason"`
}

type PartnerResponse struct {
	PartnerID              string `json:"partner_id"`
	UserID                 string `json:"user_id"`
	Email                  string `json:"email"`
	DisplayName            string `json:"display_name"`
	ReferralCode           string `json:"referral_code"`
	ReferralURL            string `json:"referral_url"`
	Tier                   string `json:"tier"`
	LifetimeReferrals      int    `json:"lifetime_referrals"`
	TotalEarnings          string `json:"total_earnings"`
	PendingEarnings        string `json:"pending_earnings"`
	PaidEarnings           string `json:"paid_earnings"`
	ReservedEarnings       string `json:"reserved_earnings"`
	AvailableEarnings      string `json:"available_earnings"`
	MinimumPayoutThreshold string `json:"minimum_payout_threshold"`
	CookieDurationDays     int    `json:"cookie_duration_days"`
	LeaderboardOptIn       bool   `json:"leaderboard_opt_in"`
	NotificationPreference string `json:"notification_preference"`
	Status                 string `json:"status"`
	CreatedAt              string `json:"created_at"`
	UpdatedAt              string `json:"updated_at"`
}

type ReferralResponse struct {
	ReferralID          string `json:"referral_id"`
	PartnerID           string `json:"partner_id"`
	Status              string `json:"status"`
	Converted           bool   `json:"converted"`
	ConversionPaymentID string `json:"conversion_payment_id,omitempty"`
	AmountEarned        string `json:"amount_earned"`
	Tier                string `json:"tier,omitempty"`
	PayoutID            string `json:"payout_id,omitempty"`
	UTMSource           string `json:"utm_source,omitempty"`
	UTMMedium           string `json:"utm_medium,omitempty"`
	UTMCampaign         string `json:"utm_campaign,omitempty"`
	CreatedAt           string `json:"created_at"`
	ConvertedAt         string `json:"converted_at,omitempty"`
}

type AttributionResponse struct {
	Outcome  string            `json:"outcome"`
	Referral *ReferralResponse `json:"referral,omitempty"`
}

type ConversionResponse struct {
	Outcome  string           `json:"outcome"`
	Referral ReferralResponse `json:"referral"`
	Earning  *EarningResponse `json:"earning,omitempty"`
}

type EarningResponse struct {
	EarningID  string `json:"earning_id"`
	ReferralID string `json:"referral_id,omitempty"`
	AwardID    string `json:"award_id,omitempty"`
	Kind       string `json:"kind"`
	PaymentID  string `json:"payment_id,omitempty"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	PayoutID   string `json:"payout_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type PayoutResponse struct {
	PayoutID         string `json:"payout_id"`
	PartnerID        string `json:"partner_id"`
	Amount           string `json:"amount"`
	Method           string `json:"method"`
	Status           string `json:"status"`
	PaymentReference string `json:"payment_reference,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
	InvoiceID        string `json:"invoice_id,omitempty"`
	RequestedAt      string `json:"requested_at"`
	ProcessedAt      string `json:"processed_at,omitempty"`
}

type InvoiceLineResponse struct {
	EarningID  string `json:"earning_id"`
	ReferralID string `json:"referral_id,omitempty"`
	Kind       string `json:"kind"`
	Amount     string `json:"amount"`
}

type InvoiceResponse struct {
	InvoiceID     string                `json:"invoice_id"`
	InvoiceNumber string                `json:"invoice_number"`
	PartnerID     string                `json:"partner_id"`
	PayoutID      string                `json:"payout_id"`
	Method        string                `json:"method"`
	Amount        string                `json:"amount"`
	Lines         []InvoiceLineResponse `json:"lines"`
	IssuedAt      string                `json:"issued_at"`
}

type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type TierResponse struct {
	Name                string `json:"name"`
	MinReferrals        int    `json:"min_referrals"`
	FlatFee             string `json:"flat_fee"`
	RevenueSharePercent string `json:"revenue_share_percent"`
}

type TierProgressResponse struct {
	Current           TierResponse  `json:"current"`
	Next              *TierResponse `json:"next,omitempty"`
	ReferralsToNext   int           `json:"referrals_to_next"`
	LifetimeReferrals int           `json:"lifetime_referrals"`
}

type MilestoneProgressResponse struct {
	MilestoneID       string `json:"milestone_id"`
	Name              string `json:"name"`
	ReferralsRequired int    `json:"referrals_required"`
	BonusAmount       string `json:"bonus_amount"`
	Awarded           bool   `json:"awarded"`
	Remaining         int    `json:"remaining"`
}

type MilestoneAwardResponse struct {
	AwardID     string `json:"award_id"`
	PartnerID   string `json:"partner_id"`
	MilestoneID string `json:"milestone_id"`
	BonusAmount string `json:"bonus_amount"`
	AwardedAt   string `json:"awarded_at"`
}

type FunnelCountsResponse struct {
	Clicks            int    `json:"clicks"`
	Signups           int    `json:"signups"`
	Conversions       int    `json:"conversions"`
	Expired           int    `json:"expired"`
	ConversionRate    string `json:"conversion_rate"`
	ClickToSignupRate string `json:"click_to_signup_rate"`
}

type UTMFunnelResponse struct {
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	FunnelCountsResponse
}

type FunnelResponse struct {
	Overall FunnelCountsResponse `json:"overall"`
	ByUTM   []UTMFunnelResponse  `json:"by_utm"`
}

type DashboardResponse struct {
	Partner    PartnerResponse             `json:"partner"`
	Tier       TierProgressResponse        `json:"tier"`
	Milestones []MilestoneProgressResponse `json:"milestones"`
	Funnel     FunnelCountsResponse        `json:"funnel"`
}

type LeaderboardEntryResponse struct {
	Rank              int    `json:"rank"`
	PartnerID         string `json:"partner_id"`
	DisplayName       string `json:"display_name"`
	Tier              string `json:"tier"`
	LifetimeReferrals int    `json:"lifetime_referrals"`
}

type AuditLogResponse struct {
	AuditLogID string            `json:"audit_log_id"`
	Action     string            `json:"action"`
	ActorID    string            `json:"actor_id"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  string            `json:"created_at"`
}
