package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

type Config struct {
	ServiceName          string
	PublicBaseURL        string
	Tiers                domain.TierTable
	Milestones           domain.MilestoneCatalog
	DefaultMinimumPayout decimal.Decimal
	MinimumPayoutFloor   decimal.Decimal
	DefaultCookieDays    int
	ReferralGracePeriod  time.Duration
	OngoingRevenueShare  bool
	DashboardCacheTTL    time.Duration
	LeaderboardSize      int
	IdempotencyTTL       time.Duration
	EventDedupTTL        time.Duration
	OutboxFlushBatchSize int
	OutboxMaxAttempts    int
	DLQTopic             string
	ExpiryBatchSize      int
}

type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

type ApplyPartnerInput struct {
	Email       string
	DisplayName string
}

type PartnerStatusInput struct {
	PartnerID string
	Reason    string
}

type UpdateSettingsInput struct {
	CookieDurationDays     *int
	LeaderboardOptIn       *bool
	NotificationPreference *string
	MinimumPayoutThreshold *string
}

type TrackClickInput struct {
	ReferralCode string
	UTM          domain.UTM
	ReferrerURL  string
	ClientIP     string
	UserAgent    string
}

type TrackClickResult struct {
	ClickID      string
	PartnerID    string
	RedirectURL  string
	CookieMaxAge time.Duration
}

// SignupInput is one signup to attribute. ReferredIdentity is the email the
// new account signed up with.
type SignupInput struct {
	ReferredIdentity string
	UserID           string
	ReferralCode     string
	ClickID          string
	UTM              domain.UTM
	SignedUpAt       time.Time
	TraceID          string
}

type AttributionOutcome string

const (
	OutcomeAttributed    AttributionOutcome = "attributed"
	OutcomeReplayed      AttributionOutcome = "replayed"
	OutcomeNoAttribution AttributionOutcome = "no_attribution"
)

type AttributionResult struct {
	Outcome  AttributionOutcome
	Referral *domain.Referral
}

type ConversionInput struct {
	ReferralID       string
	ReferredIdentity string
	PaymentID        string
	Amount           decimal.Decimal
	PaidAt           time.Time
	TraceID          string
}

type ConversionOutcome string

const (
	OutcomeCredited        ConversionOutcome = "credited"
	OutcomeRevenueShare    ConversionOutcome = "revenue_share"
	OutcomeAlreadyCredited ConversionOutcome = "already_credited"
	OutcomeIgnored         ConversionOutcome = "ignored"
)

type ConversionResult struct {
	Outcome  ConversionOutcome
	Referral domain.Referral
	Earning  *domain.Earning
}

type RequestPayoutInput struct {
	Amount string
	Method string
}

type PayoutTransitionInput struct {
	PayoutID         string
	PaymentReference string
	FailureReason    string
}

type RailUpdateInput struct {
	PayoutID         string
	Status           string
	PaymentReference string
	FailureReason    string
	TraceID          string
}

type ListInput struct {
	PartnerID string
	Status    string
	Limit     int
	Offset    int
}

// ReferralPage, EarningPage and PayoutPage carry the normalized window the
// rows were read with.
type ReferralPage struct {
	Items  []domain.Referral
	Total  int
	Limit  int
	Offset int
}

type EarningPage struct {
	Items  []domain.Earning
	Total  int
	Limit  int
	Offset int
}

type PayoutPage struct {
	Items  []domain.Payout
	Total  int
	Limit  int
	Offset int
}

type TierProgress struct {
	Current           domain.Tier
	Next              *domain.Tier
	ReferralsToNext   int
	LifetimeReferrals int
}

type Dashboard struct {
	Partner    domain.Partner
	Available  decimal.Decimal
	Tier       TierProgress
	Milestones []domain.MilestoneProgress
	Funnel     domain.FunnelCounts
}

type LeaderboardRow struct {
	Rank              int
	PartnerID         string
	DisplayName       string
	Tier              string
	LifetimeReferrals int
}

type Service struct {
	cfg Config

	store       ports.Store
	idempotency ports.IdempotencyRepository
	eventDedup  ports.EventDedupRepository
	dashboards  ports.DashboardCache
	leaderboard ports.Leaderboard
	metrics     ports.Metrics

	domainEvents ports.DomainPublisher
	analytics    ports.AnalyticsPublisher
	dlq          ports.DLQPublisher

	logger *slog.Logger
	nowFn  func() time.Time
}

type Dependencies struct {
	Config Config

	Store       ports.Store
	Idempotency ports.IdempotencyRepository
	EventDedup  ports.EventDedupRepository
	Dashboards  ports.DashboardCache
	Leaderboard ports.Leaderboard
	Metrics     ports.Metrics

	DomainEvents ports.DomainPublisher
	Analytics    ports.AnalyticsPublisher
	DLQ          ports.DLQPublisher

	Logger *slog.Logger
	Clock  func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "M89-Partner-Engine"
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "https://platform.com"
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = domain.DefaultTierTable()
	}
	if cfg.Milestones == nil {
		cfg.Milestones = domain.DefaultMilestones()
	}
	if !cfg.DefaultMinimumPayout.IsPositive() {
		cfg.DefaultMinimumPayout = decimal.NewFromInt(50)
	}
	if cfg.MinimumPayoutFloor.IsNegative() {
		cfg.MinimumPayoutFloor = decimal.Zero
	}
	if cfg.DefaultCookieDays < domain.MinCookieDurationDays || cfg.DefaultCookieDays > domain.MaxCookieDurationDays {
		cfg.DefaultCookieDays = domain.DefaultCookieDurationDays
	}
	if cfg.ReferralGracePeriod <= 0 {
		cfg.ReferralGracePeriod = 180 * 24 * time.Hour
	}
	if cfg.DashboardCacheTTL <= 0 {
		cfg.DashboardCacheTTL = time.Minute
	}
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 20
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if cfg.OutboxFlushBatchSize <= 0 {
		cfg.OutboxFlushBatchSize = 100
	}
	if cfg.OutboxMaxAttempts <= 0 {
		cfg.OutboxMaxAttempts = 5
	}
	if cfg.DLQTopic == "" {
		cfg.DLQTopic = "partner-engine.dlq"
	}
	if cfg.ExpiryBatchSize <= 0 {
		cfg.ExpiryBatchSize = 500
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = ports.NoopMetrics{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:          cfg,
		store:        deps.Store,
		idempotency:  deps.Idempotency,
		eventDedup:   deps.EventDedup,
		dashboards:   deps.Dashboards,
		leaderboard:  deps.Leaderboard,
		metrics:      metrics,
		domainEvents: deps.DomainEvents,
		analytics:    deps.Analytics,
		dlq:          deps.DLQ,
		logger:       logger.With("module", "application", "layer", "service"),
		nowFn:        nowFn,
	}
}

func (s *Service) Config() Config { return s.cfg }

// Ready reports whether the backing store answers.
func (s *Service) Ready(ctx context.Context) error {
	if s.store == nil {
		return domain.ErrNotFound
	}
	return s.store.Ping(ctx)
}
