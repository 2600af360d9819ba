package ports

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
)

type DomainPublisher interface {
	PublishDomain(ctx context.Context, event contracts.EventEnvelope) error
}

type AnalyticsPublisher interface {
	PublishAnalytics(ctx context.Context, event contracts.EventEnvelope) error
}

type DLQPublisher interface {
	PublishDLQ(ctx context.Context, record contracts.DLQRecord) error
}

// DashboardCache holds serialized partner dashboards. A miss returns
// (nil, nil). Invalidate advances the partner's generation and Set stores
// raw only while generation is still current, so a dashboard built before a
// write can never land after that write's invalidation.
type DashboardCache interface {
	Get(ctx context.Context, partnerID string) ([]byte, error)
	Generation(ctx context.Context, partnerID string) (int64, error)
	Set(ctx context.Context, partnerID string, generation int64, raw []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, partnerID string) error
}

type LeaderboardEntry struct {
	PartnerID         string
	LifetimeReferrals int
}

// Leaderboard ranks opted-in partners by lifetime referrals.
type Leaderboard interface {
	Upsert(ctx context.Context, partnerID string, lifetimeReferrals int) error
	Remove(ctx context.Context, partnerID string) error
	Top(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

type Metrics interface {
	ReferralAttributed(outcome string)
	CommissionCredited(kind string, amount float64)
	MilestoneAwarded(milestoneID string)
	PayoutTransition(status string)
	TierChanged(tier string)
	ReferralsExpired(n int)
	EventConsumed(eventType, outcome string)
}

type NoopMetrics struct{}

func (NoopMetrics) ReferralAttributed(string)          {}
func (NoopMetrics) CommissionCredited(string, float64) {}
func (NoopMetrics) MilestoneAwarded(string)            {}
func (NoopMetrics) PayoutTransition(string)            {}
func (NoopMetrics) TierChanged(string)                 {}
func (NoopMetrics) ReferralsExpired(int)               {}
func (NoopMetrics) EventConsumed(string, string)       {}
