package application_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/cache"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/events"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/memory"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/application"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

// stepClock hands out strictly increasing instants so creation order is
// deterministic.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc       *application.Service
	store     *memory.Store
	publisher *events.MemoryPublisher
	dashboard *cache.MemoryDashboardCache
	board     *cache.MemoryLeaderboard
	clock     *stepClock
}

func newHarness(t *testing.T, mutate ...func(*application.Config)) *harness {
	t.Helper()
	h := &harness{
		store:     memory.NewStore(),
		publisher: events.NewMemoryPublisher(),
		dashboard: cache.NewMemoryDashboardCache(),
		board:     cache.NewMemoryLeaderboard(),
		clock:     newStepClock(),
	}
	h.svc = h.service(mutate...)
	return h
}

// service builds another service over the harness' store and adapters.
func (h *harness) service(mutate ...func(*application.Config)) *application.Service {
	return h.serviceWith(nil, mutate...)
}

// serviceWith lets a test swap adapters before the service is built.
func (h *harness) serviceWith(swap func(*application.Dependencies), mutate ...func(*application.Config)) *application.Service {
	cfg := application.Config{
		PublicBaseURL:        "https://partners.test",
		Tiers:                domain.DefaultTierTable(),
		Milestones:           domain.DefaultMilestones(),
		DefaultMinimumPayout: decimal.NewFromInt(50),
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	deps := application.Dependencies{
		Config:       cfg,
		Store:        h.store,
		Idempotency:  memory.NewIdempotencyRepository(),
		EventDedup:   memory.NewEventDedupRepository(),
		Dashboards:   h.dashboard,
		Leaderboard:  h.board,
		DomainEvents: h.publisher,
		Analytics:    h.publisher,
		DLQ:          h.publisher,
		Logger:       slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Clock:        h.clock.Now,
	}
	if swap != nil {
		swap(&deps)
	}
	return application.NewService(deps)
}

func adminActor(key string) application.Actor {
	return application.Actor{SubjectID: "admin-1", Role: "admin", IdempotencyKey: key}
}

func partnerActor(userID, key string) application.Actor {
	return application.Actor{SubjectID: userID, Role: "partner", IdempotencyKey: key}
}

func (h *harness) applyPartner(t *testing.T, userID string) domain.Partner {
	t.Helper()
	p, err := h.svc.ApplyPartner(context.Background(), partnerActor(userID, "apply-"+userID), application.ApplyPartnerInput{
		Email:       userID + "@partners.test",
		DisplayName: "Partner " + userID,
	})
	require.NoError(t, err)
	return p
}

func (h *harness) activePartner(t *testing.T, userID string) domain.Partner {
	t.Helper()
	p := h.applyPartner(t, userID)
	p, err := h.svc.ApprovePartner(context.Background(), adminActor("approve-"+p.PartnerID), application.PartnerStatusInput{PartnerID: p.PartnerID})
	require.NoError(t, err)
	require.Equal(t, domain.PartnerStatusActive, p.Status)
	return p
}

func (h *harness) refer(t *testing.T, p domain.Partner, identity string) domain.Referral {
	t.Helper()
	res, err := h.svc.ResolveAttribution(context.Background(), application.SignupInput{ReferredIdentity: identity, ReferralCode: p.ReferralCode})
	require.NoError(t, err)
	require.Equal(t, application.OutcomeAttributed, res.Outcome)
	require.NotNil(t, res.Referral)
	return *res.Referral
}

func (h *harness) convert(t *testing.T, ref domain.Referral, paymentID, amount string) application.ConversionResult {
	t.Helper()
	res, err := h.svc.RecordConversion(context.Background(), application.ConversionInput{
		ReferralID: ref.ReferralID,
		PaymentID:  paymentID,
		Amount:     decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return res
}

func (h *harness) partner(t *testing.T, partnerID string) domain.Partner {
	t.Helper()
	p, err := h.svc.GetPartner(context.Background(), adminActor(""), partnerID)
	require.NoError(t, err)
	require.NoError(t, p.CheckBalances())
	return p
}

func requireMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s got %s", want, got.StringFixed(2))
}

func envelope(t *testing.T, eventType, partitionKey string, data any) contracts.EventEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return contracts.EventEnvelope{
		EventID:          uuid.NewString(),
		EventType:        eventType,
		OccurredAt:       time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		PartitionKeyPath: domain.CanonicalPartitionKeyPath(eventType),
		PartitionKey:     partitionKey,
		SourceService:    "directory",
		TraceID:          "trace-" + uuid.NewString(),
		SchemaVersion:    "v1",
		Data:             raw,
	}
}
