package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/cache"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/events"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/adapters/memory"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/application"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestService() *application.Service {
	publisher := events.NewMemoryPublisher()
	return application.NewService(application.Dependencies{
		Config: application.Config{
			PublicBaseURL:        "https://partners.test",
			Tiers:                domain.DefaultTierTable(),
			Milestones:           domain.DefaultMilestones(),
			DefaultMinimumPayout: decimal.NewFromInt(50),
		},
		Store:        memory.NewStore(),
		Idempotency:  memory.NewIdempotencyRepository(),
		EventDedup:   memory.NewEventDedupRepository(),
		Dashboards:   cache.NewMemoryDashboardCache(),
		Leaderboard:  cache.NewMemoryLeaderboard(),
		DomainEvents: publisher,
		Analytics:    publisher,
		DLQ:          publisher,
		Logger:       slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
}

func newTestRouter(t *testing.T, opts RouterOptions) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewRouter(NewHandler(newTestService(), logger), opts)
}

type call struct {
	method  string
	path    string
	body    any
	subject string
	role    string
	key     string
	cookie  *http.Cookie
}

func do(t *testing.T, router http.Handler, c call) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.subject != "" {
		req.Header.Set("Authorization", "Bearer "+c.subject)
	}
	if c.role != "" {
		req.Header.Set("X-Actor-Role", c.role)
	}
	if c.key != "" {
		req.Header.Set("Idempotency-Key", c.key)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var out envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func activePartnerViaAPI(t *testing.T, router http.Handler, userID string) contracts.PartnerResponse {
	t.Helper()
	rec, env := do(t, router, call{
		method: http.MethodPost, path: "/api/v1/partners", subject: userID, key: "apply-" + userID,
		body: contracts.ApplyPartnerRequest{Email: userID + "@partners.test", DisplayName: userID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	applied := decodeData[contracts.PartnerResponse](t, env)

	rec, env = do(t, router, call{
		method: http.MethodPost, path: "/api/v1/admin/partners/" + applied.PartnerID + "/approve",
		subject: "admin-1", role: "admin", key: "approve-" + applied.PartnerID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decodeData[contracts.PartnerResponse](t, env)
	require.Equal(t, "active", approved.Status)
	return approved
}

func TestHealthAndReadiness(t *testing.T) {
	ready := errors.New("database unavailable")
	router := newTestRouter(t, RouterOptions{Ready: func(context.Context) error { return ready }})

	rec, env := do(t, router, call{method: http.MethodGet, path: "/healthz"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", env.Status)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec, env = do(t, router, call{method: http.MethodGet, path: "/readyz"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "not_ready", env.Code)

	ready = nil
	rec, _ = do(t, router, call{method: http.MethodGet, path: "/readyz"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestApplyPartnerReplaysIdempotently(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	req := call{
		method: http.MethodPost, path: "/api/v1/partners", subject: "u-alice", key: "apply-alice",
		body: contracts.ApplyPartnerRequest{Email: "Alice@Partners.test", DisplayName: "Alice"},
	}

	rec, env := do(t, router, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeData[contracts.PartnerResponse](t, env)
	require.Equal(t, "pending_approval", first.Status)
	require.Equal(t, "Bronze", first.Tier)
	require.Equal(t, "https://partners.test/r/"+first.ReferralCode, first.ReferralURL)
	require.Equal(t, "50.00", first.MinimumPayoutThreshold)

	rec, env = do(t, router, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, first.PartnerID, decodeData[contracts.PartnerResponse](t, env).PartnerID)

	req.key = ""
	rec, env = do(t, router, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "idempotency_key_required", env.Code)

	rec, env = do(t, router, call{
		method: http.MethodPost, path: "/api/v1/partners", subject: "u-bob", key: "apply-bob",
		body: map[string]string{"email": "not-an-email"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_input", env.Code)
}

func TestMissingBearerIsUnauthorized(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	rec, env := do(t, router, call{method: http.MethodGet, path: "/api/v1/partners/me"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthorized", env.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	rec, env := do(t, router, call{
		method: http.MethodPost, path: "/api/v1/admin/partners/ptn_x/approve", subject: "u-alice", key: "k1",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", env.Code)

	rec, _ = do(t, router, call{
		method: http.MethodPost, path: "/internal/v1/conversions", subject: "u-alice", role: "partner",
		body: contracts.ConversionRequest{ReferredIdentity: "x@example.com", PaymentID: "p1", Amount: "10"},
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestClickRedirectSetsReferralCookie(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	p := activePartnerViaAPI(t, router, "u-alice")

	rec, _ := do(t, router, call{method: http.MethodGet, path: "/r/" + p.ReferralCode + "?utm_source=Newsletter"})
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "https://partners.test/signup?ref="+p.ReferralCode, rec.Header().Get("Location"))

	var ref *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == referralCookie {
			ref = c
		}
	}
	require.NotNil(t, ref)
	require.NotEmpty(t, ref.Value)
	require.True(t, ref.HttpOnly)
	require.Equal(t, 30*24*60*60, ref.MaxAge)

	rec, env := do(t, router, call{method: http.MethodGet, path: "/r/NOPE1234"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", env.Code)
}

func TestSignupFallsBackToReferralCookie(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	p := activePartnerViaAPI(t, router, "u-alice")

	rec, _ := do(t, router, call{method: http.MethodGet, path: "/r/" + p.ReferralCode})
	require.Equal(t, http.StatusFound, rec.Code)
	var clickCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == referralCookie {
			clickCookie = c
		}
	}
	require.NotNil(t, clickCookie)

	rec, env := do(t, router, call{
		method: http.MethodPost, path: "/internal/v1/signups", subject: "svc-auth", role: "system",
		body:   contracts.SignupRequest{Email: "new.user@example.com", UserID: "u-new"},
		cookie: &http.Cookie{Name: referralCookie, Value: clickCookie.Value},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeData[contracts.AttributionResponse](t, env)
	require.Equal(t, "attributed", out.Outcome)
	require.NotNil(t, out.Referral)
	require.Equal(t, p.PartnerID, out.Referral.PartnerID)

	rec, env = do(t, router, call{
		method: http.MethodPost, path: "/internal/v1/conversions", subject: "svc-billing", role: "system",
		body: contracts.ConversionRequest{ReferredIdentity: "new.user@example.com", PaymentID: "pay-1", Amount: "100.00"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	conv := decodeData[contracts.ConversionResponse](t, env)
	require.Equal(t, "credited", conv.Outcome)
	require.NotNil(t, conv.Earning)
	require.Equal(t, "15.00", conv.Earning.Amount)

	rec, env = do(t, router, call{method: http.MethodGet, path: "/api/v1/partners/me", subject: "u-alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeData[contracts.PartnerResponse](t, env)
	require.Equal(t, "15.00", me.PendingEarnings)
	require.Equal(t, 1, me.LifetimeReferrals)
}

func TestPayoutBelowBalanceIsUnprocessable(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	activePartnerViaAPI(t, router, "u-alice")

	rec, env := do(t, router, call{
		method: http.MethodPost, path: "/api/v1/partners/me/payouts", subject: "u-alice", key: "payout-1",
		body: contracts.RequestPayoutRequest{Amount: "60.00", Method: "paypal"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	require.Equal(t, "insufficient_balance", env.Code)

	rec, env = do(t, router, call{
		method: http.MethodPost, path: "/api/v1/partners/me/payouts", subject: "u-alice", key: "payout-2",
		body: contracts.RequestPayoutRequest{Amount: "60.00", Method: "crypto"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_input", env.Code)
}

func TestListEchoesNormalizedPage(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	activePartnerViaAPI(t, router, "u-alice")

	rec, env := do(t, router, call{method: http.MethodGet, path: "/api/v1/partners/me/payouts?limit=500&offset=-1", subject: "u-alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decodeData[contracts.ListResponse[contracts.PayoutResponse]](t, env)
	require.Equal(t, 100, page.Limit)
	require.Equal(t, 0, page.Offset)
	require.Empty(t, page.Items)

	rec, env = do(t, router, call{method: http.MethodGet, path: "/api/v1/partners/me/referrals?offset=5", subject: "u-alice"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refs := decodeData[contracts.ListResponse[contracts.ReferralResponse]](t, env)
	require.Equal(t, 20, refs.Limit)
	require.Equal(t, 5, refs.Offset)
}

func TestJWTAuthentication(t *testing.T) {
	const secret = "router-test-secret"
	router := newTestRouter(t, RouterOptions{Auth: NewAuthenticator(secret)})

	sign := func(role, subject string, ttl time.Duration) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, actorClaims{
			Role: role,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   subject,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			},
		})
		raw, err := token.SignedString([]byte(secret))
		require.NoError(t, err)
		return raw
	}

	rec, _ := do(t, router, call{
		method: http.MethodPost, path: "/api/v1/partners", subject: sign("partner", "u-alice", time.Hour), key: "apply-alice",
		body: contracts.ApplyPartnerRequest{Email: "alice@partners.test"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = do(t, router, call{method: http.MethodGet, path: "/api/v1/partners/me", subject: sign("partner", "u-alice", -time.Minute)})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, router, call{method: http.MethodGet, path: "/api/v1/partners/me", subject: "u-alice"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// The role header is ignored once tokens are signed.
	rec, _ = do(t, router, call{
		method: http.MethodGet, path: "/api/v1/admin/partners/ptn_x", subject: sign("partner", "u-alice", time.Hour), role: "admin",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestClickRedirectIsRateLimited(t *testing.T) {
	router := newTestRouter(t, RouterOptions{ClickRate: 0.001, ClickBurst: 1})
	p := activePartnerViaAPI(t, router, "u-alice")

	rec, _ := do(t, router, call{method: http.MethodGet, path: "/r/" + p.ReferralCode})
	require.Equal(t, http.StatusFound, rec.Code)

	rec, env := do(t, router, call{method: http.MethodGet, path: "/r/" + p.ReferralCode})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "rate_limited", env.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

type recordingObserver struct {
	routes []string
}

func (o *recordingObserver) ObserveHTTP(method, route string, status int, _ time.Duration) {
	o.routes = append(o.routes, method+" "+route)
}

func TestMetricsObserverSeesRoutePattern(t *testing.T) {
	observer := &recordingObserver{}
	router := newTestRouter(t, RouterOptions{Observer: observer})

	do(t, router, call{method: http.MethodGet, path: "/healthz"})
	do(t, router, call{method: http.MethodGet, path: "/r/ABCD2345"})
	require.Equal(t, []string{"GET /healthz", "GET /r/{code}"}, observer.routes)
}
