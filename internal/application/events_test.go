package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/application"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

func TestHandleCanonicalEventValidatesEnvelope(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bad := envelope(t, domain.EventSignupCompleted, "p1", contracts.SignupCompletedPayload{Email: "x@example.com"})
	bad.TraceID = ""
	require.ErrorIs(t, h.svc.HandleCanonicalEvent(ctx, bad), domain.ErrInvalidEnvelope)

	unknown := envelope(t, "billing.invoice.voided", "p1", map[string]string{"id": "1"})
	unknown.PartitionKeyPath = "data.id"
	require.ErrorIs(t, h.svc.HandleCanonicalEvent(ctx, unknown), domain.ErrUnsupportedEventType)
}

func TestSignupAndPaymentEventsDriveTheLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.activePartner(t, "u-alice")

	signup := envelope(t, domain.EventSignupCompleted, p.PartnerID, contracts.SignupCompletedPayload{
		UserID:       "u-new",
		Email:        "new@example.com",
		ReferralCode: p.ReferralCode,
		UTMSource:    "twitter",
	})
	require.NoError(t, h.svc.HandleCanonicalEvent(ctx, signup))

	payment := envelope(t, domain.EventPaymentSucceeded, p.PartnerID, contracts.PaymentSucceededPayload{
		PaymentID:        "pm-1",
		ReferredIdentity: "new@example.com",
		Amount:           "50.00",
	})
	require.NoError(t, h.svc.HandleCanonicalEvent(ctx, payment))
	require.NoError(t, h.svc.HandleCanonicalEvent(ctx, payment))
	redelivered := envelope(t, domain.EventPaymentSucceeded, p.PartnerID, contracts.PaymentSucceededPayload{
		PaymentID:        "pm-1",
		ReferredIdentity: "new@example.com",
		Amount:           "50.00",
	})
	require.NoError(t, h.svc.HandleCanonicalEvent(ctx, redelivered))

	got := h.partner(t, p.PartnerID)
	assert.Equal(t, 1, got.LifetimeReferrals)
	requireMoney(t, "10.00", got.PendingEarnings)
}

func TestBusinessRejectionsAreAbsorbed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.activePartner(t, "u-alice")

	selfSignup := envelope(t, domain.EventSignupCompleted, p.PartnerID, contracts.SignupCompletedPayload{Email: "u-alice@partners.test", ReferralCode: p.ReferralCode})
	require.NoError(t, h.svc.HandleCanonicalEvent(ctx, selfSignup))

	badAmount := envelope(t, domain.EventPaymentSucceeded, p.PartnerID, contracts.PaymentSucceededPayload{PaymentID: "pm-x", ReferredIdentity: "x@example.com", Amount: "ten"})
	require.NoError(t, h.svc.HandleCanonicalEvent(ctx, badAmount))

	unknownPayout := envelope(t, domain.EventPayoutRailUpdated, p.PartnerID, contracts.PayoutRailUpdatedPayload{PartnerID: p.PartnerID, PayoutID: "pay_missing", Status: "completed"})
	require.NoError(t, h.svc.HandleCanonicalEvent(ctx, unknownPayout))

	assert.Zero(t, h.partner(t, p.PartnerID).LifetimeReferrals)
}

func TestFlushOutboxPublishesByClassWithPartitionKeys(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.activePartner(t, "u-alice")
	_, err := h.svc.TrackClick(ctx, application.TrackClickInput{ReferralCode: p.ReferralCode})
	require.NoError(t, err)
	ref := h.refer(t, p, "r1@example.com")
	h.convert(t, ref, "pm-1", "50")

	n, err := h.svc.FlushOutbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	published := h.publisher.Domain()
	require.Len(t, published, 2)
	assert.Equal(t, domain.EventReferralAttributed, published[0].EventType)
	assert.Equal(t, domain.EventReferralCredited, published[1].EventType)
	for _, env := range published {
		assert.Equal(t, p.PartnerID, env.PartitionKey)
		assert.Equal(t, "data.partner_id", env.PartitionKeyPath)
		assert.Equal(t, domain.CanonicalEventClassDomain, env.EventClass)
	}
	analytics := h.publisher.Analytics()
	require.Len(t, analytics, 1)
	assert.Equal(t, domain.EventClickTracked, analytics[0].EventType)

	n, err = h.svc.FlushOutbox(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFlushOutboxRetriesBeforeDeadLettering(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.activePartner(t, "u-alice")
	h.refer(t, p, "r1@example.com")

	h.publisher.FailDomain(errors.New("broker down"))
	_, err := h.svc.FlushOutbox(ctx)
	require.Error(t, err)
	assert.Empty(t, h.publisher.DLQ())

	h.publisher.FailDomain(nil)
	n, err := h.svc.FlushOutbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, h.publisher.Domain(), 1)
	assert.Empty(t, h.publisher.DLQ())
}

func TestFlushOutboxDeadLettersOnceAttemptsRunOut(t *testing.T) {
	h := newHarness(t)
	svc := h.service(func(c *application.Config) { c.OutboxMaxAttempts = 3 })
	ctx := context.Background()
	p := h.activePartner(t, "u-alice")
	h.refer(t, p, "r1@example.com")

	h.publisher.FailDomain(errors.New("broker down"))
	for i := 0; i < 2; i++ {
		_, err := svc.FlushOutbox(ctx)
		require.Error(t, err)
		assert.Empty(t, h.publisher.DLQ())
	}
	_, err := svc.FlushOutbox(ctx)
	require.NoError(t, err)

	dlq := h.publisher.DLQ()
	require.Len(t, dlq, 1)
	assert.Equal(t, 3, dlq[0].RetryCount)
	assert.Equal(t, "broker down", dlq[0].ErrorSummary)
	assert.Equal(t, "partner-engine.dlq", dlq[0].DLQTopic)
	assert.Equal(t, domain.EventReferralAttributed, dlq[0].OriginalEvent.EventType)

	h.publisher.FailDomain(nil)
	n, err := svc.FlushOutbox(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.publisher.Domain())
	assert.Len(t, h.publisher.DLQ(), 1)
}
