package application_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/application"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

func TestApplyPartnerDefaultsAndIdempotency(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	actor := partnerActor("u-alice", "apply-1")
	in := application.ApplyPartnerInput{Email: "Alice@Partners.test", DisplayName: " Alice "}

	p, err := h.svc.ApplyPartner(ctx, actor, in)
	require.NoError(t, err)
	assert.Equal(t, domain.PartnerStatusPendingApproval, p.Status)
	assert.Equal(t, "alice@partners.test", p.Email)
	assert.Equal(t, "Alice", p.DisplayName)
	assert.Equal(t, "Bronze", p.Tier)
	assert.Len(t, p.ReferralCode, 8)
	assert.Equal(t, domain.DefaultCookieDurationDays, p.CookieDurationDays)
	requireMoney(t, "50", p.MinimumPayoutThreshold)
	assert.Equal(t, domain.NotifyEmail, p.NotificationPreference)

	replay, err := h.svc.ApplyPartner(ctx, actor, in)
	require.NoError(t, err)
	assert.Equal(t, p.PartnerID, replay.PartnerID)

	_, err = h.svc.ApplyPartner(ctx, actor, application.ApplyPartnerInput{Email: "other@partners.test"})
	require.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	_, err = h.svc.ApplyPartner(ctx, partnerActor("u-alice", "apply-2"), in)
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = h.svc.ApplyPartner(ctx, partnerActor("u-bob", "apply-3"), application.ApplyPartnerInput{Email: "not-an-email"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.svc.ApplyPartner(ctx, application.Actor{IdempotencyKey: "apply-4"}, in)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPartnerStatusTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.applyPartner(t, "u-alice")

	_, err := h.svc.ApprovePartner(ctx, partnerActor("u-alice", "self-approve"), application.PartnerStatusInput{PartnerID: p.PartnerID})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.svc.ReactivatePartner(ctx, adminActor("react-0"), application.PartnerStatusInput{PartnerID: "ptr_missing"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	approved, err := h.svc.ApprovePartner(ctx, adminActor("approve-1"), application.PartnerStatusInput{PartnerID: p.PartnerID})
	require.NoError(t, err)
	assert.Equal(t, domain.PartnerStatusActive, approved.Status)

	suspended, err := h.svc.SuspendPartner(ctx, adminActor("suspend-1"), application.PartnerStatusInput{PartnerID: p.PartnerID, Reason: "chargebacks"})
	require.NoError(t, err)
	assert.Equal(t, domain.PartnerStatusSuspended, suspended.Status)

	reactivated, err := h.svc.ReactivatePartner(ctx, adminActor("react-1"), application.PartnerStatusInput{PartnerID: p.PartnerID})
	require.NoError(t, err)
	assert.Equal(t, domain.PartnerStatusActive, reactivated.Status)

	logs, err := h.svc.ListAuditLogs(ctx, adminActor(""), p.PartnerID)
	require.NoError(t, err)
	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.Equal(t, []string{"partner.applied", "partner.approved", "partner.suspended", "partner.reactivated"}, actions)
	assert.Equal(t, "chargebacks", logs[2].Reason)

	_, err = h.svc.ListAuditLogs(ctx, partnerActor("u-alice", ""), p.PartnerID)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestApproveAndReactivateAcceptOnlyTheirSourceState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.applyPartner(t, "u-alice")

	_, err := h.svc.ReactivatePartner(ctx, adminActor("react-pending"), application.PartnerStatusInput{PartnerID: p.PartnerID})
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, domain.PartnerStatusPendingApproval, h.partner(t, p.PartnerID).Status)

	_, err = h.svc.ApprovePartner(ctx, adminActor("approve-1"), application.PartnerStatusInput{PartnerID: p.PartnerID})
	require.NoError(t, err)
	_, err = h.svc.SuspendPartner(ctx, adminActor("suspend-1"), application.PartnerStatusInput{PartnerID: p.PartnerID, Reason: "fraud review"})
	require.NoError(t, err)

	_, err = h.svc.ApprovePartner(ctx, adminActor("approve-suspended"), application.PartnerStatusInput{PartnerID: p.PartnerID})
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	assert.Equal(t, domain.PartnerStatusSuspended, h.partner(t, p.PartnerID).Status)

	reactivated, err := h.svc.ReactivatePartner(ctx, adminActor("react-1"), application.PartnerStatusInput{PartnerID: p.PartnerID})
	require.NoError(t, err)
	assert.Equal(t, domain.PartnerStatusActive, reactivated.Status)

	// A rejected request released its key, so the same key can be retried.
	again, err := h.svc.ApprovePartner(ctx, adminActor("approve-suspended"), application.PartnerStatusInput{PartnerID: p.PartnerID})
	require.NoError(t, err)
	assert.Equal(t, domain.PartnerStatusActive, again.Status)
}

func TestUpdateSettings(t *testing.T) {
	h := newHarness(t, func(cfg *application.Config) { cfg.MinimumPayoutFloor = decimal.NewFromInt(10) })
	ctx := context.Background()
	h.activePartner(t, "u-alice")

	tooShort := 5
	_, err := h.svc.UpdateSettings(ctx, partnerActor("u-alice", "s1"), application.UpdateSettingsInput{CookieDurationDays: &tooShort})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	pager := "pager"
	_, err = h.svc.UpdateSettings(ctx, partnerActor("u-alice", "s2"), application.UpdateSettingsInput{NotificationPreference: &pager})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	belowFloor := "5"
	_, err = h.svc.UpdateSettings(ctx, partnerActor("u-alice", "s3"), application.UpdateSettingsInput{MinimumPayoutThreshold: &belowFloor})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	days := 60
	optIn := true
	sms := "SMS"
	threshold := "25.00"
	p, err := h.svc.UpdateSettings(ctx, partnerActor("u-alice", "s4"), application.UpdateSettingsInput{
		CookieDurationDays:     &days,
		LeaderboardOptIn:       &optIn,
		NotificationPreference: &sms,
		MinimumPayoutThreshold: &threshold,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, p.CookieDurationDays)
	assert.True(t, p.LeaderboardOptIn)
	assert.Equal(t, domain.NotifySMS, p.NotificationPreference)
	requireMoney(t, "25", p.MinimumPayoutThreshold)

	click, err := h.svc.TrackClick(ctx, application.TrackClickInput{ReferralCode: p.ReferralCode})
	require.NoError(t, err)
	assert.Equal(t, p.CookieWindow(), click.CookieMaxAge)
}
