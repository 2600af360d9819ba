package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

// HandleCanonicalEvent applies one input event. Business rejections are
// logged and absorbed so a bad event never blocks the stream; only
// infrastructure failures are returned.
func (s *Service) HandleCanonicalEvent(ctx context.Context, envelope contracts.EventEnvelope) error {
	if err := validateEnvelope(envelope); err != nil {
		return err
	}
	if !domain.IsCanonicalInputEvent(envelope.EventType) {
		return domain.ErrUnsupportedEventType
	}
	if s.eventDedup != nil {
		dup, err := s.eventDedup.IsDuplicate(ctx, envelope.EventID, s.nowFn())
		if err != nil {
			return err
		}
		if dup {
			s.metrics.EventConsumed(envelope.EventType, "duplicate")
			return nil
		}
	}
	err := s.dispatchEvent(ctx, envelope)
	outcome := "success"
	switch {
	case err == nil:
	case isDomainError(err):
		outcome = "rejected"
		s.logger.WarnContext(ctx, "input event rejected",
			"operation", "handle_canonical_event",
			"outcome", outcome,
			"event_type", envelope.EventType,
			"event_id", envelope.EventID,
			"trace_id", envelope.TraceID,
			"error", err,
		)
	default:
		s.metrics.EventConsumed(envelope.EventType, "failure")
		return err
	}
	s.metrics.EventConsumed(envelope.EventType, outcome)
	if s.eventDedup != nil {
		if err := s.eventDedup.MarkProcessed(ctx, envelope.EventID, envelope.EventType, s.nowFn().Add(s.cfg.EventDedupTTL)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) dispatchEvent(ctx context.Context, envelope contracts.EventEnvelope) error {
	switch envelope.EventType {
	case domain.EventSignupCompleted:
		var data contracts.SignupCompletedPayload
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		signedUpAt := envelope.OccurredAt
		if t, err := time.Parse(time.RFC3339, data.SignedUpAt); err == nil {
			signedUpAt = t
		}
		_, err := s.HandleSignup(ctx, SignupInput{
			ReferredIdentity: data.Email,
			UserID:           data.UserID,
			ReferralCode:     data.ReferralCode,
			ClickID:          data.ClickID,
			UTM:              domain.UTM{Source: data.UTMSource, Medium: data.UTMMedium, Campaign: data.UTMCampaign},
			SignedUpAt:       signedUpAt,
			TraceID:          envelope.TraceID,
		})
		return err
	case domain.EventPaymentSucceeded:
		var data contracts.PaymentSucceededPayload
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		amount, err := domain.ParseMoney(data.Amount)
		if err != nil {
			return err
		}
		paidAt := envelope.OccurredAt
		if t, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
			paidAt = t
		}
		_, err = s.RecordConversion(ctx, ConversionInput{
			ReferredIdentity: data.ReferredIdentity,
			PaymentID:        data.PaymentID,
			Amount:           amount,
			PaidAt:           paidAt,
			TraceID:          envelope.TraceID,
		})
		return err
	case domain.EventPayoutRailUpdated:
		var data contracts.PayoutRailUpdatedPayload
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		_, err := s.ApplyRailUpdate(ctx, RailUpdateInput{
			PayoutID:         data.PayoutID,
			Status:           data.Status,
			PaymentReference: data.PaymentReference,
			FailureReason:    data.FailureReason,
			TraceID:          envelope.TraceID,
		})
		return err
	case domain.EventMilestonesEvaluate:
		var data contracts.MilestonesEvaluatePayload
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		actor := systemActor(envelope)
		if strings.TrimSpace(data.MilestoneID) != "" {
			_, err := s.EvaluateMilestone(ctx, actor, data.PartnerID, data.MilestoneID)
			return err
		}
		_, err := s.EvaluateMilestones(ctx, actor, data.PartnerID)
		return err
	default:
		return domain.ErrUnsupportedEventType
	}
}

func (s *Service) FlushOutbox(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	var pending []ports.OutboxRecord
	if err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		rows, err := tx.Outbox().ListPending(ctx, s.cfg.OutboxFlushBatchSize)
		pending = rows
		return err
	}); err != nil {
		return 0, err
	}
	sent := 0
	for _, rec := range pending {
		switch rec.EventClass {
		case domain.CanonicalEventClassDomain:
			if s.domainEvents != nil {
				if err := s.domainEvents.PublishDomain(ctx, rec.Envelope); err != nil {
					deadLettered, ferr := s.outboxPublishFailed(ctx, rec, err)
					if ferr != nil {
						return sent, errors.Join(err, ferr)
					}
					if deadLettered {
						continue
					}
					// Later records wait so per-partner order is kept.
					return sent, err
				}
			}
		case domain.CanonicalEventClassAnalyticsOnly:
			if s.analytics != nil {
				_ = s.analytics.PublishAnalytics(ctx, rec.Envelope)
			}
		default:
			return sent, fmt.Errorf("%w: %s", domain.ErrUnsupportedEventClass, rec.EventClass)
		}
		if err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
			return tx.Outbox().MarkSent(ctx, rec.RecordID, s.nowFn())
		}); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// outboxPublishFailed counts a failed publish against the record. Once the
// record has used its attempts it is dead-lettered with the real count and
// leaves the pending set.
func (s *Service) outboxPublishFailed(ctx context.Context, rec ports.OutboxRecord, cause error) (bool, error) {
	now := s.nowFn()
	var attempts int
	if err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		n, err := tx.Outbox().RecordFailure(ctx, rec.RecordID, cause.Error(), now)
		attempts = n
		return err
	}); err != nil {
		return false, err
	}
	s.logger.WarnContext(ctx, "outbox publish failed",
		"operation", "flush_outbox",
		"outcome", "retry",
		"event_id", rec.Envelope.EventID,
		"event_type", rec.Envelope.EventType,
		"attempts", attempts,
		"error", cause,
	)
	if attempts < s.cfg.OutboxMaxAttempts || s.dlq == nil {
		return false, nil
	}
	record := contracts.DLQRecord{
		OriginalEvent: rec.Envelope,
		ErrorSummary:  cause.Error(),
		RetryCount:    attempts,
		FirstSeenAt:   rec.CreatedAt,
		LastErrorAt:   now,
		SourceTopic:   rec.Envelope.EventType,
		DLQTopic:      s.cfg.DLQTopic,
		TraceID:       rec.Envelope.TraceID,
	}
	if err := s.dlq.PublishDLQ(ctx, record); err != nil {
		return false, err
	}
	if err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.Outbox().MarkDeadLettered(ctx, rec.RecordID, now)
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) enqueueEvent(ctx context.Context, tx ports.Tx, eventType, traceID string, data any, partnerID string, now time.Time) error {
	if !domain.IsCanonicalEmittedEvent(eventType) {
		return domain.ErrUnsupportedEventType
	}
	b, err := json.Marshal(data)
	if err != nil {
		return domain.ErrInvalidInput
	}
	if strings.TrimSpace(traceID) == "" {
		traceID = uuid.NewString()
	}
	env := contracts.EventEnvelope{EventID: uuid.NewString(), EventType: eventType, EventClass: domain.CanonicalEventClass(eventType), OccurredAt: now, PartitionKeyPath: domain.CanonicalPartitionKeyPath(eventType), PartitionKey: partnerID, SourceService: s.cfg.ServiceName, TraceID: traceID, SchemaVersion: "v1", Data: b}
	return tx.Outbox().Enqueue(ctx, ports.OutboxRecord{RecordID: uuid.NewString(), EventClass: env.EventClass, Envelope: env, CreatedAt: now})
}

func (s *Service) enqueueReferralAttributed(ctx context.Context, tx ports.Tx, r domain.Referral, traceID string) error {
	return s.enqueueEvent(ctx, tx, domain.EventReferralAttributed, traceID, contracts.ReferralAttributedPayload{PartnerID: r.PartnerID, ReferralID: r.ReferralID, ClickID: r.ClickID, UTMSource: r.UTM.Source, UTMMedium: r.UTM.Medium, UTMCampaign: r.UTM.Campaign, AttributedAt: r.CreatedAt.UTC().Format(time.RFC3339)}, r.PartnerID, r.CreatedAt)
}

func (s *Service) enqueueReferralCredited(ctx context.Context, tx ports.Tx, r domain.Referral, e domain.Earning, traceID string) error {
	tier := ""
	if r.TierSnapshot != nil {
		tier = r.TierSnapshot.Name
	}
	return s.enqueueEvent(ctx, tx, domain.EventReferralCredited, traceID, contracts.ReferralCreditedPayload{PartnerID: r.PartnerID, ReferralID: r.ReferralID, EarningID: e.EarningID, Kind: string(e.Kind), PaymentID: e.PaymentID, Amount: e.Amount.StringFixed(2), Tier: tier, CreditedAt: e.CreatedAt.UTC().Format(time.RFC3339)}, r.PartnerID, e.CreatedAt)
}

func (s *Service) enqueueReferralExpired(ctx context.Context, tx ports.Tx, r domain.Referral, traceID string) error {
	return s.enqueueEvent(ctx, tx, domain.EventReferralExpired, traceID, contracts.ReferralExpiredPayload{PartnerID: r.PartnerID, ReferralID: r.ReferralID, ExpiredAt: r.UpdatedAt.UTC().Format(time.RFC3339)}, r.PartnerID, r.UpdatedAt)
}

func (s *Service) enqueueMilestoneAwarded(ctx context.Context, tx ports.Tx, a domain.MilestoneAward, traceID string) error {
	return s.enqueueEvent(ctx, tx, domain.EventMilestoneAwarded, traceID, contracts.MilestoneAwardedPayload{PartnerID: a.PartnerID, MilestoneID: a.MilestoneID, AwardID: a.AwardID, BonusAmount: a.BonusAmount.StringFixed(2), AwardedAt: a.AwardedAt.UTC().Format(time.RFC3339)}, a.PartnerID, a.AwardedAt)
}

func (s *Service) enqueueTierChanged(ctx context.Context, tx ports.Tx, p domain.Partner, previous, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, tx, domain.EventTierChanged, traceID, contracts.TierChangedPayload{PartnerID: p.PartnerID, PreviousTier: previous, Tier: p.Tier, LifetimeReferrals: p.LifetimeReferrals, ChangedAt: now.UTC().Format(time.RFC3339)}, p.PartnerID, now)
}

func (s *Service) enqueuePayoutEvent(ctx context.Context, tx ports.Tx, eventType string, p domain.Payout, invoiceNumber, traceID string) error {
	return s.enqueueEvent(ctx, tx, eventType, traceID, contracts.PayoutEventPayload{PartnerID: p.PartnerID, PayoutID: p.PayoutID, Amount: p.Amount.StringFixed(2), Method: string(p.Method), Status: string(p.Status), PaymentReference: p.PaymentReference, FailureReason: p.FailureReason, InvoiceNumber: invoiceNumber, OccurredAt: p.UpdatedAt.UTC().Format(time.RFC3339)}, p.PartnerID, p.UpdatedAt)
}

func (s *Service) enqueueClickTracked(ctx context.Context, tx ports.Tx, c domain.Click) error {
	return s.enqueueEvent(ctx, tx, domain.EventClickTracked, "", contracts.ClickTrackedPayload{PartnerID: c.PartnerID, ClickID: c.ClickID, UTMSource: c.UTM.Source, UTMMedium: c.UTM.Medium, UTMCampaign: c.UTM.Campaign, IPHash: c.IPHash, TrackedAt: c.ClickedAt.UTC().Format(time.RFC3339)}, c.PartnerID, c.ClickedAt)
}

func systemActor(envelope contracts.EventEnvelope) Actor {
	return Actor{SubjectID: envelope.SourceService, Role: "system", RequestID: envelope.TraceID}
}

func validateEnvelope(event contracts.EventEnvelope) error {
	if strings.TrimSpace(event.EventID) == "" || strings.TrimSpace(event.EventType) == "" || event.OccurredAt.IsZero() {
		return domain.ErrInvalidEnvelope
	}
	if strings.TrimSpace(event.SourceService) == "" || strings.TrimSpace(event.TraceID) == "" || strings.TrimSpace(event.SchemaVersion) == "" {
		return domain.ErrInvalidEnvelope
	}
	if strings.TrimSpace(event.PartitionKeyPath) == "" || strings.TrimSpace(event.PartitionKey) == "" {
		return domain.ErrInvalidEnvelope
	}
	if len(event.Data) == 0 {
		return domain.ErrInvalidEnvelope
	}
	return nil
}
