package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

// RecordConversion applies a qualifying payment to a referral. The first
// payment converts and credits the referral in one transaction using the
// tier the partner holds at that moment. Replaying a payment id is a no-op.
func (s *Service) RecordConversion(ctx context.Context, in ConversionInput) (ConversionResult, error) {
	in.ReferralID = strings.TrimSpace(in.ReferralID)
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	identity := domain.NormalizeIdentity(in.ReferredIdentity)
	if in.PaymentID == "" || (in.ReferralID == "" && identity == "") {
		return ConversionResult{}, domain.ErrInvalidInput
	}
	if in.Amount.IsNegative() || !in.Amount.Equal(in.Amount.Truncate(domain.MoneyPlaces)) {
		return ConversionResult{}, fmt.Errorf("%w: payment amount", domain.ErrInvalidInput)
	}
	now := s.nowFn()

	var (
		result  ConversionResult
		touched domain.Partner
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		var (
			ref domain.Referral
			err error
		)
		if in.ReferralID != "" {
			ref, err = tx.Referrals().GetByID(ctx, in.ReferralID)
		} else {
			ref, err = tx.Referrals().GetByIdentity(ctx, identity)
		}
		if err != nil {
			return err
		}

		p, err := tx.Partners().GetForUpdate(ctx, ref.PartnerID)
		if err != nil {
			return err
		}
		// Re-read under the partner lock so concurrent conversions serialize.
		if ref, err = tx.Referrals().GetByID(ctx, ref.ReferralID); err != nil {
			return err
		}

		if prior, err := tx.Earnings().GetByPaymentID(ctx, in.PaymentID); err == nil {
			if prior.ReferralID != ref.ReferralID {
				return fmt.Errorf("%w: payment %s already credited to another referral", domain.ErrConflict, in.PaymentID)
			}
			result = ConversionResult{Outcome: OutcomeAlreadyCredited, Referral: ref, Earning: &prior}
			return nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		var earning domain.Earning
		switch ref.Status {
		case domain.ReferralStatusPending:
			snapshot := domain.SnapshotTier(s.cfg.Tiers.TierFor(p.LifetimeReferrals))
			amount, err := domain.Commission(*snapshot, in.Amount)
			if err != nil {
				return err
			}
			if err := ref.Transition(domain.ReferralStatusConverted, now); err != nil {
				return err
			}
			ref.TierSnapshot = snapshot
			ref.ConversionPaymentID = in.PaymentID
			if err := ref.Transition(domain.ReferralStatusCredited, now); err != nil {
				return err
			}
			ref.AmountEarned = amount
			earning = domain.Earning{EarningID: newID("earn_"), PartnerID: p.PartnerID, ReferralID: ref.ReferralID, Kind: domain.EarningKindCommission, PaymentID: in.PaymentID, Amount: amount, Status: domain.EarningStatusCredited, CreatedAt: now, UpdatedAt: now}
			result.Outcome = OutcomeCredited
		case domain.ReferralStatusCredited, domain.ReferralStatusPaid:
			if !s.cfg.OngoingRevenueShare || ref.TierSnapshot == nil {
				result = ConversionResult{Outcome: OutcomeIgnored, Referral: ref}
				return nil
			}
			amount, err := domain.RevenueShare(*ref.TierSnapshot, in.Amount)
			if err != nil {
				return err
			}
			if !amount.IsPositive() {
				result = ConversionResult{Outcome: OutcomeIgnored, Referral: ref}
				return nil
			}
			ref.AmountEarned = ref.AmountEarned.Add(amount)
			ref.UpdatedAt = now
			earning = domain.Earning{EarningID: newID("earn_"), PartnerID: p.PartnerID, ReferralID: ref.ReferralID, Kind: domain.EarningKindRevenueShare, PaymentID: in.PaymentID, Amount: amount, Status: domain.EarningStatusCredited, CreatedAt: now, UpdatedAt: now}
			result.Outcome = OutcomeRevenueShare
		default:
			return fmt.Errorf("%w: referral %s is %s", domain.ErrInvalidStateTransition, ref.ReferralID, ref.Status)
		}

		if err := tx.Earnings().Create(ctx, earning); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return fmt.Errorf("%w: payment %s credited twice", domain.ErrConsistencyViolation, in.PaymentID)
			}
			return err
		}
		p.Credit(earning.Amount)
		if err := tx.Referrals().Update(ctx, ref); err != nil {
			return err
		}
		if err := s.savePartner(ctx, tx, &p); err != nil {
			return err
		}
		if err := s.enqueueReferralCredited(ctx, tx, ref, earning, in.TraceID); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, tx, p.PartnerID, "partner.referral.credited", "system", "", map[string]string{"referral_id": ref.ReferralID, "payment_id": in.PaymentID, "amount": earning.Amount.StringFixed(2), "kind": string(earning.Kind)}); err != nil {
			return err
		}
		touched = p
		result.Referral = ref
		result.Earning = &earning
		return nil
	})
	if err != nil {
		return ConversionResult{}, err
	}
	if result.Earning != nil && (result.Outcome == OutcomeCredited || result.Outcome == OutcomeRevenueShare) {
		s.metrics.CommissionCredited(string(result.Earning.Kind), result.Earning.Amount.InexactFloat64())
		s.afterCommit(ctx, touched)
	}
	return result, nil
}
