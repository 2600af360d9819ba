package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

// RequestPayout reserves amount from the actor's available balance and tags
// credited earnings oldest first to back it. Rejections leave every balance
// untouched.
func (s *Service) RequestPayout(ctx context.Context, actor Actor, in RequestPayoutInput) (domain.Payout, error) {
	if err := requireSubject(actor); err != nil {
		return domain.Payout{}, err
	}
	amount, err := domain.ParseMoney(strings.TrimSpace(in.Amount))
	if err != nil {
		return domain.Payout{}, err
	}
	method, err := domain.ParsePayoutMethod(in.Method)
	if err != nil {
		return domain.Payout{}, err
	}
	request := map[string]any{"op": "request_payout", "user": actor.SubjectID, "amount": amount.StringFixed(2), "method": method}
	var touched domain.Partner
	out, err := idempotent(ctx, s, actor, 201, request, func() (domain.Payout, error) {
		var created domain.Payout
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
			own, err := tx.Partners().GetByUserID(ctx, actor.SubjectID)
			if err != nil {
				return err
			}
			p, err := tx.Partners().GetForUpdate(ctx, own.PartnerID)
			if err != nil {
				return err
			}
			if err := domain.ValidatePayoutRequest(p, amount); err != nil {
				return err
			}
			now := s.nowFn()
			created = domain.Payout{
				PayoutID:    newID("pay_"),
				PartnerID:   p.PartnerID,
				Amount:      amount,
				Method:      method,
				Status:      domain.PayoutStatusPending,
				RequestedAt: now,
				UpdatedAt:   now,
			}
			credited, err := tx.Earnings().ListCreditedByPartner(ctx, p.PartnerID)
			if err != nil {
				return err
			}
			tagged, err := domain.AllocateEarnings(credited, amount, created.PayoutID, now)
			if err != nil {
				return err
			}
			if err := p.Reserve(amount); err != nil {
				return err
			}
			if err := tx.Payouts().Create(ctx, created); err != nil {
				return err
			}
			for _, e := range tagged {
				if err := tx.Earnings().Update(ctx, e); err != nil {
					return err
				}
			}
			if err := s.savePartner(ctx, tx, &p); err != nil {
				return err
			}
			if err := s.enqueuePayoutEvent(ctx, tx, domain.EventPayoutRequested, created, "", actor.RequestID); err != nil {
				return err
			}
			touched = p
			return s.appendAudit(ctx, tx, p.PartnerID, "partner.payout.requested", actor.SubjectID, "", map[string]string{"payout_id": created.PayoutID, "amount": amount.StringFixed(2), "method": string(method)})
		})
		return created, err
	})
	if err != nil {
		return domain.Payout{}, err
	}
	s.metrics.PayoutTransition(string(domain.PayoutStatusPending))
	s.afterCommit(ctx, touched)
	return out, nil
}

func (s *Service) StartProcessing(ctx context.Context, actor Actor, in PayoutTransitionInput) (domain.Payout, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Payout{}, err
	}
	return s.transitionPayout(ctx, actor, in, domain.PayoutStatusProcessing)
}

func (s *Service) CompletePayout(ctx context.Context, actor Actor, in PayoutTransitionInput) (domain.Payout, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Payout{}, err
	}
	return s.transitionPayout(ctx, actor, in, domain.PayoutStatusCompleted)
}

func (s *Service) FailPayout(ctx context.Context, actor Actor, in PayoutTransitionInput) (domain.Payout, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Payout{}, err
	}
	return s.transitionPayout(ctx, actor, in, domain.PayoutStatusFailed)
}

// CancelPayout withdraws a payout that has not reached the rail yet. The
// owning partner or an admin may cancel.
func (s *Service) CancelPayout(ctx context.Context, actor Actor, in PayoutTransitionInput) (domain.Payout, error) {
	if err := requireSubject(actor); err != nil {
		return domain.Payout{}, err
	}
	if !isAdmin(actor) && !isSystem(actor) {
		var owner domain.Partner
		err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
			payout, err := tx.Payouts().GetByID(ctx, strings.TrimSpace(in.PayoutID))
			if err != nil {
				return err
			}
			owner, err = tx.Partners().GetByID(ctx, payout.PartnerID)
			return err
		})
		if err != nil {
			return domain.Payout{}, err
		}
		if owner.UserID != actor.SubjectID {
			return domain.Payout{}, domain.ErrForbidden
		}
	}
	return s.transitionPayout(ctx, actor, in, domain.PayoutStatusCancelled)
}

// ApplyRailUpdate applies a payout rail callback. A callback that skips
// processing first moves the payout through it; a replay of the current
// status is a no-op.
func (s *Service) ApplyRailUpdate(ctx context.Context, in RailUpdateInput) (domain.Payout, error) {
	target, err := domain.ParsePayoutStatus(in.Status)
	if err != nil {
		return domain.Payout{}, err
	}
	actor := Actor{SubjectID: "payout-rail", Role: "system", RequestID: in.TraceID}
	transition := PayoutTransitionInput{PayoutID: in.PayoutID, PaymentReference: in.PaymentReference, FailureReason: in.FailureReason}
	if target == domain.PayoutStatusCompleted || target == domain.PayoutStatusFailed {
		current, err := s.getPayout(ctx, in.PayoutID)
		if err != nil {
			return domain.Payout{}, err
		}
		if current.Status == domain.PayoutStatusPending {
			if _, err := s.transitionPayout(ctx, actor, transition, domain.PayoutStatusProcessing); err != nil {
				return domain.Payout{}, err
			}
		}
	}
	return s.transitionPayout(ctx, actor, transition, target)
}

func (s *Service) getPayout(ctx context.Context, payoutID string) (domain.Payout, error) {
	var out domain.Payout
	err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		p, err := tx.Payouts().GetByID(ctx, strings.TrimSpace(payoutID))
		out = p
		return err
	})
	return out, err
}

func (s *Service) transitionPayout(ctx context.Context, actor Actor, in PayoutTransitionInput, target domain.PayoutStatus) (domain.Payout, error) {
	in.PayoutID = strings.TrimSpace(in.PayoutID)
	if in.PayoutID == "" {
		return domain.Payout{}, domain.ErrInvalidInput
	}
	var (
		out     domain.Payout
		touched domain.Partner
		changed bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		current, err := tx.Payouts().GetByID(ctx, in.PayoutID)
		if err != nil {
			return err
		}
		p, err := tx.Partners().GetForUpdate(ctx, current.PartnerID)
		if err != nil {
			return err
		}
		payout, err := tx.Payouts().GetByID(ctx, in.PayoutID)
		if err != nil {
			return err
		}
		if payout.Status == target {
			out = payout
			return nil
		}
		now := s.nowFn()
		if err := payout.Transition(target, now); err != nil {
			return err
		}
		invoiceNumber := ""
		switch target {
		case domain.PayoutStatusProcessing:
		case domain.PayoutStatusCompleted:
			payout.PaymentReference = strings.TrimSpace(in.PaymentReference)
			inv, err := s.settlePayout(ctx, tx, &p, payout, now)
			if err != nil {
				return err
			}
			payout.InvoiceID = inv.InvoiceID
			invoiceNumber = inv.InvoiceNumber
		case domain.PayoutStatusFailed, domain.PayoutStatusCancelled:
			payout.FailureReason = strings.TrimSpace(in.FailureReason)
			if err := s.releasePayout(ctx, tx, &p, payout, now); err != nil {
				return err
			}
		}
		if err := tx.Payouts().Update(ctx, payout); err != nil {
			return err
		}
		if target != domain.PayoutStatusProcessing {
			if err := s.savePartner(ctx, tx, &p); err != nil {
				return err
			}
			if err := s.enqueuePayoutEvent(ctx, tx, payoutEventType(target), payout, invoiceNumber, actor.RequestID); err != nil {
				return err
			}
		}
		if err := s.appendAudit(ctx, tx, p.PartnerID, "partner.payout."+string(target), actor.SubjectID, payout.FailureReason, map[string]string{"payout_id": payout.PayoutID}); err != nil {
			return err
		}
		out = payout
		touched = p
		changed = true
		return nil
	})
	if err != nil {
		return domain.Payout{}, err
	}
	if changed {
		s.metrics.PayoutTransition(string(target))
		s.afterCommit(ctx, touched)
	}
	return out, nil
}

// settlePayout pays every earning tagged to the payout, marks referrals
// whose earnings are now all paid, moves the amount from pending to paid and
// issues the invoice.
func (s *Service) settlePayout(ctx context.Context, tx ports.Tx, p *domain.Partner, payout domain.Payout, now time.Time) (domain.Invoice, error) {
	tagged, err := tx.Earnings().ListByPayout(ctx, payout.PayoutID)
	if err != nil {
		return domain.Invoice{}, err
	}
	referralIDs := make([]string, 0)
	seen := map[string]bool{}
	for _, e := range tagged {
		if e.Status != domain.EarningStatusReserved {
			return domain.Invoice{}, fmt.Errorf("%w: earning %s is %s", domain.ErrConsistencyViolation, e.EarningID, e.Status)
		}
		e.Status = domain.EarningStatusPaid
		e.UpdatedAt = now
		if err := tx.Earnings().Update(ctx, e); err != nil {
			return domain.Invoice{}, err
		}
		if e.ReferralID != "" && !seen[e.ReferralID] {
			seen[e.ReferralID] = true
			referralIDs = append(referralIDs, e.ReferralID)
		}
	}
	if err := p.Settle(payout.Amount); err != nil {
		return domain.Invoice{}, err
	}
	for _, id := range referralIDs {
		if err := s.markReferralPaid(ctx, tx, id, payout.PayoutID, now); err != nil {
			return domain.Invoice{}, err
		}
	}
	inv, err := domain.BuildInvoice(newID("inv_"), payout, tagged, now)
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := tx.Invoices().Create(ctx, inv); err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

func (s *Service) markReferralPaid(ctx context.Context, tx ports.Tx, referralID, payoutID string, now time.Time) error {
	ref, err := tx.Referrals().GetByID(ctx, referralID)
	if err != nil {
		return err
	}
	if ref.Status != domain.ReferralStatusCredited {
		return nil
	}
	earnings, err := tx.Earnings().ListByReferral(ctx, referralID)
	if err != nil {
		return err
	}
	for _, e := range earnings {
		if e.Status != domain.EarningStatusPaid {
			return nil
		}
	}
	if err := ref.Transition(domain.ReferralStatusPaid, now); err != nil {
		return err
	}
	ref.PayoutID = payoutID
	return tx.Referrals().Update(ctx, ref)
}

// releasePayout returns the tagged earnings to the credited pool and drops
// the reservation.
func (s *Service) releasePayout(ctx context.Context, tx ports.Tx, p *domain.Partner, payout domain.Payout, now time.Time) error {
	tagged, err := tx.Earnings().ListByPayout(ctx, payout.PayoutID)
	if err != nil {
		return err
	}
	for _, e := range tagged {
		if e.Status != domain.EarningStatusReserved {
			return fmt.Errorf("%w: earning %s is %s", domain.ErrConsistencyViolation, e.EarningID, e.Status)
		}
		e.Status = domain.EarningStatusCredited
		e.PayoutID = ""
		e.UpdatedAt = now
		if err := tx.Earnings().Update(ctx, e); err != nil {
			return err
		}
	}
	return p.Release(payout.Amount)
}

func (s *Service) GetPayout(ctx context.Context, actor Actor, payoutID string) (domain.Payout, error) {
	var out domain.Payout
	err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		payout, err := tx.Payouts().GetByID(ctx, strings.TrimSpace(payoutID))
		if err != nil {
			return err
		}
		if _, err := s.partnerForActor(ctx, tx, actor, payout.PartnerID); err != nil {
			return err
		}
		out = payout
		return nil
	})
	return out, err
}

func (s *Service) ListPayouts(ctx context.Context, actor Actor, in ListInput) (PayoutPage, error) {
	var out PayoutPage
	err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		p, err := s.partnerForActor(ctx, tx, actor, in.PartnerID)
		if err != nil {
			return err
		}
		page := pageOf(in)
		rows, total, err := tx.Payouts().ListByPartner(ctx, p.PartnerID, page)
		out = PayoutPage{Items: rows, Total: total, Limit: page.Limit, Offset: page.Offset}
		return err
	})
	return out, err
}

// GetInvoice returns the invoice of a completed payout.
func (s *Service) GetInvoice(ctx context.Context, actor Actor, payoutID string) (domain.Invoice, error) {
	var out domain.Invoice
	err := s.store.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		payout, err := tx.Payouts().GetByID(ctx, strings.TrimSpace(payoutID))
		if err != nil {
			return err
		}
		if _, err := s.partnerForActor(ctx, tx, actor, payout.PartnerID); err != nil {
			return err
		}
		inv, err := tx.Invoices().GetByPayoutID(ctx, payout.PayoutID)
		if errors.Is(err, domain.ErrNotFound) && payout.Status != domain.PayoutStatusCompleted {
			return fmt.Errorf("%w: payout %s is %s", domain.ErrNotFound, payout.PayoutID, payout.Status)
		}
		out = inv
		return err
	})
	return out, err
}

func payoutEventType(status domain.PayoutStatus) string {
	switch status {
	case domain.PayoutStatusCompleted:
		return domain.EventPayoutCompleted
	case domain.PayoutStatusFailed:
		return domain.EventPayoutFailed
	case domain.PayoutStatusCancelled:
		return domain.EventPayoutCancelled
	default:
		return domain.EventPayoutRequested
	}
}
