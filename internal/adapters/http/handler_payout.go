package http

import (
	"context"
	"net/http"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/application"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

func (h *Handler) requestPayout(w http.ResponseWriter, r *http.Request) {
	var req contracts.RequestPayoutRequest
	if !h.decode(w, r, "request_payout", &req) {
		return
	}
	row, err := h.service.RequestPayout(r.Context(), actorFromContext(r.Context()), application.RequestPayoutInput{
		Amount: req.Amount,
		Method: req.Method,
	})
	if err != nil {
		h.fail(w, r, "request_payout", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toPayoutResponse(row))
}

func (h *Handler) listPayouts(w http.ResponseWriter, r *http.Request) {
	in := listInput(r)
	page, err := h.service.ListPayouts(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, r, "list_payouts", err)
		return
	}
	items := make([]contracts.PayoutResponse, 0, len(page.Items))
	for _, row := range page.Items {
		items = append(items, toPayoutResponse(row))
	}
	writeSuccess(w, http.StatusOK, contracts.ListResponse[contracts.PayoutResponse]{Items: items, Total: page.Total, Limit: page.Limit, Offset: page.Offset})
}

func (h *Handler) getPayout(w http.ResponseWriter, r *http.Request) {
	row, err := h.service.GetPayout(r.Context(), actorFromContext(r.Context()), urlParam(r, "payout_id"))
	if err != nil {
		h.fail(w, r, "get_payout", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPayoutResponse(row))
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.GetInvoice(r.Context(), actorFromContext(r.Context()), urlParam(r, "payout_id"))
	if err != nil {
		h.fail(w, r, "get_invoice", err)
		return
	}
	writeSuccess(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) cancelPayout(w http.ResponseWriter, r *http.Request) {
	h.transitionPayout(w, r, "cancel_payout", h.service.CancelPayout, false)
}

func (h *Handler) startProcessing(w http.ResponseWriter, r *http.Request) {
	h.transitionPayout(w, r, "start_processing", h.service.StartProcessing, false)
}

func (h *Handler) completePayout(w http.ResponseWriter, r *http.Request) {
	h.transitionPayout(w, r, "complete_payout", h.service.CompletePayout, true)
}

func (h *Handler) failPayout(w http.ResponseWriter, r *http.Request) {
	h.transitionPayout(w, r, "fail_payout", h.service.FailPayout, true)
}

type payoutTransitionFunc func(ctx context.Context, actor application.Actor, in application.PayoutTransitionInput) (domain.Payout, error)

func (h *Handler) transitionPayout(w http.ResponseWriter, r *http.Request, operation string, fn payoutTransitionFunc, withBody bool) {
	var req contracts.PayoutTransitionRequest
	if withBody && r.ContentLength != 0 {
		if !h.decode(w, r, operation, &req) {
			return
		}
	}
	row, err := fn(r.Context(), actorFromContext(r.Context()), application.PayoutTransitionInput{
		PayoutID:         urlParam(r, "payout_id"),
		PaymentReference: req.PaymentReference,
		FailureReason:    req.FailureReason,
	})
	if err != nil {
		h.fail(w, r, operation, err)
		return
	}
	writeSuccess(w, http.StatusOK, toPayoutResponse(row))
}
