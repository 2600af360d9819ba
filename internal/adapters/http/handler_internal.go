package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/application"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

// ingestEvent accepts one canonical envelope over HTTP for producers that
// cannot reach the broker.
func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var envelope contracts.EventEnvelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&envelope); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body")
		return
	}
	if err := h.service.HandleCanonicalEvent(r.Context(), envelope); err != nil {
		h.fail(w, r, "ingest_event", err)
		return
	}
	writeSuccess(w, http.StatusAccepted, map[string]string{"event_id": envelope.EventID, "status": "accepted"})
}

func (h *Handler) recordSignup(w http.ResponseWriter, r *http.Request) {
	var req contracts.SignupRequest
	if !h.decode(w, r, "record_signup", &req) {
		return
	}
	clickID := req.ClickID
	if clickID == "" {
		clickID = cookieValue(r, referralCookie)
	}
	out, err := h.service.HandleSignup(r.Context(), application.SignupInput{
		ReferredIdentity: req.Email,
		UserID:           req.UserID,
		ReferralCode:     req.ReferralCode,
		ClickID:          clickID,
		UTM:              domain.UTM{Source: req.UTMSource, Medium: req.UTMMedium, Campaign: req.UTMCampaign},
		SignedUpAt:       time.Now().UTC(),
		TraceID:          requestIDFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, r, "record_signup", err)
		return
	}
	resp := contracts.AttributionResponse{Outcome: string(out.Outcome)}
	if out.Referral != nil {
		ref := toReferralResponse(*out.Referral)
		resp.Referral = &ref
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) recordConversion(w http.ResponseWriter, r *http.Request) {
	var req contracts.ConversionRequest
	if !h.decode(w, r, "record_conversion", &req) {
		return
	}
	amount, err := domain.ParseMoney(req.Amount)
	if err != nil {
		h.fail(w, r, "record_conversion", err)
		return
	}
	out, err := h.service.RecordConversion(r.Context(), application.ConversionInput{
		ReferralID:       req.ReferralID,
		ReferredIdentity: req.ReferredIdentity,
		PaymentID:        req.PaymentID,
		Amount:           amount,
		PaidAt:           time.Now().UTC(),
		TraceID:          requestIDFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, r, "record_conversion", err)
		return
	}
	resp := contracts.ConversionResponse{Outcome: string(out.Outcome), Referral: toReferralResponse(out.Referral)}
	if out.Earning != nil {
		e := toEarningResponse(*out.Earning)
		resp.Earning = &e
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) applyRailUpdate(w http.ResponseWriter, r *http.Request) {
	var req contracts.RailUpdateRequest
	if !h.decode(w, r, "apply_rail_update", &req) {
		return
	}
	row, err := h.service.ApplyRailUpdate(r.Context(), application.RailUpdateInput{
		PayoutID:         req.PayoutID,
		Status:           req.Status,
		PaymentReference: req.PaymentReference,
		FailureReason:    req.FailureReason,
		TraceID:          requestIDFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, r, "apply_rail_update", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPayoutResponse(row))
}
