package http

import (
	"context"
	"net/http"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/application"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

type partnerStatusFunc func(ctx context.Context, actor application.Actor, in application.PartnerStatusInput) (domain.Partner, error)

func (h *Handler) approvePartner(w http.ResponseWriter, r *http.Request) {
	h.changePartnerStatus(w, r, "approve_partner", h.service.ApprovePartner)
}

func (h *Handler) suspendPartner(w http.ResponseWriter, r *http.Request) {
	h.changePartnerStatus(w, r, "suspend_partner", h.service.SuspendPartner)
}

func (h *Handler) reactivatePartner(w http.ResponseWriter, r *http.Request) {
	h.changePartnerStatus(w, r, "reactivate_partner", h.service.ReactivatePartner)
}

func (h *Handler) changePartnerStatus(w http.ResponseWriter, r *http.Request, operation string, fn partnerStatusFunc) {
	var req contracts.PartnerStatusRequest
	if r.ContentLength != 0 && !h.decode(w, r, operation, &req) {
		return
	}
	row, err := fn(r.Context(), actorFromContext(r.Context()), application.PartnerStatusInput{
		PartnerID: urlParam(r, "partner_id"),
		Reason:    req.Reason,
	})
	if err != nil {
		h.fail(w, r, operation, err)
		return
	}
	writeSuccess(w, http.StatusOK, toPartnerResponse(row, h.service.Config().PublicBaseURL))
}

func (h *Handler) evaluateMilestones(w http.ResponseWriter, r *http.Request) {
	var req contracts.EvaluateMilestonesRequest
	if r.ContentLength != 0 && !h.decode(w, r, "evaluate_milestones", &req) {
		return
	}
	actor := actorFromContext(r.Context())
	partnerID := urlParam(r, "partner_id")
	var awards []domain.MilestoneAward
	if req.MilestoneID != "" {
		award, err := h.service.EvaluateMilestone(r.Context(), actor, partnerID, req.MilestoneID)
		if err != nil {
			h.fail(w, r, "evaluate_milestones", err)
			return
		}
		if award != nil {
			awards = append(awards, *award)
		}
	} else {
		rows, err := h.service.EvaluateMilestones(r.Context(), actor, partnerID)
		if err != nil {
			h.fail(w, r, "evaluate_milestones", err)
			return
		}
		awards = rows
	}
	items := make([]contracts.MilestoneAwardResponse, 0, len(awards))
	for _, a := range awards {
		items = append(items, toAwardResponse(a))
	}
	writeSuccess(w, http.StatusOK, items)
}

func (h *Handler) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListAuditLogs(r.Context(), actorFromContext(r.Context()), urlParam(r, "partner_id"))
	if err != nil {
		h.fail(w, r, "list_audit_logs", err)
		return
	}
	items := make([]contracts.AuditLogResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, contracts.AuditLogResponse{
			AuditLogID: row.AuditLogID,
			Action:     row.Action,
			ActorID:    row.ActorID,
			Reason:     row.Reason,
			Metadata:   row.Metadata,
			CreatedAt:  formatTime(row.CreatedAt),
		})
	}
	writeSuccess(w, http.StatusOK, items)
}
