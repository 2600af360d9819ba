package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, contracts.SuccessResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, contracts.ErrorResponse{Status: "error", Code: code, Message: message})
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrPartnerNotActive, http.StatusForbidden, "partner_not_active"},
	{domain.ErrAttributionDenied, http.StatusForbidden, "attribution_denied"},
	{domain.ErrUnknownMilestone, http.StatusNotFound, "unknown_milestone"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{domain.ErrBelowMinimumThreshold, http.StatusUnprocessableEntity, "below_minimum_threshold"},
	{domain.ErrUnallocatableAmount, http.StatusUnprocessableEntity, "amount_not_allocatable"},
	{domain.ErrDuplicateAttribution, http.StatusConflict, "duplicate_attribution"},
	{domain.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
	{domain.ErrIdempotencyRequired, http.StatusBadRequest, "idempotency_key_required"},
	{domain.ErrIdempotencyConflict, http.StatusConflict, "idempotency_conflict"},
	{domain.ErrIdempotencyInProgress, http.StatusConflict, "idempotency_in_progress"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrInvalidEnvelope, http.StatusBadRequest, "invalid_input"},
	{domain.ErrUnsupportedEventType, http.StatusBadRequest, "unsupported_event_type"},
	{domain.ErrConsistencyViolation, http.StatusInternalServerError, "consistency_violation"},
}

func mapDomainError(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	for _, row := range errorTable {
		if errors.Is(err, row.err) {
			return row.status, row.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}
