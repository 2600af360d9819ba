package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/application"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
)

const (
	referralCookie = "partner_ref"
	maxBodyBytes   = 1 << 20
)

type Handler struct {
	service  *application.Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service *application.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, validate: validator.New(validator.WithRequiredStructEnabled()), logger: logger}
}

// decode reads a JSON body into dst and runs its validate tags. It writes
// the 400 itself and reports false when the request is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, operation string, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		logHTTPOperationError(r.Context(), h.logger, operation, http.StatusBadRequest, err)
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		logHTTPOperationError(r.Context(), h.logger, operation, http.StatusBadRequest, err)
		writeError(w, http.StatusBadRequest, "invalid_input", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, code := mapDomainError(err)
	logHTTPOperationError(r.Context(), h.logger, operation, status, err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = "internal error"
	}
	writeError(w, status, code, message)
}

func listInput(r *http.Request) application.ListInput {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return application.ListInput{
		PartnerID: strings.TrimSpace(q.Get("partner_id")),
		Status:    strings.TrimSpace(q.Get("status")),
		Limit:     limit,
		Offset:    offset,
	}
}

func (h *Handler) trackClick(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.service.TrackClick(r.Context(), application.TrackClickInput{
		ReferralCode: urlParam(r, "code"),
		UTM:          domain.UTM{Source: q.Get("utm_source"), Medium: q.Get("utm_medium"), Campaign: q.Get("utm_campaign")},
		ReferrerURL:  strings.TrimSpace(r.Header.Get("Referer")),
		ClientIP:     clientIP(r),
		UserAgent:    strings.TrimSpace(r.UserAgent()),
	})
	if err != nil {
		h.fail(w, r, "track_click", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     referralCookie,
		Value:    out.ClickID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(out.CookieMaxAge.Seconds()),
	})
	http.Redirect(w, r, out.RedirectURL, http.StatusFound)
}

func (h *Handler) applyPartner(w http.ResponseWriter, r *http.Request) {
	var req contracts.ApplyPartnerRequest
	if !h.decode(w, r, "apply_partner", &req) {
		return
	}
	row, err := h.service.ApplyPartner(r.Context(), actorFromContext(r.Context()), application.ApplyPartnerInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.fail(w, r, "apply_partner", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toPartnerResponse(row, h.service.Config().PublicBaseURL))
}

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	h.getPartnerByID(w, r, "")
}

func (h *Handler) getPartner(w http.ResponseWriter, r *http.Request) {
	h.getPartnerByID(w, r, urlParam(r, "partner_id"))
}

func (h *Handler) getPartnerByID(w http.ResponseWriter, r *http.Request, partnerID string) {
	row, err := h.service.GetPartner(r.Context(), actorFromContext(r.Context()), partnerID)
	if err != nil {
		h.fail(w, r, "get_partner", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPartnerResponse(row, h.service.Config().PublicBaseURL))
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req contracts.UpdateSettingsRequest
	if !h.decode(w, r, "update_settings", &req) {
		return
	}
	row, err := h.service.UpdateSettings(r.Context(), actorFromContext(r.Context()), application.UpdateSettingsInput{
		CookieDurationDays:     req.CookieDurationDays,
		LeaderboardOptIn:       req.LeaderboardOptIn,
		NotificationPreference: req.NotificationPreference,
		MinimumPayoutThreshold: req.MinimumPayoutThreshold,
	})
	if err != nil {
		h.fail(w, r, "update_settings", err)
		return
	}
	writeSuccess(w, http.StatusOK, toPartnerResponse(row, h.service.Config().PublicBaseURL))
}

func (h *Handler) getDashboard(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.GetDashboard(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "get_dashboard", err)
		return
	}
	writeSuccess(w, http.StatusOK, contracts.DashboardResponse{
		Partner:    toPartnerResponse(out.Partner, h.service.Config().PublicBaseURL),
		Tier:       toTierProgressResponse(out.Tier),
		Milestones: toMilestoneProgress(out.Milestones),
		Funnel:     toFunnelCounts(out.Funnel),
	})
}

func (h *Handler) listReferrals(w http.ResponseWriter, r *http.Request) {
	in := listInput(r)
	page, err := h.service.ListReferrals(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, r, "list_referrals", err)
		return
	}
	items := make([]contracts.ReferralResponse, 0, len(page.Items))
	for _, row := range page.Items {
		items = append(items, toReferralResponse(row))
	}
	writeSuccess(w, http.StatusOK, contracts.ListResponse[contracts.ReferralResponse]{Items: items, Total: page.Total, Limit: page.Limit, Offset: page.Offset})
}

func (h *Handler) listEarnings(w http.ResponseWriter, r *http.Request) {
	in := listInput(r)
	page, err := h.service.ListEarnings(r.Context(), actorFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, r, "list_earnings", err)
		return
	}
	items := make([]contracts.EarningResponse, 0, len(page.Items))
	for _, row := range page.Items {
		items = append(items, toEarningResponse(row))
	}
	writeSuccess(w, http.StatusOK, contracts.ListResponse[contracts.EarningResponse]{Items: items, Total: page.Total, Limit: page.Limit, Offset: page.Offset})
}

func (h *Handler) getFunnel(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.GetFunnel(r.Context(), actorFromContext(r.Context()), r.URL.Query().Get("partner_id"))
	if err != nil {
		h.fail(w, r, "get_funnel", err)
		return
	}
	writeSuccess(w, http.StatusOK, toFunnelResponse(out))
}

func (h *Handler) getTierProgress(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.GetTierProgress(r.Context(), actorFromContext(r.Context()), r.URL.Query().Get("partner_id"))
	if err != nil {
		h.fail(w, r, "get_tier_progress", err)
		return
	}
	writeSuccess(w, http.StatusOK, toTierProgressResponse(out))
}

func (h *Handler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.service.GetLeaderboard(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "get_leaderboard", err)
		return
	}
	items := make([]contracts.LeaderboardEntryResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, contracts.LeaderboardEntryResponse{
			Rank: row.Rank, PartnerID: row.PartnerID, DisplayName: row.DisplayName, Tier: row.Tier, LifetimeReferrals: row.LifetimeReferrals,
		})
	}
	writeSuccess(w, http.StatusOK, items)
}
