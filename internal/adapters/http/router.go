package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type RouterOptions struct {
	Auth       *Authenticator
	Ready      func(ctx context.Context) error
	Metrics    http.Handler
	Observer   HTTPObserver
	ClickRate  float64
	ClickBurst int
}

func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	if opts.Auth == nil {
		opts.Auth = NewAuthenticator("")
	}
	if opts.ClickRate <= 0 {
		opts.ClickRate = 5
	}
	if opts.ClickBurst <= 0 {
		opts.ClickBurst = 20
	}
	public := newIPRateLimiter(opts.ClickRate, opts.ClickBurst)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	if opts.Observer != nil {
		r.Use(metricsMiddleware(opts.Observer))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready != nil {
			if err := opts.Ready(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
				return
			}
		}
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.With(public.Middleware).Get("/r/{code}", handler.trackClick)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(opts.Auth.Middleware)
			r.Post("/partners", handler.applyPartner)
			r.Get("/partners/me", handler.getMe)
			r.Patch("/partners/me/settings", handler.updateSettings)
			r.Get("/partners/me/dashboard", handler.getDashboard)
			r.Get("/partners/me/referrals", handler.listReferrals)
			r.Get("/partners/me/earnings", handler.listEarnings)
			r.Get("/partners/me/funnel", handler.getFunnel)
			r.Get("/partners/me/tier", handler.getTierProgress)
			r.Post("/partners/me/payouts", handler.requestPayout)
			r.Get("/partners/me/payouts", handler.listPayouts)
			r.Get("/payouts/{payout_id}", handler.getPayout)
			r.Post("/payouts/{payout_id}/cancel", handler.cancelPayout)
			r.Get("/payouts/{payout_id}/invoice", handler.getInvoice)
			r.Get("/leaderboard", handler.getLeaderboard)
		})
		r.Group(func(r chi.Router) {
			r.Use(opts.Auth.Middleware)
			r.Use(requireRoles("admin"))
			r.Get("/admin/partners/{partner_id}", handler.getPartner)
			r.Post("/admin/partners/{partner_id}/approve", handler.approvePartner)
			r.Post("/admin/partners/{partner_id}/suspend", handler.suspendPartner)
			r.Post("/admin/partners/{partner_id}/reactivate", handler.reactivatePartner)
			r.Post("/admin/partners/{partner_id}/milestones/evaluate", handler.evaluateMilestones)
			r.Get("/admin/partners/{partner_id}/audit-logs", handler.listAuditLogs)
			r.Post("/admin/payouts/{payout_id}/processing", handler.startProcessing)
			r.Post("/admin/payouts/{payout_id}/complete", handler.completePayout)
			r.Post("/admin/payouts/{payout_id}/fail", handler.failPayout)
		})
	})

	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(opts.Auth.Middleware)
		r.Use(requireRoles("system", "admin"))
		r.Post("/events", handler.ingestEvent)
		r.With(public.Middleware).Post("/signups", handler.recordSignup)
		r.Post("/conversions", handler.recordConversion)
		r.Post("/payouts/rail", handler.applyRailUpdate)
	})
	return r
}

func urlParam(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}
