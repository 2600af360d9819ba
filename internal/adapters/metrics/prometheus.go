package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

const namespace = "partner_engine"

// Prometheus owns a private registry so tests can build as many as they like.
type Prometheus struct {
	registry *prometheus.Registry

	referralsAttributed *prometheus.CounterVec
	commissionsCredited *prometheus.CounterVec
	commissionAmount    *prometheus.CounterVec
	milestonesAwarded   *prometheus.CounterVec
	payoutTransitions   *prometheus.CounterVec
	tierChanges         *prometheus.CounterVec
	referralsExpired    prometheus.Counter
	eventsConsumed      *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		referralsAttributed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referrals_attributed_total",
			Help:      "Signup attribution decisions by outcome.",
		}, []string{"outcome"}),
		commissionsCredited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commissions_credited_total",
			Help:      "Earnings credited by kind.",
		}, []string{"kind"}),
		commissionAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commission_amount_total",
			Help:      "Credited earnings amount by kind.",
		}, []string{"kind"}),
		milestonesAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "milestones_awarded_total",
			Help:      "Milestone bonuses awarded.",
		}, []string{"milestone_id"}),
		payoutTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_transitions_total",
			Help:      "Payout state transitions by target status.",
		}, []string{"status"}),
		tierChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_changes_total",
			Help:      "Tier promotions by new tier.",
		}, []string{"tier"}),
		referralsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referrals_expired_total",
			Help:      "Pending referrals closed by the expiry sweep.",
		}),
		eventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Input events handled by type and outcome.",
		}, []string{"event_type", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_time_seconds",
			Help:      "Histogram of response times.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		registry: reg,
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.referralsAttributed, p.commissionsCredited, p.commissionAmount, p.milestonesAwarded,
		p.payoutTransitions, p.tierChanges, p.referralsExpired, p.eventsConsumed,
		p.httpRequests, p.httpDuration,
	)
	return p
}

func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) ReferralAttributed(outcome string) {
	p.referralsAttributed.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) CommissionCredited(kind string, amount float64) {
	p.commissionsCredited.WithLabelValues(kind).Inc()
	p.commissionAmount.WithLabelValues(kind).Add(amount)
}

func (p *Prometheus) MilestoneAwarded(milestoneID string) {
	p.milestonesAwarded.WithLabelValues(milestoneID).Inc()
}

func (p *Prometheus) PayoutTransition(status string) {
	p.payoutTransitions.WithLabelValues(status).Inc()
}

func (p *Prometheus) TierChanged(tier string) {
	p.tierChanges.WithLabelValues(tier).Inc()
}

func (p *Prometheus) ReferralsExpired(n int) {
	if n > 0 {
		p.referralsExpired.Add(float64(n))
	}
}

func (p *Prometheus) EventConsumed(eventType, outcome string) {
	p.eventsConsumed.WithLabelValues(eventType, outcome).Inc()
}

// ObserveHTTP records one finished request. route is the matched pattern,
// never the raw path, to keep label cardinality bounded.
func (p *Prometheus) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

var _ ports.Metrics = (*Prometheus)(nil)
