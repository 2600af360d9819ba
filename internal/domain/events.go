package domain

const (
	CanonicalEventClassDomain        = "domain"
	CanonicalEventClassAnalyticsOnly = "analytics_only"
	CanonicalEventClassOps           = "ops"
)

const (
	EventReferralAttributed = "partner.referral.attributed"
	EventReferralCredited   = "partner.referral.credited"
	EventReferralExpired    = "partner.referral.expired"
	EventMilestoneAwarded   = "partner.milestone.awarded"
	EventTierChanged        = "partner.tier.changed"
	EventPayoutRequested    = "partner.payout.requested"
	EventPayoutCompleted    = "partner.payout.completed"
	EventPayoutFailed       = "partner.payout.failed"
	EventPayoutCancelled    = "partner.payout.cancelled"
	EventClickTracked       = "partner.click.tracked"
)

const (
	EventSignupCompleted    = "directory.signup.completed"
	EventPaymentSucceeded   = "billing.payment.succeeded"
	EventPayoutRailUpdated  = "payout.rail.updated"
	EventMilestonesEvaluate = "partner.milestones.evaluate"
)

func IsCanonicalInputEvent(eventType string) bool {
	switch eventType {
	case EventSignupCompleted, EventPaymentSucceeded, EventPayoutRailUpdated, EventMilestonesEvaluate:
		return true
	default:
		return false
	}
}

func IsCanonicalEmittedEvent(eventType string) bool {
	switch eventType {
	case EventReferralAttributed, EventReferralCredited, EventReferralExpired, EventMilestoneAwarded, EventTierChanged,
		EventPayoutRequested, EventPayoutCompleted, EventPayoutFailed, EventPayoutCancelled, EventClickTracked:
		return true
	default:
		return false
	}
}

func CanonicalEventClass(eventType string) string {
	switch {
	case eventType == EventClickTracked:
		return CanonicalEventClassAnalyticsOnly
	case IsCanonicalEmittedEvent(eventType):
		return CanonicalEventClassDomain
	default:
		return ""
	}
}

func CanonicalPartitionKeyPath(eventType string) string {
	if IsCanonicalEmittedEvent(eventType) || IsCanonicalInputEvent(eventType) {
		return "data.partner_id"
	}
	return ""
}
