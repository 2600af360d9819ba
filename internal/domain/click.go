package domain

import "time"

// Click is a tracked visit through a referral link. Its id is the value of
// the attribution cookie.
type Click struct {
	ClickID       string    `json:"click_id"`
	PartnerID     string    `json:"partner_id"`
	ReferralCode  string    `json:"referral_code"`
	UTM           UTM       `json:"utm"`
	ReferrerURL   string    `json:"referrer_url,omitempty"`
	IPHash        string    `json:"ip_hash,omitempty"`
	UserAgentHash string    `json:"user_agent_hash,omitempty"`
	ClickedAt     time.Time `json:"clicked_at"`
}

// WithinWindow reports whether a signup at signupAt may still be attributed
// through this click.
func (c Click) WithinWindow(window time.Duration, signupAt time.Time) bool {
	if signupAt.Before(c.ClickedAt) {
		return true
	}
	return signupAt.Sub(c.ClickedAt) <= window
}

type AuditLog struct {
	AuditLogID string            `json:"audit_log_id"`
	PartnerID  string            `json:"partner_id"`
	Action     string            `json:"action"`
	ActorID    string            `json:"actor_id"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
