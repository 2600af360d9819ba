package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

const referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newID(prefix string) string { return prefix + uuid.NewString() }

func isAdmin(actor Actor) bool  { return strings.ToLower(strings.TrimSpace(actor.Role)) == "admin" }
func isSystem(actor Actor) bool { return strings.ToLower(strings.TrimSpace(actor.Role)) == "system" }
func sha256Hex(v string) string {
	if v == "" {
		return ""
	}
	h := sha256.Sum256([]byte(v))
	return hex.EncodeToString(h[:])
}
func hashJSON(v any) string {
	raw, _ := json.Marshal(v)
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}

func randomReferralCode(n int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(referralCodeAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

func requireSubject(actor Actor) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	return nil
}

func requireAdmin(actor Actor) error {
	if err := requireSubject(actor); err != nil {
		return err
	}
	if !isAdmin(actor) && !isSystem(actor) {
		return domain.ErrForbidden
	}
	return nil
}

// partnerForActor resolves the partner an actor may act on. An empty
// partnerID means the actor's own partner account.
func (s *Service) partnerForActor(ctx context.Context, tx ports.Tx, actor Actor, partnerID string) (domain.Partner, error) {
	if err := requireSubject(actor); err != nil {
		return domain.Partner{}, err
	}
	partnerID = strings.TrimSpace(partnerID)
	if partnerID == "" {
		return tx.Partners().GetByUserID(ctx, actor.SubjectID)
	}
	p, err := tx.Partners().GetByID(ctx, partnerID)
	if err != nil {
		return domain.Partner{}, err
	}
	if p.UserID != actor.SubjectID && !isAdmin(actor) && !isSystem(actor) {
		return domain.Partner{}, domain.ErrForbidden
	}
	return p, nil
}

func (s *Service) appendAudit(ctx context.Context, tx ports.Tx, partnerID, action, actorID, reason string, meta map[string]string) error {
	return tx.AuditLogs().Append(ctx, domain.AuditLog{
		AuditLogID: newID("audit_"),
		PartnerID:  partnerID,
		Action:     action,
		ActorID:    actorID,
		Reason:     reason,
		Metadata:   meta,
		CreatedAt:  s.nowFn(),
	})
}

// savePartner checks the ledger equation before persisting so a broken
// balance never commits.
func (s *Service) savePartner(ctx context.Context, tx ports.Tx, p *domain.Partner) error {
	if err := p.CheckBalances(); err != nil {
		return err
	}
	p.Version++
	p.UpdatedAt = s.nowFn()
	return tx.Partners().Update(ctx, *p)
}

// afterCommit refreshes the read-side caches of partners touched by a
// committed transaction. Failures only cost freshness.
func (s *Service) afterCommit(ctx context.Context, partners ...domain.Partner) {
	for _, p := range partners {
		if p.PartnerID == "" {
			continue
		}
		if s.dashboards != nil {
			if err := s.dashboards.Invalidate(ctx, p.PartnerID); err != nil {
				s.logger.WarnContext(ctx, "dashboard cache invalidation failed", "operation", "after_commit", "outcome", "degraded", "partner_id", p.PartnerID, "error", err)
			}
		}
		if s.leaderboard == nil {
			continue
		}
		var err error
		if p.LeaderboardOptIn && p.Status == domain.PartnerStatusActive {
			err = s.leaderboard.Upsert(ctx, p.PartnerID, p.LifetimeReferrals)
		} else {
			err = s.leaderboard.Remove(ctx, p.PartnerID)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "leaderboard sync failed", "operation", "after_commit", "outcome", "degraded", "partner_id", p.PartnerID, "error", err)
		}
	}
}

func (s *Service) getIdempotent(ctx context.Context, key, expectedHash string) ([]byte, bool, error) {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return nil, false, nil
	}
	rec, err := s.idempotency.Get(ctx, key, s.nowFn())
	if err != nil || rec == nil {
		return nil, false, err
	}
	if rec.RequestHash != expectedHash {
		return nil, false, domain.ErrIdempotencyConflict
	}
	if len(rec.ResponseBody) == 0 {
		return nil, false, nil
	}
	return rec.ResponseBody, true, nil
}

// idempotencyLease bounds how long an unanswered claim blocks its key, so a
// crash between Reserve and Complete does not wedge the client.
const idempotencyLease = 2 * time.Minute

func (s *Service) reserveIdempotency(ctx context.Context, key, requestHash string) error {
	if s.idempotency == nil {
		return nil
	}
	now := s.nowFn()
	return s.idempotency.Reserve(ctx, key, requestHash, now, now.Add(idempotencyLease))
}

func (s *Service) completeIdempotencyJSON(ctx context.Context, key string, code int, v any) error {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	raw, _ := json.Marshal(v)
	return s.idempotency.Complete(ctx, key, code, raw, s.nowFn().Add(s.cfg.IdempotencyTTL))
}

func (s *Service) releaseIdempotency(ctx context.Context, key string) {
	if s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "idempotency release failed", "operation", "release_idempotency", "outcome", "degraded", "error", err)
	}
}

// idempotent runs op once per client key. A replay with the same payload
// returns the stored response, a different payload is a conflict and a
// replay racing the first request gets ErrIdempotencyInProgress. A failed op
// releases its claim so the client can retry with the same key.
func idempotent[T any](ctx context.Context, s *Service, actor Actor, code int, request map[string]any, op func() (T, error)) (T, error) {
	var zero T
	key := actor.IdempotencyKey
	if strings.TrimSpace(key) == "" {
		return zero, domain.ErrIdempotencyRequired
	}
	requestHash := hashJSON(request)
	replay := func() (T, bool, error) {
		raw, ok, err := s.getIdempotent(ctx, key, requestHash)
		if err != nil || !ok {
			return zero, false, err
		}
		var out T
		if err := json.Unmarshal(raw, &out); err != nil {
			return zero, false, err
		}
		return out, true, nil
	}
	if out, ok, err := replay(); err != nil || ok {
		return out, err
	}
	if err := s.reserveIdempotency(ctx, key, requestHash); err != nil {
		if errors.Is(err, domain.ErrIdempotencyInProgress) {
			// The first request may have completed since the lookup above.
			if out, ok, rerr := replay(); rerr != nil || ok {
				return out, rerr
			}
		}
		return zero, err
	}
	out, err := op()
	if err != nil {
		s.releaseIdempotency(context.WithoutCancel(ctx), key)
		return zero, err
	}
	if err := s.completeIdempotencyJSON(ctx, key, code, out); err != nil {
		s.logger.WarnContext(ctx, "idempotency completion failed", "operation", "complete_idempotency", "outcome", "degraded", "error", err)
	}
	return out, nil
}

// isDomainError is true for the business outcomes that event paths log and
// absorb instead of retrying.
func isDomainError(err error) bool {
	for _, target := range []error{
		domain.ErrAttributionDenied, domain.ErrDuplicateAttribution, domain.ErrInvalidStateTransition,
		domain.ErrInsufficientBalance, domain.ErrBelowMinimumThreshold, domain.ErrPartnerNotActive,
		domain.ErrUnknownMilestone, domain.ErrNotFound, domain.ErrInvalidInput, domain.ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
