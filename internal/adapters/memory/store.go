package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

var errReadOnly = errors.New("memory store: write inside read-only view")

type record[T any] struct {
	row T
	seq int64
}

// state is one consistent snapshot of every table. Transactions work on a
// copy and swap it in on success.
type state struct {
	seq       int64
	partners  map[string]record[domain.Partner]
	referrals map[string]record[domain.Referral]
	earnings  map[string]record[domain.Earning]
	payouts   map[string]record[domain.Payout]
	awards    map[string]record[domain.MilestoneAward]
	invoices  map[string]record[domain.Invoice]
	clicks    map[string]record[domain.Click]
	audit     []domain.AuditLog
	outbox    []ports.OutboxRecord
}

func newState() *state {
	return &state{
		partners:  map[string]record[domain.Partner]{},
		referrals: map[string]record[domain.Referral]{},
		earnings:  map[string]record[domain.Earning]{},
		payouts:   map[string]record[domain.Payout]{},
		awards:    map[string]record[domain.MilestoneAward]{},
		invoices:  map[string]record[domain.Invoice]{},
		clicks:    map[string]record[domain.Click]{},
		audit:     []domain.AuditLog{},
		outbox:    []ports.OutboxRecord{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:       s.seq,
		partners:  maps.Clone(s.partners),
		referrals: maps.Clone(s.referrals),
		earnings:  maps.Clone(s.earnings),
		payouts:   maps.Clone(s.payouts),
		awards:    maps.Clone(s.awards),
		invoices:  maps.Clone(s.invoices),
		clicks:    maps.Clone(s.clicks),
		audit:     slices.Clone(s.audit),
		outbox:    slices.Clone(s.outbox),
	}
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store serializes every transaction behind one mutex, which also stands in
// for the partner row lock.
type Store struct {
	mu    sync.RWMutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &tx{st: s.state, readOnly: true})
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

type tx struct {
	st       *state
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *tx) Partners() ports.PartnerRepository      { return partnerRepo{t} }
func (t *tx) Referrals() ports.ReferralRepository    { return referralRepo{t} }
func (t *tx) Earnings() ports.EarningRepository      { return earningRepo{t} }
func (t *tx) Payouts() ports.PayoutRepository        { return payoutRepo{t} }
func (t *tx) Awards() ports.MilestoneAwardRepository { return awardRepo{t} }
func (t *tx) Invoices() ports.InvoiceRepository      { return invoiceRepo{t} }
func (t *tx) Clicks() ports.ClickRepository          { return clickRepo{t} }
func (t *tx) AuditLogs() ports.AuditLogRepository    { return auditRepo{t} }
func (t *tx) Outbox() ports.OutboxRepository         { return outboxRepo{t} }

var _ ports.Store = (*Store)(nil)
