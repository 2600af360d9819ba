package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

// MemoryDashboardCache is the process-local fallback when no redis is
// configured.
type MemoryDashboardCache struct {
	mu    sync.Mutex
	rows  map[string]memoryEntry
	gens  map[string]int64
	nowFn func() time.Time
}

func NewMemoryDashboardCache() *MemoryDashboardCache {
	return &MemoryDashboardCache{rows: map[string]memoryEntry{}, gens: map[string]int64{}, nowFn: time.Now}
}

func (c *MemoryDashboardCache) Get(_ context.Context, partnerID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.rows[partnerID]
	if !ok {
		return nil, nil
	}
	if !row.expiresAt.IsZero() && c.nowFn().After(row.expiresAt) {
		delete(c.rows, partnerID)
		return nil, nil
	}
	return append([]byte(nil), row.raw...), nil
}

func (c *MemoryDashboardCache) Generation(_ context.Context, partnerID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[partnerID], nil
}

func (c *MemoryDashboardCache) Set(_ context.Context, partnerID string, generation int64, raw []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[partnerID] != generation {
		return nil
	}
	entry := memoryEntry{raw: append([]byte(nil), raw...)}
	if ttl > 0 {
		entry.expiresAt = c.nowFn().Add(ttl)
	}
	c.rows[partnerID] = entry
	return nil
}

func (c *MemoryDashboardCache) Invalidate(_ context.Context, partnerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[partnerID]++
	delete(c.rows, partnerID)
	return nil
}

type MemoryLeaderboard struct {
	mu     sync.Mutex
	scores map[string]int
}

func NewMemoryLeaderboard() *MemoryLeaderboard {
	return &MemoryLeaderboard{scores: map[string]int{}}
}

func (l *MemoryLeaderboard) Upsert(_ context.Context, partnerID string, lifetimeReferrals int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scores[partnerID] = lifetimeReferrals
	return nil
}

func (l *MemoryLeaderboard) Remove(_ context.Context, partnerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.scores, partnerID)
	return nil
}

// Top orders like a redis ZREVRANGE: score descending, then member
// descending.
func (l *MemoryLeaderboard) Top(_ context.Context, limit int) ([]ports.LeaderboardEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ports.LeaderboardEntry, 0, len(l.scores))
	for id, score := range l.scores {
		out = append(out, ports.LeaderboardEntry{PartnerID: id, LifetimeReferrals: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LifetimeReferrals != out[j].LifetimeReferrals {
			return out[i].LifetimeReferrals > out[j].LifetimeReferrals
		}
		return out[i].PartnerID > out[j].PartnerID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ ports.DashboardCache = (*MemoryDashboardCache)(nil)
	_ ports.Leaderboard    = (*MemoryLeaderboard)(nil)
)
