package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

const (
	dashboardKeyPrefix = "partner:dashboard:"
	leaderboardKey     = "partner:leaderboard"
	generationTTL      = 24 * time.Hour
)

// setIfGeneration writes the dashboard only while the generation counter
// still holds the value the caller read before building it.
var setIfGeneration = redis.NewScript(`
local current = redis.call("GET", KEYS[1]) or "0"
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[2], ARGV[2])
end
return 1
`)

// RedisDashboardCache keeps serialized dashboards under a per-partner key
// next to a generation counter. Both keys share a hash tag so the script
// runs on one cluster slot.
type RedisDashboardCache struct {
	client *redis.Client
}

func dashboardKey(partnerID string) string  { return dashboardKeyPrefix + "{" + partnerID + "}" }
func generationKey(partnerID string) string { return dashboardKeyPrefix + "gen:{" + partnerID + "}" }

func NewRedisDashboardCache(client *redis.Client) *RedisDashboardCache {
	return &RedisDashboardCache{client: client}
}

func (c *RedisDashboardCache) Get(ctx context.Context, partnerID string) ([]byte, error) {
	raw, err := c.client.Get(ctx, dashboardKey(partnerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return raw, err
}

func (c *RedisDashboardCache) Generation(ctx context.Context, partnerID string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(partnerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisDashboardCache) Set(ctx context.Context, partnerID string, generation int64, raw []byte, ttl time.Duration) error {
	keys := []string{generationKey(partnerID), dashboardKey(partnerID)}
	return setIfGeneration.Run(ctx, c.client, keys, generation, raw, ttl.Milliseconds()).Err()
}

func (c *RedisDashboardCache) Invalidate(ctx context.Context, partnerID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(partnerID))
		pipe.Expire(ctx, generationKey(partnerID), generationTTL)
		pipe.Del(ctx, dashboardKey(partnerID))
		return nil
	})
	return err
}

// RedisLeaderboard ranks partners in a sorted set scored by lifetime
// referrals.
type RedisLeaderboard struct {
	client *redis.Client
}

func NewRedisLeaderboard(client *redis.Client) *RedisLeaderboard {
	return &RedisLeaderboard{client: client}
}

func (l *RedisLeaderboard) Upsert(ctx context.Context, partnerID string, lifetimeReferrals int) error {
	return l.client.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(lifetimeReferrals), Member: partnerID}).Err()
}

func (l *RedisLeaderboard) Remove(ctx context.Context, partnerID string) error {
	return l.client.ZRem(ctx, leaderboardKey, partnerID).Err()
}

func (l *RedisLeaderboard) Top(ctx context.Context, limit int) ([]ports.LeaderboardEntry, error) {
	if limit <= 0 {
		return []ports.LeaderboardEntry{}, nil
	}
	rows, err := l.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ports.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		id, ok := row.Member.(string)
		if !ok {
			continue
		}
		out = append(out, ports.LeaderboardEntry{PartnerID: id, LifetimeReferrals: int(row.Score)})
	}
	return out, nil
}

var (
	_ ports.DashboardCache = (*RedisDashboardCache)(nil)
	_ ports.Leaderboard    = (*RedisLeaderboard)(nil)
)
