package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"citypee/internal/domain"
	"citypee/pkg/redis"
)

// reserveScript trims the window, counts it and adds ARGV[4] only while the
// count is under the limit, all in one step.
// KEYS[1] window key; ARGV: cutoff score, now score, limit, member, window ms.
// Returns {allowed, count before adding, oldest score or ""}.
var reserveScript = goredis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[1])
local count = redis.call('ZCARD', key)
local oldest = ''
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #first > 0 then
  oldest = first[2]
end
if count < tonumber(ARGV[3]) then
  redis.call('ZADD', key, ARGV[2], ARGV[4])
  redis.call('PEXPIRE', key, ARGV[5])
  return {1, count, oldest}
end
return {0, count, oldest}
`)

// RedisLimiter stores submission times in a sorted set per hashed IP, so
// the quota is shared by every instance pointing at the same Redis.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
}

// Check implements Limiter.
func (l *RedisLimiter) Check(ctx context.Context, ip string) (*domain.RateLimitInfo, error) {
	now := l.now()
	key := l.key(ip)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", l.cutoffScore(now))
	card := pipe.ZCard(ctx, key)
	first := pipe.ZRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("failed to read rate limit window: %w", err)
	}

	var oldest time.Time
	if zs := first.Val(); len(zs) > 0 {
		oldest = time.UnixMilli(int64(zs[0].Score))
	}
	return buildInfo(ip, l.cfg, int(card.Val()), oldest, now), nil
}

// Reserve implements Limiter.
func (l *RedisLimiter) Reserve(ctx context.Context, ip string) (*domain.RateLimitInfo, *Reservation, error) {
	now := l.now()
	key := l.key(ip)
	member := uuid.NewString()

	res, err := l.client.RunScript(ctx, reserveScript, []string{key},
		l.cutoffScore(now),
		now.UnixMilli(),
		l.cfg.Limit,
		member,
		l.cfg.Window.Milliseconds(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reserve rate limit slot: %w", err)
	}

	allowed, count, oldest, err := parseReserveReply(res)
	if err != nil {
		return nil, nil, err
	}

	info := buildInfo(ip, l.cfg, count, oldest, now)
	if !allowed {
		return info, nil, nil
	}
	return info, &Reservation{ip: ip, token: member, cancel: l.cancel}, nil
}

func (l *RedisLimiter) cancel(ctx context.Context, ip, token string) error {
	if err := l.client.ZRem(ctx, l.key(ip), token); err != nil {
		return fmt.Errorf("failed to release rate limit slot: %w", err)
	}
	return nil
}

func parseReserveReply(res interface{}) (allowed bool, count int, oldest time.Time, err error) {
	reply, ok := res.([]interface{})
	if !ok || len(reply) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected rate limit reply %v", res)
	}
	flag, ok1 := reply[0].(int64)
	n, ok2 := reply[1].(int64)
	score, ok3 := reply[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected rate limit reply %v", res)
	}
	if score != "" {
		ms, err := strconv.ParseFloat(score, 64)
		if err != nil {
			return false, 0, time.Time{}, fmt.Errorf("bad rate limit score %q: %w", score, err)
		}
		oldest = time.UnixMilli(int64(ms))
	}
	return flag == 1, int(n), oldest, nil
}

func (l *RedisLimiter) key(ip string) string {
	return l.client.KeyBuilder.KeyRateLimit(HashIP(ip))
}

// cutoffScore is the newest score that has left the window.
func (l *RedisLimiter) cutoffScore(now time.Time) string {
	return strconv.FormatInt(now.Add(-l.cfg.Window).UnixMilli(), 10)
}
