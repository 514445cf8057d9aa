package redis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
)

const (
	voteLimitKeyPrefix = "rankpulse:ratelimit:votes:"
	voteLimitTimeout   = 500 * time.Millisecond
)

// takeTokenScript refills the bucket for the time elapsed since the last call,
// then takes one token if available. Idle buckets expire once they would be full.
// ARGV: [1]=burst, [2]=tokens per second, [3]=now_ms, [4]=ttl_ms
var takeTokenScript = goredis.NewScript(`
local burst = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local last = tonumber(redis.call('HGET', KEYS[1], 'last'))
if tokens == nil or last == nil then
  tokens = burst
  last = now
end
tokens = math.min(burst, tokens + math.max(0, now - last) / 1000.0 * rate)
local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'last', now)
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return allowed
`)

// VoteLimiter is an echo rate limiter store whose token buckets live in Redis,
// so a client's vote budget is shared by every instance. When Redis cannot be
// reached the request is allowed.
type VoteLimiter struct {
	rdb   goredis.Scripter
	clock clockwork.Clock
	rate  float64
	burst int
	ttl   time.Duration
}

var _ middleware.RateLimiterStore = (*VoteLimiter)(nil)

func NewVoteLimiter(rdb goredis.Scripter, clock clockwork.Clock, ratePerSecond float64, burst int) *VoteLimiter {
	refill := time.Duration(math.Ceil(float64(burst)/ratePerSecond)) * time.Second
	return &VoteLimiter{
		rdb:   rdb,
		clock: clock,
		rate:  ratePerSecond,
		burst: burst,
		ttl:   max(refill, time.Minute),
	}
}

func (l *VoteLimiter) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), voteLimitTimeout)
	defer cancel()

	allowed, err := l.take(ctx, identifier)
	if err != nil {
		slog.Warn("Vote rate limit check failed, allowing request", "identifier", identifier, "error", err)
		return true, nil
	}
	return allowed, nil
}

func (l *VoteLimiter) take(ctx context.Context, identifier string) (bool, error) {
	res, err := takeTokenScript.Run(ctx, l.rdb,
		[]string{voteLimitKeyPrefix + identifier},
		l.burst,
		strconv.FormatFloat(l.rate, 'f', -1, 64),
		l.clock.Now().UnixMilli(),
		l.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to take vote token: %w", err)
	}
	return res == 1, nil
}
