package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// slidingWindow trims the key to the window, counts what is left and only
// then records the new send, all in one round trip.
// KEYS[1] = key, ARGV = now(ms), window(ms), max, member.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= max then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisKeyed is a sliding-window limiter shared by every server instance.
type RedisKeyed struct {
	client *redis.Client
	prefix string
	max    int
	window time.Duration
	clock  Clock
}

var _ Keyed = (*RedisKeyed)(nil)

// NewRedisKeyed limits sends per key using a sorted set under prefix+key.
func NewRedisKeyed(client *redis.Client, prefix string, max int, window time.Duration, clock Clock) *RedisKeyed {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &RedisKeyed{
		client: client,
		prefix: prefix,
		max:    max,
		window: window,
		clock:  clock,
	}
}

// Allow checks and records a send for key.
func (r *RedisKeyed) Allow(ctx context.Context, key string) error {
	now := r.clock.Now().UnixMilli()
	res, err := slidingWindow.Run(ctx, r.client, []string{r.prefix + key},
		strconv.FormatInt(now, 10),
		strconv.FormatInt(r.window.Milliseconds(), 10),
		strconv.Itoa(r.max),
		uuid.NewString(),
	).Int()
	if err != nil {
		return fmt.Errorf("ratelimit: redis: %w", err)
	}
	if res == 0 {
		return ErrRateLimited
	}
	return nil
}

// ParseRedisURL opens a client for url and checks it answers.
func ParseRedisURL(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}
