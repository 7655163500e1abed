package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"idhub/pkg/requestcontext"
)

// RedisLimiter is a fixed-window limiter shared across replicas. The window
// boundary is derived from the clock, so all replicas agree on it without
// coordination.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := requestcontext.Now(ctx)
	windowStart := now.Truncate(l.window)
	redisKey := fmt.Sprintf("rl:%s:%d", key, windowStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit check for %q: %w", key, err)
	}

	count := int(incr.Val())
	res := &Result{
		Limit:   l.limit,
		ResetAt: windowStart.Add(l.window),
	}
	if count > l.limit {
		return res, nil
	}
	res.Allowed = true
	res.Remaining = l.limit - count
	return res, nil
}
