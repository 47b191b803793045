package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements a shared fixed-window counter per (device_id,
// message_type), so multiple gateway instances enforce one ceiling
// together — the shared-store swap spec.md §9 anticipates without
// changing call sites (internal/ratelimit.Limiter is unchanged either
// way).
type RedisLimiter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedis constructs a RedisLimiter. keyPrefix namespaces keys the way
// the teacher's RedisHubStore namespaces its own ("ocx:hub:").
func NewRedis(client *redis.Client, keyPrefix string) *RedisLimiter {
	if keyPrefix == "" {
		keyPrefix = "rijan-wa:ratelimit:"
	}
	return &RedisLimiter{client: client, keyPrefix: keyPrefix}
}

func (r *RedisLimiter) Allow(deviceID, messageType string) (Decision, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	limit := LimitFor(messageType)
	window := time.Minute
	now := time.Now()
	bucket := now.Truncate(window)
	key := fmt.Sprintf("%s%s:%s:%d", r.keyPrefix, deviceID, messageType, bucket.Unix())

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: redis expire: %w", err)
		}
	}

	resetAt := bucket.Add(window)
	if count > int64(limit) {
		return Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: time.Until(resetAt),
		}, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - int(count),
		ResetAt:   resetAt,
	}, nil
}
