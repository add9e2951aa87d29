package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/booking-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a sliding-window log limiter backed by a Redis sorted set
type RateLimiter struct {
	redis *database.Redis
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redis *database.Redis) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// Allow records the request and reports whether it fits in the window.
// Rejected requests are not recorded.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	redisKey := rateLimitKey(key)

	count, err := r.count(ctx, redisKey, now, window)
	if err != nil {
		return false, err
	}
	if count >= int64(limit) {
		return false, nil
	}

	pipe := r.redis.Client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, redisKey, window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to record request: %w", err)
	}

	return true, nil
}

// Remaining returns the number of requests still allowed in the window
func (r *RateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	count, err := r.count(ctx, rateLimitKey(key), time.Now(), window)
	if err != nil {
		return 0, err
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (r *RateLimiter) count(ctx context.Context, redisKey string, now time.Time, window time.Duration) (int64, error) {
	windowStart := now.Add(-window).UnixMilli()

	err := r.redis.Client.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10)).Err()
	if err != nil {
		return 0, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := r.redis.Client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}
