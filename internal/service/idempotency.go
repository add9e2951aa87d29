package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyPending = "pending"
	// maxPendingTTL bounds how long a crashed request can hold its key
	maxPendingTTL = time.Minute
)

// RedisIdempotencyStore keeps Idempotency-Key outcomes in Redis
type RedisIdempotencyStore struct {
	redis *database.Redis
	ttl   time.Duration
}

// NewRedisIdempotencyStore creates a store whose keys expire after ttl
func NewRedisIdempotencyStore(redis *database.Redis, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{redis: redis, ttl: ttl}
}

// Begin claims the key with SETNX. A key still marked pending belongs to a
// request in flight and is reported as a conflict.
func (s *RedisIdempotencyStore) Begin(ctx context.Context, scope, key string) (string, error) {
	redisKey := idempotencyKey(scope, key)

	claimed, err := s.redis.Client.SetNX(ctx, redisKey, idempotencyPending, s.pendingTTL()).Result()
	if err != nil {
		return "", fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if claimed {
		return "", nil
	}

	value, err := s.redis.Client.Get(ctx, redisKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired between SETNX and GET; treat as in flight.
			return "", fmt.Errorf("%w: request with this idempotency key is in progress", domain.ErrConflict)
		}
		return "", fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if value == idempotencyPending {
		return "", fmt.Errorf("%w: request with this idempotency key is in progress", domain.ErrConflict)
	}
	return value, nil
}

func (s *RedisIdempotencyStore) pendingTTL() time.Duration {
	if s.ttl > 0 && s.ttl < maxPendingTTL {
		return s.ttl
	}
	return maxPendingTTL
}

// Complete stores the reservation id produced for the key for the full ttl
func (s *RedisIdempotencyStore) Complete(ctx context.Context, scope, key, reservationID string) error {
	if err := s.redis.Client.Set(ctx, idempotencyKey(scope, key), reservationID, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency result: %w", err)
	}
	return nil
}

// Abort releases the key so the client may retry
func (s *RedisIdempotencyStore) Abort(ctx context.Context, scope, key string) error {
	if err := s.redis.Client.Del(ctx, idempotencyKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

func idempotencyKey(scope, key string) string {
	return fmt.Sprintf("idempotency:reservation:%s:%s", scope, key)
}
