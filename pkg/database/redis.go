package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis holds the client shared by the rate limiter and the idempotency store
type Redis struct {
	Client *redis.Client
}

// NewRedis connects and pings within ctx
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &Redis{Client: client}, nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

// Ping checks if Redis is available
func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
