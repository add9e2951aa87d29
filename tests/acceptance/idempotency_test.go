package acceptance

import (
	"context"
	"time"

	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/internal/service"
)

func (s *Suite) TestIdempotencyStore_PendingClaimExpiresQuickly() {
	ctx := context.Background()
	store := service.NewRedisIdempotencyStore(s.Redis, 24*time.Hour)
	key := "idempotency:reservation:user-1:crash"

	existing, err := store.Begin(ctx, "user-1", "crash")
	s.Require().NoError(err)
	s.Empty(existing)

	ttl, err := s.Redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.LessOrEqual(ttl, time.Minute, "an abandoned claim must not block retries for the full ttl")

	_, err = store.Begin(ctx, "user-1", "crash")
	s.ErrorIs(err, domain.ErrConflict)

	s.Require().NoError(store.Complete(ctx, "user-1", "crash", "res-1"))
	ttl, err = s.Redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Hour)

	existing, err = store.Begin(ctx, "user-1", "crash")
	s.Require().NoError(err)
	s.Equal("res-1", existing)
}
