package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"rbac-admin/internal/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

func claimsExpiringIn(d time.Duration) *model.Claims {
	now := time.Now()
	return &model.Claims{
		Subject:   "alice",
		UserID:    1,
		Kind:      model.TokenAccess,
		IssuedAt:  now,
		ExpiresAt: now.Add(d),
	}
}
