package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"rbac-admin/internal/model"
)

// RevocationStore is the token blacklist. Entries live exactly as long as the
// token they revoke would have.
type RevocationStore struct {
	rdb redis.UniversalClient
	now func() time.Time
}

func NewRevocationStore(rdb redis.UniversalClient) *RevocationStore {
	return &RevocationStore{rdb: rdb, now: time.Now}
}

// Revoke blacklists token for the rest of its lifetime. It returns false only
// when the token had already been revoked by an earlier call.
func (s *RevocationStore) Revoke(ctx context.Context, token string, claims *model.Claims) (bool, error) {
	remaining := claims.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return true, nil
	}

	created, err := s.rdb.SetNX(ctx, revokedKey(token), revokedMarker, remaining).Result()
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}

	return created, nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, token string) bool {
	n, err := s.rdb.Exists(ctx, revokedKey(token)).Result()
	if err != nil {
		slog.Warn("revocation lookup failed", "error", err)
		return false
	}

	return n > 0
}
