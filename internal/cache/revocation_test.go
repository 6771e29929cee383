package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRevokeStoresEntryForRemainingLifetime(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRevocationStore(rdb)
	ctx := context.Background()

	require.False(t, store.IsRevoked(ctx, "token-a"))

	created, err := store.Revoke(ctx, "token-a", claimsExpiringIn(10*time.Minute))
	require.NoError(t, err)
	require.True(t, created)
	require.True(t, store.IsRevoked(ctx, "token-a"))

	ttl := mr.TTL(revokedKey("token-a"))
	require.InDelta(t, (10 * time.Minute).Seconds(), ttl.Seconds(), 2)
	require.Greater(t, ttl, time.Duration(0))
}

func TestRevokeIsIdempotent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRevocationStore(rdb)
	ctx := context.Background()

	created, err := store.Revoke(ctx, "token-a", claimsExpiringIn(10*time.Minute))
	require.NoError(t, err)
	require.True(t, created)

	mr.FastForward(time.Minute)

	created, err = store.Revoke(ctx, "token-a", claimsExpiringIn(10*time.Minute))
	require.NoError(t, err)
	require.False(t, created)

	// The first entry's TTL is kept.
	require.InDelta(t, (9 * time.Minute).Seconds(), mr.TTL(revokedKey("token-a")).Seconds(), 2)
}

func TestRevokeSkipsExpiredTokens(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRevocationStore(rdb)

	created, err := store.Revoke(context.Background(), "token-old", claimsExpiringIn(-time.Minute))
	require.NoError(t, err)
	require.True(t, created)
	require.False(t, mr.Exists(revokedKey("token-old")))
}

func TestRevocationExpiresWithToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRevocationStore(rdb)
	ctx := context.Background()

	_, err := store.Revoke(ctx, "token-a", claimsExpiringIn(5*time.Minute))
	require.NoError(t, err)

	mr.FastForward(6 * time.Minute)
	require.False(t, store.IsRevoked(ctx, "token-a"))
}

func TestIsRevokedDegradesWhenRedisIsDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRevocationStore(rdb)
	mr.Close()

	require.False(t, store.IsRevoked(context.Background(), "token-a"))

	_, err := store.Revoke(context.Background(), "token-a", claimsExpiringIn(time.Minute))
	require.Error(t, err)
}

func TestRevocationKeyDoesNotContainToken(t *testing.T) {
	key := revokedKey("header.payload.signature")
	require.NotContains(t, key, "payload")
	require.Contains(t, key, RevokedPrefix)
}
