package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"rbac-admin/internal/model"
)

const clearBatchSize = 500

type TTLs struct {
	Profile     time.Duration
	Permissions time.Duration
	Roles       time.Duration
}

// DerivedCache caches data derived from the relational store. A miss and a
// Redis failure look the same to callers: both mean "ask the database".
// Writes never fail the caller.
type DerivedCache struct {
	rdb      redis.UniversalClient
	sessions *SessionRegistry
	ttls     TTLs
}

func NewDerivedCache(rdb redis.UniversalClient, sessions *SessionRegistry, ttls TTLs) *DerivedCache {
	if ttls.Profile <= 0 {
		ttls.Profile = 2 * time.Hour
	}
	if ttls.Permissions <= 0 {
		ttls.Permissions = time.Hour
	}
	if ttls.Roles <= 0 {
		ttls.Roles = time.Hour
	}

	return &DerivedCache{rdb: rdb, sessions: sessions, ttls: ttls}
}

func (c *DerivedCache) GetProfile(ctx context.Context, token string) (model.UserProfile, bool) {
	var profile model.UserProfile
	ok := c.getJSON(ctx, profileKey(token), &profile)
	return profile, ok
}

func (c *DerivedCache) PutProfile(ctx context.Context, token string, profile model.UserProfile, ttl time.Duration) {
	c.putJSON(ctx, profileKey(token), profile, orDefault(ttl, c.ttls.Profile))
}

func (c *DerivedCache) InvalidateProfile(ctx context.Context, token string) {
	c.del(ctx, profileKey(token))
}

func (c *DerivedCache) GetPermissions(ctx context.Context, userID int64) ([]model.Permission, bool) {
	var permissions []model.Permission
	ok := c.getJSON(ctx, permissionsKey(userID), &permissions)
	return permissions, ok
}

func (c *DerivedCache) PutPermissions(ctx context.Context, userID int64, permissions []model.Permission, ttl time.Duration) {
	c.putJSON(ctx, permissionsKey(userID), permissions, orDefault(ttl, c.ttls.Permissions))
}

func (c *DerivedCache) InvalidatePermissions(ctx context.Context, userID int64) {
	c.del(ctx, permissionsKey(userID))
}

func (c *DerivedCache) GetRoles(ctx context.Context, userID int64) ([]model.Role, bool) {
	var roles []model.Role
	ok := c.getJSON(ctx, rolesKey(userID), &roles)
	return roles, ok
}

func (c *DerivedCache) PutRoles(ctx context.Context, userID int64, roles []model.Role, ttl time.Duration) {
	c.putJSON(ctx, rolesKey(userID), roles, orDefault(ttl, c.ttls.Roles))
}

func (c *DerivedCache) InvalidateRoles(ctx context.Context, userID int64) {
	c.del(ctx, rolesKey(userID))
}

// InvalidateAllForUser drops the profiles of the user's known sessions along
// with the user's permissions and roles.
func (c *DerivedCache) InvalidateAllForUser(ctx context.Context, userID int64) {
	if c.sessions != nil {
		tokens, err := c.sessions.FindByUserID(ctx, userID)
		if err != nil {
			slog.Warn("cache invalidation could not list sessions", "user_id", userID, "error", err)
		}
		for _, token := range tokens {
			c.InvalidateProfile(ctx, token)
		}
	}

	c.InvalidatePermissions(ctx, userID)
	c.InvalidateRoles(ctx, userID)
}

// InvalidateAllPermissions drops the cached permission list of every user.
// Permission nodes are shared between users, so an edit to one can change any
// of the lists.
func (c *DerivedCache) InvalidateAllPermissions(ctx context.Context) {
	deleted, err := c.deleteMatching(ctx, PermissionsPrefix+"*")
	if err != nil {
		slog.Warn("permission cache invalidation failed", "deleted", deleted, "error", err)
	}
}

// ClearAll deletes every key in the rbac: namespace. Revocations, captcha
// answers and refresh token tracking live outside it and survive.
func (c *DerivedCache) ClearAll(ctx context.Context) (int, error) {
	deleted, err := c.deleteMatching(ctx, Namespace+"*")
	if err != nil {
		return deleted, err
	}

	slog.Info("derived cache cleared", "keys", deleted)
	return deleted, nil
}

func (c *DerivedCache) deleteMatching(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)

	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, clearBatchSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan cache keys: %w", err)
		}

		if len(keys) > 0 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("delete cache keys: %w", err)
			}
			deleted += int(n)
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (c *DerivedCache) getJSON(ctx context.Context, key string, dst any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Warn("cache entry undecodable", "key", key, "error", err)
		return false
	}

	return true
}

func (c *DerivedCache) putJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache encode failed", "key", key, "error", err)
		return
	}

	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		slog.Warn("cache write failed", "key", key, "error", err)
	}
}

func (c *DerivedCache) del(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		slog.Warn("cache delete failed", "key", key, "error", err)
	}
}

func orDefault(ttl time.Duration, fallback time.Duration) time.Duration {
	if ttl <= 0 {
		return fallback
	}
	return ttl
}
