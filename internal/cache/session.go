package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"rbac-admin/internal/model"
)

// SessionRegistry tracks online sessions: the hash maps token -> user id and
// the sorted set scores every token with its expiry so sessions that were
// never logged out are reaped once their token dies.
type SessionRegistry struct {
	rdb redis.UniversalClient
	now func() time.Time
}

func NewSessionRegistry(rdb redis.UniversalClient) *SessionRegistry {
	return &SessionRegistry{rdb: rdb, now: time.Now}
}

func (r *SessionRegistry) Open(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, OnlineUsersKey, token, strconv.FormatInt(userID, 10))
		pipe.ZAdd(ctx, OnlineExpiryKey, redis.Z{Score: float64(expiresAt.Unix()), Member: token})
		return nil
	})
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}

func (r *SessionRegistry) Close(ctx context.Context, token string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, OnlineUsersKey, token)
		pipe.ZRem(ctx, OnlineExpiryKey, token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

func (r *SessionRegistry) IsOpen(ctx context.Context, token string) bool {
	exists, err := r.rdb.HExists(ctx, OnlineUsersKey, token).Result()
	if err != nil {
		slog.Warn("session lookup failed", "error", err)
		return false
	}
	if !exists {
		return false
	}

	score, err := r.rdb.ZScore(ctx, OnlineExpiryKey, token).Result()
	if err != nil {
		// No recorded expiry: the hash entry alone decides.
		return true
	}

	return int64(score) > r.now().Unix()
}

// TrackRefresh remembers an issued refresh token so every token a user still
// holds can be revoked at once. The per-user set expires with the token most
// recently tracked.
func (r *SessionRegistry) TrackRefresh(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	key := refreshKey(userID)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(expiresAt.Unix()), Member: token})
		pipe.ExpireAt(ctx, key, expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("track refresh token: %w", err)
	}
	return nil
}

func (r *SessionRegistry) ForgetRefresh(ctx context.Context, userID int64, token string) error {
	if err := r.rdb.ZRem(ctx, refreshKey(userID), token).Err(); err != nil {
		return fmt.Errorf("forget refresh token: %w", err)
	}
	return nil
}

// RefreshTokens lists the unexpired refresh tokens issued to userID.
func (r *SessionRegistry) RefreshTokens(ctx context.Context, userID int64) ([]string, error) {
	key := refreshKey(userID)
	now := strconv.FormatInt(r.now().Unix(), 10)

	if err := r.rdb.ZRemRangeByScore(ctx, key, "-inf", now).Err(); err != nil {
		slog.Warn("refresh token reaping failed", "user_id", userID, "error", err)
	}

	tokens, err := r.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "(" + now, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	sort.Strings(tokens)

	return tokens, nil
}

// Reap drops every session whose token has expired.
func (r *SessionRegistry) Reap(ctx context.Context) (int, error) {
	expired, err := r.rdb.ZRangeByScore(ctx, OnlineExpiryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(r.now().Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	members := make([]any, len(expired))
	for i, token := range expired {
		members[i] = token
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, OnlineUsersKey, expired...)
		pipe.ZRem(ctx, OnlineExpiryKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reap sessions: %w", err)
	}

	return len(expired), nil
}

// Entries returns token -> user id for every live session. This is a full
// scan of the registry and is linear in the number of online sessions.
func (r *SessionRegistry) Entries(ctx context.Context) (map[string]int64, error) {
	if reaped, err := r.Reap(ctx); err != nil {
		slog.Warn("session reaping failed", "error", err)
	} else if reaped > 0 {
		slog.Debug("reaped expired sessions", "count", reaped)
	}

	raw, err := r.rdb.HGetAll(ctx, OnlineUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	entries := make(map[string]int64, len(raw))
	for token, value := range raw {
		userID, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr != nil {
			continue
		}
		entries[token] = userID
	}

	return entries, nil
}

func (r *SessionRegistry) ListOpenTokens(ctx context.Context) ([]string, error) {
	entries, err := r.Entries(ctx)
	if err != nil {
		return nil, err
	}

	tokens := make([]string, 0, len(entries))
	for token := range entries {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	return tokens, nil
}

func (r *SessionRegistry) FindByUserID(ctx context.Context, userID int64) ([]string, error) {
	entries, err := r.Entries(ctx)
	if err != nil {
		return nil, err
	}

	tokens := make([]string, 0)
	for token, owner := range entries {
		if owner == userID {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)

	return tokens, nil
}

// Sessions lists live sessions with their expiry, ordered by expiry.
func (r *SessionRegistry) Sessions(ctx context.Context) ([]model.OnlineSession, error) {
	entries, err := r.Entries(ctx)
	if err != nil {
		return nil, err
	}

	scored, err := r.rdb.ZRangeWithScores(ctx, OnlineExpiryKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list session expiry: %w", err)
	}

	expiries := make(map[string]time.Time, len(scored))
	for _, z := range scored {
		if token, ok := z.Member.(string); ok {
			expiries[token] = time.Unix(int64(z.Score), 0).UTC()
		}
	}

	sessions := make([]model.OnlineSession, 0, len(entries))
	for token, userID := range entries {
		session := model.OnlineSession{Token: token, SessionID: tokenDigest(token)[:16], UserID: userID}
		if at, ok := expiries[token]; ok {
			session.ExpiresAt = &at
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		left, right := sessions[i].ExpiresAt, sessions[j].ExpiresAt
		switch {
		case left == nil && right == nil:
			return sessions[i].Token < sessions[j].Token
		case left == nil:
			return false
		case right == nil:
			return true
		}
		return left.Before(*right)
	})

	return sessions, nil
}
