package service

import (
	"context"
	"fmt"
	"log/slog"

	"rbac-admin/internal/cache"
	"rbac-admin/internal/metrics"
	"rbac-admin/internal/model"
	"rbac-admin/internal/token"
)

// SessionService is the administrative side of the session registry: listing
// who is online, kicking users out and wiping derived caches.
type SessionService struct {
	codec       *token.Codec
	sessions    *cache.SessionRegistry
	revocations *cache.RevocationStore
	derived     *cache.DerivedCache
	metrics     *metrics.Metrics
}

func NewSessionService(
	codec *token.Codec,
	sessions *cache.SessionRegistry,
	revocations *cache.RevocationStore,
	derived *cache.DerivedCache,
	m *metrics.Metrics,
) *SessionService {
	return &SessionService{
		codec:       codec,
		sessions:    sessions,
		revocations: revocations,
		derived:     derived,
		metrics:     m,
	}
}

func (s *SessionService) OnlineSessions(ctx context.Context) ([]model.OnlineSession, error) {
	sessions, err := s.sessions.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list online sessions: %w", err)
	}
	return sessions, nil
}

// ForceOffline closes every session of userID, drops the cached profiles and
// revokes the access tokens along with every refresh token still issued to
// the user. Failures on one token do not stop the others; the first error is
// returned after the loop. It reports how many sessions were closed.
func (s *SessionService) ForceOffline(ctx context.Context, userID int64) (int, error) {
	tokens, err := s.sessions.FindByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("find sessions of user %d: %w", userID, err)
	}
	refreshTokens, err := s.sessions.RefreshTokens(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("find refresh tokens of user %d: %w", userID, err)
	}

	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	closed := 0
	for _, t := range tokens {
		if err := s.sessions.Close(ctx, t); err != nil {
			slog.Warn("force offline: close session failed", "user_id", userID, "error", err)
			keep(err)
			continue
		}
		closed++
		s.derived.InvalidateProfile(ctx, t)

		if err := s.revoke(ctx, t); err != nil {
			slog.Warn("force offline: revoke token failed", "user_id", userID, "error", err)
			keep(err)
		}
	}

	for _, t := range refreshTokens {
		if err := s.revoke(ctx, t); err != nil {
			slog.Warn("force offline: revoke refresh token failed", "user_id", userID, "error", err)
			keep(err)
			continue
		}
		if err := s.sessions.ForgetRefresh(ctx, userID, t); err != nil {
			slog.Warn("force offline: forget refresh token failed", "user_id", userID, "error", err)
		}
	}

	s.derived.InvalidatePermissions(ctx, userID)
	s.derived.InvalidateRoles(ctx, userID)
	s.metrics.SessionsForcedOffline(closed)

	slog.Info("user forced offline", "user_id", userID, "sessions", closed, "refresh_tokens", len(refreshTokens))

	if firstErr != nil {
		return closed, fmt.Errorf("force offline user %d: %w", userID, firstErr)
	}
	return closed, nil
}

// revoke blacklists a token until its expiry. Undecodable tokens are skipped.
func (s *SessionService) revoke(ctx context.Context, raw string) error {
	claims, err := s.codec.Decode(raw)
	if err != nil {
		return nil
	}
	created, err := s.revocations.Revoke(ctx, raw, claims)
	if err != nil {
		return err
	}
	if created {
		s.metrics.TokenRevoked()
	}
	return nil
}

// RefreshUserCache drops the cached permissions and roles of userID along
// with the profiles of its open sessions, so the next request reloads them.
func (s *SessionService) RefreshUserCache(ctx context.Context, userID int64) {
	s.derived.InvalidateAllForUser(ctx, userID)
	slog.Info("user cache refreshed", "user_id", userID)
}

func (s *SessionService) ClearCache(ctx context.Context) (int, error) {
	return s.derived.ClearAll(ctx)
}
