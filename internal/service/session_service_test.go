package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbac-admin/internal/model"
)

func TestForceOffline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.login(t, "alice", "s3cret")
	second := env.login(t, "alice", "s3cret")
	other := env.login(t, "bob", "hunter2")

	_, err := env.permService.PermissionsForUser(ctx, 1)
	require.NoError(t, err)

	closed, err := env.admin.ForceOffline(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	for _, tok := range []string{first.AccessToken, second.AccessToken} {
		assert.False(t, env.sessions.IsOpen(ctx, tok))
		_, ok := env.derived.GetProfile(ctx, tok)
		assert.False(t, ok)
		assert.True(t, env.revocations.IsRevoked(ctx, tok))
	}
	_, ok := env.derived.GetPermissions(ctx, 1)
	assert.False(t, ok)

	assert.True(t, env.sessions.IsOpen(ctx, other.AccessToken))
	assert.False(t, env.revocations.IsRevoked(ctx, other.AccessToken))

	closed, err = env.admin.ForceOffline(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, closed)
}

func TestOnlineSessionsAndClearCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.login(t, "alice", "s3cret")
	env.login(t, "bob", "hunter2")

	sessions, err := env.admin.OnlineSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	deleted, err := env.admin.ClearCache(ctx)
	require.NoError(t, err)
	assert.Positive(t, deleted)

	sessions, err = env.admin.OnlineSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestForceOfflineRevokesRefreshTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.login(t, "alice", "s3cret")
	second := env.login(t, "alice", "s3cret")
	rotated, err := env.auth.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)

	held, err := env.sessions.RefreshTokens(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.RefreshToken, rotated.RefreshToken}, held)

	closed, err := env.admin.ForceOffline(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, closed)

	for _, refresh := range []string{first.RefreshToken, rotated.RefreshToken} {
		_, err := env.auth.Refresh(ctx, refresh)
		assert.ErrorIs(t, err, model.ErrTokenRevoked)
	}

	open, err := env.sessions.FindByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, open)

	held, err = env.sessions.RefreshTokens(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestForceOfflineSurvivesClearCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	login := env.login(t, "alice", "s3cret")

	_, err := env.admin.ClearCache(ctx)
	require.NoError(t, err)

	closed, err := env.admin.ForceOffline(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, closed)

	_, err = env.auth.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, model.ErrTokenRevoked)
}

func TestLogoutForgetsRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	login := env.login(t, "bob", "hunter2")
	require.NoError(t, env.auth.Logout(ctx, login.AccessToken, login.RefreshToken))

	held, err := env.sessions.RefreshTokens(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestRefreshUserCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	login := env.login(t, "alice", "s3cret")
	other := env.login(t, "bob", "hunter2")

	_, ok := env.derived.GetPermissions(ctx, 1)
	require.True(t, ok)
	_, ok = env.derived.GetProfile(ctx, login.AccessToken)
	require.True(t, ok)

	env.admin.RefreshUserCache(ctx, 1)

	_, ok = env.derived.GetPermissions(ctx, 1)
	assert.False(t, ok)
	_, ok = env.derived.GetRoles(ctx, 1)
	assert.False(t, ok)
	_, ok = env.derived.GetProfile(ctx, login.AccessToken)
	assert.False(t, ok)

	_, ok = env.derived.GetProfile(ctx, other.AccessToken)
	assert.True(t, ok)
	assert.True(t, env.sessions.IsOpen(ctx, login.AccessToken))
}
