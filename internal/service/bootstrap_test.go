package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"rbac-admin/internal/model"
)

type fakeAdminStore struct {
	users map[string]model.User
	roles map[int64]string
}

func (f *fakeAdminStore) FindByUsername(_ context.Context, username string) (model.User, error) {
	u, ok := f.users[username]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeAdminStore) Create(_ context.Context, u model.User) (int64, error) {
	u.ID = int64(len(f.users) + 1)
	f.users[u.Username] = u
	return u.ID, nil
}

func (f *fakeAdminStore) AssignRole(_ context.Context, userID int64, roleCode string) error {
	f.roles[userID] = roleCode
	return nil
}

func TestEnsureAdmin(t *testing.T) {
	store := &fakeAdminStore{users: map[string]model.User{}, roles: map[int64]string{}}
	ctx := context.Background()

	require.NoError(t, EnsureAdmin(ctx, store, "admin", ""))
	assert.Empty(t, store.users)

	require.NoError(t, EnsureAdmin(ctx, store, "admin", "change-me"))
	admin, ok := store.users["admin"]
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("change-me")))
	assert.Equal(t, model.RoleAdmin, store.roles[admin.ID])
	assert.False(t, admin.CreatedAt.IsZero())

	require.NoError(t, EnsureAdmin(ctx, store, "admin", "other"))
	assert.Len(t, store.users, 1)
}
