package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"rbac-admin/internal/cache"
	"rbac-admin/internal/metrics"
	"rbac-admin/internal/model"
	"rbac-admin/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

type fakeUsers struct {
	mu         sync.Mutex
	byID       map[int64]model.User
	lastLogins map[int64]string
	failUpdate error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[int64]model.User{}, lastLogins: map[int64]string{}}
}

func (f *fakeUsers) add(t *testing.T, id int64, username string, password string, status int) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id] = model.User{ID: id, Username: username, PasswordHash: string(hash), Nickname: username, Status: status}
}

func (f *fakeUsers) setStatus(id int64, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[id]
	u.Status = status
	f.byID[id] = u
}

func (f *fakeUsers) remove(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (f *fakeUsers) FindByID(_ context.Context, id int64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, id int64, ip string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	f.lastLogins[id] = ip
	return nil
}

type fakeLoginLogs struct {
	mu      sync.Mutex
	entries []model.LoginLog
	err     error
}

func (f *fakeLoginLogs) Create(_ context.Context, entry model.LoginLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLoginLogs) all() []model.LoginLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.LoginLog(nil), f.entries...)
}

type fakePermissions struct {
	mu        sync.Mutex
	nodes     map[int64]model.Permission
	order     []int64
	byUser    map[int64][]int64
	userCalls int
	nextID    int64
}

func newFakePermissions(nodes ...model.Permission) *fakePermissions {
	f := &fakePermissions{nodes: map[int64]model.Permission{}, byUser: map[int64][]int64{}}
	for _, n := range nodes {
		f.nodes[n.ID] = n
		f.order = append(f.order, n.ID)
		if n.ID > f.nextID {
			f.nextID = n.ID
		}
	}
	return f
}

func (f *fakePermissions) grant(userID int64, ids ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUser[userID] = append(f.byUser[userID], ids...)
}

func (f *fakePermissions) ListByUserID(_ context.Context, userID int64) ([]model.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	out := []model.Permission{}
	for _, id := range f.byUser[userID] {
		out = append(out, f.nodes[id])
	}
	return out, nil
}

func (f *fakePermissions) ListEnabled(_ context.Context) ([]model.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Permission{}
	for _, id := range f.order {
		if n := f.nodes[id]; n.Enabled() {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakePermissions) FindByID(_ context.Context, id int64) (model.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return model.Permission{}, model.ErrPermissionNotFound
	}
	return n, nil
}

func (f *fakePermissions) FindByCode(_ context.Context, code string) (model.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.nodes {
		if n.Code == code {
			return n, nil
		}
	}
	return model.Permission{}, model.ErrPermissionNotFound
}

func (f *fakePermissions) Create(_ context.Context, p model.Permission) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	f.nodes[p.ID] = p
	f.order = append(f.order, p.ID)
	return p.ID, nil
}

func (f *fakePermissions) Update(_ context.Context, p model.Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[p.ID]; !ok {
		return model.ErrPermissionNotFound
	}
	f.nodes[p.ID] = p
	return nil
}

type fakeRoles struct {
	byUser map[int64][]model.Role
}

func (f *fakeRoles) ListByUserID(_ context.Context, userID int64) ([]model.Role, error) {
	return f.byUser[userID], nil
}

type testEnv struct {
	mr          *miniredis.Miniredis
	codec       *token.Codec
	users       *fakeUsers
	logs        *fakeLoginLogs
	perms       *fakePermissions
	sessions    *cache.SessionRegistry
	revocations *cache.RevocationStore
	derived     *cache.DerivedCache
	permService *PermissionService
	auth        *AuthService
	admin       *SessionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	codec, err := token.NewCodec(testSecret)
	require.NoError(t, err)

	users := newFakeUsers()
	users.add(t, 1, "alice", "s3cret", model.StatusEnabled)
	users.add(t, 2, "bob", "hunter2", model.StatusEnabled)
	users.add(t, 3, "carol", "pa55", model.StatusDisabled)

	perms := newFakePermissions(
		model.Permission{ID: 1, Code: "system", Name: "System", Type: model.PermissionTypeDirectory, Status: model.StatusEnabled},
		model.Permission{ID: 2, ParentID: 1, Code: "system:user", Name: "Users", Type: model.PermissionTypeMenu, Status: model.StatusEnabled},
		model.Permission{ID: 3, ParentID: 2, Code: "system:user:list", Name: "List users", Type: model.PermissionTypeButton, Status: model.StatusEnabled},
	)
	perms.grant(1, 1, 2, 3)
	roles := &fakeRoles{byUser: map[int64][]model.Role{
		1: {{ID: 1, Code: "operator", Name: "Operator", Status: model.StatusEnabled}},
	}}

	sessions := cache.NewSessionRegistry(rdb)
	revocations := cache.NewRevocationStore(rdb)
	derived := cache.NewDerivedCache(rdb, sessions, cache.TTLs{})
	m := metrics.New()

	permService := NewPermissionService(perms, roles, derived)
	logs := &fakeLoginLogs{}

	auth := NewAuthService(AuthDeps{
		Codec:       codec,
		Revocations: revocations,
		Sessions:    sessions,
		Derived:     derived,
		Captchas:    cache.NewCaptchaStore(rdb),
		Users:       users,
		LoginLogs:   logs,
		Permissions: permService,
		Metrics:     m,
	}, AuthOptions{AccessTTL: 30 * time.Minute, RefreshTTL: 24 * time.Hour})

	return &testEnv{
		mr:          mr,
		codec:       codec,
		users:       users,
		logs:        logs,
		perms:       perms,
		sessions:    sessions,
		revocations: revocations,
		derived:     derived,
		permService: permService,
		auth:        auth,
		admin:       NewSessionService(codec, sessions, revocations, derived, m),
	}
}

func (e *testEnv) login(t *testing.T, username string, password string) model.LoginResponse {
	t.Helper()
	resp, err := e.auth.Login(context.Background(), model.LoginRequest{Username: username, Password: password})
	require.NoError(t, err)
	return resp
}
