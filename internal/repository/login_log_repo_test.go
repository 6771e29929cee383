package repository

import (
	"context"
	"math"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbac-admin/internal/model"
)

var loginLogColumns = []string{"id", "username", "ip", "location", "user_agent", "status", "message", "login_time"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return mock
}

func TestLoginLogQueryNumbersArguments(t *testing.T) {
	mock := newMockPool(t)
	repo := NewLoginLogRepository(mock)

	status := model.LoginFailed
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	pattern := `%a\_b\%%`

	where := `WHERE lower(username) LIKE lower($1) ESCAPE '\' AND status = $2 AND login_time >= $3 AND login_time <= $4`
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM login_logs "+where)).
		WithArgs(pattern, status, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta(where) + `(?s).*ORDER BY login_time DESC.*LIMIT \$5 OFFSET \$6`).
		WithArgs(pattern, status, from, to, 10, 10).
		WillReturnRows(pgxmock.NewRows(loginLogColumns).
			AddRow(int64(7), "a_b%", "192.0.2.1", "", "curl", model.LoginFailed, "bad password", from.Add(time.Hour)))

	entries, meta, err := repo.Query(context.Background(), model.LoginLogQuery{
		Username: " a_b% ",
		Status:   &status,
		From:     &from,
		To:       &to,
		Page:     2,
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(7), entries[0].ID)
	assert.Equal(t, model.Meta{Page: 2, Limit: 10, Total: 11, TotalPages: 2}, meta)
}

func TestLoginLogQueryClampsPaging(t *testing.T) {
	mock := newMockPool(t)
	repo := NewLoginLogRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM login_logs ")).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`LIMIT \$1 OFFSET \$2`).
		WithArgs(maxLoginLogLimit, (maxLoginLogPage-1)*maxLoginLogLimit).
		WillReturnRows(pgxmock.NewRows(loginLogColumns))

	entries, meta, err := repo.Query(context.Background(), model.LoginLogQuery{Page: math.MaxInt, Limit: 5000})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, maxLoginLogPage, meta.Page)
	assert.Equal(t, maxLoginLogLimit, meta.Limit)
}

func TestNormalizeLoginLogQuery(t *testing.T) {
	q := normalizeLoginLogQuery(model.LoginLogQuery{Page: -4, Limit: 0})
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, defaultLoginLogLimit, q.Limit)
}

func TestLoginLogCreateTruncatesMessage(t *testing.T) {
	mock := newMockPool(t)
	repo := NewLoginLogRepository(mock)

	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	long := strings.Repeat("x", 300)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO login_logs")).
		WithArgs("alice", "192.0.2.1", "", "curl", model.LoginSuccess, model.TruncateLoginMessage(long), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), model.LoginLog{
		Username:  "alice",
		IP:        "192.0.2.1",
		UserAgent: "curl",
		Status:    model.LoginSuccess,
		Message:   long,
		LoginTime: at,
	})
	require.NoError(t, err)
}
