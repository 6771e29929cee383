package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rbac-admin/internal/model"
)

func TestCaptchaConsumeIsOneTimeAndCaseInsensitive(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewCaptchaStore(rdb)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "key1", "AbC9", 5*time.Minute))

	err := store.Consume(ctx, "key1", "zzzz")
	require.ErrorIs(t, err, model.ErrCaptchaInvalid)
	require.True(t, mr.Exists(captchaKey("key1")))

	require.NoError(t, store.Consume(ctx, "key1", " abc9 "))
	require.False(t, mr.Exists(captchaKey("key1")))

	err = store.Consume(ctx, "key1", "abc9")
	require.ErrorIs(t, err, model.ErrCaptchaMissing)
}

func TestCaptchaExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewCaptchaStore(rdb)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "key1", "abcd", time.Minute))
	mr.FastForward(2 * time.Minute)

	require.ErrorIs(t, store.Consume(ctx, "key1", "abcd"), model.ErrCaptchaMissing)
}

func TestCaptchaRejectsBlankInput(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewCaptchaStore(rdb)

	require.ErrorIs(t, store.Consume(context.Background(), "", "abcd"), model.ErrCaptchaMissing)
	require.ErrorIs(t, store.Consume(context.Background(), "key", "  "), model.ErrCaptchaMissing)
}
