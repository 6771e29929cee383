package reqctx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbac-admin/internal/model"
)

func TestRequestInfoRoundTrip(t *testing.T) {
	_, ok := RequestInfoFrom(context.Background())
	assert.False(t, ok)

	info := RequestInfo{RequestID: "req-1", StartedAt: time.Now(), ClientIP: "10.0.0.1", UserAgent: "curl"}
	got, ok := RequestInfoFrom(WithRequestInfo(context.Background(), info))
	require.True(t, ok)
	assert.Equal(t, info, got)
}

func TestIdentityRoundTrip(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	_, ok = IdentityFrom(WithIdentity(context.Background(), nil))
	assert.False(t, ok)

	identity := &model.Identity{UserID: 7, Username: "alice"}
	got, ok := IdentityFrom(WithIdentity(context.Background(), identity))
	require.True(t, ok)
	assert.Same(t, identity, got)
}
