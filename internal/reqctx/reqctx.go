// Package reqctx carries per-request state through context.Context.
package reqctx

import (
	"context"
	"time"

	"rbac-admin/internal/model"
)

type contextKey string

const (
	requestInfoKey contextKey = "request_info"
	identityKey    contextKey = "identity"
)

type RequestInfo struct {
	RequestID string
	StartedAt time.Time
	ClientIP  string
	UserAgent string
}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey, info)
}

func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey).(RequestInfo)
	return info, ok
}

func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFrom(ctx context.Context) (*model.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*model.Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
