package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"rbac-admin/internal/metrics"
	"rbac-admin/internal/model"
	"rbac-admin/internal/reqctx"
)

type tokenChecker interface {
	Check(tokenString string, kind model.TokenKind) (*model.Claims, error)
}

type revocationChecker interface {
	IsRevoked(ctx context.Context, tokenString string) bool
}

type identityLoader interface {
	LoadIdentity(ctx context.Context, tokenString string, claims *model.Claims) (*model.Identity, error)
}

// AuthGate resolves the caller's identity from the bearer token. It never
// rejects a request itself; RequireAuth, RequirePermission and RequireRole do.
type AuthGate struct {
	tokens      tokenChecker
	revocations revocationChecker
	identities  identityLoader
	header      string
	prefix      string
	metrics     *metrics.Metrics
}

func NewAuthGate(tokens tokenChecker, revocations revocationChecker, identities identityLoader, header string, prefix string, m *metrics.Metrics) *AuthGate {
	if strings.TrimSpace(header) == "" {
		header = "Authorization"
	}
	return &AuthGate{
		tokens:      tokens,
		revocations: revocations,
		identities:  identities,
		header:      header,
		prefix:      prefix,
		metrics:     m,
	}
}

func (g *AuthGate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := reqctx.IdentityFrom(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		identity, decision := g.resolve(r)
		g.metrics.ObserveGate(decision)
		if identity == nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(reqctx.WithIdentity(r.Context(), identity)))
	})
}

func (g *AuthGate) resolve(r *http.Request) (*model.Identity, string) {
	raw := g.TokenFromRequest(r)
	if raw == "" {
		return nil, "anonymous"
	}

	claims, err := g.tokens.Check(raw, model.TokenAccess)
	switch {
	case errors.Is(err, model.ErrTokenExpired):
		return nil, "expired"
	case errors.Is(err, model.ErrTokenKindMismatch):
		return nil, "wrong_kind"
	case err != nil:
		return nil, "malformed"
	}

	if g.revocations.IsRevoked(r.Context(), raw) {
		return nil, "revoked"
	}

	identity, err := g.identities.LoadIdentity(r.Context(), raw, claims)
	if err != nil {
		slog.Debug("auth gate: identity not loaded", "user_id", claims.UserID, "error", err)
		return nil, "identity_unavailable"
	}

	return identity, "authenticated"
}

// TokenFromRequest returns the raw token from the configured header, or ""
// when the header is missing or lacks the prefix.
func (g *AuthGate) TokenFromRequest(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get(g.header))
	if header == "" {
		return ""
	}
	if g.prefix == "" {
		return header
	}

	prefix := strings.TrimSpace(g.prefix)
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}

	return strings.TrimSpace(header[len(prefix):])
}

func (g *AuthGate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := reqctx.IdentityFrom(r.Context()); !ok {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission lets the request through when the identity holds any of
// codes.
func (g *AuthGate) RequirePermission(codes ...string) func(http.Handler) http.Handler {
	return g.require(func(identity *model.Identity) bool {
		for _, code := range codes {
			if identity.HasPermission(code) {
				return true
			}
		}
		return false
	})
}

func (g *AuthGate) RequireRole(codes ...string) func(http.Handler) http.Handler {
	return g.require(func(identity *model.Identity) bool {
		for _, code := range codes {
			if identity.HasRole(code) {
				return true
			}
		}
		return false
	})
}

func (g *AuthGate) require(allowed func(*model.Identity) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := reqctx.IdentityFrom(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			if !allowed(identity) {
				writeJSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
