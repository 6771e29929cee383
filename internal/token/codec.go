// Package token issues and decodes the signed bearer tokens used by the
// admin API. Tokens are HS512 JWTs carrying the username as subject, the
// numeric user id and the token kind (access or refresh).
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"rbac-admin/internal/model"
)

const minSecretLength = 32

type wireClaims struct {
	UserID int64  `json:"userId"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) (*Codec, error) {
	if len(strings.TrimSpace(secret)) < minSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d characters", minSecretLength)
	}

	return &Codec{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a new token of the given kind. The returned claims mirror what
// Decode will report for the token.
func (c *Codec) Issue(userID int64, username string, kind model.TokenKind, ttl time.Duration) (string, *model.Claims, error) {
	if ttl <= 0 {
		return "", nil, errors.New("token ttl must be positive")
	}
	if kind != model.TokenAccess && kind != model.TokenRefresh {
		return "", nil, fmt.Errorf("unknown token kind %q", kind)
	}

	// NumericDate has second precision on the wire.
	now := c.now().UTC().Truncate(time.Second)
	claims := &model.Claims{
		Subject:   username,
		UserID:    userID,
		Kind:      kind,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, wireClaims{
		UserID: userID,
		Type:   string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        claims.TokenID,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return signed, claims, nil
}

// Decode verifies the signature and returns the claims. Expiry and kind are
// left to the caller.
func (c *Codec) Decode(tokenString string) (*model.Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" || len(strings.Split(tokenString, ".")) != 3 {
		return nil, model.ErrTokenMalformed
	}

	var wc wireClaims
	_, err := jwt.ParseWithClaims(tokenString, &wc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
	}

	if wc.Subject == "" || wc.ExpiresAt == nil {
		return nil, model.ErrTokenMalformed
	}

	claims := &model.Claims{
		Subject:   wc.Subject,
		UserID:    wc.UserID,
		Kind:      model.TokenKind(wc.Type),
		TokenID:   wc.ID,
		ExpiresAt: wc.ExpiresAt.Time.UTC(),
	}
	if wc.IssuedAt != nil {
		claims.IssuedAt = wc.IssuedAt.Time.UTC()
	}

	return claims, nil
}

func (c *Codec) IsExpired(claims *model.Claims) bool {
	return !claims.ExpiresAt.After(c.now())
}

// Validate reports whether the token decodes, belongs to expectedUsername and
// has not expired.
func (c *Codec) Validate(tokenString string, expectedUsername string) bool {
	claims, err := c.Decode(tokenString)
	if err != nil {
		return false
	}

	return claims.Subject == expectedUsername && !c.IsExpired(claims)
}

// Check decodes a token and enforces kind and expiry, returning the typed
// error the orchestrator surfaces.
func (c *Codec) Check(tokenString string, kind model.TokenKind) (*model.Claims, error) {
	claims, err := c.Decode(tokenString)
	if err != nil {
		return nil, err
	}
	if err := ValidateKind(claims, kind); err != nil {
		return nil, err
	}
	if c.IsExpired(claims) {
		return nil, model.ErrTokenExpired
	}

	return claims, nil
}

func ValidateKind(claims *model.Claims, kind model.TokenKind) error {
	if claims == nil || claims.Kind != kind {
		return model.ErrTokenKindMismatch
	}
	return nil
}
