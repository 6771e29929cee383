// Package cache holds the Redis-backed state of the auth subsystem: revoked
// tokens, online sessions, captcha answers and the per-user derived data
// (profile, permissions, roles) cached in front of PostgreSQL.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

const (
	// Namespace owned by DerivedCache.ClearAll.
	Namespace = "rbac:"

	RevokedPrefix     = "jwt:blacklist:"
	ProfilePrefix     = Namespace + "user:token:"
	PermissionsPrefix = Namespace + "user:permissions:"
	RolesPrefix       = Namespace + "user:roles:"
	OnlineUsersKey    = Namespace + "online:users"
	OnlineExpiryKey   = Namespace + "online:expiry"
	CaptchaPrefix     = "captcha:"

	// Outside Namespace: ClearAll must not forget which refresh tokens a
	// user still holds.
	RefreshPrefix = "auth:refresh:"

	revokedMarker = "revoked"
)

// tokenDigest keeps raw bearer tokens out of key names.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func revokedKey(token string) string {
	return RevokedPrefix + tokenDigest(token)
}

func profileKey(token string) string {
	return ProfilePrefix + tokenDigest(token)
}

func permissionsKey(userID int64) string {
	return PermissionsPrefix + strconv.FormatInt(userID, 10)
}

func rolesKey(userID int64) string {
	return RolesPrefix + strconv.FormatInt(userID, 10)
}

func refreshKey(userID int64) string {
	return RefreshPrefix + strconv.FormatInt(userID, 10)
}

func captchaKey(key string) string {
	return CaptchaPrefix + key
}
