package model

import "time"

type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

type Claims struct {
	Subject   string    `json:"sub"`
	UserID    int64     `json:"userId"`
	Kind      TokenKind `json:"type"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type LoginResponse struct {
	TokenPair
	User UserInfo `json:"user"`
}

// Identity is what the auth gate attaches to an authenticated request.
type Identity struct {
	UserID      int64
	Username    string
	Token       string
	Claims      *Claims
	Profile     UserProfile
	Permissions []string
	Roles       []string
}

func (i *Identity) HasPermission(code string) bool {
	if i.HasRole(RoleAdmin) {
		return true
	}
	for _, p := range i.Permissions {
		if p == code {
			return true
		}
	}
	return false
}

func (i *Identity) HasRole(code string) bool {
	for _, r := range i.Roles {
		if r == code {
			return true
		}
	}
	return false
}

func (i *Identity) Info() UserInfo {
	return UserInfo{
		UserProfile: i.Profile,
		Permissions: nonNil(i.Permissions),
		Roles:       nonNil(i.Roles),
	}
}

type Captcha struct {
	CaptchaKey   string `json:"captchaKey"`
	CaptchaImage string `json:"captchaImage"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type OnlineSession struct {
	Token     string     `json:"-"`
	SessionID string     `json:"sessionId"`
	UserID    int64      `json:"userId"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
