package model

import "time"

const (
	StatusDisabled = 0
	StatusEnabled  = 1
)

type User struct {
	ID            int64      `json:"userId"`
	Username      string     `json:"username"`
	PasswordHash  string     `json:"-"`
	Nickname      string     `json:"nickname"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Avatar        string     `json:"avatar"`
	Gender        int        `json:"gender"`
	Status        int        `json:"status"`
	LastLoginTime *time.Time `json:"lastLoginTime,omitempty"`
	LastLoginIP   string     `json:"lastLoginIp,omitempty"`
	AuditFields
}

func (u User) Enabled() bool {
	return u.Status == StatusEnabled
}

// Profile is the cacheable, password-free view of a user.
func (u User) Profile() UserProfile {
	return UserProfile{
		UserID:   u.ID,
		Username: u.Username,
		Nickname: u.Nickname,
		Email:    u.Email,
		Phone:    u.Phone,
		Avatar:   u.Avatar,
		Gender:   u.Gender,
		Status:   u.Status,
	}
}

type UserProfile struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Avatar   string `json:"avatar"`
	Gender   int    `json:"gender"`
	Status   int    `json:"status"`
}

func (p UserProfile) Enabled() bool {
	return p.Status == StatusEnabled
}

// UserInfo is the public user document returned by login and /auth/me.
type UserInfo struct {
	UserProfile
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
}
