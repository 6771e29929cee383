package model

import "time"

const (
	LoginFailed  = 0
	LoginSuccess = 1
)

const maxLoginMessageLen = 200

type LoginLog struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	IP        string    `json:"ip"`
	Location  string    `json:"location,omitempty"`
	UserAgent string    `json:"userAgent"`
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	LoginTime time.Time `json:"loginTime"`
}

// TruncateLoginMessage keeps messages within the login_logs.message column.
func TruncateLoginMessage(message string) string {
	runes := []rune(message)
	if len(runes) <= maxLoginMessageLen {
		return message
	}
	return string(runes[:maxLoginMessageLen]) + "..."
}

type LoginLogQuery struct {
	Username string
	Status   *int
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}
