package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// Timeout bounds handler run time. Handlers that overrun get a 503 with the
// usual error envelope instead of a partial body.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	body, _ := json.Marshal(errorEnvelope("REQUEST_TIMEOUT", "request timed out"))

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
