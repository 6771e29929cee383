package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORS allows the configured origins. tokenHeader is added to the allowed
// request headers when the deployment carries tokens somewhere other than
// Authorization.
func CORS(origins []string, tokenHeader string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	headers := []string{"Authorization", "Content-Type", "X-Request-ID"}
	if tokenHeader = strings.TrimSpace(tokenHeader); tokenHeader != "" && !strings.EqualFold(tokenHeader, "Authorization") {
		headers = append(headers, tokenHeader)
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   headers,
		ExposedHeaders:   []string{"Content-Length", "X-Request-ID", "Retry-After"},
		MaxAge:           3600,
		AllowCredentials: false,
	})

	return handler.Handler
}
