package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"rbac-admin/internal/reqctx"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			info, _ := reqctx.RequestInfoFrom(r.Context())
			slog.Error("panic recovered",
				"request_id", info.RequestID,
				"method", r.Method,
				"path", r.URL.Path,
				"error", fmt.Sprintf("%v", recovered),
				"stack", string(debug.Stack()),
			)
			writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
		}()

		next.ServeHTTP(w, r)
	})
}
