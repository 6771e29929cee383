package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rbac-admin/internal/config"
	"rbac-admin/internal/handler"
	"rbac-admin/internal/metrics"
	"rbac-admin/internal/middleware"
)

type Handlers struct {
	Auth       *handler.AuthHandler
	Permission *handler.PermissionHandler
	System     *handler.SystemHandler
}

// HealthCheck reports whether a backing store is reachable.
type HealthCheck func(ctx context.Context) error

func New(cfg *config.Config, gate *middleware.AuthGate, m *metrics.Metrics, h Handlers, checks map[string]HealthCheck) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(m.Instrument)
	r.Use(middleware.CORS(cfg.CORSOrigins, cfg.TokenHeader))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", healthHandler(checks))
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(gate.Authenticate)

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Auth.Login)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.Post("/logout", h.Auth.Logout)
			auth.Get("/captcha", h.Auth.Captcha)
			auth.With(gate.RequireAuth).Get("/me", h.Auth.Me)
			auth.With(gate.RequireAuth).Get("/menus", h.Auth.Menus)
		})

		api.Route("/permissions", func(perms chi.Router) {
			perms.With(gate.RequirePermission("system:permission:list")).Get("/tree", h.Permission.Tree)
			perms.With(gate.RequirePermission("system:permission:add")).Post("/", h.Permission.Create)
			perms.With(gate.RequirePermission("system:permission:edit")).Put("/{id}", h.Permission.Update)
		})

		api.Route("/system", func(sys chi.Router) {
			sys.With(gate.RequirePermission("system:online:list")).Get("/online", h.System.Online)
			sys.With(gate.RequirePermission("system:online:kick")).Delete("/online/{userId}", h.System.ForceOffline)
			sys.With(gate.RequirePermission("system:loginlog:list")).Get("/login-logs", h.System.LoginLogs)
			sys.With(gate.RequireRole("admin")).Post("/cache/clear", h.System.ClearCache)
			sys.With(gate.RequirePermission("system:cache:clear")).Delete("/cache/user/{userId}", h.System.RefreshUserCache)
		})
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for name, check := range checks {
			if err := check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(name + " unavailable"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
