package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"rbac-admin/internal/cache"
	"rbac-admin/internal/captcha"
	"rbac-admin/internal/config"
	"rbac-admin/internal/database"
	"rbac-admin/internal/handler"
	"rbac-admin/internal/metrics"
	"rbac-admin/internal/middleware"
	"rbac-admin/internal/repository"
	"rbac-admin/internal/router"
	"rbac-admin/internal/service"
	"rbac-admin/internal/token"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	rdb, err := NewRedisClient(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	permissionRepo := repository.NewPermissionRepository(pool)
	loginLogRepo := repository.NewLoginLogRepository(pool)
	slog.Info("database ready")

	if err := service.EnsureAdmin(ctx, userRepo, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		_ = rdb.Close()
		db.Close()
		return nil, fmt.Errorf("failed to bootstrap admin user: %w", err)
	}

	codec, err := token.NewCodec(cfg.JWTSecret)
	if err != nil {
		_ = rdb.Close()
		db.Close()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	m := metrics.New()
	m.RegisterPool("postgres", db.PoolStats)
	m.RegisterPool("redis", func() metrics.PoolStats {
		stat := rdb.PoolStats()
		return metrics.PoolStats{
			Total: int(stat.TotalConns),
			Idle:  int(stat.IdleConns),
			InUse: int(stat.TotalConns) - int(stat.IdleConns),
		}
	})
	sessions := cache.NewSessionRegistry(rdb)
	revocations := cache.NewRevocationStore(rdb)
	derived := cache.NewDerivedCache(rdb, sessions, cache.TTLs{
		Profile:     cfg.ProfileCacheTTL,
		Permissions: cfg.PermissionCacheTTL,
		Roles:       cfg.RoleCacheTTL,
	})

	permissionService := service.NewPermissionService(permissionRepo, roleRepo, derived)
	authService := service.NewAuthService(service.AuthDeps{
		Codec:       codec,
		Revocations: revocations,
		Sessions:    sessions,
		Derived:     derived,
		Captchas:    cache.NewCaptchaStore(rdb),
		Generator:   captcha.NewGenerator(),
		Users:       userRepo,
		LoginLogs:   loginLogRepo,
		Permissions: permissionService,
		Metrics:     m,
	}, service.AuthOptions{
		AccessTTL:       cfg.JWTAccessTTL,
		RefreshTTL:      cfg.JWTRefreshTTL,
		CaptchaTTL:      cfg.CaptchaTTL,
		CaptchaRequired: cfg.CaptchaRequired,
	})
	sessionService := service.NewSessionService(codec, sessions, revocations, derived, m)

	gate := middleware.NewAuthGate(codec, revocations, authService, cfg.TokenHeader, cfg.TokenPrefix, m)

	appRouter := router.New(cfg, gate, m, router.Handlers{
		Auth:       handler.NewAuthHandler(authService, permissionService, gate),
		Permission: handler.NewPermissionHandler(permissionService),
		System:     handler.NewSystemHandler(sessionService, loginLogRepo),
	}, map[string]router.HealthCheck{
		"database": db.Health,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		cleanupFuncs: []func(){
			func() {
				if err := rdb.Close(); err != nil {
					slog.Warn("redis close failed", "error", err)
				}
			},
			func() {
				db.Close()
			},
		},
	}, nil
}

func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	slog.Info("redis connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return rdb, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	slog.Info("server stopped")
	return nil
}
