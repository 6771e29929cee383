package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rbac-admin/internal/metrics"
)

type DB struct {
	Pool *pgxpool.Pool
}

type Options struct {
	URL      string
	MaxConns int32
	MinConns int32
}

func New(ctx context.Context, opts Options) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("database connected",
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
		"max_conns", opts.MaxConns,
		"min_conns", opts.MinConns,
	)
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *DB) Health(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return errors.New("database not initialized")
	}
	return db.Pool.Ping(ctx)
}

func (db *DB) PoolStats() metrics.PoolStats {
	stat := db.Pool.Stat()
	return metrics.PoolStats{
		Total: int(stat.TotalConns()),
		Idle:  int(stat.IdleConns()),
		InUse: int(stat.AcquiredConns()),
	}
}
