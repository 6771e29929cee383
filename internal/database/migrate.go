package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_initial.up.sql
var initialMigrationSQL string

//go:embed migrations/002_seed.up.sql
var seedSQL string

var requiredTables = []string{
	"users",
	"roles",
	"permissions",
	"user_roles",
	"role_permissions",
	"login_logs",
}

func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	exists, err := db.hasAllRequiredTables(ctx)
	if err != nil {
		return fmt.Errorf("check existing tables: %w", err)
	}

	if !exists {
		slog.Info("database schema missing tables; applying initial migration")
		if _, err := db.Pool.Exec(ctx, initialMigrationSQL); err != nil {
			return fmt.Errorf("apply initial migration: %w", err)
		}

		exists, err = db.hasAllRequiredTables(ctx)
		if err != nil {
			return fmt.Errorf("re-check tables after migration: %w", err)
		}

		if !exists {
			return fmt.Errorf("schema initialization incomplete: required tables are still missing")
		}
	}

	if err := db.applySeed(ctx); err != nil {
		return fmt.Errorf("apply seed migration: %w", err)
	}

	slog.Info("database schema ensured")
	return nil
}

// applySeed runs migration 002 once, on a database without roles.
// The SQL uses ON CONFLICT so it is safe to re-run.
func (db *DB) applySeed(ctx context.Context) error {
	var roles int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles`).Scan(&roles); err != nil {
		return fmt.Errorf("count roles: %w", err)
	}
	if roles > 0 {
		return nil
	}

	slog.Info("seeding default roles and permissions (002)")
	if _, err := db.Pool.Exec(ctx, seedSQL); err != nil {
		return fmt.Errorf("exec seed SQL: %w", err)
	}
	return nil
}

func (db *DB) hasAllRequiredTables(ctx context.Context) (bool, error) {
	var count int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name = ANY($1)
	`, requiredTables).Scan(&count)
	if err != nil {
		return false, err
	}

	return count == len(requiredTables), nil
}
