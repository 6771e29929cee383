package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rbac-admin/internal/model"
)

const adminPasswordCost = 12

type AdminStore interface {
	FindByUsername(ctx context.Context, username string) (model.User, error)
	Create(ctx context.Context, u model.User) (int64, error)
	AssignRole(ctx context.Context, userID int64, roleCode string) error
}

// EnsureAdmin creates the initial administrator when no user with that name
// exists. An empty password disables the bootstrap.
func EnsureAdmin(ctx context.Context, store AdminStore, username string, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil
	}

	_, err := store.FindByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return fmt.Errorf("look up admin user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), adminPasswordCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	user := model.User{
		Username:     username,
		PasswordHash: string(hash),
		Nickname:     "Administrator",
		Status:       model.StatusEnabled,
	}
	user.StampCreate(0, time.Now())

	id, err := store.Create(ctx, user)
	if err != nil {
		return err
	}
	if err := store.AssignRole(ctx, id, model.RoleAdmin); err != nil {
		return err
	}

	slog.Info("admin user created", "user_id", id, "username", username)
	return nil
}
