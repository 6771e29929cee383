package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"rbac-admin/internal/model"
)

const userColumns = `id, username, password_hash, nickname, email, phone, avatar, gender, status,
	last_login_time, last_login_ip, created_by, created_at, updated_by, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted = FALSE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1) AND deleted = FALSE`,
		strings.TrimSpace(username)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by username: %w", err)
	}
	return u, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, ip string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET last_login_time = $2, last_login_ip = $3 WHERE id = $1`,
		id, at, ip)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, nickname, email, phone, avatar, gender, status,
		                    created_by, created_at, updated_by, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		u.Username, u.PasswordHash, u.Nickname, u.Email, u.Phone, u.Avatar, u.Gender, u.Status,
		u.CreatedBy, u.CreatedAt, u.UpdatedBy, u.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func (r *UserRepository) AssignRole(ctx context.Context, userID int64, roleCode string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id)
		 SELECT $1, id FROM roles WHERE code = $2
		 ON CONFLICT DO NOTHING`, userID, roleCode)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Nickname, &u.Email, &u.Phone,
		&u.Avatar, &u.Gender, &u.Status, &u.LastLoginTime, &u.LastLoginIP,
		&u.CreatedBy, &u.CreatedAt, &u.UpdatedBy, &u.UpdatedAt)
	return u, err
}
