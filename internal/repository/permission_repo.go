package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rbac-admin/internal/model"
)

const permissionColumns = `p.id, p.parent_id, p.code, p.name, p.type, p.path, p.component, p.icon,
	p.sort, p.status, p.visible, p.remark, p.created_by, p.created_at, p.updated_by, p.updated_at`

// Tree builders rely on this order for sibling ordering.
const permissionOrder = `ORDER BY p.sort ASC, p.created_at DESC`

type PermissionRepository struct {
	db DBTX
}

func NewPermissionRepository(db DBTX) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// ListByUserID returns the enabled permissions reachable through the user's
// enabled roles. Holders of the admin role get every enabled permission.
func (r *PermissionRepository) ListByUserID(ctx context.Context, userID int64) ([]model.Permission, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+permissionColumns+`
		 FROM permissions p
		 WHERE p.deleted = FALSE AND p.status = $3 AND (
		     EXISTS (
		         SELECT 1 FROM user_roles ur
		         JOIN roles r ON r.id = ur.role_id
		         WHERE ur.user_id = $1 AND r.code = $2 AND r.status = $3 AND r.deleted = FALSE)
		  OR p.id IN (
		         SELECT rp.permission_id FROM role_permissions rp
		         JOIN user_roles ur ON ur.role_id = rp.role_id
		         JOIN roles r ON r.id = rp.role_id
		         WHERE ur.user_id = $1 AND r.status = $3 AND r.deleted = FALSE))
		 `+permissionOrder, userID, model.RoleAdmin, model.StatusEnabled)
	if err != nil {
		return nil, fmt.Errorf("list permissions by user: %w", err)
	}
	return collectPermissions(rows)
}

func (r *PermissionRepository) ListEnabled(ctx context.Context) ([]model.Permission, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+permissionColumns+` FROM permissions p
		 WHERE p.deleted = FALSE AND p.status = $1 `+permissionOrder, model.StatusEnabled)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return collectPermissions(rows)
}

func (r *PermissionRepository) FindByID(ctx context.Context, id int64) (model.Permission, error) {
	p, err := scanPermission(r.db.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions p WHERE p.id = $1 AND p.deleted = FALSE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Permission{}, model.ErrPermissionNotFound
	}
	if err != nil {
		return model.Permission{}, fmt.Errorf("find permission by id: %w", err)
	}
	return p, nil
}

func (r *PermissionRepository) FindByCode(ctx context.Context, code string) (model.Permission, error) {
	p, err := scanPermission(r.db.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions p WHERE p.code = $1 AND p.deleted = FALSE`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Permission{}, model.ErrPermissionNotFound
	}
	if err != nil {
		return model.Permission{}, fmt.Errorf("find permission by code: %w", err)
	}
	return p, nil
}

func (r *PermissionRepository) Create(ctx context.Context, p model.Permission) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO permissions (parent_id, code, name, type, path, component, icon, sort, status,
		                          visible, remark, created_by, created_at, updated_by, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id`,
		p.ParentID, p.Code, p.Name, p.Type, p.Path, p.Component, p.Icon, p.Sort, p.Status,
		p.Visible, p.Remark, p.CreatedBy, p.CreatedAt, p.UpdatedBy, p.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create permission: %w", err)
	}
	return id, nil
}

func (r *PermissionRepository) Update(ctx context.Context, p model.Permission) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE permissions
		 SET parent_id = $2, code = $3, name = $4, type = $5, path = $6, component = $7, icon = $8,
		     sort = $9, status = $10, visible = $11, remark = $12, updated_by = $13, updated_at = $14
		 WHERE id = $1 AND deleted = FALSE`,
		p.ID, p.ParentID, p.Code, p.Name, p.Type, p.Path, p.Component, p.Icon,
		p.Sort, p.Status, p.Visible, p.Remark, p.UpdatedBy, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPermissionNotFound
	}
	return nil
}

func collectPermissions(rows pgx.Rows) ([]model.Permission, error) {
	defer rows.Close()

	permissions := make([]model.Permission, 0)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}

	return permissions, rows.Err()
}

func scanPermission(row pgx.Row) (model.Permission, error) {
	var p model.Permission
	err := row.Scan(&p.ID, &p.ParentID, &p.Code, &p.Name, &p.Type, &p.Path, &p.Component, &p.Icon,
		&p.Sort, &p.Status, &p.Visible, &p.Remark,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedBy, &p.UpdatedAt)
	return p, err
}
