package repository

import (
	"context"
	"fmt"

	"rbac-admin/internal/model"
)

type RoleRepository struct {
	db DBTX
}

func NewRoleRepository(db DBTX) *RoleRepository {
	return &RoleRepository{db: db}
}

// ListByUserID returns the enabled roles granted to a user.
func (r *RoleRepository) ListByUserID(ctx context.Context, userID int64) ([]model.Role, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.code, r.name, r.description, r.sort, r.status, r.data_scope,
		        r.created_by, r.created_at, r.updated_by, r.updated_at
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1 AND r.status = $2 AND r.deleted = FALSE
		 ORDER BY r.sort ASC, r.created_at DESC`, userID, model.StatusEnabled)
	if err != nil {
		return nil, fmt.Errorf("list roles by user: %w", err)
	}
	defer rows.Close()

	roles := make([]model.Role, 0)
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Code, &role.Name, &role.Description, &role.Sort,
			&role.Status, &role.DataScope,
			&role.CreatedBy, &role.CreatedAt, &role.UpdatedBy, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}
