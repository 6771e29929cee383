package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rbac-admin/internal/cache"
	"rbac-admin/internal/model"
)

type PermissionStore interface {
	ListByUserID(ctx context.Context, userID int64) ([]model.Permission, error)
	ListEnabled(ctx context.Context) ([]model.Permission, error)
	FindByID(ctx context.Context, id int64) (model.Permission, error)
	FindByCode(ctx context.Context, code string) (model.Permission, error)
	Create(ctx context.Context, p model.Permission) (int64, error)
	Update(ctx context.Context, p model.Permission) error
}

type RoleStore interface {
	ListByUserID(ctx context.Context, userID int64) ([]model.Role, error)
}

// PermissionService resolves a user's permissions and roles, reading through
// the derived-data cache, and owns the permission tree.
type PermissionService struct {
	permissions PermissionStore
	roles       RoleStore
	cache       *cache.DerivedCache
	now         func() time.Time
}

func NewPermissionService(permissions PermissionStore, roles RoleStore, derived *cache.DerivedCache) *PermissionService {
	return &PermissionService{
		permissions: permissions,
		roles:       roles,
		cache:       derived,
		now:         time.Now,
	}
}

func (s *PermissionService) PermissionsForUser(ctx context.Context, userID int64) ([]model.Permission, error) {
	if cached, ok := s.cache.GetPermissions(ctx, userID); ok {
		return cached, nil
	}

	permissions, err := s.permissions.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load permissions for user %d: %w", userID, err)
	}
	if permissions == nil {
		permissions = []model.Permission{}
	}

	s.cache.PutPermissions(ctx, userID, permissions, 0)
	return permissions, nil
}

func (s *PermissionService) RolesForUser(ctx context.Context, userID int64) ([]model.Role, error) {
	if cached, ok := s.cache.GetRoles(ctx, userID); ok {
		return cached, nil
	}

	roles, err := s.roles.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load roles for user %d: %w", userID, err)
	}
	if roles == nil {
		roles = []model.Role{}
	}

	s.cache.PutRoles(ctx, userID, roles, 0)
	return roles, nil
}

func (s *PermissionService) Tree(ctx context.Context) ([]model.Permission, error) {
	permissions, err := s.permissions.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("load permission tree: %w", err)
	}
	return BuildTree(permissions), nil
}

// UserTree is the navigation menu for one user: directories and menus only.
func (s *PermissionService) UserTree(ctx context.Context, userID int64) ([]model.Permission, error) {
	permissions, err := s.PermissionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	menus := make([]model.Permission, 0, len(permissions))
	for _, p := range permissions {
		if p.Type == model.PermissionTypeButton || !p.Enabled() {
			continue
		}
		menus = append(menus, p)
	}

	return BuildTree(menus), nil
}

// BuildTree arranges a flat, ordered list into a forest. Nodes with parent 0
// are roots, siblings keep their input order, and nodes whose parent is not in
// the list are dropped.
func BuildTree(nodes []model.Permission) []model.Permission {
	byParent := make(map[int64][]model.Permission, len(nodes))
	for _, node := range nodes {
		node.Children = nil
		byParent[node.ParentID] = append(byParent[node.ParentID], node)
	}

	visited := make(map[int64]bool, len(nodes))
	var attach func(parentID int64) []model.Permission
	attach = func(parentID int64) []model.Permission {
		children := byParent[parentID]
		out := make([]model.Permission, 0, len(children))
		for _, child := range children {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			if grandchildren := attach(child.ID); len(grandchildren) > 0 {
				child.Children = grandchildren
			}
			out = append(out, child)
		}
		return out
	}

	return attach(0)
}

func PermissionCodes(permissions []model.Permission) []string {
	codes := make([]string, 0, len(permissions))
	seen := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		if p.Code == "" {
			continue
		}
		if _, ok := seen[p.Code]; ok {
			continue
		}
		seen[p.Code] = struct{}{}
		codes = append(codes, p.Code)
	}
	return codes
}

func RoleCodes(roles []model.Role) []string {
	codes := make([]string, 0, len(roles))
	for _, r := range roles {
		if r.Code != "" {
			codes = append(codes, r.Code)
		}
	}
	return codes
}

func (s *PermissionService) CreatePermission(ctx context.Context, req model.PermissionRequest, actorID int64) (model.Permission, error) {
	p, err := permissionFromRequest(req)
	if err != nil {
		return model.Permission{}, err
	}

	if err := s.ensureCodeFree(ctx, p.Code, 0); err != nil {
		return model.Permission{}, err
	}
	if err := s.ensureParent(ctx, 0, p.ParentID); err != nil {
		return model.Permission{}, err
	}

	p.StampCreate(actorID, s.now())
	id, err := s.permissions.Create(ctx, p)
	if err != nil {
		return model.Permission{}, fmt.Errorf("create permission: %w", err)
	}
	p.ID = id
	s.cache.InvalidateAllPermissions(ctx)

	return p, nil
}

func (s *PermissionService) UpdatePermission(ctx context.Context, id int64, req model.PermissionRequest, actorID int64) (model.Permission, error) {
	existing, err := s.permissions.FindByID(ctx, id)
	if err != nil {
		return model.Permission{}, err
	}

	p, err := permissionFromRequest(req)
	if err != nil {
		return model.Permission{}, err
	}
	p.ID = existing.ID
	p.AuditFields = existing.AuditFields

	if err := s.ensureCodeFree(ctx, p.Code, p.ID); err != nil {
		return model.Permission{}, err
	}
	if err := s.ensureParent(ctx, p.ID, p.ParentID); err != nil {
		return model.Permission{}, err
	}

	p.StampUpdate(actorID, s.now())
	if err := s.permissions.Update(ctx, p); err != nil {
		return model.Permission{}, fmt.Errorf("update permission: %w", err)
	}
	s.cache.InvalidateAllPermissions(ctx)

	return p, nil
}

func (s *PermissionService) ensureCodeFree(ctx context.Context, code string, selfID int64) error {
	found, err := s.permissions.FindByCode(ctx, code)
	switch {
	case errors.Is(err, model.ErrPermissionNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("check permission code: %w", err)
	case found.ID != selfID:
		return model.ErrPermissionCodeExists
	}
	return nil
}

// ensureParent walks from parentID to the root. Reaching selfID means the
// write would make the node its own ancestor.
func (s *PermissionService) ensureParent(ctx context.Context, selfID int64, parentID int64) error {
	if parentID == 0 {
		return nil
	}
	if selfID != 0 && parentID == selfID {
		return model.ErrPermissionCycle
	}

	seen := map[int64]bool{}
	current := parentID
	for current != 0 {
		if selfID != 0 && current == selfID {
			return model.ErrPermissionCycle
		}
		if seen[current] {
			return model.ErrPermissionCycle
		}
		seen[current] = true

		node, err := s.permissions.FindByID(ctx, current)
		if errors.Is(err, model.ErrPermissionNotFound) {
			if current == parentID {
				return model.ErrParentNotFound
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("check permission parent: %w", err)
		}
		current = node.ParentID
	}

	return nil
}

func permissionFromRequest(req model.PermissionRequest) (model.Permission, error) {
	code := strings.TrimSpace(req.Code)
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return model.Permission{}, fmt.Errorf("%w: code and name are required", model.ErrInvalidInput)
	}
	if req.Type < model.PermissionTypeDirectory || req.Type > model.PermissionTypeButton {
		return model.Permission{}, fmt.Errorf("%w: type must be 1, 2 or 3", model.ErrInvalidInput)
	}
	if req.ParentID < 0 {
		return model.Permission{}, fmt.Errorf("%w: parentId cannot be negative", model.ErrInvalidInput)
	}

	p := model.Permission{
		ParentID:  req.ParentID,
		Code:      code,
		Name:      name,
		Type:      req.Type,
		Path:      strings.TrimSpace(req.Path),
		Component: strings.TrimSpace(req.Component),
		Icon:      strings.TrimSpace(req.Icon),
		Sort:      req.Sort,
		Status:    model.StatusEnabled,
		Visible:   1,
		Remark:    req.Remark,
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	if req.Visible != nil {
		p.Visible = *req.Visible
	}

	return p, nil
}
