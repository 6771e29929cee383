package model

const (
	PermissionTypeDirectory = 1
	PermissionTypeMenu      = 2
	PermissionTypeButton    = 3
)

type Permission struct {
	ID        int64        `json:"id"`
	ParentID  int64        `json:"parentId"`
	Code      string       `json:"code"`
	Name      string       `json:"name"`
	Type      int          `json:"type"`
	Path      string       `json:"path,omitempty"`
	Component string       `json:"component,omitempty"`
	Icon      string       `json:"icon,omitempty"`
	Sort      int          `json:"sort"`
	Status    int          `json:"status"`
	Visible   int          `json:"visible"`
	Remark    string       `json:"remark,omitempty"`
	Children  []Permission `json:"children,omitempty"`
	AuditFields
}

func (p Permission) Enabled() bool {
	return p.Status == StatusEnabled
}

type PermissionRequest struct {
	ParentID  int64  `json:"parentId"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Type      int    `json:"type"`
	Path      string `json:"path"`
	Component string `json:"component"`
	Icon      string `json:"icon"`
	Sort      int    `json:"sort"`
	Status    *int   `json:"status"`
	Visible   *int   `json:"visible"`
	Remark    string `json:"remark"`
}
