package model

type Role struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Sort        int    `json:"sort"`
	Status      int    `json:"status"`
	DataScope   int    `json:"dataScope"`
	AuditFields
}

// RoleAdmin is the role code that passes every permission check.
const RoleAdmin = "admin"
