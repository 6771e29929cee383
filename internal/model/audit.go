package model

import "time"

// AuditFields is embedded by every persisted entity. Writers stamp it explicitly
// before handing the entity to a repository.
type AuditFields struct {
	CreatedBy int64     `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedBy int64     `json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a *AuditFields) StampCreate(actorID int64, now time.Time) {
	now = now.UTC()
	a.CreatedBy = actorID
	a.CreatedAt = now
	a.UpdatedBy = actorID
	a.UpdatedAt = now
}

func (a *AuditFields) StampUpdate(actorID int64, now time.Time) {
	a.UpdatedBy = actorID
	a.UpdatedAt = now.UTC()
}
