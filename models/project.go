package models

import (
	"time"

	"github.com/google/uuid"
)

// Project represents a tenant in the multi-tenant system. Every other
// entity is partitioned by its project_id column.
type Project struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	Name               string     `json:"name" db:"name"`
	Slug               string     `json:"slug" db:"slug"` // URL-friendly identifier
	PlanType           PlanType   `json:"plan_type" db:"plan_type"`
	SubscriptionUnpaid bool       `json:"subscription_unpaid" db:"subscription_unpaid"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	DeletedByUserID    *uuid.UUID `json:"deleted_by_user_id,omitempty" db:"deleted_by_user_id"`
}

// TableName returns the table name for the Project model
func (Project) TableName() string {
	return "projects"
}

// NewProject creates a new Project instance
func NewProject(name, slug string) *Project {
	now := time.Now()
	return &Project{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug,
		PlanType:  PlanFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
