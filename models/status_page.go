package models

import (
	"time"

	"github.com/google/uuid"
)

// StatusPage represents a public or private status page for a project.
type StatusPage struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	ProjectID       uuid.UUID  `json:"project_id" db:"project_id"`
	Name            string     `json:"name" db:"name"`
	Slug            string     `json:"slug" db:"slug"`
	IsPublic        bool       `json:"is_public" db:"is_public"`
	CustomDomain    string     `json:"custom_domain,omitempty" db:"custom_domain"`
	CreatedByUserID *uuid.UUID `json:"created_by_user_id,omitempty" db:"created_by_user_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	DeletedByUserID *uuid.UUID `json:"deleted_by_user_id,omitempty" db:"deleted_by_user_id"`
}

// TableName returns the table name for the StatusPage model
func (StatusPage) TableName() string {
	return "status_pages"
}

// NewStatusPage creates a new StatusPage instance
func NewStatusPage(projectID uuid.UUID, name, slug string) *StatusPage {
	now := time.Now()
	return &StatusPage{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
