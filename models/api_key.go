package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey represents a programmatic access key for a project. The secret is
// stored encrypted; encryption is applied by the datastore pipeline.
type APIKey struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	ProjectID       uuid.UUID  `json:"project_id" db:"project_id"`
	Name            string     `json:"name" db:"name"`
	Secret          string     `json:"-" db:"secret"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedByUserID *uuid.UUID `json:"created_by_user_id,omitempty" db:"created_by_user_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	DeletedByUserID *uuid.UUID `json:"deleted_by_user_id,omitempty" db:"deleted_by_user_id"`
}

// TableName returns the table name for the APIKey model
func (APIKey) TableName() string {
	return "api_keys"
}

// NewAPIKey creates a new APIKey instance
func NewAPIKey(projectID uuid.UUID, name string) *APIKey {
	now := time.Now()
	return &APIKey{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
		Secret:    uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
