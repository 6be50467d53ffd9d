package models

import (
	"time"

	"github.com/google/uuid"
)

// Label is a row-level access-control identifier. Monitors and incidents
// carry label ids; a caller whose grant is scoped to labels only sees rows
// tagged with one of those labels.
type Label struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	ProjectID       uuid.UUID  `json:"project_id" db:"project_id"`
	Name            string     `json:"name" db:"name"`
	Color           string     `json:"color" db:"color"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	DeletedByUserID *uuid.UUID `json:"deleted_by_user_id,omitempty" db:"deleted_by_user_id"`
}

// TableName returns the table name for the Label model
func (Label) TableName() string {
	return "labels"
}

// NewLabel creates a new Label instance
func NewLabel(projectID uuid.UUID, name, color string) *Label {
	now := time.Now()
	return &Label{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
