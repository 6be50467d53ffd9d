package models

import (
	"time"

	"github.com/google/uuid"
)

// IncidentSeverity represents how severe an incident is.
type IncidentSeverity string

const (
	SeverityMinor    IncidentSeverity = "minor"
	SeverityMajor    IncidentSeverity = "major"
	SeverityCritical IncidentSeverity = "critical"
)

// Incident represents a service incident within a project. Incidents may be
// attached to a monitor and tagged with labels for row-level scoping.
type Incident struct {
	ID                    uuid.UUID        `json:"id" db:"id"`
	ProjectID             uuid.UUID        `json:"project_id" db:"project_id"`
	Title                 string           `json:"title" db:"title"`
	Description           string           `json:"description,omitempty" db:"description"`
	Severity              IncidentSeverity `json:"severity" db:"severity"`
	MonitorID             *uuid.UUID       `json:"monitor_id,omitempty" db:"monitor_id"`
	LabelIDs              []uuid.UUID      `json:"labels,omitempty" db:"labels"`
	IsVisibleOnStatusPage bool             `json:"is_visible_on_status_page" db:"is_visible_on_status_page"`
	CreatedByUserID       *uuid.UUID       `json:"created_by_user_id,omitempty" db:"created_by_user_id"`
	CreatedAt             time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at" db:"updated_at"`
	DeletedAt             *time.Time       `json:"deleted_at,omitempty" db:"deleted_at"`
	DeletedByUserID       *uuid.UUID       `json:"deleted_by_user_id,omitempty" db:"deleted_by_user_id"`
}

// TableName returns the table name for the Incident model
func (Incident) TableName() string {
	return "incidents"
}

// NewIncident creates a new Incident instance
func NewIncident(projectID uuid.UUID, title string, severity IncidentSeverity) *Incident {
	now := time.Now()
	return &Incident{
		ID:        uuid.New(),
		ProjectID: projectID,
		Title:     title,
		Severity:  severity,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
