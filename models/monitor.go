package models

import (
	"time"

	"github.com/google/uuid"
)

// MonitorType categorizes what a monitor probes.
type MonitorType string

const (
	MonitorTypeWebsite MonitorType = "website"
	MonitorTypeAPI     MonitorType = "api"
	MonitorTypePing    MonitorType = "ping"
	MonitorTypeManual  MonitorType = "manual"
)

// Monitor represents a probed resource belonging to a project.
type Monitor struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	ProjectID       uuid.UUID   `json:"project_id" db:"project_id"`
	Name            string      `json:"name" db:"name"`
	Slug            string      `json:"slug" db:"slug"`
	Description     string      `json:"description,omitempty" db:"description"`
	MonitorType     MonitorType `json:"monitor_type" db:"monitor_type"`
	URL             string      `json:"url,omitempty" db:"url"`
	LabelIDs        []uuid.UUID `json:"labels,omitempty" db:"labels"`
	CreatedByUserID *uuid.UUID  `json:"created_by_user_id,omitempty" db:"created_by_user_id"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time  `json:"deleted_at,omitempty" db:"deleted_at"`
	DeletedByUserID *uuid.UUID  `json:"deleted_by_user_id,omitempty" db:"deleted_by_user_id"`
}

// TableName returns the table name for the Monitor model
func (Monitor) TableName() string {
	return "monitors"
}

// NewMonitor creates a new Monitor instance
func NewMonitor(projectID uuid.UUID, name string, monitorType MonitorType) *Monitor {
	now := time.Now()
	return &Monitor{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Name:        name,
		MonitorType: monitorType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
