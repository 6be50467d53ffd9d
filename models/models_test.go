package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "projects", Project{}.TableName())
	assert.Equal(t, "users", User{}.TableName())
	assert.Equal(t, "labels", Label{}.TableName())
	assert.Equal(t, "monitors", Monitor{}.TableName())
	assert.Equal(t, "incidents", Incident{}.TableName())
	assert.Equal(t, "status_pages", StatusPage{}.TableName())
	assert.Equal(t, "api_keys", APIKey{}.TableName())
}

func TestNewProject(t *testing.T) {
	p := NewProject("Acme", "acme")

	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, "Acme", p.Name)
	assert.Equal(t, "acme", p.Slug)
	assert.Equal(t, PlanFree, p.PlanType)
	assert.False(t, p.SubscriptionUnpaid)
	assert.Nil(t, p.DeletedAt)
}

func TestNewIncident(t *testing.T) {
	projectID := uuid.New()
	inc := NewIncident(projectID, "API outage", SeverityMajor)

	assert.NotEqual(t, uuid.Nil, inc.ID)
	assert.Equal(t, projectID, inc.ProjectID)
	assert.Equal(t, "API outage", inc.Title)
	assert.Equal(t, SeverityMajor, inc.Severity)
	assert.False(t, inc.IsVisibleOnStatusPage)
}

func TestPermissionsIntersect(t *testing.T) {
	need := []Permission{PermissionProjectOwner, PermissionProjectMember}

	assert.True(t, PermissionsIntersect(need, []Permission{PermissionProjectMember}))
	assert.True(t, PermissionsIntersect(need, []Permission{PermissionUser, PermissionProjectOwner}))
	assert.False(t, PermissionsIntersect(need, []Permission{PermissionProjectViewer}))
	assert.False(t, PermissionsIntersect(need, nil))
	assert.False(t, PermissionsIntersect(nil, []Permission{PermissionProjectOwner}))
}

func TestIsFeatureAccessibleOnPlan(t *testing.T) {
	tests := []struct {
		name     string
		required PlanType
		current  PlanType
		want     bool
	}{
		{"ungated feature", "", PlanFree, true},
		{"same plan", PlanGrowth, PlanGrowth, true},
		{"higher plan", PlanGrowth, PlanEnterprise, true},
		{"lower plan", PlanScale, PlanGrowth, false},
		{"unknown current plan never unlocks", PlanFree, PlanType("Trial"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFeatureAccessibleOnPlan(tt.required, tt.current))
		})
	}
}
