// Package catalog registers the entity descriptors the access-control
// engine evaluates against. Descriptors are static: they are built once at
// startup and never change at runtime.
package catalog

import (
	"github.com/koroglumert/oneuptimelocal-sub000/models"
	"github.com/koroglumert/oneuptimelocal-sub000/services/accesscontrol"
)

var (
	owners      = []models.Permission{models.PermissionProjectOwner}
	admins      = []models.Permission{models.PermissionProjectOwner, models.PermissionProjectAdmin}
	members     = []models.Permission{models.PermissionProjectOwner, models.PermissionProjectAdmin, models.PermissionProjectMember}
	readers     = []models.Permission{models.PermissionProjectOwner, models.PermissionProjectAdmin, models.PermissionProjectMember, models.PermissionProjectViewer}
	billingOnly = []models.Permission{models.PermissionProjectOwner, models.PermissionManageBilling}

	// publicReaders additionally admits anonymous callers; the public
	// status-page route pins the row filter itself.
	publicReaders = append([]models.Permission{models.PermissionPublic}, readers...)
)

// NewRegistry builds the full descriptor registry.
func NewRegistry() *accesscontrol.Registry {
	r := accesscontrol.NewRegistry()
	r.MustRegister(projectDescriptor())
	r.MustRegister(userDescriptor())
	r.MustRegister(labelDescriptor())
	r.MustRegister(monitorDescriptor())
	r.MustRegister(incidentDescriptor())
	r.MustRegister(statusPageDescriptor())
	r.MustRegister(apiKeyDescriptor())
	return r
}

// projectDescriptor describes the tenant entity itself. The tenant column
// is the project's own id, so a caller pinned to a project only sees that
// project's row.
func projectDescriptor() *accesscontrol.EntityDescriptor {
	return &accesscontrol.EntityDescriptor{
		Table:        models.Project{}.TableName(),
		TenantColumn: "id",
		Columns: map[string]accesscontrol.Column{
			"name":                {Kind: accesscontrol.ColumnScalar},
			"slug":                {Kind: accesscontrol.ColumnScalar},
			"plan_type":           {Kind: accesscontrol.ColumnScalar},
			"subscription_unpaid": {Kind: accesscontrol.ColumnScalar},
		},
		ModelPermissions: map[accesscontrol.Operation][]models.Permission{
			accesscontrol.OperationCreate: {models.PermissionUser},
			accesscontrol.OperationRead:   readers,
			accesscontrol.OperationUpdate: admins,
			accesscontrol.OperationDelete: owners,
		},
		ColumnPermissions: map[string]accesscontrol.AccessControl{
			"plan_type":           {Read: readers, Update: billingOnly},
			"subscription_unpaid": {Read: readers, Update: billingOnly},
		},
		RequiredColumns:  []string{"name"},
		SlugSourceColumn: "name",
		SlugColumn:       "slug",
		Defaults: map[string]func() interface{}{
			"plan_type":           func() interface{} { return models.PlanFree },
			"subscription_unpaid": func() interface{} { return false },
		},
		ForceDefaultOnCreate: map[string]bool{
			"plan_type":           true,
			"subscription_unpaid": true,
		},
		// Billing management must stay reachable when the subscription is
		// unpaid, otherwise the tenant can never recover.
		AllowUnpaidAccess:       true,
		RelationReadableColumns: []string{"name", "slug"},
	}
}

// userDescriptor describes the global user entity. Users are not tenant
// scoped; a logged-in caller queries their own row without a project.
func userDescriptor() *accesscontrol.EntityDescriptor {
	return &accesscontrol.EntityDescriptor{
		Table:                       models.User{}.TableName(),
		UserColumn:                  "id",
		AllowUserQueryWithoutTenant: true,
		AllowUnpaidAccess:           true,
		Columns: map[string]accesscontrol.Column{
			"email":    {Kind: accesscontrol.ColumnScalar},
			"name":     {Kind: accesscontrol.ColumnScalar},
			"password": {Kind: accesscontrol.ColumnScalar},
		},
		ModelPermissions: map[accesscontrol.Operation][]models.Permission{
			// Signup is open; everything else is the user themselves.
			accesscontrol.OperationCreate: {models.PermissionPublic},
			accesscontrol.OperationRead:   {models.PermissionCurrentUser},
			accesscontrol.OperationUpdate: {models.PermissionCurrentUser},
			accesscontrol.OperationDelete: {models.PermissionCurrentUser},
		},
		ColumnPermissions: map[string]accesscontrol.AccessControl{
			// The password hash is never readable, not even by its owner.
			"password": {Read: []models.Permission{}},
		},
		RequiredColumns:         []string{"email", "name"},
		UniqueColumns:           []string{"email"},
		HashedColumns:           []string{"password"},
		RelationReadableColumns: []string{"name"},
	}
}

func labelDescriptor() *accesscontrol.EntityDescriptor {
	return &accesscontrol.EntityDescriptor{
		Table:        models.Label{}.TableName(),
		TenantColumn: "project_id",
		Columns: map[string]accesscontrol.Column{
			"project_id": {Kind: accesscontrol.ColumnEntity, RelatedTable: models.Project{}.TableName()},
			"name":       {Kind: accesscontrol.ColumnScalar},
			"color":      {Kind: accesscontrol.ColumnScalar},
		},
		ModelPermissions: map[accesscontrol.Operation][]models.Permission{
			accesscontrol.OperationCreate: admins,
			accesscontrol.OperationRead:   readers,
			accesscontrol.OperationUpdate: admins,
			accesscontrol.OperationDelete: admins,
		},
		RequiredColumns:    []string{"name", "project_id"},
		UniqueColumnGroups: [][]string{{"project_id", "name"}},
		Defaults: map[string]func() interface{}{
			"color": func() interface{} { return "#000000" },
		},
		RelationReadableColumns: []string{"name", "color"},
	}
}

func monitorDescriptor() *accesscontrol.EntityDescriptor {
	return &accesscontrol.EntityDescriptor{
		Table:               models.Monitor{}.TableName(),
		TenantColumn:        "project_id",
		AccessControlColumn: "labels",
		Columns: map[string]accesscontrol.Column{
			"project_id":         {Kind: accesscontrol.ColumnEntity, RelatedTable: models.Project{}.TableName()},
			"name":               {Kind: accesscontrol.ColumnScalar},
			"slug":               {Kind: accesscontrol.ColumnScalar},
			"description":        {Kind: accesscontrol.ColumnScalar},
			"monitor_type":       {Kind: accesscontrol.ColumnScalar},
			"url":                {Kind: accesscontrol.ColumnScalar},
			"labels":             {Kind: accesscontrol.ColumnEntityArray, RelatedTable: models.Label{}.TableName()},
			"created_by_user_id": {Kind: accesscontrol.ColumnEntity, RelatedTable: models.User{}.TableName()},
		},
		ModelPermissions: map[accesscontrol.Operation][]models.Permission{
			accesscontrol.OperationCreate: members,
			accesscontrol.OperationRead:   readers,
			accesscontrol.OperationUpdate: members,
			accesscontrol.OperationDelete: admins,
		},
		RequiredColumns:    []string{"name", "project_id", "monitor_type"},
		UniqueColumnGroups: [][]string{{"project_id", "name"}},
		SlugSourceColumn:   "name",
		SlugColumn:         "slug",
		ItemLimit: &accesscontrol.ItemLimit{
			GroupColumn: "project_id",
			Max:         100,
		},
		RelationReadableColumns: []string{"name", "slug", "monitor_type"},
	}
}

func incidentDescriptor() *accesscontrol.EntityDescriptor {
	return &accesscontrol.EntityDescriptor{
		Table:               models.Incident{}.TableName(),
		TenantColumn:        "project_id",
		AccessControlColumn: "labels",
		Columns: map[string]accesscontrol.Column{
			"project_id":                {Kind: accesscontrol.ColumnEntity, RelatedTable: models.Project{}.TableName()},
			"title":                     {Kind: accesscontrol.ColumnScalar},
			"description":               {Kind: accesscontrol.ColumnScalar},
			"severity":                  {Kind: accesscontrol.ColumnScalar},
			"monitor":                   {Kind: accesscontrol.ColumnEntity, RelatedTable: models.Monitor{}.TableName(), Alias: "monitor_id"},
			"monitor_id":                {Kind: accesscontrol.ColumnEntity, RelatedTable: models.Monitor{}.TableName()},
			"labels":                    {Kind: accesscontrol.ColumnEntityArray, RelatedTable: models.Label{}.TableName()},
			"is_visible_on_status_page": {Kind: accesscontrol.ColumnScalar},
			"created_by_user_id":        {Kind: accesscontrol.ColumnEntity, RelatedTable: models.User{}.TableName()},
		},
		ModelPermissions: map[accesscontrol.Operation][]models.Permission{
			accesscontrol.OperationCreate: members,
			accesscontrol.OperationRead:   publicReaders,
			accesscontrol.OperationUpdate: members,
			accesscontrol.OperationDelete: admins,
		},
		RequiredColumns: []string{"title", "project_id", "severity"},
		Defaults: map[string]func() interface{}{
			"severity":                  func() interface{} { return models.SeverityMinor },
			"is_visible_on_status_page": func() interface{} { return true },
		},
		// A caller who can read a monitor can read its incidents even when
		// their labels do not overlap the incident's own labels.
		CanAccessIfCanReadOn: &accesscontrol.ReadDelegation{
			Table:          models.Monitor{}.TableName(),
			RelationColumn: "monitor_id",
		},
		RelationReadableColumns: []string{"title", "severity"},
	}
}

func statusPageDescriptor() *accesscontrol.EntityDescriptor {
	return &accesscontrol.EntityDescriptor{
		Table:        models.StatusPage{}.TableName(),
		TenantColumn: "project_id",
		Columns: map[string]accesscontrol.Column{
			"project_id":         {Kind: accesscontrol.ColumnEntity, RelatedTable: models.Project{}.TableName()},
			"name":               {Kind: accesscontrol.ColumnScalar},
			"slug":               {Kind: accesscontrol.ColumnScalar},
			"is_public":          {Kind: accesscontrol.ColumnScalar},
			"custom_domain":      {Kind: accesscontrol.ColumnScalar},
			"created_by_user_id": {Kind: accesscontrol.ColumnEntity, RelatedTable: models.User{}.TableName()},
		},
		ModelPermissions: map[accesscontrol.Operation][]models.Permission{
			accesscontrol.OperationCreate: admins,
			accesscontrol.OperationRead:   publicReaders,
			accesscontrol.OperationUpdate: admins,
			accesscontrol.OperationDelete: owners,
		},
		ColumnBilling: map[string]accesscontrol.BillingAccessControl{
			"custom_domain": {
				Create: models.PlanScale,
				Update: models.PlanScale,
			},
		},
		RequiredColumns:    []string{"name", "project_id"},
		UniqueColumnGroups: [][]string{{"project_id", "name"}},
		SlugSourceColumn:   "name",
		SlugColumn:         "slug",
		Defaults: map[string]func() interface{}{
			"is_public": func() interface{} { return false },
		},
		ItemLimit: &accesscontrol.ItemLimit{
			GroupColumn: "project_id",
			Max:         10,
		},
	}
}

func apiKeyDescriptor() *accesscontrol.EntityDescriptor {
	return &accesscontrol.EntityDescriptor{
		Table:        models.APIKey{}.TableName(),
		TenantColumn: "project_id",
		Columns: map[string]accesscontrol.Column{
			"project_id":         {Kind: accesscontrol.ColumnEntity, RelatedTable: models.Project{}.TableName()},
			"name":               {Kind: accesscontrol.ColumnScalar},
			"secret":             {Kind: accesscontrol.ColumnScalar},
			"expires_at":         {Kind: accesscontrol.ColumnScalar},
			"created_by_user_id": {Kind: accesscontrol.ColumnEntity, RelatedTable: models.User{}.TableName()},
		},
		ModelPermissions: map[accesscontrol.Operation][]models.Permission{
			accesscontrol.OperationCreate: admins,
			accesscontrol.OperationRead:   admins,
			accesscontrol.OperationUpdate: admins,
			accesscontrol.OperationDelete: admins,
		},
		ColumnPermissions: map[string]accesscontrol.AccessControl{
			"secret": {Read: admins},
		},
		RequiredColumns:    []string{"name", "project_id"},
		UniqueColumnGroups: [][]string{{"project_id", "name"}},
		EncryptedColumns:   []string{"secret"},
	}
}
