package accesscontrol

import (
	"github.com/google/uuid"

	"github.com/koroglumert/oneuptimelocal-sub000/models"
)

// CallerKind categorizes who is making the call.
type CallerKind string

const (
	CallerAnonymous CallerKind = "anonymous"
	CallerUser      CallerKind = "user"
	CallerSystem    CallerKind = "system"
	CallerAPI       CallerKind = "api"
)

// GrantedPermission is a single permission token held by a caller, optionally
// scoped to row-level access-control identifiers (labels). An empty LabelIDs
// slice means the token applies to every row the tenant scope admits.
type GrantedPermission struct {
	Permission models.Permission
	LabelIDs   []uuid.UUID
}

// PermissionGrant is a set of granted permissions. A global grant also names
// the projects the caller can reach at all.
type PermissionGrant struct {
	Permissions []GrantedPermission
	ProjectIDs  []uuid.UUID
}

// PermissionList returns the bare permission tokens of the grant.
func (g *PermissionGrant) PermissionList() []models.Permission {
	if g == nil {
		return nil
	}
	perms := make([]models.Permission, 0, len(g.Permissions))
	for _, gp := range g.Permissions {
		perms = append(perms, gp.Permission)
	}
	return perms
}

// CallerContext is the identity and authorization snapshot for one operation.
// It is constructed per-request by the HTTP layer and treated as immutable by
// the engine.
type CallerContext struct {
	// UserID is nil for anonymous callers.
	UserID *uuid.UUID

	Kind CallerKind

	// ProjectID is the current tenant, when one is selected.
	ProjectID *uuid.UUID

	// GlobalGrant spans every project the caller can reach.
	GlobalGrant *PermissionGrant

	// ProjectGrants hold per-tenant permission sets keyed by project id.
	ProjectGrants map[uuid.UUID]*PermissionGrant

	// IsRoot skips all model- and column-level checks. Tenant-scope
	// injection still runs when a project id is supplied.
	IsRoot bool

	// IsMultiTenantRequest marks a query spanning all of the caller's
	// projects; tenant injection is skipped and resolution happens per
	// tenant instead.
	IsMultiTenantRequest bool

	// Plan is the current tenant's billing plan, when billing is enabled.
	Plan *models.PlanType

	SubscriptionUnpaid bool
}

// NewRootContext returns a system-bypass context for trusted internal code.
func NewRootContext() *CallerContext {
	return &CallerContext{Kind: CallerSystem, IsRoot: true}
}

// IsLoggedIn reports whether the caller has an identity.
func (c *CallerContext) IsLoggedIn() bool {
	return c.UserID != nil
}

// GrantFor returns the grant that applies to the given project: the
// project-scoped grant when one exists, the global grant otherwise.
func (c *CallerContext) GrantFor(projectID *uuid.UUID) *PermissionGrant {
	if projectID != nil {
		if grant, ok := c.ProjectGrants[*projectID]; ok {
			return grant
		}
	}
	return c.GlobalGrant
}

// Permissions returns the effective permission tokens for the given project,
// including the implicit tokens every caller of this kind holds.
func (c *CallerContext) Permissions(projectID *uuid.UUID) []models.Permission {
	perms := c.GrantFor(projectID).PermissionList()
	if c.IsLoggedIn() {
		perms = append(perms, models.PermissionUser, models.PermissionCurrentUser)
	}
	perms = append(perms, models.PermissionPublic)
	return perms
}

// WithProject returns a copy of the context pinned to one tenant. Used by
// multi-tenant resolution to evaluate each project independently.
func (c *CallerContext) WithProject(projectID uuid.UUID) *CallerContext {
	clone := *c
	pid := projectID
	clone.ProjectID = &pid
	clone.IsMultiTenantRequest = false
	return &clone
}
