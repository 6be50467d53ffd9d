package models

// Permission is a permission token granted to a caller, either globally or
// scoped to a project (tenant).
type Permission string

const (
	// PermissionPublic marks operations open to anonymous callers, such as
	// reading a public status page.
	PermissionPublic Permission = "Public"

	// PermissionUser is held by any logged-in user regardless of project.
	PermissionUser Permission = "User"

	// PermissionCurrentUser restricts an operation to rows belonging to the
	// caller (user-column scoping).
	PermissionCurrentUser Permission = "CurrentUser"

	// Project-scoped roles.
	PermissionProjectOwner  Permission = "ProjectOwner"
	PermissionProjectAdmin  Permission = "ProjectAdmin"
	PermissionProjectMember Permission = "ProjectMember"
	PermissionProjectViewer Permission = "ProjectViewer"

	// PermissionManageBilling guards billing-sensitive columns.
	PermissionManageBilling Permission = "ManageProjectBilling"
)

// PermissionsIntersect reports whether any permission in have satisfies need.
func PermissionsIntersect(need, have []Permission) bool {
	for _, n := range need {
		for _, h := range have {
			if n == h {
				return true
			}
		}
	}
	return false
}

// PermissionNames renders a permission set for error messages.
func PermissionNames(perms []Permission) []string {
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, string(p))
	}
	return names
}
