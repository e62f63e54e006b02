package auth

// Permission represents a named capability.
type Permission string

const (
	PermAutomationRead    Permission = "automation:read"
	PermAutomationExecute Permission = "automation:execute"
	PermStateWrite        Permission = "state:write"
	PermEntityManage      Permission = "entity:manage"
	PermAuditRead         Permission = "audit:read"
)

// rolePermissions is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermAutomationRead,
	},
	RoleOperator: {
		PermAutomationRead,
		PermAutomationExecute,
	},
	RoleService: {
		PermAutomationRead,
		PermAutomationExecute,
		PermStateWrite,
	},
	RoleAdmin: {
		PermAutomationRead,
		PermAutomationExecute,
		PermStateWrite,
		PermEntityManage,
		PermAuditRead,
	},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the role's permissions, or nil for
// an unknown role.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
