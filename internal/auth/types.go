package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can list device automations, read state and check conditions.
	RoleViewer Role = "viewer"

	// RoleOperator can also execute actions and subscribe to triggers.
	RoleOperator Role = "operator"

	// RoleAdmin can also manage the entity registry and read the audit trail.
	RoleAdmin Role = "admin"

	// RoleService is a machine identity (another Gray Logic service) with
	// operator rights.
	RoleService Role = "service"
)

// ValidRoles lists every role a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin, RoleService}

// IsValidRole reports whether r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token has expired")
	ErrForbidden    = errors.New("auth: insufficient permissions")
)
