package auth

import "strings"

// Role is the session's role name. The closed set below is special-cased by
// evaluation; other role names are legal and evaluate as scoped roles.
type Role string

const (
	RoleSuperAdmin Role = "Super Admin"
	RoleAdmin      Role = "Admin"
	RoleManager    Role = "Manager"
	RoleTelecaller Role = "Telecaller"
	RoleFinance    Role = "Finance"
)

// RoleClass is the evaluation variant of a role. Admin-class roles bypass the
// grant list entirely; scoped roles are data-driven.
type RoleClass int

const (
	ClassScoped RoleClass = iota
	ClassAdmin
	ClassSuperAdmin
)

// Class maps a role name to its evaluation variant.
func (r Role) Class() RoleClass {
	switch r {
	case RoleSuperAdmin:
		return ClassSuperAdmin
	case RoleAdmin:
		return ClassAdmin
	default:
		return ClassScoped
	}
}

// actionRoles grants named action capabilities that are not tied to a module
// grant. Checked only after the module grant lookup misses.
var actionRoles = map[string][]Role{
	"approve_budget": {RoleManager, RoleFinance},
}

// HasPermission decides whether the session is granted the requested
// capability. It is pure and never panics:
//
//   - no session: deny everything
//   - Super Admin / Admin class: allow everything
//   - otherwise the first grant whose module matches case-insensitively
//     decides: allowed iff view == 1 or full_access == 1
//   - unmatched capabilities fall through to the named-action table
//   - anything else is denied
func HasPermission(s *Session, capability string) bool {
	if s == nil {
		return false
	}

	switch s.Role.Class() {
	case ClassSuperAdmin, ClassAdmin:
		return true
	}

	for _, g := range s.Permissions {
		if strings.EqualFold(g.Module, capability) {
			return g.View.Granted() || g.FullAccess.Granted()
		}
	}

	for _, r := range actionRoles[capability] {
		if s.Role == r {
			return true
		}
	}

	return false
}
