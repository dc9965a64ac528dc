// Package rbac manages the administrative role entities whose grant lists
// feed session permissions at login.
package rbac

import (
	"sort"
	"time"

	"github.com/orbitcrm/platform/internal/auth"
	"github.com/orbitcrm/platform/internal/shared/types"
)

// Role is the administrative role entity, distinct from the session's role
// string. System roles ship with the product and cannot be deleted.
type Role struct {
	GUID        types.ID     `json:"role_guid"`
	Name        string       `json:"role_name"`
	Description string       `json:"description"`
	IsSystem    bool         `json:"is_system"`
	IsActive    bool         `json:"is_active"`
	Permissions []auth.Grant `json:"permissions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GrantFlags is the per-module flag set in editing (map) form.
type GrantFlags struct {
	View       auth.Flag `json:"view"`
	Edit       auth.Flag `json:"edit"`
	Delete     auth.Flag `json:"delete"`
	FullAccess auth.Flag `json:"full_access"`
}

// GrantMap converts the flat grant list into the module-keyed form role
// editors work with.
func (r *Role) GrantMap() map[string]GrantFlags {
	m := make(map[string]GrantFlags, len(r.Permissions))
	for _, g := range r.Permissions {
		m[g.Module] = GrantFlags{
			View:       g.View,
			Edit:       g.Edit,
			Delete:     g.Delete,
			FullAccess: g.FullAccess,
		}
	}
	return m
}

// GrantsFromMap converts the editing form back into the flat list the API
// and the database use, ordered by module name for stable output.
func GrantsFromMap(m map[string]GrantFlags) []auth.Grant {
	modules := make([]string, 0, len(m))
	for module := range m {
		modules = append(modules, module)
	}
	sort.Strings(modules)

	grants := make([]auth.Grant, 0, len(modules))
	for _, module := range modules {
		f := m[module]
		grants = append(grants, auth.Grant{
			Module:     module,
			View:       f.View,
			Edit:       f.Edit,
			Delete:     f.Delete,
			FullAccess: f.FullAccess,
		})
	}
	return grants
}

// NormalizeGrants applies the editor-side invariant: full access implies
// view, edit, and delete. Applied when a role is saved, never at evaluation.
func NormalizeGrants(grants []auth.Grant) []auth.Grant {
	normalized := make([]auth.Grant, len(grants))
	for i, g := range grants {
		if g.FullAccess.Granted() {
			g.View, g.Edit, g.Delete = 1, 1, 1
		}
		normalized[i] = g
	}
	return normalized
}

// CreateRoleRequest is the request to create a role.
type CreateRoleRequest struct {
	Name        string       `json:"role_name" validate:"required,min=2,max=100"`
	Description string       `json:"description"`
	IsActive    *bool        `json:"is_active,omitempty"`
	Permissions []auth.Grant `json:"permissions"`
}

// UpdateRoleRequest is the request to update a role.
type UpdateRoleRequest struct {
	Name        *string      `json:"role_name,omitempty"`
	Description *string      `json:"description,omitempty"`
	IsActive    *bool        `json:"is_active,omitempty"`
	Permissions []auth.Grant `json:"permissions,omitempty"`
}
