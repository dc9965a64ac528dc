package user

import (
	"context"
	"time"

	"github.com/orbitcrm/platform/internal/auth"
	"github.com/orbitcrm/platform/internal/rbac"
	"github.com/orbitcrm/platform/internal/shared/types"
)

// Directory adapts the user and rbac repositories to the account lookup the
// login flow needs.
type Directory struct {
	users Repository
	roles rbac.Repository
}

// NewDirectory creates the directory over the two repositories.
func NewDirectory(users Repository, roles rbac.Repository) *Directory {
	return &Directory{users: users, roles: roles}
}

// FindAccount resolves a username or email to a credential view. Absence is
// (nil, nil) so the caller cannot distinguish it from a bad password.
func (d *Directory) FindAccount(ctx context.Context, identifier string) (*auth.Account, error) {
	u, err := d.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, nil
	}
	return &auth.Account{
		ID:           u.GUID,
		Username:     u.Username,
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		Role:         auth.Role(u.RoleName),
		Active:       u.IsActive,
	}, nil
}

// GrantsForRole returns the grant list of the named role. Inactive roles
// still resolve; deactivation gates logins per account, not grants.
func (d *Directory) GrantsForRole(ctx context.Context, role string) ([]auth.Grant, error) {
	r, err := d.roles.GetByName(ctx, role)
	if err != nil {
		return nil, err
	}
	return r.Permissions, nil
}

// RecordLogin stamps last_login after a successful authentication.
func (d *Directory) RecordLogin(ctx context.Context, accountID types.ID, at time.Time) {
	_ = d.users.TouchLastLogin(ctx, accountID, at)
}

var _ auth.Directory = (*Directory)(nil)
