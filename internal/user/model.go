// Package user manages the staff accounts the admin console administers and
// the login flow authenticates against.
package user

import (
	"time"

	"github.com/orbitcrm/platform/internal/shared/types"
)

// User is a staff account. PasswordHash never leaves the server.
type User struct {
	GUID         types.ID  `json:"user_guid"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	RoleName     string    `json:"role"`
	BranchID     *types.ID `json:"branch_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateUserRequest is the request to create a staff account.
type CreateUserRequest struct {
	Username string    `json:"username" validate:"required,min=3,max=64"`
	Name     string    `json:"name" validate:"required,min=2,max=200"`
	Email    string    `json:"email" validate:"required,email"`
	Phone    string    `json:"phone,omitempty"`
	Password string    `json:"password" validate:"required,min=8"`
	RoleName string    `json:"role" validate:"required"`
	BranchID *types.ID `json:"branch_id,omitempty"`
	IsActive *bool     `json:"is_active,omitempty"`
}

// UpdateUserRequest is the request to update a staff account. A present
// password is re-hashed; omitted fields keep their values.
type UpdateUserRequest struct {
	Name     *string   `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Email    *string   `json:"email,omitempty" validate:"omitempty,email"`
	Phone    *string   `json:"phone,omitempty"`
	Password *string   `json:"password,omitempty" validate:"omitempty,min=8"`
	RoleName *string   `json:"role,omitempty"`
	BranchID *types.ID `json:"branch_id,omitempty"`
	IsActive *bool     `json:"is_active,omitempty"`
}

// UserFilter narrows List results.
type UserFilter struct {
	RoleName string
	BranchID *types.ID
	Active   *bool
	Search   string
	Limit    int
	Offset   int
}
