// Package org manages the organization's branch offices.
package org

import (
	"time"

	"github.com/orbitcrm/platform/internal/shared/types"
)

// Branch is an office users and leads are assigned to.
type Branch struct {
	GUID     types.ID          `json:"branch_guid"`
	Code     string            `json:"code"`
	Name     string            `json:"name"`
	Address  types.Address     `json:"address"`
	Contact  types.ContactInfo `json:"contact"`
	IsActive bool              `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateBranchRequest is the request to create a branch.
type CreateBranchRequest struct {
	Code    string            `json:"code" validate:"required,min=2,max=50"`
	Name    string            `json:"name" validate:"required,min=2,max=200"`
	Address types.Address     `json:"address"`
	Contact types.ContactInfo `json:"contact"`
}

// UpdateBranchRequest is the request to update a branch.
type UpdateBranchRequest struct {
	Name     *string            `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Address  *types.Address     `json:"address,omitempty"`
	Contact  *types.ContactInfo `json:"contact,omitempty"`
	IsActive *bool              `json:"is_active,omitempty"`
}
