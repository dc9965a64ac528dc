// Package lead manages the sales lead pipeline from first contact to
// conversion or loss.
package lead

import (
	"time"

	"github.com/orbitcrm/platform/internal/shared/types"
)

// Status is a lead's position in the pipeline.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
)

// Valid reports whether s is a known pipeline status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusConverted, StatusLost:
		return true
	}
	return false
}

// Terminal reports whether the lead can no longer move.
func (s Status) Terminal() bool {
	return s == StatusConverted || s == StatusLost
}

// Lead is a sales prospect.
type Lead struct {
	GUID       types.ID  `json:"lead_guid"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Company    string    `json:"company,omitempty"`
	Source     string    `json:"source,omitempty"`
	Status     Status    `json:"status"`
	AssignedTo *types.ID `json:"assigned_to,omitempty"`
	BranchID   *types.ID `json:"branch_id,omitempty"`
	Notes      string    `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateLeadRequest is the request to create a lead.
type CreateLeadRequest struct {
	Name       string    `json:"name" validate:"required,min=2,max=200"`
	Email      string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string    `json:"phone,omitempty"`
	Company    string    `json:"company,omitempty"`
	Source     string    `json:"source,omitempty"`
	AssignedTo *types.ID `json:"assigned_to,omitempty"`
	BranchID   *types.ID `json:"branch_id,omitempty"`
	Notes      string    `json:"notes,omitempty"`
}

// UpdateLeadRequest is the request to update a lead.
type UpdateLeadRequest struct {
	Name       *string   `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Email      *string   `json:"email,omitempty" validate:"omitempty,email"`
	Phone      *string   `json:"phone,omitempty"`
	Company    *string   `json:"company,omitempty"`
	Source     *string   `json:"source,omitempty"`
	Status     *Status   `json:"status,omitempty"`
	AssignedTo *types.ID `json:"assigned_to,omitempty"`
	BranchID   *types.ID `json:"branch_id,omitempty"`
	Notes      *string   `json:"notes,omitempty"`
}

// LeadFilter narrows List results.
type LeadFilter struct {
	Status     Status
	AssignedTo *types.ID
	BranchID   *types.ID
	Source     string
	Search     string
	Limit      int
	Offset     int
}
