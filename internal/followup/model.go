// Package followup manages scheduled follow-up calls and visits on leads.
package followup

import (
	"time"

	"github.com/orbitcrm/platform/internal/shared/types"
)

// Status is a follow-up's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Followup is a scheduled touchpoint on a lead.
type Followup struct {
	GUID       types.ID  `json:"followup_guid"`
	LeadID     types.ID  `json:"lead_guid"`
	AssignedTo *types.ID `json:"assigned_to,omitempty"`
	DueAt      time.Time `json:"due_at"`
	Status     Status    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Overdue reports whether a pending follow-up's due time has passed.
func (f *Followup) Overdue(now time.Time) bool {
	return f.Status == StatusPending && f.DueAt.Before(now)
}

// CreateFollowupRequest is the request to schedule a follow-up.
type CreateFollowupRequest struct {
	LeadID     types.ID  `json:"lead_guid" validate:"required"`
	AssignedTo *types.ID `json:"assigned_to,omitempty"`
	DueAt      time.Time `json:"due_at" validate:"required"`
	Notes      string    `json:"notes,omitempty"`
}

// UpdateFollowupRequest is the request to update a follow-up.
type UpdateFollowupRequest struct {
	AssignedTo *types.ID  `json:"assigned_to,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// CompleteFollowupRequest records how the touchpoint went.
type CompleteFollowupRequest struct {
	Outcome string `json:"outcome" validate:"required,min=2"`
}

// FollowupFilter narrows List results.
type FollowupFilter struct {
	LeadID     *types.ID
	AssignedTo *types.ID
	Status     Status
	DueBefore  *time.Time
	Limit      int
	Offset     int
}
