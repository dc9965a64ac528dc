// Package budget manages deal budgets and their approval flow.
package budget

import (
	"time"

	"github.com/orbitcrm/platform/internal/shared/types"
)

// Status is a budget's position in the approval flow.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Budget is a priced proposal for a lead or client.
type Budget struct {
	GUID            types.ID  `json:"budget_guid"`
	LeadID          *types.ID `json:"lead_guid,omitempty"`
	ClientID        *types.ID `json:"client_guid,omitempty"`
	Title           string    `json:"title"`
	EstimatedAmount float64   `json:"estimated_amount"`
	Discount        float64   `json:"discount"`
	FinalAmount     float64   `json:"final_amount"`
	Status          Status    `json:"status"`
	ApprovedBy      string    `json:"approved_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FinalAmount derives the payable amount. The discount can exceed the
// estimate on paper; the result never goes below zero.
func FinalAmount(estimated, discount float64) float64 {
	final := estimated - discount
	if final < 0 {
		return 0
	}
	return final
}

// CreateBudgetRequest is the request to create a budget.
type CreateBudgetRequest struct {
	LeadID          *types.ID `json:"lead_guid,omitempty"`
	ClientID        *types.ID `json:"client_guid,omitempty"`
	Title           string    `json:"title" validate:"required,min=2,max=200"`
	EstimatedAmount float64   `json:"estimated_amount" validate:"gte=0"`
	Discount        float64   `json:"discount" validate:"gte=0"`
}

// UpdateBudgetRequest is the request to update a budget's draft fields.
type UpdateBudgetRequest struct {
	Title           *string  `json:"title,omitempty" validate:"omitempty,min=2,max=200"`
	EstimatedAmount *float64 `json:"estimated_amount,omitempty" validate:"omitempty,gte=0"`
	Discount        *float64 `json:"discount,omitempty" validate:"omitempty,gte=0"`
}

// BudgetFilter narrows List results.
type BudgetFilter struct {
	Status   Status
	LeadID   *types.ID
	ClientID *types.ID
	Limit    int
	Offset   int
}
