// Package client manages converted customers and their link back to the
// originating lead.
package client

import (
	"time"

	"github.com/orbitcrm/platform/internal/shared/types"
)

// Client is a converted customer.
type Client struct {
	GUID    types.ID  `json:"client_guid"`
	LeadID  *types.ID `json:"lead_guid,omitempty"`
	Name    string    `json:"name"`
	Company string    `json:"company,omitempty"`
	Email   string    `json:"email,omitempty"`
	Phone   string    `json:"phone,omitempty"`
	City    string    `json:"city,omitempty"`
	Status  string    `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientView is a client as listed, with contact fields backfilled from the
// originating lead when the client record leaves them blank.
type ClientView struct {
	Client
	LeadName   string `json:"lead_name,omitempty"`
	LeadSource string `json:"lead_source,omitempty"`
}

// CreateClientRequest is the request to create a client.
type CreateClientRequest struct {
	LeadID  *types.ID `json:"lead_guid,omitempty"`
	Name    string    `json:"name" validate:"required,min=2,max=200"`
	Company string    `json:"company,omitempty"`
	Email   string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string    `json:"phone,omitempty"`
	City    string    `json:"city,omitempty"`
}

// UpdateClientRequest is the request to update a client.
type UpdateClientRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Company *string `json:"company,omitempty"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   *string `json:"phone,omitempty"`
	City    *string `json:"city,omitempty"`
	Status  *string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

// ClientFilter narrows List results.
type ClientFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}
