package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/orbitcrm/platform/internal/lead"
	"github.com/orbitcrm/platform/internal/shared/types"
)

func TestListBackfillsLeadContact(t *testing.T) {
	leads := lead.NewMemoryRepository()
	ctx := context.Background()

	src := &lead.Lead{
		GUID:   types.NewID(),
		Name:   "Ana Petrovic",
		Email:  "ana@petrovictravel.example",
		Phone:  "+381-11-334-2201",
		Source: "trade-show",
		Status: lead.StatusConverted,
	}
	if err := leads.Create(ctx, src); err != nil {
		t.Fatal(err)
	}

	clients := NewMemoryRepository()
	// Contact fields intentionally blank; the lead carries them.
	err := clients.Create(ctx, &Client{
		GUID:   types.NewID(),
		LeadID: &src.GUID,
		Name:   "Petrovic Travel d.o.o.",
		Status: "active",
	})
	if err != nil {
		t.Fatal(err)
	}

	h := NewHandler(clients, leads)
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Clients []ClientView `json:"clients"`
		Total   int          `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Clients) != 1 {
		t.Fatalf("expected 1 client, got %d", resp.Total)
	}

	view := resp.Clients[0]
	if view.Email != "ana@petrovictravel.example" {
		t.Errorf("email not backfilled from lead: %q", view.Email)
	}
	if view.Phone != "+381-11-334-2201" {
		t.Errorf("phone not backfilled from lead: %q", view.Phone)
	}
	if view.LeadName != "Ana Petrovic" || view.LeadSource != "trade-show" {
		t.Errorf("lead fields missing: %+v", view)
	}
}

func TestBackfillKeepsOwnContact(t *testing.T) {
	leads := lead.NewMemoryRepository()
	ctx := context.Background()

	src := &lead.Lead{GUID: types.NewID(), Name: "L", Email: "lead@x.example", Status: lead.StatusConverted}
	if err := leads.Create(ctx, src); err != nil {
		t.Fatal(err)
	}

	clients := NewMemoryRepository()
	err := clients.Create(ctx, &Client{
		GUID:   types.NewID(),
		LeadID: &src.GUID,
		Name:   "Own Contact Ltd",
		Email:  "billing@own.example",
		Status: "active",
	})
	if err != nil {
		t.Fatal(err)
	}

	h := NewHandler(clients, leads)
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp struct {
		Clients []ClientView `json:"clients"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Clients[0].Email != "billing@own.example" {
		t.Errorf("client's own email must win: %q", resp.Clients[0].Email)
	}
}

func TestListEmptyIsArray(t *testing.T) {
	h := NewHandler(NewMemoryRepository(), lead.NewMemoryRepository())
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if string(resp["clients"]) == "null" {
		t.Error("empty list must encode as [], not null")
	}
}

func TestStatusFilter(t *testing.T) {
	clients := NewMemoryRepository()
	ctx := context.Background()

	for _, status := range []string{"active", "active", "inactive"} {
		err := clients.Create(ctx, &Client{GUID: types.NewID(), Name: "c-" + status, Status: status})
		if err != nil {
			t.Fatal(err)
		}
	}

	_, total, err := clients.List(ctx, ClientFilter{Status: "active"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("expected 2 active clients, got %d", total)
	}
}
