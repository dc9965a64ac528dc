package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/orbitcrm/platform/internal/budget"
	"github.com/orbitcrm/platform/internal/followup"
	"github.com/orbitcrm/platform/internal/lead"
	"github.com/orbitcrm/platform/internal/shared/types"
)

func TestSummaryAggregates(t *testing.T) {
	ctx := context.Background()

	leads := lead.NewMemoryRepository()
	baseline, _, err := leads.List(ctx, lead.LeadFilter{})
	if err != nil {
		t.Fatal(err)
	}
	newBefore := 0
	for _, l := range baseline {
		if l.Status == lead.StatusNew {
			newBefore++
		}
	}
	if err := leads.Create(ctx, &lead.Lead{GUID: types.NewID(), Name: "Extra", Status: lead.StatusNew}); err != nil {
		t.Fatal(err)
	}

	budgets := budget.NewMemoryRepository()
	for _, b := range []*budget.Budget{
		{GUID: types.NewID(), Title: "Approved A", FinalAmount: 45000, Status: budget.StatusApproved},
		{GUID: types.NewID(), Title: "Approved B", FinalAmount: 5000, Status: budget.StatusApproved},
		{GUID: types.NewID(), Title: "Pending", FinalAmount: 9000, Status: budget.StatusPending},
		{GUID: types.NewID(), Title: "Draft", FinalAmount: 100, Status: budget.StatusDraft},
	} {
		if err := budgets.Create(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	followups := followup.NewMemoryRepository()
	leadID := types.NewID()
	for _, f := range []*followup.Followup{
		{GUID: types.NewID(), LeadID: leadID, DueAt: time.Now().Add(-time.Hour), Status: followup.StatusPending},
		{GUID: types.NewID(), LeadID: leadID, DueAt: time.Now().Add(time.Hour), Status: followup.StatusPending},
		{GUID: types.NewID(), LeadID: leadID, DueAt: time.Now().Add(-time.Hour), Status: followup.StatusCompleted},
	} {
		if err := followups.Create(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	h := NewHandler(leads, budgets, followups)
	rec := httptest.NewRecorder()
	h.Summary(rec, httptest.NewRequest(http.MethodGet, "/summary", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var s Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatal(err)
	}

	if s.Leads.Total != len(baseline)+1 {
		t.Errorf("lead total = %d, want %d", s.Leads.Total, len(baseline)+1)
	}
	if s.Leads.ByStatus["new"] != newBefore+1 {
		t.Errorf("new leads = %d, want %d", s.Leads.ByStatus["new"], newBefore+1)
	}
	if s.Budgets.ApprovedCount != 2 || s.Budgets.ApprovedValue != 50000 {
		t.Errorf("approved stats wrong: %+v", s.Budgets)
	}
	if s.Budgets.PendingCount != 1 {
		t.Errorf("pending count = %d, want 1", s.Budgets.PendingCount)
	}
	if s.Budgets.TotalAmount != 59100 {
		t.Errorf("total amount = %v, want 59100", s.Budgets.TotalAmount)
	}
	if s.Followups.Pending != 2 || s.Followups.Overdue != 1 {
		t.Errorf("followup stats wrong: %+v", s.Followups)
	}
}
