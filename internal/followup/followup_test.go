package followup

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orbitcrm/platform/internal/lead"
	"github.com/orbitcrm/platform/internal/shared/types"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestOverdue(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		f    Followup
		want bool
	}{
		{"pending past due", Followup{Status: StatusPending, DueAt: now.Add(-time.Hour)}, true},
		{"pending future", Followup{Status: StatusPending, DueAt: now.Add(time.Hour)}, false},
		{"completed past due", Followup{Status: StatusCompleted, DueAt: now.Add(-time.Hour)}, false},
		{"cancelled past due", Followup{Status: StatusCancelled, DueAt: now.Add(-time.Hour)}, false},
	}

	for _, tt := range tests {
		if got := tt.f.Overdue(now); got != tt.want {
			t.Errorf("%s: Overdue = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCreateRequiresExistingLead(t *testing.T) {
	leads := lead.NewMemoryRepository()
	h := NewHandler(NewMemoryRepository(), leads)

	body, _ := json.Marshal(CreateFollowupRequest{
		LeadID: types.NewID(),
		DueAt:  time.Now().Add(24 * time.Hour),
	})
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown lead should be rejected, got %d", rec.Code)
	}
}

func TestCompleteRecordsOutcome(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	f := &Followup{
		GUID:   types.NewID(),
		LeadID: types.NewID(),
		DueAt:  time.Now().Add(-time.Hour),
		Status: StatusPending,
	}
	if err := repo.Create(ctx, f); err != nil {
		t.Fatal(err)
	}

	h := NewHandler(repo, nil)
	body, _ := json.Marshal(CompleteFollowupRequest{Outcome: "Reached; demo booked for Friday"})
	req := httptest.NewRequest(http.MethodPost, "/"+f.GUID.String()+"/complete", bytes.NewReader(body))
	req = withURLParam(req, "id", f.GUID.String())
	rec := httptest.NewRecorder()
	h.Complete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	reloaded, _ := repo.Get(ctx, f.GUID)
	if reloaded.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", reloaded.Status)
	}
	if reloaded.Outcome == "" {
		t.Error("outcome not recorded")
	}

	// Completing twice is a conflict.
	rec = httptest.NewRecorder()
	body, _ = json.Marshal(CompleteFollowupRequest{Outcome: "again"})
	req = httptest.NewRequest(http.MethodPost, "/"+f.GUID.String()+"/complete", bytes.NewReader(body))
	req = withURLParam(req, "id", f.GUID.String())
	h.Complete(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("double completion should be 409, got %d", rec.Code)
	}
}

func TestOverdueListFilter(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	leadID := types.NewID()

	past := &Followup{GUID: types.NewID(), LeadID: leadID, DueAt: time.Now().Add(-48 * time.Hour), Status: StatusPending}
	future := &Followup{GUID: types.NewID(), LeadID: leadID, DueAt: time.Now().Add(48 * time.Hour), Status: StatusPending}
	done := &Followup{GUID: types.NewID(), LeadID: leadID, DueAt: time.Now().Add(-24 * time.Hour), Status: StatusCompleted}
	for _, f := range []*Followup{past, future, done} {
		if err := repo.Create(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	h := NewHandler(repo, nil)
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/?due=overdue", nil))

	var resp struct {
		Followups []Followup `json:"followups"`
		Total     int        `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 {
		t.Fatalf("expected 1 overdue followup, got %d", resp.Total)
	}
	if resp.Followups[0].GUID != past.GUID {
		t.Error("wrong followup matched the overdue filter")
	}
}

func TestListOrderedByDueTime(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	leadID := types.NewID()

	base := time.Now()
	for _, offset := range []time.Duration{72 * time.Hour, 24 * time.Hour, 48 * time.Hour} {
		err := repo.Create(ctx, &Followup{
			GUID:   types.NewID(),
			LeadID: leadID,
			DueAt:  base.Add(offset),
			Status: StatusPending,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	followups, _, err := repo.List(ctx, FollowupFilter{})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(followups); i++ {
		if followups[i].DueAt.Before(followups[i-1].DueAt) {
			t.Fatal("followups not ordered by due time")
		}
	}
}
