package lead

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/orbitcrm/platform/internal/shared/types"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestMemorySeedLoads(t *testing.T) {
	repo := NewMemoryRepository()

	leads, total, err := repo.List(context.Background(), LeadFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total == 0 || len(leads) == 0 {
		t.Fatal("seed dataset should populate the repository")
	}
	for _, l := range leads {
		if l.GUID.IsZero() {
			t.Errorf("seeded lead %q has no GUID", l.Name)
		}
		if !l.Status.Valid() {
			t.Errorf("seeded lead %q has invalid status %q", l.Name, l.Status)
		}
	}
}

func TestStatusFilter(t *testing.T) {
	repo := NewMemoryRepository()

	leads, _, err := repo.List(context.Background(), LeadFilter{Status: StatusContacted})
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range leads {
		if l.Status != StatusContacted {
			t.Errorf("filter leaked status %q", l.Status)
		}
	}
}

func TestStatusPipeline(t *testing.T) {
	tests := []struct {
		status   Status
		valid    bool
		terminal bool
	}{
		{StatusNew, true, false},
		{StatusContacted, true, false},
		{StatusQualified, true, false},
		{StatusConverted, true, true},
		{StatusLost, true, true},
		{Status("archived"), false, false},
		{Status(""), false, false},
	}

	for _, tt := range tests {
		if tt.status.Valid() != tt.valid {
			t.Errorf("%q: Valid() = %v, want %v", tt.status, tt.status.Valid(), tt.valid)
		}
		if tt.status.Terminal() != tt.terminal {
			t.Errorf("%q: Terminal() = %v, want %v", tt.status, tt.status.Terminal(), tt.terminal)
		}
	}
}

func TestCreateEndpointStartsAtNew(t *testing.T) {
	h := NewHandler(NewMemoryRepository(), nil)

	body, _ := json.Marshal(CreateLeadRequest{
		Name:    "Greta Holm",
		Email:   "greta@holmdesign.example",
		Company: "Holm Design",
		Source:  "website",
	})
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created Lead
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Status != StatusNew {
		t.Errorf("new leads must start at %q, got %q", StatusNew, created.Status)
	}
	if created.GUID.IsZero() {
		t.Error("created lead has no GUID")
	}
}

func TestCreateEndpointValidates(t *testing.T) {
	h := NewHandler(NewMemoryRepository(), nil)

	body, _ := json.Marshal(CreateLeadRequest{Name: "x"})
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("short name should be rejected, got %d", rec.Code)
	}
}

func TestTerminalStatusLocked(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	l := &Lead{GUID: types.NewID(), Name: "Closed Deal", Status: StatusConverted}
	if err := repo.Create(ctx, l); err != nil {
		t.Fatal(err)
	}

	h := NewHandler(repo, nil)
	next := StatusContacted
	body, _ := json.Marshal(UpdateLeadRequest{Status: &next})

	req := httptest.NewRequest(http.MethodPut, "/"+l.GUID.String(), bytes.NewReader(body))
	req = withURLParam(req, "id", l.GUID.String())
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("reopening a converted lead should be 409, got %d", rec.Code)
	}
}
