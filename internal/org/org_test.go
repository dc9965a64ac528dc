package org

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

func TestMemorySeedsHeadOffice(t *testing.T) {
	repo := NewMemoryRepository()

	branches, err := repo.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(branches) != 1 || branches[0].Code != "HQ" {
		t.Fatalf("expected a seeded HQ branch, got %+v", branches)
	}
}

func TestDuplicateCodeRejected(t *testing.T) {
	repo := NewMemoryRepository()

	err := repo.Create(context.Background(), &Branch{
		GUID: types.NewID(),
		Code: "hq",
		Name: "Duplicate HQ",
	})
	if err == nil {
		t.Error("case-insensitive duplicate code should be rejected")
	}
}

func TestCreateBranchEndpoint(t *testing.T) {
	h := NewHandler(NewMemoryRepository())

	body, _ := json.Marshal(CreateBranchRequest{
		Code: "BG-01",
		Name: "Belgrade Office",
		Address: types.Address{
			Street:     "Knez Mihailova 12",
			City:       "Belgrade",
			PostalCode: "11000",
			Country:    "RS",
		},
		Contact: types.ContactInfo{
			Email: "belgrade@orbitcrm.local",
			Phone: "+381-11-555-0100",
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/branches", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var b Branch
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatal(err)
	}
	if !b.IsActive {
		t.Error("new branches should start active")
	}
	if b.Address.City != "Belgrade" {
		t.Errorf("address lost: %+v", b.Address)
	}
}

func TestUpdateKeepsCode(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	branches, _ := repo.List(ctx)
	hq := branches[0]

	h := NewHandler(repo)
	name := "Global Head Office"
	body, _ := json.Marshal(UpdateBranchRequest{Name: &name})

	req := httptest.NewRequest(http.MethodPut, "/branches/"+hq.GUID.String(), bytes.NewReader(body))
	req = withURLParam(req, "id", hq.GUID.String())
	rec := httptest.NewRecorder()
	h.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	reloaded, _ := repo.Get(ctx, hq.GUID)
	if reloaded.Code != "HQ" {
		t.Errorf("code must be immutable, got %q", reloaded.Code)
	}
	if reloaded.Name != name {
		t.Errorf("name update lost: %q", reloaded.Name)
	}
}
