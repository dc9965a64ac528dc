package rbac

import (
	"context"
	"testing"

	"github.com/orbitcrm/platform/internal/auth"
	"github.com/orbitcrm/platform/internal/shared/errors"
	"github.com/orbitcrm/platform/internal/shared/types"
)

func TestGrantRoundTrip(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	role := &Role{
		GUID: types.NewID(),
		Name: "Sales Supervisor",
		Permissions: []auth.Grant{
			{Module: "Users", View: 1, Edit: 1, Delete: 1, FullAccess: 0},
		},
		IsActive: true,
	}
	if err := repo.Create(ctx, role); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	loaded, err := repo.Get(ctx, role.GUID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(loaded.Permissions) != 1 {
		t.Fatalf("expected 1 grant, got %d", len(loaded.Permissions))
	}
	g := loaded.Permissions[0]
	if g.Module != "Users" || g.View != 1 || g.Edit != 1 || g.Delete != 1 || g.FullAccess != 0 {
		t.Errorf("grant changed across persistence: %+v", g)
	}
}

func TestGrantMapConversion(t *testing.T) {
	role := &Role{Permissions: []auth.Grant{
		{Module: "Leads", View: 1, Edit: 1},
		{Module: "Budgets", View: 1},
	}}

	m := role.GrantMap()
	if len(m) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m))
	}
	if !m["Leads"].Edit.Granted() {
		t.Error("Leads edit flag lost in map form")
	}

	back := GrantsFromMap(m)
	if len(back) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(back))
	}
	// Sorted by module name for stable output.
	if back[0].Module != "Budgets" || back[1].Module != "Leads" {
		t.Errorf("unexpected order: %s, %s", back[0].Module, back[1].Module)
	}
}

func TestNormalizeGrants(t *testing.T) {
	grants := NormalizeGrants([]auth.Grant{
		{Module: "Clients", FullAccess: 1},
		{Module: "Leads", View: 1},
	})

	full := grants[0]
	if full.View != 1 || full.Edit != 1 || full.Delete != 1 {
		t.Errorf("full access should imply view/edit/delete: %+v", full)
	}
	partial := grants[1]
	if partial.Edit != 0 || partial.Delete != 0 || partial.FullAccess != 0 {
		t.Errorf("partial grant should be untouched: %+v", partial)
	}
}

func TestSystemRoleDeleteRefused(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	admin, err := repo.GetByName(ctx, "Super Admin")
	if err != nil {
		t.Fatalf("seeded role missing: %v", err)
	}

	err = repo.Delete(ctx, admin.GUID)
	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.HTTPStatus != 409 {
		t.Fatalf("expected conflict error, got %v", err)
	}

	if _, err := repo.Get(ctx, admin.GUID); err != nil {
		t.Errorf("role should survive refused delete: %v", err)
	}
}

func TestSystemFlagSurvivesUpdate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	role, err := repo.GetByName(ctx, "Telecaller")
	if err != nil {
		t.Fatalf("seeded role missing: %v", err)
	}

	role.IsSystem = false
	role.Description = "edited"
	if err := repo.Update(ctx, role); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	reloaded, _ := repo.Get(ctx, role.GUID)
	if !reloaded.IsSystem {
		t.Error("is_system must not be clearable through update")
	}
	if reloaded.Description != "edited" {
		t.Error("description update lost")
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	err := repo.Create(ctx, &Role{GUID: types.NewID(), Name: "manager", IsActive: true})
	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.HTTPStatus != 409 {
		t.Fatalf("expected conflict for case-insensitive duplicate, got %v", err)
	}
}

func TestGetByNameCaseInsensitive(t *testing.T) {
	repo := NewMemoryRepository()

	role, err := repo.GetByName(context.Background(), "FINANCE")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if role.Name != "Finance" {
		t.Errorf("expected Finance, got %s", role.Name)
	}
}
