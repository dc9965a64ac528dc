package user

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/orbitcrm/platform/internal/rbac"
	"github.com/orbitcrm/platform/internal/shared/types"
)

func seedHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("bootstrap-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(hash)
}

func TestMemorySeedsBootstrapAdmin(t *testing.T) {
	repo := NewMemoryRepository(seedHash(t))

	admin, err := repo.GetByIdentifier(context.Background(), "admin")
	if err != nil {
		t.Fatalf("bootstrap admin missing: %v", err)
	}
	if admin.RoleName != "Super Admin" {
		t.Errorf("expected Super Admin role, got %s", admin.RoleName)
	}
	if !admin.IsActive {
		t.Error("bootstrap admin must be active")
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("bootstrap-pass")) != nil {
		t.Error("bootstrap hash does not verify")
	}
}

func TestGetByIdentifierMatchesEmail(t *testing.T) {
	repo := NewMemoryRepository(seedHash(t))

	u, err := repo.GetByIdentifier(context.Background(), "ADMIN@orbitcrm.local")
	if err != nil {
		t.Fatalf("email lookup failed: %v", err)
	}
	if u.Username != "admin" {
		t.Errorf("wrong account: %s", u.Username)
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	repo := NewMemoryRepository(seedHash(t))
	ctx := context.Background()

	dup := &User{
		GUID:     types.NewID(),
		Username: "Admin",
		Email:    "someone@orbitcrm.local",
		Name:     "Dup",
		RoleName: "Telecaller",
		IsActive: true,
	}
	if err := repo.Create(ctx, dup); err == nil {
		t.Error("case-insensitive duplicate username should be rejected")
	}

	dup.Username = "someone"
	dup.Email = "admin@orbitcrm.local"
	if err := repo.Create(ctx, dup); err == nil {
		t.Error("duplicate email should be rejected")
	}
}

func TestListFilters(t *testing.T) {
	repo := NewMemoryRepository(seedHash(t))
	ctx := context.Background()

	for _, seed := range []struct {
		username, role string
		active         bool
	}{
		{"tc1", "Telecaller", true},
		{"tc2", "Telecaller", false},
		{"mgr", "Manager", true},
	} {
		err := repo.Create(ctx, &User{
			GUID:     types.NewID(),
			Username: seed.username,
			Name:     seed.username,
			Email:    seed.username + "@orbitcrm.local",
			RoleName: seed.role,
			IsActive: seed.active,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", seed.username, err)
		}
	}

	users, total, err := repo.List(ctx, UserFilter{RoleName: "Telecaller"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(users) != 2 {
		t.Errorf("expected 2 telecallers, got total=%d len=%d", total, len(users))
	}

	active := true
	users, total, _ = repo.List(ctx, UserFilter{RoleName: "Telecaller", Active: &active})
	if total != 1 || users[0].Username != "tc1" {
		t.Errorf("active filter failed: total=%d", total)
	}

	_, total, _ = repo.List(ctx, UserFilter{Search: "mgr"})
	if total != 1 {
		t.Errorf("search filter failed: total=%d", total)
	}
}

func TestDirectoryResolvesAccountAndGrants(t *testing.T) {
	users := NewMemoryRepository(seedHash(t))
	roles := rbac.NewMemoryRepository()
	dir := NewDirectory(users, roles)
	ctx := context.Background()

	account, err := dir.FindAccount(ctx, "admin")
	if err != nil || account == nil {
		t.Fatalf("expected account, got %v, %v", account, err)
	}
	if string(account.Role) != "Super Admin" {
		t.Errorf("wrong role: %s", account.Role)
	}

	// Unknown identifiers are (nil, nil) so login failures stay uniform.
	account, err = dir.FindAccount(ctx, "nobody")
	if account != nil || err != nil {
		t.Errorf("expected nil, nil for unknown account, got %v, %v", account, err)
	}

	grants, err := dir.GrantsForRole(ctx, "Telecaller")
	if err != nil {
		t.Fatalf("grants lookup failed: %v", err)
	}
	found := false
	for _, g := range grants {
		if g.Module == "Leads" && g.View.Granted() {
			found = true
		}
	}
	if !found {
		t.Error("Telecaller should carry a Leads view grant")
	}
}

func TestRecordLoginStampsLastLogin(t *testing.T) {
	users := NewMemoryRepository(seedHash(t))
	roles := rbac.NewMemoryRepository()
	dir := NewDirectory(users, roles)
	ctx := context.Background()

	admin, _ := users.GetByIdentifier(ctx, "admin")
	if admin.LastLogin != nil {
		t.Fatal("fresh account should have no last_login")
	}

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	dir.RecordLogin(ctx, admin.GUID, at)

	reloaded, _ := users.Get(ctx, admin.GUID)
	if reloaded.LastLogin == nil || !reloaded.LastLogin.Equal(at) {
		t.Errorf("last_login not stamped: %v", reloaded.LastLogin)
	}
}
