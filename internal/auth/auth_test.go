package auth

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// --- Permission evaluation ---

func TestHasPermissionAdminBypass(t *testing.T) {
	capabilities := []string{"leads", "Budgets", "users", "approve_budget", "anything-at-all"}

	for _, role := range []Role{RoleSuperAdmin, RoleAdmin} {
		session := &Session{Role: role}
		for _, capability := range capabilities {
			if !HasPermission(session, capability) {
				t.Errorf("role %q should be granted %q", role, capability)
			}
		}
	}
}

func TestHasPermissionNoSession(t *testing.T) {
	for _, capability := range []string{"", "leads", "approve_budget", "unknown"} {
		if HasPermission(nil, capability) {
			t.Errorf("nil session should be denied %q", capability)
		}
	}
}

func TestHasPermissionModuleGrants(t *testing.T) {
	session := &Session{
		Role: RoleTelecaller,
		Permissions: []Grant{
			{Module: "Leads", View: 1},
			{Module: "Followups", FullAccess: 1},
			{Module: "Clients", Edit: 1}, // edit without view does not grant access
		},
	}

	tests := []struct {
		capability string
		want       bool
	}{
		{"Leads", true},
		{"leads", true}, // case-insensitive match
		{"LEADS", true},
		{"Followups", true}, // full_access grants without view
		{"Clients", false},
		{"Budgets", false}, // no grant at all
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.capability, func(t *testing.T) {
			if got := HasPermission(session, tt.capability); got != tt.want {
				t.Errorf("HasPermission(%q) = %v, want %v", tt.capability, got, tt.want)
			}
		})
	}
}

func TestHasPermissionActionCapabilities(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleManager, true},
		{RoleFinance, true},
		{RoleTelecaller, false},
		{Role("Intern"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			session := &Session{Role: tt.role}
			if got := HasPermission(session, "approve_budget"); got != tt.want {
				t.Errorf("approve_budget for %q = %v, want %v", tt.role, got, tt.want)
			}
		})
	}

	// A module grant named like the action takes precedence over the table.
	session := &Session{
		Role:        RoleTelecaller,
		Permissions: []Grant{{Module: "approve_budget", View: 1}},
	}
	if !HasPermission(session, "approve_budget") {
		t.Error("module grant should decide before the action table")
	}
}

func TestHasPermissionUnknownCapability(t *testing.T) {
	session := &Session{Role: RoleManager, Permissions: []Grant{{Module: "Leads", View: 1}}}
	if HasPermission(session, "export_everything") {
		t.Error("unknown capability should be denied")
	}
}

func TestRoleClass(t *testing.T) {
	tests := []struct {
		role Role
		want RoleClass
	}{
		{RoleSuperAdmin, ClassSuperAdmin},
		{RoleAdmin, ClassAdmin},
		{RoleManager, ClassScoped},
		{RoleTelecaller, ClassScoped},
		{RoleFinance, ClassScoped},
		{Role("Custom"), ClassScoped},
	}

	for _, tt := range tests {
		if got := tt.role.Class(); got != tt.want {
			t.Errorf("Class(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

// --- Flag decoding ---

func TestFlagUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Flag
		granted bool
	}{
		{"number one", `1`, 1, true},
		{"number zero", `0`, 0, false},
		{"string one", `"1"`, 1, true},
		{"string zero", `"0"`, 0, false},
		{"bool true", `true`, 1, true},
		{"bool false", `false`, 0, false},
		{"garbage string", `"yes"`, 0, false},
		{"null", `null`, 0, false},
		{"number two", `2`, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Flag
			if err := json.Unmarshal([]byte(tt.input), &f); err != nil {
				t.Fatalf("unmarshal %s: %v", tt.input, err)
			}
			if f != tt.want {
				t.Errorf("flag = %d, want %d", f, tt.want)
			}
			if f.Granted() != tt.granted {
				t.Errorf("Granted() = %v, want %v", f.Granted(), tt.granted)
			}
		})
	}
}

func TestGrantDecodeMixedEncodings(t *testing.T) {
	payload := `{"module":"Leads","view":"1","edit":0,"delete":false,"full_access":"bogus"}`

	var g Grant
	if err := json.Unmarshal([]byte(payload), &g); err != nil {
		t.Fatalf("decode grant: %v", err)
	}

	if g.Module != "Leads" {
		t.Errorf("module = %q", g.Module)
	}
	if !g.View.Granted() {
		t.Error("view should be granted")
	}
	if g.Edit.Granted() || g.Delete.Granted() || g.FullAccess.Granted() {
		t.Error("edit/delete/full_access should not be granted")
	}
}

// --- Session lifecycle ---

type fakeDirectory struct {
	accounts map[string]*Account
	grants   map[string][]Grant
}

func (f *fakeDirectory) FindAccount(ctx context.Context, identifier string) (*Account, error) {
	return f.accounts[identifier], nil
}

func (f *fakeDirectory) GrantsForRole(ctx context.Context, role string) ([]Grant, error) {
	return f.grants[role], nil
}

func newTestService(t *testing.T) (*Service, *MemoryStore, *fakeDirectory) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	dir := &fakeDirectory{
		accounts: map[string]*Account{
			"admin@orbit.test": {
				ID:           "7b5a8c1e-0000-4000-8000-000000000001",
				Username:     "admin@orbit.test",
				Name:         "Ada Admin",
				Email:        "admin@orbit.test",
				PasswordHash: string(hash),
				Role:         RoleAdmin,
				Active:       true,
			},
			"tc@orbit.test": {
				ID:           "7b5a8c1e-0000-4000-8000-000000000002",
				Username:     "tc@orbit.test",
				Name:         "Tim Caller",
				Email:        "tc@orbit.test",
				PasswordHash: string(hash),
				Role:         RoleTelecaller,
				Active:       true,
			},
			"gone@orbit.test": {
				ID:           "7b5a8c1e-0000-4000-8000-000000000003",
				Username:     "gone@orbit.test",
				Name:         "Dora Disabled",
				Email:        "gone@orbit.test",
				PasswordHash: string(hash),
				Role:         RoleManager,
				Active:       false,
			},
		},
		grants: map[string][]Grant{
			"Telecaller": {{Module: "Leads", View: 1}},
		},
	}

	store := NewMemoryStore()
	svc := NewService(dir, store, "test-secret", time.Hour)
	return svc, store, dir
}

func TestLoginSuccess(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Login(ctx, "admin@orbit.test", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if session.Role != RoleAdmin {
		t.Errorf("role = %q, want Admin", session.Role)
	}
	if session.Token == "" {
		t.Error("session token should be set")
	}
	if session.Name != "Ada Admin" {
		t.Errorf("name = %q", session.Name)
	}
	if session.Permissions == nil {
		t.Error("permissions should default to an empty list, not nil")
	}

	persisted, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if persisted == nil {
		t.Fatal("session should be persisted after login")
	}
	if !HasPermission(persisted, "anything") {
		t.Error("admin session should be granted everything")
	}
}

func TestLoginScopedRoleGetsGrants(t *testing.T) {
	svc, _, _ := newTestService(t)

	session, err := svc.Login(context.Background(), "tc@orbit.test", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if !HasPermission(session, "leads") {
		t.Error("telecaller should see leads via role grant")
	}
	if HasPermission(session, "budgets") {
		t.Error("telecaller should not see budgets")
	}
}

func TestLoginFailures(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		identifier string
		secret     string
		wantMsg    string
	}{
		{"wrong password", "admin@orbit.test", "nope", "invalid credentials"},
		{"unknown user", "ghost@orbit.test", "hunter2", "invalid credentials"},
		{"empty credentials", "", "", "invalid credentials"},
		{"disabled account", "gone@orbit.test", "hunter2", "account is disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := svc.Login(ctx, tt.identifier, tt.secret)
			if err == nil {
				t.Fatal("login should fail")
			}
			if session != nil {
				t.Error("no session should be returned on failure")
			}

			authErr, ok := err.(*AuthenticationError)
			if !ok {
				t.Fatalf("error type = %T, want *AuthenticationError", err)
			}
			if authErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", authErr.Message, tt.wantMsg)
			}
		})
	}

	// No partial session may survive a failed login.
	store.mu.RLock()
	count := len(store.blobs)
	store.mu.RUnlock()
	if count != 0 {
		t.Errorf("store holds %d sessions after failed logins, want 0", count)
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Login(ctx, "admin@orbit.test", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.Logout(ctx, session.ID)

	persisted, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if persisted != nil {
		t.Fatal("session should be gone after logout")
	}
	if HasPermission(persisted, "leads") {
		t.Error("no permission may survive logout")
	}

	// Logging out twice is fine.
	svc.Logout(ctx, session.ID)
}

func TestUpdateProfile(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	if svc.UpdateProfile(ctx, "no-such-session", ProfileUpdate{}) {
		t.Error("update without a session should be a no-op returning false")
	}

	session, err := svc.Login(ctx, "tc@orbit.test", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	name := "Timothy Caller"
	phone := "+44 20 7946 0000"
	if !svc.UpdateProfile(ctx, session.ID, ProfileUpdate{Name: &name, Phone: &phone}) {
		t.Fatal("update should succeed")
	}

	updated, _ := store.Get(ctx, session.ID)
	if updated.Name != name {
		t.Errorf("name = %q, want %q", updated.Name, name)
	}
	if updated.Phone != phone {
		t.Errorf("phone = %q, want %q", updated.Phone, phone)
	}
	if updated.Email != "tc@orbit.test" {
		t.Errorf("unpatched email changed: %q", updated.Email)
	}
	if updated.Role != RoleTelecaller {
		t.Errorf("role changed by profile update: %q", updated.Role)
	}
}

func TestSwitchRole(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Login(ctx, "tc@orbit.test", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if HasPermission(session, "users") {
		t.Fatal("telecaller should not see users")
	}

	if !svc.SwitchRole(ctx, session.ID, RoleAdmin) {
		t.Fatal("switch should succeed")
	}

	switched, _ := store.Get(ctx, session.ID)
	if switched.Role != RoleAdmin {
		t.Errorf("role = %q, want Admin", switched.Role)
	}
	if !HasPermission(switched, "users") {
		t.Error("admin session should be granted users")
	}
}

// --- Store behavior ---

func TestMemoryStoreMalformedSession(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.mu.Lock()
	store.blobs["corrupt"] = []byte(`{"role": not-json`)
	store.mu.Unlock()

	session, err := store.Get(ctx, "corrupt")
	if err != nil {
		t.Fatalf("malformed session must not error: %v", err)
	}
	if session != nil {
		t.Fatal("malformed session must read as no session")
	}
	if HasPermission(session, "leads") {
		t.Error("malformed session must deny everything")
	}
}

func TestMemoryStoreSubscribe(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var seen []string
	store.Subscribe(func(id string) { seen = append(seen, id) })

	session := &Session{ID: "s-1", Role: RoleManager}
	if err := store.Set(ctx, session); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Clear(ctx, "s-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	// Clearing an absent session does not notify.
	if err := store.Clear(ctx, "s-1"); err != nil {
		t.Fatalf("clear absent: %v", err)
	}

	if len(seen) != 2 || seen[0] != "s-1" || seen[1] != "s-1" {
		t.Errorf("notifications = %v, want [s-1 s-1]", seen)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	original := &Session{
		ID:    "s-rt",
		Name:  "Rita",
		Email: "rita@orbit.test",
		Role:  RoleFinance,
		Token: "tok",
		Permissions: []Grant{
			{Module: "Users", View: 1, Edit: 1, Delete: 1, FullAccess: 0},
		},
	}

	if err := store.Set(ctx, original); err != nil {
		t.Fatalf("set: %v", err)
	}

	loaded, err := store.Get(ctx, "s-rt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded == nil {
		t.Fatal("session should exist")
	}

	if len(loaded.Permissions) != 1 {
		t.Fatalf("permissions = %d, want 1", len(loaded.Permissions))
	}
	g := loaded.Permissions[0]
	if g.Module != "Users" || g.View != 1 || g.Edit != 1 || g.Delete != 1 || g.FullAccess != 0 {
		t.Errorf("grant round-trip mismatch: %+v", g)
	}
}
