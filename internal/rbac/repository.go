package rbac

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orbitcrm/platform/internal/auth"
	"github.com/orbitcrm/platform/internal/shared/errors"
	"github.com/orbitcrm/platform/internal/shared/types"
)

// Repository provides persistence for roles and their grant lists.
type Repository interface {
	List(ctx context.Context) ([]Role, error)
	Get(ctx context.Context, id types.ID) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	Create(ctx context.Context, role *Role) error
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id types.ID) error
}

// PostgresRepository implements Repository over crm.roles/crm.role_permissions.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new postgres-backed role repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, is_system, is_active, created_at, updated_at
		FROM crm.roles
		ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list roles")
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.GUID, &role.Name, &role.Description,
			&role.IsSystem, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan role")
		}
		roles = append(roles, role)
	}

	for i := range roles {
		grants, err := r.getGrants(ctx, roles[i].GUID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = grants
	}

	return roles, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*Role, error) {
	role := &Role{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, is_system, is_active, created_at, updated_at
		FROM crm.roles
		WHERE id = $1`, id).Scan(
		&role.GUID, &role.Name, &role.Description,
		&role.IsSystem, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("role", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get role")
	}

	grants, err := r.getGrants(ctx, role.GUID)
	if err != nil {
		return nil, err
	}
	role.Permissions = grants
	return role, nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*Role, error) {
	role := &Role{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, is_system, is_active, created_at, updated_at
		FROM crm.roles
		WHERE LOWER(name) = LOWER($1)`, name).Scan(
		&role.GUID, &role.Name, &role.Description,
		&role.IsSystem, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("role", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get role by name")
	}

	grants, err := r.getGrants(ctx, role.GUID)
	if err != nil {
		return nil, err
	}
	role.Permissions = grants
	return role, nil
}

func (r *PostgresRepository) getGrants(ctx context.Context, roleID types.ID) ([]auth.Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT module, view_flag, edit_flag, delete_flag, full_access
		FROM crm.role_permissions
		WHERE role_id = $1
		ORDER BY module`, roleID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get role grants")
	}
	defer rows.Close()

	var grants []auth.Grant
	for rows.Next() {
		var g auth.Grant
		var view, edit, del, full int16
		if err := rows.Scan(&g.Module, &view, &edit, &del, &full); err != nil {
			return nil, errors.Wrap(err, "failed to scan role grant")
		}
		g.View, g.Edit, g.Delete, g.FullAccess = auth.Flag(view), auth.Flag(edit), auth.Flag(del), auth.Flag(full)
		grants = append(grants, g)
	}

	return grants, nil
}

func (r *PostgresRepository) Create(ctx context.Context, role *Role) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO crm.roles (id, name, description, is_system, is_active)
		VALUES ($1, $2, $3, $4, $5)`,
		role.GUID, role.Name, role.Description, role.IsSystem, role.IsActive)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("role with this name already exists")
		}
		return errors.Wrap(err, "failed to create role")
	}

	if err := insertGrants(ctx, tx, role.GUID, role.Permissions); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, role *Role) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE crm.roles
		SET name = $2, description = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1`,
		role.GUID, role.Name, role.Description, role.IsActive)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("role with this name already exists")
		}
		return errors.Wrap(err, "failed to update role")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("role", role.GUID.String())
	}

	// Replace the grant set wholesale; the flat list is small.
	if _, err := tx.Exec(ctx, `DELETE FROM crm.role_permissions WHERE role_id = $1`, role.GUID); err != nil {
		return errors.Wrap(err, "failed to clear role grants")
	}
	if err := insertGrants(ctx, tx, role.GUID, role.Permissions); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func insertGrants(ctx context.Context, tx pgx.Tx, roleID types.ID, grants []auth.Grant) error {
	for _, g := range grants {
		_, err := tx.Exec(ctx, `
			INSERT INTO crm.role_permissions (id, role_id, module, view_flag, edit_flag, delete_flag, full_access)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			types.NewID(), roleID, g.Module,
			int16(g.View), int16(g.Edit), int16(g.Delete), int16(g.FullAccess))
		if err != nil {
			return errors.Wrap(err, "failed to insert role grant")
		}
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM crm.roles WHERE id = $1 AND is_system = FALSE`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete role")
	}
	if result.RowsAffected() == 0 {
		// Either absent or a system role; disambiguate for the caller.
		var isSystem bool
		err := r.pool.QueryRow(ctx, `SELECT is_system FROM crm.roles WHERE id = $1`, id).Scan(&isSystem)
		if err == nil && isSystem {
			return errors.Conflict("system roles cannot be deleted")
		}
		return errors.NotFound("role", id.String())
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)

// --- In-memory repository ---

// MemoryRepository keeps roles in process memory, seeded with the system
// roles so scoped logins work without a database.
type MemoryRepository struct {
	mu    sync.RWMutex
	roles map[types.ID]*Role
}

// NewMemoryRepository creates a role repository seeded with system roles.
func NewMemoryRepository() *MemoryRepository {
	r := &MemoryRepository{roles: make(map[types.ID]*Role)}
	for _, role := range systemRoles() {
		role := role
		r.roles[role.GUID] = &role
	}
	return r
}

func systemRoles() []Role {
	now := time.Now().UTC()
	mk := func(name, description string, grants []auth.Grant) Role {
		return Role{
			GUID:        types.NewID(),
			Name:        name,
			Description: description,
			IsSystem:    true,
			IsActive:    true,
			Permissions: grants,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	return []Role{
		// Admin-class roles bypass grant evaluation; empty lists are fine.
		mk("Super Admin", "Unrestricted access to every module", nil),
		mk("Admin", "Administrative access to every module", nil),
		mk("Manager", "Runs a branch: full pipeline access, read-only administration", []auth.Grant{
			{Module: "Leads", View: 1, Edit: 1, Delete: 1, FullAccess: 1},
			{Module: "Followups", View: 1, Edit: 1, Delete: 1, FullAccess: 1},
			{Module: "Budgets", View: 1, Edit: 1, Delete: 1, FullAccess: 1},
			{Module: "Clients", View: 1, Edit: 1, Delete: 1, FullAccess: 1},
			{Module: "Dashboard", View: 1},
			{Module: "Users", View: 1},
			{Module: "Organization", View: 1},
		}),
		mk("Telecaller", "Works leads and follow-ups", []auth.Grant{
			{Module: "Leads", View: 1, Edit: 1},
			{Module: "Followups", View: 1, Edit: 1, Delete: 1, FullAccess: 1},
			{Module: "Dashboard", View: 1},
		}),
		mk("Finance", "Budget review and client billing data", []auth.Grant{
			{Module: "Budgets", View: 1, Edit: 1, Delete: 1, FullAccess: 1},
			{Module: "Clients", View: 1},
			{Module: "Dashboard", View: 1},
		}),
	}
}

func (r *MemoryRepository) List(ctx context.Context) ([]Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		roles = append(roles, *role)
	}
	sortRolesByName(roles)
	return roles, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id types.ID) (*Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.roles[id]
	if !ok {
		return nil, errors.NotFound("role", id.String())
	}
	copied := *role
	return &copied, nil
}

func (r *MemoryRepository) GetByName(ctx context.Context, name string) (*Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, role := range r.roles {
		if strings.EqualFold(role.Name, name) {
			copied := *role
			return &copied, nil
		}
	}
	return nil, errors.NotFound("role", name)
}

func (r *MemoryRepository) Create(ctx context.Context, role *Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.roles {
		if strings.EqualFold(existing.Name, role.Name) {
			return errors.Conflict("role with this name already exists")
		}
	}
	copied := *role
	r.roles[role.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, role *Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.roles[role.GUID]
	if !ok {
		return errors.NotFound("role", role.GUID.String())
	}
	for id, other := range r.roles {
		if id != role.GUID && strings.EqualFold(other.Name, role.Name) {
			return errors.Conflict("role with this name already exists")
		}
	}

	copied := *role
	copied.IsSystem = existing.IsSystem
	copied.UpdatedAt = time.Now().UTC()
	r.roles[role.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	role, ok := r.roles[id]
	if !ok {
		return errors.NotFound("role", id.String())
	}
	if role.IsSystem {
		return errors.Conflict("system roles cannot be deleted")
	}
	delete(r.roles, id)
	return nil
}

var _ Repository = (*MemoryRepository)(nil)

func sortRolesByName(roles []Role) {
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
}
