package org

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orbitcrm/platform/internal/shared/errors"
	"github.com/orbitcrm/platform/internal/shared/types"
)

// Repository provides persistence for branches.
type Repository interface {
	List(ctx context.Context) ([]Branch, error)
	Get(ctx context.Context, id types.ID) (*Branch, error)
	Create(ctx context.Context, b *Branch) error
	Update(ctx context.Context, b *Branch) error
	Delete(ctx context.Context, id types.ID) error
}

// PostgresRepository implements Repository over crm.branches.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new postgres-backed branch repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const branchColumns = `id, code, name, address_street, address_city, address_postal_code, address_country,
	contact_email, contact_phone, contact_mobile, is_active, created_at, updated_at`

func scanBranch(row pgx.Row, b *Branch) error {
	return row.Scan(&b.GUID, &b.Code, &b.Name,
		&b.Address.Street, &b.Address.City, &b.Address.PostalCode, &b.Address.Country,
		&b.Contact.Email, &b.Contact.Phone, &b.Contact.Mobile,
		&b.IsActive, &b.CreatedAt, &b.UpdatedAt)
}

func (r *PostgresRepository) List(ctx context.Context) ([]Branch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+branchColumns+` FROM crm.branches ORDER BY code`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list branches")
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		var b Branch
		if err := scanBranch(rows, &b); err != nil {
			return nil, errors.Wrap(err, "failed to scan branch")
		}
		branches = append(branches, b)
	}

	return branches, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*Branch, error) {
	b := &Branch{}
	err := scanBranch(r.pool.QueryRow(ctx, `SELECT `+branchColumns+` FROM crm.branches WHERE id = $1`, id), b)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("branch", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get branch")
	}
	return b, nil
}

func (r *PostgresRepository) Create(ctx context.Context, b *Branch) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO crm.branches (id, code, name, address_street, address_city, address_postal_code, address_country,
			contact_email, contact_phone, contact_mobile, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.GUID, b.Code, b.Name,
		b.Address.Street, b.Address.City, b.Address.PostalCode, b.Address.Country,
		b.Contact.Email, b.Contact.Phone, b.Contact.Mobile, b.IsActive)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("branch code already in use")
		}
		return errors.Wrap(err, "failed to create branch")
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, b *Branch) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE crm.branches
		SET name = $2, address_street = $3, address_city = $4, address_postal_code = $5, address_country = $6,
		    contact_email = $7, contact_phone = $8, contact_mobile = $9, is_active = $10, updated_at = NOW()
		WHERE id = $1`,
		b.GUID, b.Name,
		b.Address.Street, b.Address.City, b.Address.PostalCode, b.Address.Country,
		b.Contact.Email, b.Contact.Phone, b.Contact.Mobile, b.IsActive)
	if err != nil {
		return errors.Wrap(err, "failed to update branch")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("branch", b.GUID.String())
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM crm.branches WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete branch")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("branch", id.String())
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)

// MemoryRepository keeps branches in process memory, seeded with a head
// office so assignments work without a database.
type MemoryRepository struct {
	mu       sync.RWMutex
	branches map[types.ID]*Branch
}

// NewMemoryRepository creates an in-memory branch repository.
func NewMemoryRepository() *MemoryRepository {
	r := &MemoryRepository{branches: make(map[types.ID]*Branch)}
	now := time.Now().UTC()
	head := &Branch{
		GUID:      types.NewID(),
		Code:      "HQ",
		Name:      "Head Office",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.branches[head.GUID] = head
	return r
}

func (r *MemoryRepository) List(ctx context.Context) ([]Branch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	branches := make([]Branch, 0, len(r.branches))
	for _, b := range r.branches {
		branches = append(branches, *b)
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Code < branches[j].Code })
	return branches, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id types.ID) (*Branch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.branches[id]
	if !ok {
		return nil, errors.NotFound("branch", id.String())
	}
	copied := *b
	return &copied, nil
}

func (r *MemoryRepository) Create(ctx context.Context, b *Branch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.branches {
		if strings.EqualFold(existing.Code, b.Code) {
			return errors.Conflict("branch code already in use")
		}
	}
	copied := *b
	r.branches[b.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, b *Branch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.branches[b.GUID]; !ok {
		return errors.NotFound("branch", b.GUID.String())
	}
	copied := *b
	copied.UpdatedAt = time.Now().UTC()
	r.branches[b.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.branches[id]; !ok {
		return errors.NotFound("branch", id.String())
	}
	delete(r.branches, id)
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
