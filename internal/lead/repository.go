package lead

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orbitcrm/platform/internal/shared/errors"
	"github.com/orbitcrm/platform/internal/shared/types"
)

// Repository provides persistence for leads.
type Repository interface {
	List(ctx context.Context, filter LeadFilter) ([]Lead, int, error)
	Get(ctx context.Context, id types.ID) (*Lead, error)
	Create(ctx context.Context, l *Lead) error
	Update(ctx context.Context, l *Lead) error
	Delete(ctx context.Context, id types.ID) error
}

// PostgresRepository implements Repository over crm.leads.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new postgres-backed lead repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const leadColumns = `id, name, email, phone, company, source, status, assigned_to, branch_id, notes, created_at, updated_at`

func scanLead(row pgx.Row, l *Lead) error {
	return row.Scan(&l.GUID, &l.Name, &l.Email, &l.Phone, &l.Company,
		&l.Source, &l.Status, &l.AssignedTo, &l.BranchID, &l.Notes,
		&l.CreatedAt, &l.UpdatedAt)
}

func (r *PostgresRepository) List(ctx context.Context, filter LeadFilter) ([]Lead, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argNum := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, filter.Status)
		argNum++
	}
	if filter.AssignedTo != nil {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", argNum))
		args = append(args, *filter.AssignedTo)
		argNum++
	}
	if filter.BranchID != nil {
		conditions = append(conditions, fmt.Sprintf("branch_id = $%d", argNum))
		args = append(args, *filter.BranchID)
		argNum++
	}
	if filter.Source != "" {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argNum))
		args = append(args, filter.Source)
		argNum++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR company ILIKE $%d)", argNum, argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM crm.leads WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count leads")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM crm.leads
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, leadColumns, where, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list leads")
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		var l Lead
		if err := scanLead(rows, &l); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan lead")
		}
		leads = append(leads, l)
	}

	return leads, total, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*Lead, error) {
	l := &Lead{}
	query := fmt.Sprintf("SELECT %s FROM crm.leads WHERE id = $1", leadColumns)
	err := scanLead(r.pool.QueryRow(ctx, query, id), l)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("lead", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get lead")
	}
	return l, nil
}

func (r *PostgresRepository) Create(ctx context.Context, l *Lead) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO crm.leads (id, name, email, phone, company, source, status, assigned_to, branch_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.GUID, l.Name, l.Email, l.Phone, l.Company, l.Source,
		l.Status, l.AssignedTo, l.BranchID, l.Notes)
	if err != nil {
		return errors.Wrap(err, "failed to create lead")
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, l *Lead) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE crm.leads
		SET name = $2, email = $3, phone = $4, company = $5, source = $6,
		    status = $7, assigned_to = $8, branch_id = $9, notes = $10, updated_at = NOW()
		WHERE id = $1`,
		l.GUID, l.Name, l.Email, l.Phone, l.Company, l.Source,
		l.Status, l.AssignedTo, l.BranchID, l.Notes)
	if err != nil {
		return errors.Wrap(err, "failed to update lead")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("lead", l.GUID.String())
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM crm.leads WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete lead")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("lead", id.String())
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
