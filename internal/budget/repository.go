package budget

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orbitcrm/platform/internal/shared/errors"
	"github.com/orbitcrm/platform/internal/shared/types"
)

// Repository provides persistence for budgets.
type Repository interface {
	List(ctx context.Context, filter BudgetFilter) ([]Budget, int, error)
	Get(ctx context.Context, id types.ID) (*Budget, error)
	Create(ctx context.Context, b *Budget) error
	Update(ctx context.Context, b *Budget) error
	Delete(ctx context.Context, id types.ID) error
}

// PostgresRepository implements Repository over crm.budgets.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new postgres-backed budget repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const budgetColumns = `id, lead_id, client_id, title, estimated_amount, discount, final_amount, status, approved_by, created_at, updated_at`

func scanBudget(row pgx.Row, b *Budget) error {
	return row.Scan(&b.GUID, &b.LeadID, &b.ClientID, &b.Title,
		&b.EstimatedAmount, &b.Discount, &b.FinalAmount,
		&b.Status, &b.ApprovedBy, &b.CreatedAt, &b.UpdatedAt)
}

func (r *PostgresRepository) List(ctx context.Context, filter BudgetFilter) ([]Budget, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argNum := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, filter.Status)
		argNum++
	}
	if filter.LeadID != nil {
		conditions = append(conditions, fmt.Sprintf("lead_id = $%d", argNum))
		args = append(args, *filter.LeadID)
		argNum++
	}
	if filter.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", argNum))
		args = append(args, *filter.ClientID)
		argNum++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM crm.budgets WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count budgets")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM crm.budgets
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, budgetColumns, where, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list budgets")
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		var b Budget
		if err := scanBudget(rows, &b); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan budget")
		}
		budgets = append(budgets, b)
	}

	return budgets, total, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*Budget, error) {
	b := &Budget{}
	query := fmt.Sprintf("SELECT %s FROM crm.budgets WHERE id = $1", budgetColumns)
	err := scanBudget(r.pool.QueryRow(ctx, query, id), b)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("budget", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get budget")
	}
	return b, nil
}

func (r *PostgresRepository) Create(ctx context.Context, b *Budget) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO crm.budgets (id, lead_id, client_id, title, estimated_amount, discount, final_amount, status, approved_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.GUID, b.LeadID, b.ClientID, b.Title,
		b.EstimatedAmount, b.Discount, b.FinalAmount, b.Status, b.ApprovedBy)
	if err != nil {
		return errors.Wrap(err, "failed to create budget")
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, b *Budget) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE crm.budgets
		SET title = $2, estimated_amount = $3, discount = $4, final_amount = $5,
		    status = $6, approved_by = $7, updated_at = NOW()
		WHERE id = $1`,
		b.GUID, b.Title, b.EstimatedAmount, b.Discount, b.FinalAmount,
		b.Status, b.ApprovedBy)
	if err != nil {
		return errors.Wrap(err, "failed to update budget")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("budget", b.GUID.String())
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM crm.budgets WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete budget")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("budget", id.String())
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)

// MemoryRepository keeps budgets in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	budgets map[types.ID]*Budget
}

// NewMemoryRepository creates an empty in-memory budget repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{budgets: make(map[types.ID]*Budget)}
}

func matchesFilter(b *Budget, filter BudgetFilter) bool {
	if filter.Status != "" && b.Status != filter.Status {
		return false
	}
	if filter.LeadID != nil && (b.LeadID == nil || *b.LeadID != *filter.LeadID) {
		return false
	}
	if filter.ClientID != nil && (b.ClientID == nil || *b.ClientID != *filter.ClientID) {
		return false
	}
	return true
}

func (r *MemoryRepository) List(ctx context.Context, filter BudgetFilter) ([]Budget, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Budget
	for _, b := range r.budgets {
		if matchesFilter(b, filter) {
			matched = append(matched, *b)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id types.ID) (*Budget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.budgets[id]
	if !ok {
		return nil, errors.NotFound("budget", id.String())
	}
	copied := *b
	return &copied, nil
}

func (r *MemoryRepository) Create(ctx context.Context, b *Budget) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *b
	r.budgets[b.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, b *Budget) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.budgets[b.GUID]; !ok {
		return errors.NotFound("budget", b.GUID.String())
	}
	copied := *b
	copied.UpdatedAt = time.Now().UTC()
	r.budgets[b.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.budgets[id]; !ok {
		return errors.NotFound("budget", id.String())
	}
	delete(r.budgets, id)
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
