package followup

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

// Repository provides persistence for follow-ups.
type Repository interface {
	List(ctx context.Context, filter FollowupFilter) ([]Followup, int, error)
	Get(ctx context.Context, id types.ID) (*Followup, error)
	Create(ctx context.Context, f *Followup) error
	Update(ctx context.Context, f *Followup) error
	Delete(ctx context.Context, id types.ID) error
}

// PostgresRepository implements Repository over crm.followups.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new postgres-backed follow-up repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const followupColumns = `id, lead_id, assigned_to, due_at, status, notes, outcome, created_at, updated_at`

func scanFollowup(row pgx.Row, f *Followup) error {
	return row.Scan(&f.GUID, &f.LeadID, &f.AssignedTo, &f.DueAt,
		&f.Status, &f.Notes, &f.Outcome, &f.CreatedAt, &f.UpdatedAt)
}

func (r *PostgresRepository) List(ctx context.Context, filter FollowupFilter) ([]Followup, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argNum := 1

	if filter.LeadID != nil {
		conditions = append(conditions, fmt.Sprintf("lead_id = $%d", argNum))
		args = append(args, *filter.LeadID)
		argNum++
	}
	if filter.AssignedTo != nil {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", argNum))
		args = append(args, *filter.AssignedTo)
		argNum++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, filter.Status)
		argNum++
	}
	if filter.DueBefore != nil {
		conditions = append(conditions, fmt.Sprintf("due_at < $%d", argNum))
		args = append(args, *filter.DueBefore)
		argNum++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM crm.followups WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count followups")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM crm.followups
		WHERE %s
		ORDER BY due_at
		LIMIT $%d OFFSET $%d`, followupColumns, where, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list followups")
	}
	defer rows.Close()

	var followups []Followup
	for rows.Next() {
		var f Followup
		if err := scanFollowup(rows, &f); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan followup")
		}
		followups = append(followups, f)
	}

	return followups, total, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*Followup, error) {
	f := &Followup{}
	query := fmt.Sprintf("SELECT %s FROM crm.followups WHERE id = $1", followupColumns)
	err := scanFollowup(r.pool.QueryRow(ctx, query, id), f)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("followup", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get followup")
	}
	return f, nil
}

func (r *PostgresRepository) Create(ctx context.Context, f *Followup) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO crm.followups (id, lead_id, assigned_to, due_at, status, notes, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.GUID, f.LeadID, f.AssignedTo, f.DueAt, f.Status, f.Notes, f.Outcome)
	if err != nil {
		return errors.Wrap(err, "failed to create followup")
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, f *Followup) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE crm.followups
		SET assigned_to = $2, due_at = $3, status = $4, notes = $5, outcome = $6, updated_at = NOW()
		WHERE id = $1`,
		f.GUID, f.AssignedTo, f.DueAt, f.Status, f.Notes, f.Outcome)
	if err != nil {
		return errors.Wrap(err, "failed to update followup")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("followup", f.GUID.String())
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM crm.followups WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete followup")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("followup", id.String())
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)

// MemoryRepository keeps follow-ups in process memory.
type MemoryRepository struct {
	mu        sync.RWMutex
	followups map[types.ID]*Followup
}

// NewMemoryRepository creates an empty in-memory follow-up repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{followups: make(map[types.ID]*Followup)}
}

func matchesFilter(f *Followup, filter FollowupFilter) bool {
	if filter.LeadID != nil && f.LeadID != *filter.LeadID {
		return false
	}
	if filter.AssignedTo != nil && (f.AssignedTo == nil || *f.AssignedTo != *filter.AssignedTo) {
		return false
	}
	if filter.Status != "" && f.Status != filter.Status {
		return false
	}
	if filter.DueBefore != nil && !f.DueAt.Before(*filter.DueBefore) {
		return false
	}
	return true
}

func (r *MemoryRepository) List(ctx context.Context, filter FollowupFilter) ([]Followup, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Followup
	for _, f := range r.followups {
		if matchesFilter(f, filter) {
			matched = append(matched, *f)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].DueAt.Before(matched[j].DueAt) })

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

func (r *MemoryRepository) Get(ctx context.Context, id types.ID) (*Followup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.followups[id]
	if !ok {
		return nil, errors.NotFound("followup", id.String())
	}
	copied := *f
	return &copied, nil
}

func (r *MemoryRepository) Create(ctx context.Context, f *Followup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *f
	r.followups[f.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, f *Followup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.followups[f.GUID]; !ok {
		return errors.NotFound("followup", f.GUID.String())
	}
	copied := *f
	copied.UpdatedAt = time.Now().UTC()
	r.followups[f.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.followups[id]; !ok {
		return errors.NotFound("followup", id.String())
	}
	delete(r.followups, id)
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
