package client

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

// Repository provides persistence for clients.
type Repository interface {
	List(ctx context.Context, filter ClientFilter) ([]Client, int, error)
	Get(ctx context.Context, id types.ID) (*Client, error)
	Create(ctx context.Context, c *Client) error
	Update(ctx context.Context, c *Client) error
	Delete(ctx context.Context, id types.ID) error
}

// PostgresRepository implements Repository over crm.clients.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new postgres-backed client repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const clientColumns = `id, lead_id, name, company, email, phone, city, status, created_at, updated_at`

func scanClient(row pgx.Row, c *Client) error {
	return row.Scan(&c.GUID, &c.LeadID, &c.Name, &c.Company, &c.Email,
		&c.Phone, &c.City, &c.Status, &c.CreatedAt, &c.UpdatedAt)
}

func (r *PostgresRepository) List(ctx context.Context, filter ClientFilter) ([]Client, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argNum := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, filter.Status)
		argNum++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR company ILIKE $%d OR email ILIKE $%d)", argNum, argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM crm.clients WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count clients")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM crm.clients
		WHERE %s
		ORDER BY name
		LIMIT $%d OFFSET $%d`, clientColumns, where, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list clients")
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := scanClient(rows, &c); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan client")
		}
		clients = append(clients, c)
	}

	return clients, total, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*Client, error) {
	c := &Client{}
	query := fmt.Sprintf("SELECT %s FROM crm.clients WHERE id = $1", clientColumns)
	err := scanClient(r.pool.QueryRow(ctx, query, id), c)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("client", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get client")
	}
	return c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, c *Client) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO crm.clients (id, lead_id, name, company, email, phone, city, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.GUID, c.LeadID, c.Name, c.Company, c.Email, c.Phone, c.City, c.Status)
	if err != nil {
		return errors.Wrap(err, "failed to create client")
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, c *Client) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE crm.clients
		SET name = $2, company = $3, email = $4, phone = $5, city = $6, status = $7, updated_at = NOW()
		WHERE id = $1`,
		c.GUID, c.Name, c.Company, c.Email, c.Phone, c.City, c.Status)
	if err != nil {
		return errors.Wrap(err, "failed to update client")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("client", c.GUID.String())
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM crm.clients WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete client")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("client", id.String())
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)

// MemoryRepository keeps clients in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	clients map[types.ID]*Client
}

// NewMemoryRepository creates an empty in-memory client repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{clients: make(map[types.ID]*Client)}
}

func matchesFilter(c *Client, filter ClientFilter) bool {
	if filter.Status != "" && c.Status != filter.Status {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(strings.ToLower(c.Company), needle) &&
			!strings.Contains(strings.ToLower(c.Email), needle) {
			return false
		}
	}
	return true
}

func (r *MemoryRepository) List(ctx context.Context, filter ClientFilter) ([]Client, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Client
	for _, c := range r.clients {
		if matchesFilter(c, filter) {
			matched = append(matched, *c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

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

func (r *MemoryRepository) Get(ctx context.Context, id types.ID) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[id]
	if !ok {
		return nil, errors.NotFound("client", id.String())
	}
	copied := *c
	return &copied, nil
}

func (r *MemoryRepository) Create(ctx context.Context, c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *c
	r.clients[c.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.GUID]; !ok {
		return errors.NotFound("client", c.GUID.String())
	}
	copied := *c
	copied.UpdatedAt = time.Now().UTC()
	r.clients[c.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[id]; !ok {
		return errors.NotFound("client", id.String())
	}
	delete(r.clients, id)
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
