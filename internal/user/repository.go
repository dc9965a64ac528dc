package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orbitcrm/platform/internal/shared/errors"
	"github.com/orbitcrm/platform/internal/shared/types"
)

// Repository provides persistence for staff accounts.
type Repository interface {
	List(ctx context.Context, filter UserFilter) ([]User, int, error)
	Get(ctx context.Context, id types.ID) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id types.ID) error
	TouchLastLogin(ctx context.Context, id types.ID, at time.Time) error
}

// PostgresRepository implements Repository over crm.users.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new postgres-backed user repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const userColumns = `id, username, name, email, phone, password_hash, role_name, branch_id, is_active, last_login, created_at, updated_at`

func scanUser(row pgx.Row, u *User) error {
	return row.Scan(&u.GUID, &u.Username, &u.Name, &u.Email, &u.Phone,
		&u.PasswordHash, &u.RoleName, &u.BranchID, &u.IsActive,
		&u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
}

func (r *PostgresRepository) List(ctx context.Context, filter UserFilter) ([]User, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argNum := 1

	if filter.RoleName != "" {
		conditions = append(conditions, fmt.Sprintf("role_name = $%d", argNum))
		args = append(args, filter.RoleName)
		argNum++
	}
	if filter.BranchID != nil {
		conditions = append(conditions, fmt.Sprintf("branch_id = $%d", argNum))
		args = append(args, *filter.BranchID)
		argNum++
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argNum))
		args = append(args, *filter.Active)
		argNum++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR username ILIKE $%d)", argNum, argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM crm.users WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count users")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM crm.users
		WHERE %s
		ORDER BY name
		LIMIT $%d OFFSET $%d`, userColumns, where, argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list users")
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := scanUser(rows, &u); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan user")
		}
		users = append(users, u)
	}

	return users, total, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*User, error) {
	u := &User{}
	query := fmt.Sprintf("SELECT %s FROM crm.users WHERE id = $1", userColumns)
	err := scanUser(r.pool.QueryRow(ctx, query, id), u)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}
	return u, nil
}

// GetByIdentifier looks up by username or email, case-insensitively. The
// login flow accepts either.
func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	u := &User{}
	query := fmt.Sprintf(`
		SELECT %s FROM crm.users
		WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)`, userColumns)
	err := scanUser(r.pool.QueryRow(ctx, query, identifier), u)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", identifier)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user by identifier")
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO crm.users (id, username, name, email, phone, password_hash, role_name, branch_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.GUID, u.Username, u.Name, u.Email, u.Phone,
		u.PasswordHash, u.RoleName, u.BranchID, u.IsActive)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("username or email already in use")
		}
		return errors.Wrap(err, "failed to create user")
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, u *User) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE crm.users
		SET name = $2, email = $3, phone = $4, password_hash = $5,
		    role_name = $6, branch_id = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1`,
		u.GUID, u.Name, u.Email, u.Phone, u.PasswordHash,
		u.RoleName, u.BranchID, u.IsActive)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("username or email already in use")
		}
		return errors.Wrap(err, "failed to update user")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("user", u.GUID.String())
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM crm.users WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete user")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("user", id.String())
	}
	return nil
}

func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id types.ID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE crm.users SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return errors.Wrap(err, "failed to record last login")
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
