package user

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/orbitcrm/platform/internal/shared/errors"
	"github.com/orbitcrm/platform/internal/shared/types"
)

// MemoryRepository keeps accounts in process memory. It seeds a Super Admin
// account so the service is usable before any database exists.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[types.ID]*User
}

// NewMemoryRepository creates an in-memory user repository seeded with the
// bootstrap administrator. seedHash is the bcrypt hash of the bootstrap
// password.
func NewMemoryRepository(seedHash string) *MemoryRepository {
	r := &MemoryRepository{users: make(map[types.ID]*User)}
	now := time.Now().UTC()
	admin := &User{
		GUID:         types.NewID(),
		Username:     "admin",
		Name:         "System Administrator",
		Email:        "admin@orbitcrm.local",
		PasswordHash: seedHash,
		RoleName:     "Super Admin",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[admin.GUID] = admin
	return r
}

func matchesFilter(u *User, filter UserFilter) bool {
	if filter.RoleName != "" && u.RoleName != filter.RoleName {
		return false
	}
	if filter.BranchID != nil && (u.BranchID == nil || *u.BranchID != *filter.BranchID) {
		return false
	}
	if filter.Active != nil && u.IsActive != *filter.Active {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(u.Name), needle) &&
			!strings.Contains(strings.ToLower(u.Email), needle) &&
			!strings.Contains(strings.ToLower(u.Username), needle) {
			return false
		}
	}
	return true
}

func (r *MemoryRepository) List(ctx context.Context, filter UserFilter) ([]User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []User
	for _, u := range r.users {
		if matchesFilter(u, filter) {
			matched = append(matched, *u)
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

func (r *MemoryRepository) Get(ctx context.Context, id types.ID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("user", id.String())
	}
	copied := *u
	return &copied, nil
}

func (r *MemoryRepository) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, identifier) || strings.EqualFold(u.Email, identifier) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, errors.NotFound("user", identifier)
}

func (r *MemoryRepository) Create(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email) {
			return errors.Conflict("username or email already in use")
		}
	}
	copied := *u
	r.users[u.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.GUID]; !ok {
		return errors.NotFound("user", u.GUID.String())
	}
	for id, existing := range r.users {
		if id != u.GUID && (strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email)) {
			return errors.Conflict("username or email already in use")
		}
	}

	copied := *u
	copied.UpdatedAt = time.Now().UTC()
	r.users[u.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return errors.NotFound("user", id.String())
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryRepository) TouchLastLogin(ctx context.Context, id types.ID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return errors.NotFound("user", id.String())
	}
	u.LastLogin = &at
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
