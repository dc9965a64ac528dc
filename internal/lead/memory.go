package lead

import (
	"context"
	_ "embed"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/orbitcrm/platform/internal/shared/errors"
	"github.com/orbitcrm/platform/internal/shared/types"
)

//go:embed seed/leads.json
var seedData []byte

// MemoryRepository keeps leads in process memory, seeded with a small sample
// dataset so the pipeline is populated without a database.
type MemoryRepository struct {
	mu    sync.RWMutex
	leads map[types.ID]*Lead
}

// NewMemoryRepository creates an in-memory lead repository with seed data.
func NewMemoryRepository() *MemoryRepository {
	r := &MemoryRepository{leads: make(map[types.ID]*Lead)}

	var seeds []Lead
	if err := json.Unmarshal(seedData, &seeds); err == nil {
		now := time.Now().UTC()
		for i := range seeds {
			l := seeds[i]
			l.GUID = types.NewID()
			if l.Status == "" {
				l.Status = StatusNew
			}
			l.CreatedAt = now
			l.UpdatedAt = now
			r.leads[l.GUID] = &l
		}
	}
	return r
}

func matchesFilter(l *Lead, filter LeadFilter) bool {
	if filter.Status != "" && l.Status != filter.Status {
		return false
	}
	if filter.AssignedTo != nil && (l.AssignedTo == nil || *l.AssignedTo != *filter.AssignedTo) {
		return false
	}
	if filter.BranchID != nil && (l.BranchID == nil || *l.BranchID != *filter.BranchID) {
		return false
	}
	if filter.Source != "" && l.Source != filter.Source {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(l.Name), needle) &&
			!strings.Contains(strings.ToLower(l.Email), needle) &&
			!strings.Contains(strings.ToLower(l.Company), needle) {
			return false
		}
	}
	return true
}

func (r *MemoryRepository) List(ctx context.Context, filter LeadFilter) ([]Lead, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Lead
	for _, l := range r.leads {
		if matchesFilter(l, filter) {
			matched = append(matched, *l)
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

func (r *MemoryRepository) Get(ctx context.Context, id types.ID) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.leads[id]
	if !ok {
		return nil, errors.NotFound("lead", id.String())
	}
	copied := *l
	return &copied, nil
}

func (r *MemoryRepository) Create(ctx context.Context, l *Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *l
	r.leads[l.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, l *Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.leads[l.GUID]; !ok {
		return errors.NotFound("lead", l.GUID.String())
	}
	copied := *l
	copied.UpdatedAt = time.Now().UTC()
	r.leads[l.GUID] = &copied
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.leads[id]; !ok {
		return errors.NotFound("lead", id.String())
	}
	delete(r.leads, id)
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
