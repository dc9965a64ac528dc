// Package legacy imports leads from the previous CRM's SQL Server database.
// The importer polls the legacy lead table and copies rows not yet seen into
// the lead repository, so both systems can run side by side during migration.
package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/orbitcrm/platform/internal/lead"
	"github.com/orbitcrm/platform/internal/shared/config"
	"github.com/orbitcrm/platform/internal/shared/metrics"
	"github.com/orbitcrm/platform/internal/shared/types"
)

// Importer polls the legacy CRM and feeds new leads into the repository.
type Importer struct {
	db    *sql.DB
	cfg   config.LegacyConfig
	leads lead.Repository

	running  bool
	mu       sync.RWMutex
	cancel   context.CancelFunc
	lastPoll time.Time
	wg       sync.WaitGroup

	// seen holds legacy emails already imported this process lifetime.
	// The repository's own lookup catches duplicates across restarts.
	seen map[string]bool
}

// New creates an importer. It does not connect until Start.
func New(cfg config.LegacyConfig, leads lead.Repository) *Importer {
	return &Importer{
		cfg:   cfg,
		leads: leads,
		seen:  make(map[string]bool),
	}
}

// Start opens the SQL Server connection and begins polling.
func (i *Importer) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.running {
		return fmt.Errorf("importer already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		i.cfg.Host, i.cfg.Port, i.cfg.Database, i.cfg.User, i.cfg.Password)

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open legacy database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping legacy database: %w", err)
	}

	i.db = db
	i.running = true
	i.lastPoll = time.Now().Add(-i.cfg.PollInterval)

	pollCtx, cancel := context.WithCancel(ctx)
	i.cancel = cancel

	i.wg.Add(1)
	go i.pollLoop(pollCtx)

	return nil
}

// Stop halts polling and closes the connection.
func (i *Importer) Stop(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.running {
		return nil
	}

	if i.cancel != nil {
		i.cancel()
	}

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if i.db != nil {
		i.db.Close()
	}

	i.running = false
	return nil
}

// Health checks legacy database connectivity.
func (i *Importer) Health(ctx context.Context) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if !i.running {
		return fmt.Errorf("importer not running")
	}
	return i.db.PingContext(ctx)
}

func (i *Importer) pollLoop(ctx context.Context) {
	defer i.wg.Done()

	ticker := time.NewTicker(i.cfg.PollInterval)
	defer ticker.Stop()

	// First pass right away so a fresh deployment catches up immediately.
	if err := i.importSince(ctx, i.lastPoll); err != nil {
		log.Printf("legacy import failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.mu.Lock()
			since := i.lastPoll
			i.lastPoll = time.Now()
			i.mu.Unlock()

			if err := i.importSince(ctx, since); err != nil {
				log.Printf("legacy import failed: %v", err)
			}
		}
	}
}

// importSince copies legacy leads created after the given time.
func (i *Importer) importSince(ctx context.Context, since time.Time) error {
	query := fmt.Sprintf(`
		SELECT
			ContactName,
			Email,
			Phone,
			CompanyName,
			LeadSource,
			LeadStatus,
			Remarks,
			CreatedOn
		FROM %s
		WHERE CreatedOn > @since
		ORDER BY CreatedOn ASC`, i.cfg.LeadTable)

	rows, err := i.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return fmt.Errorf("failed to query legacy leads: %w", err)
	}
	defer rows.Close()

	imported := 0
	for rows.Next() {
		var name string
		var email, phone, company, source, status, remarks sql.NullString
		var createdOn time.Time

		if err := rows.Scan(&name, &email, &phone, &company, &source, &status, &remarks, &createdOn); err != nil {
			log.Printf("skipping malformed legacy lead row: %v", err)
			continue
		}

		key := strings.ToLower(email.String)
		if key != "" && i.alreadySeen(key) {
			continue
		}

		l := &lead.Lead{
			GUID:      types.NewID(),
			Name:      name,
			Email:     email.String,
			Phone:     phone.String,
			Company:   company.String,
			Source:    "legacy-import",
			Status:    mapStatus(status.String),
			Notes:     remarks.String,
			CreatedAt: createdOn,
			UpdatedAt: time.Now().UTC(),
		}

		if err := i.leads.Create(ctx, l); err != nil {
			log.Printf("failed to import legacy lead %q: %v", name, err)
			continue
		}

		if key != "" {
			i.markSeen(key)
		}
		imported++
	}

	if imported > 0 {
		metrics.RecordLeadsImported(imported)
		log.Printf("imported %d leads from legacy CRM", imported)
	}
	return rows.Err()
}

func (i *Importer) alreadySeen(key string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.seen[key]
}

func (i *Importer) markSeen(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seen[key] = true
}

// mapStatus translates the legacy CRM's status vocabulary into the pipeline.
func mapStatus(legacy string) lead.Status {
	switch strings.ToLower(strings.TrimSpace(legacy)) {
	case "open", "fresh", "":
		return lead.StatusNew
	case "working", "in progress", "contacted":
		return lead.StatusContacted
	case "hot", "qualified":
		return lead.StatusQualified
	case "won", "closed won", "converted":
		return lead.StatusConverted
	case "dead", "closed lost", "lost":
		return lead.StatusLost
	default:
		return lead.StatusNew
	}
}
