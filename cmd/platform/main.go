package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/orbitcrm/platform/internal/adapters/legacy"
	"github.com/orbitcrm/platform/internal/auth"
	"github.com/orbitcrm/platform/internal/budget"
	"github.com/orbitcrm/platform/internal/client"
	"github.com/orbitcrm/platform/internal/dashboard"
	"github.com/orbitcrm/platform/internal/followup"
	"github.com/orbitcrm/platform/internal/lead"
	"github.com/orbitcrm/platform/internal/org"
	"github.com/orbitcrm/platform/internal/rbac"
	"github.com/orbitcrm/platform/internal/shared/config"
	"github.com/orbitcrm/platform/internal/shared/database"
	"github.com/orbitcrm/platform/internal/shared/events"
	"github.com/orbitcrm/platform/internal/shared/metrics"
	secmiddleware "github.com/orbitcrm/platform/internal/shared/middleware"
	"github.com/orbitcrm/platform/internal/user"
)

// App holds all application dependencies.
type App struct {
	Config   *config.Config
	DB       *database.DB
	Bus      *events.Bus
	Sessions auth.Store
	Importer *legacy.Importer
}

// repos bundles the per-entity repositories behind one backing choice.
type repos struct {
	roles     rbac.Repository
	users     user.Repository
	leads     lead.Repository
	clients   client.Repository
	budgets   budget.Repository
	followups followup.Repository
	branches  org.Repository
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// Database is optional: without it the service runs on in-memory
	// repositories seeded with system roles and a bootstrap admin.
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Printf("Warning: database not available: %v\n", err)
		fmt.Println("Running with in-memory repositories...")
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			fmt.Printf("Warning: migration failed: %v\n", err)
		}
	}

	// Session store: Redis when reachable, otherwise process memory.
	app.Sessions = newSessionStore(ctx, cfg)

	// Event streaming is optional too.
	if cfg.Events.Enabled {
		bus, err := events.NewBus(ctx, cfg.Events)
		if err != nil {
			fmt.Printf("Warning: event store not available: %v\n", err)
			fmt.Println("Running without event streaming...")
		} else {
			app.Bus = bus
			defer bus.Close()
			fmt.Println("Event bus initialized")
		}
	}

	rs := buildRepos(app, cfg)

	directory := user.NewDirectory(rs.users, rs.roles)
	authSvc := auth.NewService(directory, app.Sessions, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	authHandler := auth.NewHandler(authSvc, !cfg.Server.IsProduction())

	// Legacy CRM import runs only when configured.
	if cfg.Legacy.Enabled {
		app.Importer = legacy.New(cfg.Legacy, rs.leads)
		if err := app.Importer.Start(ctx); err != nil {
			fmt.Printf("Warning: legacy import disabled: %v\n", err)
			app.Importer = nil
		} else {
			fmt.Println("Legacy CRM importer started")
		}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.BodyLimit)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", infoHandler)

	loginLimiter := secmiddleware.NewIPRateLimiter(cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateBurst)

	r.Route("/api/v1", func(r chi.Router) {
		// Login is public but rate limited per source IP.
		r.Group(func(r chi.Router) {
			r.Use(loginLimiter.Middleware)
			r.Mount("/auth", authHandler.PublicRoutes())
		})

		// Everything else sits behind the session guard.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(app.Sessions, cfg.Auth.JWTSecret))

			r.Mount("/auth/session", authHandler.Routes())

			mount := func(module string, routes chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(auth.RequireModule(module))
					r.Mount("/"+module, routes)
				})
			}

			mount("roles", rbac.NewHandler(rs.roles).Routes())
			mount("users", user.NewHandler(rs.users).Routes())
			mount("leads", lead.NewHandler(rs.leads, app.Bus).Routes())
			mount("clients", client.NewHandler(rs.clients, rs.leads).Routes())
			mount("budgets", budget.NewHandler(rs.budgets, app.Bus).Routes())
			mount("followups", followup.NewHandler(rs.followups, rs.leads).Routes())
			mount("organization", org.NewHandler(rs.branches).Routes())
			mount("dashboard", dashboard.NewHandler(rs.leads, rs.budgets, rs.followups).Routes())
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if app.Importer != nil {
			if err := app.Importer.Stop(ctx); err != nil {
				fmt.Printf("Importer shutdown error: %v\n", err)
			}
		}
		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("OrbitCRM Administration Service")
	fmt.Println("============================================")
	fmt.Printf("Environment:  %s\n", cfg.Server.Env)
	fmt.Printf("Server:       http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:          http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:       http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Database:     %v\n", app.DB != nil)
	fmt.Printf("Events:       %v\n", app.Bus != nil)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

// newSessionStore prefers Redis and falls back to process memory, so logout
// stays effective across instances whenever Redis is present.
func newSessionStore(ctx context.Context, cfg *config.Config) auth.Store {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	store, err := auth.NewRedisStore(pingCtx, cfg.Redis, cfg.Auth.SessionTTL)
	if err != nil {
		fmt.Printf("Warning: Redis not available: %v\n", err)
		fmt.Println("Using in-memory session store...")
		return auth.NewMemoryStore()
	}

	fmt.Println("Redis session store initialized")
	return store
}

// buildRepos picks the backing once for all entities. Mixing backings would
// break cross-entity links, so it is all-postgres or all-memory.
func buildRepos(app *App, cfg *config.Config) repos {
	if app.DB != nil {
		return repos{
			roles:     rbac.NewPostgresRepository(app.DB.Pool),
			users:     user.NewPostgresRepository(app.DB.Pool),
			leads:     lead.NewPostgresRepository(app.DB.Pool),
			clients:   client.NewPostgresRepository(app.DB.Pool),
			budgets:   budget.NewPostgresRepository(app.DB.Pool),
			followups: followup.NewPostgresRepository(app.DB.Pool),
			branches:  org.NewPostgresRepository(app.DB.Pool),
		}
	}

	seedHash, err := auth.HashPassword(cfg.Auth.BootstrapPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash bootstrap password: %v\n", err)
		os.Exit(1)
	}

	return repos{
		roles:     rbac.NewMemoryRepository(),
		users:     user.NewMemoryRepository(seedHash),
		leads:     lead.NewMemoryRepository(),
		clients:   client.NewMemoryRepository(),
		budgets:   budget.NewMemoryRepository(),
		followups: followup.NewMemoryRepository(),
		branches:  org.NewMemoryRepository(),
	}
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "OrbitCRM Administration Service",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["events"] = "not ready: " + err.Error()
			} else {
				checks["events"] = "ready"
			}
		} else {
			checks["events"] = "not configured"
		}

		if app.Importer != nil {
			if err := app.Importer.Health(r.Context()); err != nil {
				checks["legacy_import"] = "not ready: " + err.Error()
			} else {
				checks["legacy_import"] = "ready"
			}
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
