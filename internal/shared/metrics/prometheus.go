package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of active sessions",
		},
	)

	permissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_decisions_total",
			Help: "Total number of permission evaluations at route guards",
		},
		[]string{"capability", "decision"},
	)

	leadsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_created_total",
			Help: "Total number of leads created",
		},
		[]string{"source"},
	)

	leadsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leads_imported_total",
			Help: "Total number of leads imported from the legacy CRM",
		},
	)

	budgetsDecided = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budget_decisions_total",
			Help: "Total number of budget approve/reject decisions",
		},
		[]string{"decision"},
	)

	followupsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "followups_completed_total",
			Help: "Total number of follow-ups marked completed",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath keeps metric label cardinality bounded
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordLogin records a login attempt outcome ("success" or "failure")
func RecordLogin(result string) {
	loginsTotal.WithLabelValues(result).Inc()
}

// SessionOpened increments the active session gauge
func SessionOpened() {
	sessionsActive.Inc()
}

// SessionClosed decrements the active session gauge
func SessionClosed() {
	sessionsActive.Dec()
}

// RecordPermissionDecision records a route-guard permission evaluation
func RecordPermissionDecision(capability string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	permissionDecisions.WithLabelValues(capability, decision).Inc()
}

// RecordLeadCreated records a lead creation
func RecordLeadCreated(source string) {
	if source == "" {
		source = "unknown"
	}
	leadsCreated.WithLabelValues(source).Inc()
}

// RecordLeadsImported records leads pulled in by the legacy import adapter
func RecordLeadsImported(count int) {
	leadsImported.Add(float64(count))
}

// RecordBudgetDecision records a budget approval or rejection
func RecordBudgetDecision(decision string) {
	budgetsDecided.WithLabelValues(decision).Inc()
}

// RecordFollowupCompleted records a completed follow-up
func RecordFollowupCompleted() {
	followupsCompleted.Inc()
}
