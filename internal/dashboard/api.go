// Package dashboard serves the read-only aggregates behind the console's
// landing page: pipeline counts, budget totals, and the day's follow-ups.
package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orbitcrm/platform/internal/budget"
	"github.com/orbitcrm/platform/internal/followup"
	"github.com/orbitcrm/platform/internal/lead"
	"github.com/orbitcrm/platform/internal/shared/errors"
)

// Summary is the aggregate snapshot the dashboard renders.
type Summary struct {
	Leads     LeadStats     `json:"leads"`
	Budgets   BudgetStats   `json:"budgets"`
	Followups FollowupStats `json:"followups"`
	At        time.Time     `json:"generated_at"`
}

// LeadStats counts leads by pipeline status.
type LeadStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// BudgetStats sums budget amounts overall and for approved deals.
type BudgetStats struct {
	Total         int     `json:"total"`
	TotalAmount   float64 `json:"total_amount"`
	ApprovedCount int     `json:"approved_count"`
	ApprovedValue float64 `json:"approved_value"`
	PendingCount  int     `json:"pending_count"`
}

// FollowupStats counts open and overdue follow-ups.
type FollowupStats struct {
	Pending int `json:"pending"`
	Overdue int `json:"overdue"`
}

// Handler computes the summary by linear passes over the repositories. The
// entity counts stay small enough that no dedicated aggregate queries are
// needed.
type Handler struct {
	leads     lead.Repository
	budgets   budget.Repository
	followups followup.Repository
}

// NewHandler creates a new dashboard handler.
func NewHandler(leads lead.Repository, budgets budget.Repository, followups followup.Repository) *Handler {
	return &Handler{leads: leads, budgets: budgets, followups: followups}
}

// Routes registers the dashboard endpoint.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/summary", h.Summary)
	return r
}

// Summary returns the aggregate snapshot.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC()

	summary := Summary{
		Leads: LeadStats{ByStatus: make(map[string]int)},
		At:    now,
	}

	leads, total, err := h.leads.List(ctx, lead.LeadFilter{Limit: 100})
	if err != nil {
		writeError(w, err)
		return
	}
	summary.Leads.Total = total
	for _, l := range leads {
		summary.Leads.ByStatus[string(l.Status)]++
	}

	budgets, btotal, err := h.budgets.List(ctx, budget.BudgetFilter{Limit: 100})
	if err != nil {
		writeError(w, err)
		return
	}
	summary.Budgets.Total = btotal
	for _, b := range budgets {
		summary.Budgets.TotalAmount += b.FinalAmount
		switch b.Status {
		case budget.StatusApproved:
			summary.Budgets.ApprovedCount++
			summary.Budgets.ApprovedValue += b.FinalAmount
		case budget.StatusPending:
			summary.Budgets.PendingCount++
		}
	}

	followups, _, err := h.followups.List(ctx, followup.FollowupFilter{Status: followup.StatusPending, Limit: 100})
	if err != nil {
		writeError(w, err)
		return
	}
	for _, f := range followups {
		summary.Followups.Pending++
		if f.Overdue(now) {
			summary.Followups.Overdue++
		}
	}

	writeJSON(w, http.StatusOK, summary)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
