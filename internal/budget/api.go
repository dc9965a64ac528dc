package budget

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orbitcrm/platform/internal/auth"
	"github.com/orbitcrm/platform/internal/shared/errors"
	"github.com/orbitcrm/platform/internal/shared/events"
	"github.com/orbitcrm/platform/internal/shared/metrics"
	"github.com/orbitcrm/platform/internal/shared/types"
	"github.com/orbitcrm/platform/internal/shared/validation"
)

// Handler provides HTTP endpoints for budgets and their approval flow.
type Handler struct {
	repo Repository
	bus  *events.Bus
}

// NewHandler creates a new budget handler. bus may be nil.
func NewHandler(repo Repository, bus *events.Bus) *Handler {
	return &Handler{repo: repo, bus: bus}
}

// Routes registers the budget endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/submit", h.Submit)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/reject", h.Reject)
	return r
}

// List returns budgets, filtered and paginated.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := BudgetFilter{Status: Status(r.URL.Query().Get("status"))}
	if s := r.URL.Query().Get("lead_guid"); s != "" {
		id, err := types.ParseID(s)
		if err != nil {
			writeError(w, errors.BadRequest("invalid lead ID"))
			return
		}
		filter.LeadID = &id
	}
	if s := r.URL.Query().Get("client_guid"); s != "" {
		id, err := types.ParseID(s)
		if err != nil {
			writeError(w, errors.BadRequest("invalid client ID"))
			return
		}
		filter.ClientID = &id
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		filter.Limit, _ = strconv.Atoi(s)
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		filter.Offset, _ = strconv.Atoi(s)
	}

	budgets, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if budgets == nil {
		budgets = []Budget{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": budgets, "total": total})
}

// Get returns a single budget.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid budget ID"))
		return
	}

	b, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Create adds a budget in draft. The final amount is derived server-side.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		writeError(w, errors.Validation(err.Error()))
		return
	}

	now := time.Now().UTC()
	b := &Budget{
		GUID:            types.NewID(),
		LeadID:          req.LeadID,
		ClientID:        req.ClientID,
		Title:           req.Title,
		EstimatedAmount: req.EstimatedAmount,
		Discount:        req.Discount,
		FinalAmount:     FinalAmount(req.EstimatedAmount, req.Discount),
		Status:          StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.repo.Create(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Update patches a budget's amounts and title. Decided budgets are immutable.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid budget ID"))
		return
	}

	var req UpdateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		writeError(w, errors.Validation(err.Error()))
		return
	}

	b, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if b.Status == StatusApproved || b.Status == StatusRejected {
		writeError(w, errors.Conflict("budget is already decided"))
		return
	}

	if req.Title != nil {
		b.Title = *req.Title
	}
	if req.EstimatedAmount != nil {
		b.EstimatedAmount = *req.EstimatedAmount
	}
	if req.Discount != nil {
		b.Discount = *req.Discount
	}
	b.FinalAmount = FinalAmount(b.EstimatedAmount, b.Discount)
	b.UpdatedAt = time.Now().UTC()

	if err := h.repo.Update(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Delete removes a budget.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid budget ID"))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Submit moves a draft budget into the approval queue.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid budget ID"))
		return
	}

	b, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if b.Status != StatusDraft {
		writeError(w, errors.Conflict("only draft budgets can be submitted"))
		return
	}

	b.Status = StatusPending
	b.UpdatedAt = time.Now().UTC()
	if err := h.repo.Update(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Approve marks a budget approved. Requires the approve_budget capability.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, StatusApproved)
}

// Reject marks a budget rejected. Requires the approve_budget capability.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, StatusRejected)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decision Status) {
	session := auth.SessionFromContext(r.Context())
	allowed := auth.HasPermission(session, "approve_budget")
	metrics.RecordPermissionDecision("approve_budget", allowed)
	if !allowed {
		writeError(w, errors.Forbidden("budget approval requires the approve_budget capability"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid budget ID"))
		return
	}

	b, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if b.Status == StatusApproved || b.Status == StatusRejected {
		writeError(w, errors.Conflict("budget is already decided"))
		return
	}

	b.Status = decision
	b.ApprovedBy = session.Name
	b.UpdatedAt = time.Now().UTC()

	if err := h.repo.Update(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordBudgetDecision(string(decision))
	_ = h.bus.Publish(r.Context(), events.NewEvent("budget."+string(decision), "budget-api", map[string]any{
		"budget_guid":  b.GUID,
		"final_amount": b.FinalAmount,
		"decided_by":   session.Name,
	}))

	writeJSON(w, http.StatusOK, b)
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
