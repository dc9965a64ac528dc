package followup

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orbitcrm/platform/internal/lead"
	"github.com/orbitcrm/platform/internal/shared/errors"
	"github.com/orbitcrm/platform/internal/shared/metrics"
	"github.com/orbitcrm/platform/internal/shared/types"
	"github.com/orbitcrm/platform/internal/shared/validation"
)

// Handler provides HTTP endpoints for follow-ups.
type Handler struct {
	repo  Repository
	leads lead.Repository
}

// NewHandler creates a new follow-up handler.
func NewHandler(repo Repository, leads lead.Repository) *Handler {
	return &Handler{repo: repo, leads: leads}
}

// Routes registers the follow-up endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/complete", h.Complete)
	r.Post("/{id}/cancel", h.Cancel)
	return r
}

// List returns follow-ups ordered by due time. ?due=overdue narrows to
// pending items past their due time.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := FollowupFilter{Status: Status(r.URL.Query().Get("status"))}
	if s := r.URL.Query().Get("lead_guid"); s != "" {
		id, err := types.ParseID(s)
		if err != nil {
			writeError(w, errors.BadRequest("invalid lead ID"))
			return
		}
		filter.LeadID = &id
	}
	if s := r.URL.Query().Get("assigned_to"); s != "" {
		id, err := types.ParseID(s)
		if err != nil {
			writeError(w, errors.BadRequest("invalid assigned_to ID"))
			return
		}
		filter.AssignedTo = &id
	}
	if r.URL.Query().Get("due") == "overdue" {
		now := time.Now().UTC()
		filter.Status = StatusPending
		filter.DueBefore = &now
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		filter.Limit, _ = strconv.Atoi(s)
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		filter.Offset, _ = strconv.Atoi(s)
	}

	followups, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if followups == nil {
		followups = []Followup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"followups": followups, "total": total})
}

// Get returns a single follow-up.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid followup ID"))
		return
	}

	f, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Create schedules a follow-up on an existing lead.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateFollowupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		writeError(w, errors.Validation(err.Error()))
		return
	}

	if h.leads != nil {
		if _, err := h.leads.Get(r.Context(), req.LeadID); err != nil {
			writeError(w, errors.BadRequest("linked lead does not exist"))
			return
		}
	}

	now := time.Now().UTC()
	f := &Followup{
		GUID:       types.NewID(),
		LeadID:     req.LeadID,
		AssignedTo: req.AssignedTo,
		DueAt:      req.DueAt,
		Status:     StatusPending,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.repo.Create(r.Context(), f); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// Update reschedules or reassigns a pending follow-up.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid followup ID"))
		return
	}

	var req UpdateFollowupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	f, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if f.Status != StatusPending {
		writeError(w, errors.Conflict("only pending followups can be changed"))
		return
	}

	if req.AssignedTo != nil {
		f.AssignedTo = req.AssignedTo
	}
	if req.DueAt != nil {
		f.DueAt = *req.DueAt
	}
	if req.Notes != nil {
		f.Notes = *req.Notes
	}
	f.UpdatedAt = time.Now().UTC()

	if err := h.repo.Update(r.Context(), f); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Delete removes a follow-up.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid followup ID"))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Complete records the outcome and closes the follow-up.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid followup ID"))
		return
	}

	var req CompleteFollowupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		writeError(w, errors.Validation(err.Error()))
		return
	}

	f, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if f.Status != StatusPending {
		writeError(w, errors.Conflict("followup is already closed"))
		return
	}

	f.Status = StatusCompleted
	f.Outcome = req.Outcome
	f.UpdatedAt = time.Now().UTC()

	if err := h.repo.Update(r.Context(), f); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordFollowupCompleted()
	writeJSON(w, http.StatusOK, f)
}

// Cancel closes a pending follow-up without an outcome.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid followup ID"))
		return
	}

	f, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if f.Status != StatusPending {
		writeError(w, errors.Conflict("followup is already closed"))
		return
	}

	f.Status = StatusCancelled
	f.UpdatedAt = time.Now().UTC()

	if err := h.repo.Update(r.Context(), f); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
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
