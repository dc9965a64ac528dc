package lead

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

// Handler provides HTTP endpoints for the lead pipeline.
type Handler struct {
	repo Repository
	bus  *events.Bus
}

// NewHandler creates a new lead handler. bus may be nil.
func NewHandler(repo Repository, bus *events.Bus) *Handler {
	return &Handler{repo: repo, bus: bus}
}

// Routes registers the lead endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

// List returns leads, filtered and paginated.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := LeadFilter{
		Status: Status(r.URL.Query().Get("status")),
		Source: r.URL.Query().Get("source"),
		Search: r.URL.Query().Get("search"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, errors.BadRequest("unknown lead status"))
		return
	}
	if s := r.URL.Query().Get("assigned_to"); s != "" {
		id, err := types.ParseID(s)
		if err != nil {
			writeError(w, errors.BadRequest("invalid assigned_to ID"))
			return
		}
		filter.AssignedTo = &id
	}
	if s := r.URL.Query().Get("branch_id"); s != "" {
		id, err := types.ParseID(s)
		if err != nil {
			writeError(w, errors.BadRequest("invalid branch ID"))
			return
		}
		filter.BranchID = &id
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		filter.Limit, _ = strconv.Atoi(s)
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		filter.Offset, _ = strconv.Atoi(s)
	}

	leads, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if leads == nil {
		leads = []Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "total": total})
}

// Get returns a single lead.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid lead ID"))
		return
	}

	l, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// Create adds a new lead at the top of the pipeline.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		writeError(w, errors.Validation(err.Error()))
		return
	}

	now := time.Now().UTC()
	l := &Lead{
		GUID:       types.NewID(),
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Company:    req.Company,
		Source:     req.Source,
		Status:     StatusNew,
		AssignedTo: req.AssignedTo,
		BranchID:   req.BranchID,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.repo.Create(r.Context(), l); err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordLeadCreated(l.Source)
	h.publish(r, events.NewEvent("lead.created", "lead-api", l))

	writeJSON(w, http.StatusCreated, l)
}

// Update patches a lead. Status changes out of a terminal state are refused.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid lead ID"))
		return
	}

	var req UpdateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		writeError(w, errors.Validation(err.Error()))
		return
	}

	l, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	statusChanged := false
	if req.Status != nil && *req.Status != l.Status {
		if !req.Status.Valid() {
			writeError(w, errors.BadRequest("unknown lead status"))
			return
		}
		if l.Status.Terminal() {
			writeError(w, errors.Conflict("lead is already closed"))
			return
		}
		l.Status = *req.Status
		statusChanged = true
	}
	if req.Name != nil {
		l.Name = *req.Name
	}
	if req.Email != nil {
		l.Email = *req.Email
	}
	if req.Phone != nil {
		l.Phone = *req.Phone
	}
	if req.Company != nil {
		l.Company = *req.Company
	}
	if req.Source != nil {
		l.Source = *req.Source
	}
	if req.AssignedTo != nil {
		l.AssignedTo = req.AssignedTo
	}
	if req.BranchID != nil {
		l.BranchID = req.BranchID
	}
	if req.Notes != nil {
		l.Notes = *req.Notes
	}
	l.UpdatedAt = time.Now().UTC()

	if err := h.repo.Update(r.Context(), l); err != nil {
		writeError(w, err)
		return
	}

	if statusChanged {
		h.publish(r, events.NewEvent("lead.status_changed", "lead-api", map[string]any{
			"lead_guid": l.GUID,
			"status":    l.Status,
		}))
	}

	writeJSON(w, http.StatusOK, l)
}

// Delete removes a lead.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid lead ID"))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// publish sends a domain event best-effort, stamped with the acting user.
func (h *Handler) publish(r *http.Request, event events.Event) {
	if session := auth.SessionFromContext(r.Context()); session != nil {
		if actorID, err := types.ParseID(session.ID); err == nil {
			event = event.WithActor(actorID)
		}
	}
	_ = h.bus.Publish(r.Context(), event)
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
