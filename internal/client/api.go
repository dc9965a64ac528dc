package client

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orbitcrm/platform/internal/lead"
	"github.com/orbitcrm/platform/internal/shared/errors"
	"github.com/orbitcrm/platform/internal/shared/types"
	"github.com/orbitcrm/platform/internal/shared/validation"
)

// Handler provides HTTP endpoints for clients. It reads leads to backfill
// contact details for clients that originated from the pipeline.
type Handler struct {
	repo  Repository
	leads lead.Repository
}

// NewHandler creates a new client handler.
func NewHandler(repo Repository, leads lead.Repository) *Handler {
	return &Handler{repo: repo, leads: leads}
}

// Routes registers the client endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

// List returns clients with lead contact fields joined in. Client volume is
// small, so the join is a linear pass over one page of leads.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ClientFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		filter.Limit, _ = strconv.Atoi(s)
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		filter.Offset, _ = strconv.Atoi(s)
	}

	clients, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	views := h.joinLeads(r, clients)
	writeJSON(w, http.StatusOK, map[string]any{"clients": views, "total": total})
}

func (h *Handler) joinLeads(r *http.Request, clients []Client) []ClientView {
	views := make([]ClientView, 0, len(clients))

	byID := make(map[types.ID]lead.Lead)
	if h.leads != nil {
		all, _, err := h.leads.List(r.Context(), lead.LeadFilter{Limit: 100})
		if err == nil {
			for _, l := range all {
				byID[l.GUID] = l
			}
		}
	}

	for _, c := range clients {
		view := ClientView{Client: c}
		if c.LeadID != nil {
			if l, ok := byID[*c.LeadID]; ok {
				view.LeadName = l.Name
				view.LeadSource = l.Source
				if view.Email == "" {
					view.Email = l.Email
				}
				if view.Phone == "" {
					view.Phone = l.Phone
				}
			}
		}
		views = append(views, view)
	}
	return views
}

// Get returns a single client.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid client ID"))
		return
	}

	c, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Create adds a client, optionally linked to the lead it converted from.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		writeError(w, errors.Validation(err.Error()))
		return
	}

	if req.LeadID != nil && h.leads != nil {
		if _, err := h.leads.Get(r.Context(), *req.LeadID); err != nil {
			writeError(w, errors.BadRequest("linked lead does not exist"))
			return
		}
	}

	now := time.Now().UTC()
	c := &Client{
		GUID:      types.NewID(),
		LeadID:    req.LeadID,
		Name:      req.Name,
		Company:   req.Company,
		Email:     req.Email,
		Phone:     req.Phone,
		City:      req.City,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.Create(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Update patches a client.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid client ID"))
		return
	}

	var req UpdateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		writeError(w, errors.Validation(err.Error()))
		return
	}

	c, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Company != nil {
		c.Company = *req.Company
	}
	if req.Email != nil {
		c.Email = *req.Email
	}
	if req.Phone != nil {
		c.Phone = *req.Phone
	}
	if req.City != nil {
		c.City = *req.City
	}
	if req.Status != nil {
		c.Status = *req.Status
	}
	c.UpdatedAt = time.Now().UTC()

	if err := h.repo.Update(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete removes a client.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid client ID"))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
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
