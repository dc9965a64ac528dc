package org

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orbitcrm/platform/internal/shared/errors"
	"github.com/orbitcrm/platform/internal/shared/types"
	"github.com/orbitcrm/platform/internal/shared/validation"
)

// Handler provides HTTP endpoints for branch administration.
type Handler struct {
	repo Repository
}

// NewHandler creates a new org handler.
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the branch endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/branches", h.List)
	r.Post("/branches", h.Create)
	r.Get("/branches/{id}", h.Get)
	r.Put("/branches/{id}", h.Update)
	r.Delete("/branches/{id}", h.Delete)
	return r
}

// List returns all branches.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	branches, err := h.repo.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if branches == nil {
		branches = []Branch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"branches": branches, "total": len(branches)})
}

// Get returns a single branch.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid branch ID"))
		return
	}

	b, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Create adds a branch.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		writeError(w, errors.Validation(err.Error()))
		return
	}

	now := time.Now().UTC()
	b := &Branch{
		GUID:      types.NewID(),
		Code:      req.Code,
		Name:      req.Name,
		Address:   req.Address,
		Contact:   req.Contact,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.Create(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Update patches a branch. The code is immutable once assigned.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid branch ID"))
		return
	}

	var req UpdateBranchRequest
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

	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.Address != nil {
		b.Address = *req.Address
	}
	if req.Contact != nil {
		b.Contact = *req.Contact
	}
	if req.IsActive != nil {
		b.IsActive = *req.IsActive
	}
	b.UpdatedAt = time.Now().UTC()

	if err := h.repo.Update(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Delete removes a branch. Users and leads keep running with their branch
// link cleared by the schema's ON DELETE SET NULL.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid branch ID"))
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
