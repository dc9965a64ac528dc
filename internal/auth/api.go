package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/orbitcrm/platform/internal/shared/errors"
)

// Handler provides the HTTP surface of the auth module.
type Handler struct {
	svc *Service
	// allowRoleSwitch exposes the role-switch debug endpoint. Must stay
	// false in production: it lets any authenticated user self-elevate.
	allowRoleSwitch bool
}

// NewHandler creates a new auth handler.
func NewHandler(svc *Service, allowRoleSwitch bool) *Handler {
	return &Handler{svc: svc, allowRoleSwitch: allowRoleSwitch}
}

// LoginRequest is the credential payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the login wire contract consumed by the admin console.
type LoginResponse struct {
	Success     bool    `json:"success"`
	Token       string  `json:"token,omitempty"`
	Username    string  `json:"username,omitempty"`
	Role        string  `json:"role,omitempty"`
	Permissions []Grant `json:"permissions,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// PublicRoutes registers the unauthenticated auth endpoints.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	return r
}

// Routes registers the endpoints that require a live session.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)
	r.Put("/profile", h.UpdateProfile)
	if h.allowRoleSwitch {
		r.Post("/switch-role", h.SwitchRole)
	}
	return r
}

// Login exchanges credentials for a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, LoginResponse{Success: false, Error: "invalid request body"})
		return
	}

	session, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		message := "login failed"
		if authErr, ok := err.(*AuthenticationError); ok && authErr.Message != "" {
			message = authErr.Message
		}
		writeJSON(w, http.StatusUnauthorized, LoginResponse{Success: false, Error: message})
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Success:     true,
		Token:       session.Token,
		Username:    session.Name,
		Role:        string(session.Role),
		Permissions: session.Permissions,
	})
}

// Logout destroys the current session. Always succeeds.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := SessionFromContext(r.Context()); session != nil {
		h.svc.Logout(r.Context(), session.ID)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me returns the current session record.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// UpdateProfile patches name/email/phone on the current session.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var update ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if !h.svc.UpdateProfile(r.Context(), session.ID, update) {
		writeError(w, errors.Unauthorized("no active session"))
		return
	}

	updated, _ := h.svc.Store().Get(r.Context(), session.ID)
	writeJSON(w, http.StatusOK, updated)
}

// SwitchRoleRequest names the role to assume.
type SwitchRoleRequest struct {
	Role string `json:"role"`
}

// SwitchRole overwrites the session's role. Development only.
func (h *Handler) SwitchRole(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req SwitchRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" {
		writeError(w, errors.BadRequest("role is required"))
		return
	}

	if !h.svc.SwitchRole(r.Context(), session.ID, Role(req.Role)) {
		writeError(w, errors.Unauthorized("no active session"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "role": req.Role})
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
