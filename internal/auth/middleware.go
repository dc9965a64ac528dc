package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/orbitcrm/platform/internal/shared/metrics"
)

type contextKey string

const sessionContextKey contextKey = "session"

// Middleware is the route guard: it admits a request into the authenticated
// shell only when the bearer token maps to a live session in the store.
// Logout removes the store entry, so a token alone is never enough.
func Middleware(store Store, jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				unauthorized(w, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				unauthorized(w, "invalid token claims")
				return
			}

			session, err := store.Get(r.Context(), claims.SessionID)
			if err != nil {
				unauthorized(w, "session lookup failed")
				return
			}
			if session == nil {
				unauthorized(w, "session expired or logged out")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// ContextWithSession returns ctx carrying the session. Middleware uses it on
// every admitted request; handler tests use it to simulate one.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFromContext extracts the session placed by Middleware; nil when the
// request is unauthenticated.
func SessionFromContext(ctx context.Context) *Session {
	s, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return s
}

// RequireModule guards a route group behind a module capability. This is the
// server-side enforcement of what UI clients merely hide.
func RequireModule(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			allowed := HasPermission(session, capability)
			metrics.RecordPermissionDecision(capability, allowed)

			if session == nil {
				unauthorized(w, "authentication required")
				return
			}
			if !allowed {
				forbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	writeAuthError(w, http.StatusUnauthorized, message)
}

func forbidden(w http.ResponseWriter, message string) {
	writeAuthError(w, http.StatusForbidden, message)
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
