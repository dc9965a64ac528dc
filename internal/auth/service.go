package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/orbitcrm/platform/internal/shared/metrics"
	"github.com/orbitcrm/platform/internal/shared/types"
	"golang.org/x/crypto/bcrypt"
)

// AuthenticationError carries the user-visible message for a failed login.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// Account is the credential view of a user as the login flow needs it.
type Account struct {
	ID           types.ID
	Username     string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
	Active       bool
}

// Directory resolves accounts and their role's grant list. The user and rbac
// modules implement it; tests supply fakes.
type Directory interface {
	// FindAccount returns nil when no account matches the identifier.
	FindAccount(ctx context.Context, identifier string) (*Account, error)
	// GrantsForRole returns the module grants of a role, nil when the role
	// carries none or does not exist.
	GrantsForRole(ctx context.Context, role string) ([]Grant, error)
}

// Claims is the JWT payload of a session token. The token only identifies the
// session; authorization state lives in the session store, so logout is
// effective immediately regardless of token expiry.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

// Service implements the session lifecycle over a Directory and a Store.
type Service struct {
	directory Directory
	store     Store
	secret    []byte
	ttl       time.Duration
}

// NewService creates the auth service.
func NewService(directory Directory, store Store, jwtSecret string, ttl time.Duration) *Service {
	return &Service{
		directory: directory,
		store:     store,
		secret:    []byte(jwtSecret),
		ttl:       ttl,
	}
}

// Store exposes the session store for the route guard middleware.
func (s *Service) Store() Store {
	return s.store
}

// Login exchanges credentials for a persisted session. On failure no state
// changes and the returned error is an *AuthenticationError carrying the
// message to surface.
func (s *Service) Login(ctx context.Context, identifier, secret string) (*Session, error) {
	if identifier == "" || secret == "" {
		metrics.RecordLogin("failure")
		return nil, &AuthenticationError{Message: "invalid credentials"}
	}

	account, err := s.directory.FindAccount(ctx, identifier)
	if err != nil || account == nil {
		metrics.RecordLogin("failure")
		return nil, &AuthenticationError{Message: "invalid credentials"}
	}
	if !account.Active {
		metrics.RecordLogin("failure")
		return nil, &AuthenticationError{Message: "account is disabled"}
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(secret)) != nil {
		metrics.RecordLogin("failure")
		return nil, &AuthenticationError{Message: "invalid credentials"}
	}

	grants, err := s.directory.GrantsForRole(ctx, string(account.Role))
	if err != nil {
		// A role without resolvable grants still logs in; scoped evaluation
		// will deny module access until grants exist.
		grants = nil
	}
	if grants == nil {
		grants = []Grant{}
	}

	now := time.Now().UTC()
	session := &Session{
		ID:          types.NewID().String(),
		Name:        account.Name,
		Email:       account.Email,
		Phone:       account.Phone,
		Role:        account.Role,
		Permissions: grants,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	token, err := s.issueToken(account, session, now)
	if err != nil {
		metrics.RecordLogin("failure")
		return nil, &AuthenticationError{Message: "failed to issue token"}
	}
	session.Token = token

	if err := s.store.Set(ctx, session); err != nil {
		metrics.RecordLogin("failure")
		return nil, &AuthenticationError{Message: "failed to persist session"}
	}

	if recorder, ok := s.directory.(loginRecorder); ok {
		recorder.RecordLogin(ctx, account.ID, now)
	}

	metrics.RecordLogin("success")
	metrics.SessionOpened()
	return session, nil
}

// loginRecorder is an optional Directory upgrade for stamping last_login.
type loginRecorder interface {
	RecordLogin(ctx context.Context, accountID types.ID, at time.Time)
}

func (s *Service) issueToken(account *Account, session *Session, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
		SessionID: session.ID,
		Name:      account.Name,
		Role:      string(account.Role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Logout clears the persisted session unconditionally; it never fails. A
// missing or already-cleared session is not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := s.store.Clear(ctx, sessionID); err == nil {
		metrics.SessionClosed()
	}
}

// ProfileUpdate carries the fields a user may patch on their own session.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone *string `json:"phone,omitempty"`
}

// UpdateProfile merges the partial fields into the current session and
// persists it. Returns false (no-op) when no session exists. The patch is
// local to the session record; the user module's update endpoint is the
// synchronized path for the underlying account.
func (s *Service) UpdateProfile(ctx context.Context, sessionID string, update ProfileUpdate) bool {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil || session == nil {
		return false
	}

	if update.Name != nil {
		session.Name = *update.Name
	}
	if update.Email != nil {
		session.Email = *update.Email
	}
	if update.Phone != nil {
		session.Phone = *update.Phone
	}

	return s.store.Set(ctx, session) == nil
}

// SwitchRole overwrites the session's role and persists it. This is a
// development escape hatch for exercising scoped evaluation; the HTTP surface
// registers it only outside production.
func (s *Service) SwitchRole(ctx context.Context, sessionID string, role Role) bool {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil || session == nil {
		return false
	}

	session.Role = role
	return s.store.Set(ctx, session) == nil
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
