// Package auth implements the session lifecycle and permission model:
// login/logout, the persisted session record, and the capability
// evaluation that gates every module route.
package auth

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Flag is a 0/1 permission flag. Grant rows arrive from role editors and
// legacy exports with inconsistent encodings (numbers, numeric strings,
// booleans); anything that does not parse as an integer counts as 0.
type Flag int

// Granted reports whether the flag is set.
func (f Flag) Granted() bool {
	return f == 1
}

// UnmarshalJSON accepts numbers, numeric strings, and booleans. It never
// fails: unparseable values decode to 0.
func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = 0

	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = Flag(int(n))
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*f = Flag(i)
		}
		return nil
	}

	var v bool
	if err := json.Unmarshal(b, &v); err == nil && v {
		*f = 1
	}
	return nil
}

// Grant is a per-module permission record. Module names match
// case-insensitively at evaluation time.
//
// FullAccess == 1 implies view/edit/delete at grant-creation time (the role
// editor enforces it), but that invariant is not re-validated here: grants
// may arrive from external sources, so evaluation checks each flag on its own.
type Grant struct {
	Module     string `json:"module"`
	View       Flag   `json:"view"`
	Edit       Flag   `json:"edit"`
	Delete     Flag   `json:"delete"`
	FullAccess Flag   `json:"full_access"`
}

// Session is the record representing an authenticated user. It is persisted
// as a single JSON blob under one store key; presence of that key is the sole
// authentication signal.
type Session struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Role        Role      `json:"role"`
	Token       string    `json:"token"`
	Permissions []Grant   `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IsExpired checks if the session has passed its absolute expiry.
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}
