// Package session holds the authenticated identity, profile and role set of
// a request and exposes them through a read-only snapshot.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cowork-market/cowork/internal/platform/httpx"
	"github.com/cowork-market/cowork/internal/rbac"
)

var (
	// ErrInvalidToken indicates the access token failed verification.
	ErrInvalidToken = fmt.Errorf("session: invalid access token: %w", httpx.ErrUnauthorized)
	// ErrProfileNotFound indicates the identity has no profile row yet.
	ErrProfileNotFound = errors.New("session: profile not found")
)

// Identity is the authenticated principal.
type Identity struct {
	ID    uuid.UUID
	Email string
}

// Profile carries display attributes of an identity.
type Profile struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	AvatarURL string
}

// DisplayName joins first and last name in title case.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	name := strings.TrimSpace(strings.Join([]string{strings.TrimSpace(p.FirstName), strings.TrimSpace(p.LastName)}, " "))
	if name == "" {
		return ""
	}
	// Casers keep state, so each call gets its own.
	return cases.Title(language.Und).String(strings.ToLower(name))
}

// Snapshot is the state exposed by a Provider. Identity and Profile are nil
// until known; Profile may stay nil for an authenticated identity.
type Snapshot struct {
	Identity        *Identity
	Profile         *Profile
	Roles           []rbac.Role
	IsLoading       bool
	IsAuthenticated bool
	Err             error
}

// Anonymous is the settled snapshot of a request without credentials.
func Anonymous() Snapshot {
	return Snapshot{}
}

// UserID returns the identity id or uuid.Nil.
func (s Snapshot) UserID() uuid.UUID {
	if s.Identity == nil {
		return uuid.Nil
	}
	return s.Identity.ID
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Identity != nil {
		id := *s.Identity
		out.Identity = &id
	}
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	if s.Roles != nil {
		out.Roles = make([]rbac.Role, len(s.Roles))
		copy(out.Roles, s.Roles)
	}
	return out
}
