// Package access decides whether gated content may render for the current
// session and which fallback to show otherwise.
package access

import (
	"github.com/cowork-market/cowork/internal/rbac"
	"github.com/cowork-market/cowork/internal/session"
)

// Status is the derived gate state.
type Status string

const (
	StatusLoading         Status = "loading"
	StatusUnauthenticated Status = "unauthenticated"
	StatusUnauthorized    Status = "unauthorized"
	StatusAuthorized      Status = "authorized"
)

// FallbackKind selects what renders in place of gated content.
type FallbackKind string

const (
	FallbackLoading FallbackKind = "loading"
	FallbackDenied  FallbackKind = "denied"
)

// Fallback describes the content shown for a non-authorized status. Reason
// is set for denials only.
type Fallback struct {
	Kind   FallbackKind
	Reason Status
}

// Decision is the outcome of one gate evaluation.
type Decision struct {
	Status   Status
	Fallback *Fallback
}

// Allowed reports whether gated content renders.
func (d Decision) Allowed() bool {
	return d.Status == StatusAuthorized
}

// Input is the part of a session snapshot the gate reads.
type Input struct {
	IsLoading       bool
	IsAuthenticated bool
	Roles           []rbac.Role
}

// InputFrom projects a session snapshot onto gate input.
func InputFrom(snap session.Snapshot) Input {
	return Input{
		IsLoading:       snap.IsLoading,
		IsAuthenticated: snap.IsAuthenticated,
		Roles:           snap.Roles,
	}
}

// Evaluate derives the gate status. An empty required set admits any
// authenticated identity.
func Evaluate(in Input, required []rbac.Role) Status {
	switch {
	case in.IsLoading:
		return StatusLoading
	case !in.IsAuthenticated:
		return StatusUnauthenticated
	case len(required) > 0 && !rbac.HasAnyRole(in.Roles, required):
		return StatusUnauthorized
	default:
		return StatusAuthorized
	}
}

// Decide evaluates the gate and selects the fallback.
func Decide(in Input, required []rbac.Role) Decision {
	status := Evaluate(in, required)
	return Decision{Status: status, Fallback: FallbackFor(status)}
}

// FallbackFor returns the fallback for status, or nil when authorized.
func FallbackFor(status Status) *Fallback {
	switch status {
	case StatusAuthorized:
		return nil
	case StatusLoading:
		return &Fallback{Kind: FallbackLoading}
	default:
		return &Fallback{Kind: FallbackDenied, Reason: status}
	}
}
