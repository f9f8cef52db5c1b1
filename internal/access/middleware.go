package access

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cowork-market/cowork/internal/platform/httpx"
	"github.com/cowork-market/cowork/internal/rbac"
	"github.com/cowork-market/cowork/internal/session"
)

// DecisionObserver receives every gate decision.
type DecisionObserver interface {
	ObserveGateDecision(status string)
}

// Fallbacks overrides the handlers rendered for non-authorized states. Nil
// fields use the defaults.
type Fallbacks struct {
	Loading         http.Handler
	Unauthenticated http.Handler
	Unauthorized    http.Handler
}

// Middleware wires the gate into HTTP handlers. It only reads the session
// already attached to the request.
type Middleware struct {
	Logger     *slog.Logger
	Observer   DecisionObserver
	RetryAfter time.Duration
}

// Require admits requests whose session holds any of roles. No roles means
// any authenticated identity.
func (m Middleware) Require(roles ...rbac.Role) func(http.Handler) http.Handler {
	return m.RequireWith(Fallbacks{}, roles...)
}

// RequireWith is Require with route-specific fallbacks.
func (m Middleware) RequireWith(fb Fallbacks, roles ...rbac.Role) func(http.Handler) http.Handler {
	required := append([]rbac.Role(nil), roles...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := session.SnapshotFromContext(r.Context())
			decision := Decide(InputFrom(snap), required)
			if m.Observer != nil {
				m.Observer.ObserveGateDecision(string(decision.Status))
			}
			if decision.Allowed() {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil && decision.Status == StatusUnauthorized {
				m.Logger.Info("access denied",
					slog.String("path", r.URL.Path),
					slog.String("user_id", snap.UserID().String()),
					slog.Any("required", rbac.Strings(required)))
			}
			m.fallbackHandler(fb, decision).ServeHTTP(w, r)
		})
	}
}

func (m Middleware) fallbackHandler(fb Fallbacks, d Decision) http.Handler {
	switch d.Status {
	case StatusLoading:
		if fb.Loading != nil {
			return fb.Loading
		}
		return m.loadingHandler()
	case StatusUnauthenticated:
		if fb.Unauthenticated != nil {
			return fb.Unauthenticated
		}
	case StatusUnauthorized:
		if fb.Unauthorized != nil {
			return fb.Unauthorized
		}
	}
	return DeniedHandler(d.Fallback.Reason)
}

func (m Middleware) loadingHandler() http.Handler {
	retry := m.RetryAfter
	if retry <= 0 {
		retry = time.Second
	}
	seconds := strconv.Itoa(int((retry + time.Second - 1) / time.Second))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", seconds)
		httpx.ProblemWithCode(w, http.StatusServiceUnavailable, "Session Loading", "session is still being resolved", string(StatusLoading))
	})
}

// DeniedHandler renders the access-denied view for reason.
func DeniedHandler(reason Status) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch reason {
		case StatusUnauthenticated:
			w.Header().Set("WWW-Authenticate", `Bearer realm="cowork"`)
			httpx.ProblemWithCode(w, http.StatusUnauthorized, "Unauthenticated", "sign in to continue", string(reason))
		default:
			httpx.ProblemWithCode(w, http.StatusForbidden, "Access Denied", "your roles do not grant access to this resource", string(StatusUnauthorized))
		}
	})
}
