package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cowork-market/cowork/internal/platform/httpx"
	"github.com/cowork-market/cowork/internal/rbac"
)

// Handler exposes the session snapshot to clients.
type Handler struct {
	logger      *slog.Logger
	waitTimeout time.Duration
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, waitTimeout time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if waitTimeout <= 0 {
		waitTimeout = 3 * time.Second
	}
	return &Handler{logger: logger, waitTimeout: waitTimeout}
}

// MountRoutes registers session routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Post("/refresh", h.refresh)
	r.Post("/signout", h.signOut)
}

type identityView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type profileView struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// SnapshotView is the JSON form of a Snapshot.
type SnapshotView struct {
	Identity        *identityView `json:"identity"`
	Profile         *profileView  `json:"profile"`
	Roles           []string      `json:"roles"`
	PrimaryRole     string        `json:"primary_role"`
	IsAdmin         bool          `json:"is_admin"`
	IsHost          bool          `json:"is_host"`
	IsModerator     bool          `json:"is_moderator"`
	CanModerate     bool          `json:"can_moderate"`
	IsLoading       bool          `json:"is_loading"`
	IsAuthenticated bool          `json:"is_authenticated"`
	Error           string        `json:"error,omitempty"`
}

// NewSnapshotView renders snap for clients. Role predicates are derived
// from the role set only.
func NewSnapshotView(snap Snapshot) SnapshotView {
	view := SnapshotView{
		Roles:           rbac.Strings(snap.Roles),
		PrimaryRole:     string(rbac.PrimaryRole(snap.Roles)),
		IsAdmin:         rbac.IsAdmin(snap.Roles),
		IsHost:          rbac.IsHost(snap.Roles),
		IsModerator:     rbac.IsModerator(snap.Roles),
		CanModerate:     rbac.CanModerate(snap.Roles),
		IsLoading:       snap.IsLoading,
		IsAuthenticated: snap.IsAuthenticated,
	}
	if snap.Identity != nil {
		view.Identity = &identityView{ID: snap.Identity.ID.String(), Email: snap.Identity.Email}
	}
	if snap.Profile != nil {
		view.Profile = &profileView{
			FirstName:   snap.Profile.FirstName,
			LastName:    snap.Profile.LastName,
			DisplayName: snap.Profile.DisplayName(),
			AvatarURL:   snap.Profile.AvatarURL,
		}
	}
	if snap.Err != nil {
		view.Error = "session unavailable"
	}
	return view
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, NewSnapshotView(SnapshotFromContext(r.Context())))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := FromContext(r.Context()).(Controller)
	if !ok {
		httpx.Problem(w, http.StatusServiceUnavailable, "Session Unavailable", "session provider missing")
		return
	}
	ctrl.Refresh(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), h.waitTimeout)
	defer cancel()
	if err := ctrl.Wait(ctx); err != nil {
		h.logger.Warn("session refresh pending", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, NewSnapshotView(ctrl.Snapshot()))
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := FromContext(r.Context()).(Controller)
	if !ok {
		httpx.Problem(w, http.StatusServiceUnavailable, "Session Unavailable", "session provider missing")
		return
	}
	if err := ctrl.SignOut(r.Context()); err != nil {
		h.logger.Warn("session sign out", slog.Any("error", err))
	}
	w.WriteHeader(http.StatusNoContent)
}
