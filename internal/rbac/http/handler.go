package rbachttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cowork-market/cowork/internal/access"
	"github.com/cowork-market/cowork/internal/platform/httpx"
	"github.com/cowork-market/cowork/internal/rbac"
	"github.com/cowork-market/cowork/internal/session"
)

// RoleService is the assignment contract used by the handler.
type RoleService interface {
	ListAssignments(ctx context.Context, userID uuid.UUID) ([]rbac.Assignment, error)
	Grant(ctx context.Context, actorID, userID uuid.UUID, role rbac.Role) error
	Revoke(ctx context.Context, actorID, userID uuid.UUID, role rbac.Role) error
}

// Handler manages system role assignments. Every route requires admin.
type Handler struct {
	logger    *slog.Logger
	service   RoleService
	gate      access.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service RoleService, gate access.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, gate: gate, validator: validator.New()}
}

// MountRoutes registers role routes under /admin/users/{userID}/roles.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(rbac.RoleAdmin))
		r.Get("/", h.list)
		r.Post("/", h.grant)
		r.Delete("/{role}", h.revoke)
	})
}

type grantRequest struct {
	Role string `json:"role" validate:"required,oneof=admin moderator"`
}

type assignmentView struct {
	Role      string    `json:"role"`
	GrantedBy string    `json:"granted_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type listResponse struct {
	UserID      string           `json:"user_id"`
	Assignments []assignmentView `json:"assignments"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	assignments, err := h.service.ListAssignments(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := listResponse{UserID: userID.String(), Assignments: make([]assignmentView, 0, len(assignments))}
	for _, a := range assignments {
		view := assignmentView{Role: string(a.Role), CreatedAt: a.CreatedAt}
		if a.GrantedBy != uuid.Nil {
			view.GrantedBy = a.GrantedBy.String()
		}
		resp.Assignments = append(resp.Assignments, view)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, _ := rbac.ParseRole(req.Role)
	actor := session.SnapshotFromContext(r.Context()).UserID()
	if err := h.service.Grant(r.Context(), actor, userID, role); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	role, valid := rbac.ParseRole(chi.URLParam(r, "role"))
	if !valid {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", rbac.ErrInvalidRole.Error())
		return
	}
	actor := session.SnapshotFromContext(r.Context()).UserID()
	if err := h.service.Revoke(r.Context(), actor, userID, role); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User", "user id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rbac.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, rbac.ErrInvalidRole), errors.Is(err, rbac.ErrNotSystemRole):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("rbac handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
