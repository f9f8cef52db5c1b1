package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cowork-market/cowork/internal/access"
	"github.com/cowork-market/cowork/internal/platform/httpx"
	"github.com/cowork-market/cowork/internal/rbac"
	"github.com/cowork-market/cowork/internal/session"
)

// ActionService is the booking contract used by the handler.
type ActionService interface {
	AvailableActions(ctx context.Context, snap session.Snapshot, id uuid.UUID) (*Booking, []Action, error)
	Cancel(ctx context.Context, snap session.Snapshot, id uuid.UUID, opts TransitionOptions) (Status, error)
	MarkNoShow(ctx context.Context, snap session.Snapshot, id uuid.UUID, opts TransitionOptions) (Status, error)
	Override(ctx context.Context, snap session.Snapshot, id uuid.UUID, target Status, opts TransitionOptions) (Status, error)
}

// Handler wires HTTP endpoints for booking actions.
type Handler struct {
	logger    *slog.Logger
	service   ActionService
	gate      access.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service ActionService, gate access.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, gate: gate, validator: validator.New()}
}

// MountRoutes registers booking routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/{bookingID}", func(r chi.Router) {
		r.Use(h.gate.Require())
		r.Get("/actions", h.listActions)
		r.Post("/cancel", h.cancel)
		r.Post("/no-show", h.markNoShow)
		r.With(h.gate.Require(rbac.RoleAdmin)).Post("/override", h.override)
	})
}

type actionsResponse struct {
	Booking *Booking `json:"booking"`
	Actions []Action `json:"actions"`
}

type transitionResponse struct {
	BookingID string `json:"booking_id"`
	Status    Status `json:"status"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type overrideRequest struct {
	Status string `json:"status" validate:"required,oneof=pending pending_approval pending_payment confirmed cancelled checked_out no_show"`
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	b, actions, err := h.service.AvailableActions(r.Context(), session.SnapshotFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, actionsResponse{Booking: b, Actions: actions})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.service.Cancel)
}

func (h *Handler) markNoShow(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.service.MarkNoShow)
}

type transitionFunc func(ctx context.Context, snap session.Snapshot, id uuid.UUID, opts TransitionOptions) (Status, error)

func (h *Handler) simpleTransition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	status, err := fn(r.Context(), session.SnapshotFromContext(r.Context()), id, TransitionOptions{
		Reason:         req.Reason,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transitionResponse{BookingID: id.String(), Status: status})
}

func (h *Handler) override(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var req overrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	status, err := h.service.Override(r.Context(), session.SnapshotFromContext(r.Context()), id, Status(req.Status), TransitionOptions{
		Reason:         req.Reason,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transitionResponse{BookingID: id.String(), Status: status})
}

func (h *Handler) bookingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Booking", "booking id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrActionNotPermitted):
		httpx.ProblemWithCode(w, http.StatusForbidden, "Action Not Permitted", err.Error(), "action_not_permitted")
	case errors.Is(err, ErrTransitionRejected):
		httpx.ProblemWithCode(w, http.StatusConflict, "Transition Rejected", err.Error(), "transition_rejected")
	case errors.Is(err, ErrDuplicateRequest):
		httpx.ProblemWithCode(w, http.StatusConflict, "Duplicate Request", err.Error(), "duplicate_request")
	case errors.Is(err, ErrInvalidTarget), errors.Is(err, ErrReasonRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("booking handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
