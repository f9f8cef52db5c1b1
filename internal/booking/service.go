package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/cowork-market/cowork/internal/platform/httpx"
	"github.com/cowork-market/cowork/internal/rbac"
	"github.com/cowork-market/cowork/internal/session"
	"github.com/cowork-market/cowork/internal/shared"
)

var (
	ErrNotFound           = fmt.Errorf("booking: %w", httpx.ErrNotFound)
	ErrActionNotPermitted = fmt.Errorf("booking: action not permitted: %w", httpx.ErrForbidden)
	ErrTransitionRejected = fmt.Errorf("booking: transition rejected: %w", httpx.ErrConflict)
	ErrInvalidTarget      = fmt.Errorf("booking: invalid override target: %w", httpx.ErrValidation)
	ErrReasonRequired     = fmt.Errorf("booking: reason required: %w", httpx.ErrValidation)
	ErrDuplicateRequest   = fmt.Errorf("booking: request already processed: %w", httpx.ErrDuplicate)
)

const idempotencyModule = "bookings"

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyStore deduplicates client retries.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// TransitionOptions carries optional request metadata.
type TransitionOptions struct {
	Reason         string
	IdempotencyKey string
}

// Service applies the action policy to bookings.
type Service struct {
	repo   Repository
	audit  AuditRecorder
	idem   IdempotencyStore
	logger *slog.Logger
}

// NewService constructs a Service. audit and idem are optional.
func NewService(repo Repository, audit AuditRecorder, idem IdempotencyStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, idem: idem, logger: logger}
}

// CanView reports whether the session may see b at all: admins, the booking
// owner and the host of the booked space.
func CanView(snap session.Snapshot, b *Booking) bool {
	if b == nil || !snap.IsAuthenticated || snap.Identity == nil {
		return false
	}
	uid := snap.Identity.ID
	return rbac.IsAdmin(snap.Roles) || uid == b.UserID || (rbac.IsHost(snap.Roles) && uid == b.HostID)
}

// Eligible combines the status policy with the actor's relationship to the
// booking: owners and the space host may cancel, the host may mark a no-show,
// and administrative overrides need the admin role. Admins may do all three.
func Eligible(snap session.Snapshot, b *Booking, a Action) bool {
	if b == nil || !snap.IsAuthenticated || snap.Identity == nil {
		return false
	}
	if !Permits(a, b.Status) {
		return false
	}
	uid := snap.Identity.ID
	admin := rbac.IsAdmin(snap.Roles)
	hostOfBooking := rbac.IsHost(snap.Roles) && uid == b.HostID
	switch a {
	case ActionCancel:
		return admin || uid == b.UserID || hostOfBooking
	case ActionMarkNoShow:
		return admin || hostOfBooking
	case ActionAdminOverride:
		return admin
	default:
		return false
	}
}

// AvailableActions returns the booking and the actions the session may take
// on it. Bookings the session cannot view are reported as ErrNotFound.
func (s *Service) AvailableActions(ctx context.Context, snap session.Snapshot, id uuid.UUID) (*Booking, []Action, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !CanView(snap, b) {
		return nil, nil, ErrNotFound
	}
	actions := make([]Action, 0, len(actionOrder))
	for _, a := range Actions(b.Status) {
		if Eligible(snap, b, a) {
			actions = append(actions, a)
		}
	}
	return b, actions, nil
}

// Cancel asks the remote system to cancel the booking.
func (s *Service) Cancel(ctx context.Context, snap session.Snapshot, id uuid.UUID, opts TransitionOptions) (Status, error) {
	return s.perform(ctx, snap, id, ActionCancel, "", opts)
}

// MarkNoShow asks the remote system to record a no-show.
func (s *Service) MarkNoShow(ctx context.Context, snap session.Snapshot, id uuid.UUID, opts TransitionOptions) (Status, error) {
	return s.perform(ctx, snap, id, ActionMarkNoShow, "", opts)
}

// Override corrects a terminal booking to target. A reason is mandatory.
func (s *Service) Override(ctx context.Context, snap session.Snapshot, id uuid.UUID, target Status, opts TransitionOptions) (Status, error) {
	if !target.IsValid() {
		return "", ErrInvalidTarget
	}
	if strings.TrimSpace(opts.Reason) == "" {
		return "", ErrReasonRequired
	}
	return s.perform(ctx, snap, id, ActionAdminOverride, target, opts)
}

func (s *Service) perform(ctx context.Context, snap session.Snapshot, id uuid.UUID, action Action, target Status, opts TransitionOptions) (Status, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !CanView(snap, b) {
		return "", ErrNotFound
	}
	if !Eligible(snap, b, action) {
		return "", ErrActionNotPermitted
	}
	if action == ActionAdminOverride && target == b.Status {
		return "", ErrInvalidTarget
	}

	actor := snap.Identity.ID
	key := idempotencyKey(actor, opts.IdempotencyKey)
	if key != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return "", ErrDuplicateRequest
			}
			return "", fmt.Errorf("booking: idempotency: %w", err)
		}
	}

	result, err := s.repo.Transition(ctx, TransitionRequest{
		BookingID:    b.ID,
		Action:       action,
		TargetStatus: target,
		ActorID:      actor,
		Reason:       strings.TrimSpace(opts.Reason),
	})
	if err != nil {
		if key != "" && s.idem != nil {
			if delErr := s.idem.Delete(ctx, key); delErr != nil {
				s.logger.Warn("booking idempotency rollback", slog.Any("error", delErr))
			}
		}
		return "", err
	}

	if s.audit != nil {
		meta := map[string]any{"from": string(b.Status), "to": string(result)}
		if opts.Reason != "" {
			meta["reason"] = strings.TrimSpace(opts.Reason)
		}
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor,
			Action:   "booking." + string(action),
			Entity:   "bookings",
			EntityID: b.ID.String(),
			Meta:     meta,
		}); err != nil {
			s.logger.Warn("booking audit", slog.String("action", string(action)), slog.Any("error", err))
		}
	}
	return result, nil
}

// idempotencyKey scopes a client key to the actor so two users can reuse the
// same header value.
func idempotencyKey(actor uuid.UUID, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	return actor.String() + ":" + raw
}
