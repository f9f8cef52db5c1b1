package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cowork-market/cowork/internal/platform/httpx"
	"github.com/cowork-market/cowork/internal/shared"
)

var (
	// ErrNotFound indicates that the requested assignment does not exist.
	ErrNotFound = fmt.Errorf("rbac: assignment %w", httpx.ErrNotFound)
	// ErrInvalidRole indicates a role tag outside the enumeration.
	ErrInvalidRole = fmt.Errorf("rbac: invalid role: %w", httpx.ErrValidation)
	// ErrNotSystemRole is returned when granting or revoking a business role.
	ErrNotSystemRole = fmt.Errorf("rbac: only system roles can be granted: %w", httpx.ErrValidation)
)

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SessionInvalidator schedules eviction of cached session data for a user.
type SessionInvalidator interface {
	EnqueueSessionInvalidate(ctx context.Context, userID uuid.UUID) error
}

// SessionCache evicts cached session data for a user in-process.
type SessionCache interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// Service orchestrates system role assignments.
type Service struct {
	repo        Repository
	audit       AuditRecorder
	invalidator SessionInvalidator
	cache       SessionCache
	logger      *slog.Logger
}

// NewService constructs a Service. audit, invalidator and cache are optional.
// When cache is set, role changes evict the user's cached session before the
// request returns; the queued invalidation covers retries.
func NewService(repo Repository, audit AuditRecorder, invalidator SessionInvalidator, cache SessionCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, invalidator: invalidator, cache: cache, logger: logger}
}

// ListAssignments returns the system roles granted to a user.
func (s *Service) ListAssignments(ctx context.Context, userID uuid.UUID) ([]Assignment, error) {
	return s.repo.ListAssignments(ctx, userID)
}

// Grant assigns a system role to userID on behalf of actorID.
func (s *Service) Grant(ctx context.Context, actorID, userID uuid.UUID, role Role) error {
	if err := checkSystemRole(role); err != nil {
		return err
	}
	if err := s.repo.InsertAssignment(ctx, Assignment{UserID: userID, Role: role, GrantedBy: actorID}); err != nil {
		return fmt.Errorf("rbac: grant %s: %w", role, err)
	}
	s.afterChange(ctx, actorID, userID, "role.grant", role)
	return nil
}

// Revoke removes a system role from userID on behalf of actorID.
func (s *Service) Revoke(ctx context.Context, actorID, userID uuid.UUID, role Role) error {
	if err := checkSystemRole(role); err != nil {
		return err
	}
	removed, err := s.repo.DeleteAssignment(ctx, userID, role)
	if err != nil {
		return fmt.Errorf("rbac: revoke %s: %w", role, err)
	}
	if !removed {
		return ErrNotFound
	}
	s.afterChange(ctx, actorID, userID, "role.revoke", role)
	return nil
}

func (s *Service) afterChange(ctx context.Context, actorID, userID uuid.UUID, action string, role Role) {
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "user_roles",
			EntityID: userID.String(),
			Meta:     map[string]any{"role": string(role)},
		})
		if err != nil {
			s.logger.Warn("rbac audit", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			s.logger.Warn("rbac session cache invalidate", slog.String("user_id", userID.String()), slog.Any("error", err))
		}
	}
	if s.invalidator != nil {
		if err := s.invalidator.EnqueueSessionInvalidate(ctx, userID); err != nil {
			s.logger.Warn("rbac enqueue session invalidate", slog.String("user_id", userID.String()), slog.Any("error", err))
		}
	}
}

func checkSystemRole(role Role) error {
	if !role.IsValid() {
		return ErrInvalidRole
	}
	if !role.IsSystem() {
		return ErrNotSystemRole
	}
	return nil
}
