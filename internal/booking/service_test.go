package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowork-market/cowork/internal/platform/httpx"
	"github.com/cowork-market/cowork/internal/rbac"
	"github.com/cowork-market/cowork/internal/session"
	"github.com/cowork-market/cowork/internal/shared"
)

type stubRepository struct {
	bookings      map[uuid.UUID]*Booking
	transitions   []TransitionRequest
	transitionErr error
}

func (s *stubRepository) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *stubRepository) Transition(ctx context.Context, req TransitionRequest) (Status, error) {
	s.transitions = append(s.transitions, req)
	if s.transitionErr != nil {
		return "", s.transitionErr
	}
	switch req.Action {
	case ActionCancel:
		return StatusCancelled, nil
	case ActionMarkNoShow:
		return StatusNoShow, nil
	default:
		return req.TargetStatus, nil
	}
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (r *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

type memoryIdempotency struct {
	keys    map[string]string
	deleted []string
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = module
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type fixture struct {
	svc   *Service
	repo  *stubRepository
	audit *recordingAudit
	idem  *memoryIdempotency

	booking *Booking
	owner   uuid.UUID
	host    uuid.UUID
}

func newFixture(status Status) *fixture {
	owner, host := uuid.New(), uuid.New()
	b := &Booking{ID: uuid.New(), SpaceID: uuid.New(), HostID: host, UserID: owner, Status: status}
	repo := &stubRepository{bookings: map[uuid.UUID]*Booking{b.ID: b}}
	audit := &recordingAudit{}
	idem := &memoryIdempotency{keys: make(map[string]string)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		svc:     NewService(repo, audit, idem, logger),
		repo:    repo,
		audit:   audit,
		idem:    idem,
		booking: b,
		owner:   owner,
		host:    host,
	}
}

func actor(id uuid.UUID, roles ...rbac.Role) session.Snapshot {
	return session.Snapshot{Identity: &session.Identity{ID: id}, Roles: roles, IsAuthenticated: true}
}

func TestEligible(t *testing.T) {
	f := newFixture(StatusConfirmed)
	stranger := uuid.New()

	cases := []struct {
		name   string
		snap   session.Snapshot
		action Action
		want   bool
	}{
		{"owner cancels", actor(f.owner, rbac.RoleCoworker), ActionCancel, true},
		{"host cancels", actor(f.host, rbac.RoleHost), ActionCancel, true},
		{"other host cannot cancel", actor(stranger, rbac.RoleHost), ActionCancel, false},
		{"stranger cannot cancel", actor(stranger, rbac.RoleCoworker), ActionCancel, false},
		{"admin cancels", actor(stranger, rbac.RoleAdmin), ActionCancel, true},
		{"moderator cannot cancel", actor(stranger, rbac.RoleModerator), ActionCancel, false},
		{"host marks no-show", actor(f.host, rbac.RoleHost), ActionMarkNoShow, true},
		{"owner cannot mark no-show", actor(f.owner, rbac.RoleCoworker), ActionMarkNoShow, false},
		{"host id without host role", actor(f.host, rbac.RoleCoworker), ActionMarkNoShow, false},
		{"admin override blocked by status", actor(stranger, rbac.RoleAdmin), ActionAdminOverride, false},
		{"anonymous", session.Anonymous(), ActionCancel, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Eligible(tc.snap, f.booking, tc.action))
		})
	}
	assert.False(t, Eligible(actor(stranger, rbac.RoleAdmin), nil, ActionCancel))
}

func TestAvailableActions(t *testing.T) {
	f := newFixture(StatusConfirmed)
	ctx := context.Background()

	_, actions, err := f.svc.AvailableActions(ctx, actor(f.host, rbac.RoleHost), f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, []Action{ActionCancel, ActionMarkNoShow}, actions)

	_, actions, err = f.svc.AvailableActions(ctx, actor(f.owner, rbac.RoleCoworker), f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, []Action{ActionCancel}, actions)

	_, actions, err = f.svc.AvailableActions(ctx, actor(uuid.New(), rbac.RoleAdmin), f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, []Action{ActionCancel}, actions)

	b, actions, err := f.svc.AvailableActions(ctx, actor(uuid.New(), rbac.RoleHost), f.booking.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, b)
	assert.Nil(t, actions)

	_, _, err = f.svc.AvailableActions(ctx, actor(f.owner), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelForwardsAndAudits(t *testing.T) {
	f := newFixture(StatusPendingPayment)

	status, err := f.svc.Cancel(context.Background(), actor(f.owner, rbac.RoleCoworker), f.booking.ID, TransitionOptions{Reason: " changed plans "})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, status)

	require.Len(t, f.repo.transitions, 1)
	req := f.repo.transitions[0]
	assert.Equal(t, ActionCancel, req.Action)
	assert.Equal(t, f.owner, req.ActorID)
	assert.Equal(t, "changed plans", req.Reason)
	assert.Empty(t, req.TargetStatus)

	require.Len(t, f.audit.logs, 1)
	log := f.audit.logs[0]
	assert.Equal(t, "booking.cancel", log.Action)
	assert.Equal(t, f.booking.ID.String(), log.EntityID)
	assert.Equal(t, "pending_payment", log.Meta["from"])
	assert.Equal(t, "cancelled", log.Meta["to"])
}

func TestCancelRejectedByPolicy(t *testing.T) {
	f := newFixture(StatusCheckedOut)
	_, err := f.svc.Cancel(context.Background(), actor(f.owner, rbac.RoleAdmin), f.booking.ID, TransitionOptions{})
	assert.ErrorIs(t, err, ErrActionNotPermitted)
	assert.Empty(t, f.repo.transitions)
	assert.Empty(t, f.audit.logs)
}

func TestMarkNoShowRequiresHostOfBooking(t *testing.T) {
	f := newFixture(StatusConfirmed)
	ctx := context.Background()

	_, err := f.svc.MarkNoShow(ctx, actor(uuid.New(), rbac.RoleHost), f.booking.ID, TransitionOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.repo.transitions)

	status, err := f.svc.MarkNoShow(ctx, actor(f.host, rbac.RoleHost), f.booking.ID, TransitionOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, status)
}

func TestOverride(t *testing.T) {
	f := newFixture(StatusNoShow)
	ctx := context.Background()
	admin := actor(uuid.New(), rbac.RoleAdmin)

	_, err := f.svc.Override(ctx, admin, f.booking.ID, Status("archived"), TransitionOptions{Reason: "fix"})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = f.svc.Override(ctx, admin, f.booking.ID, StatusCheckedOut, TransitionOptions{Reason: "  "})
	assert.ErrorIs(t, err, ErrReasonRequired)

	_, err = f.svc.Override(ctx, admin, f.booking.ID, StatusNoShow, TransitionOptions{Reason: "same"})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = f.svc.Override(ctx, actor(f.host, rbac.RoleHost), f.booking.ID, StatusCheckedOut, TransitionOptions{Reason: "guest showed up"})
	assert.ErrorIs(t, err, ErrActionNotPermitted)

	status, err := f.svc.Override(ctx, admin, f.booking.ID, StatusCheckedOut, TransitionOptions{Reason: "guest showed up"})
	require.NoError(t, err)
	assert.Equal(t, StatusCheckedOut, status)
	require.Len(t, f.repo.transitions, 1)
	assert.Equal(t, StatusCheckedOut, f.repo.transitions[0].TargetStatus)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, "booking.admin_override", f.audit.logs[0].Action)
	assert.Equal(t, "guest showed up", f.audit.logs[0].Meta["reason"])
}

func TestIdempotencyKeyDeduplicates(t *testing.T) {
	f := newFixture(StatusConfirmed)
	ctx := context.Background()
	opts := TransitionOptions{IdempotencyKey: "req-1"}

	_, err := f.svc.Cancel(ctx, actor(f.owner), f.booking.ID, opts)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, actor(f.owner), f.booking.ID, opts)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Len(t, f.repo.transitions, 1)
	assert.Equal(t, "bookings", f.idem.keys[f.owner.String()+":req-1"])
}

func TestIdempotencyKeyIsScopedToActor(t *testing.T) {
	f := newFixture(StatusConfirmed)
	ctx := context.Background()
	opts := TransitionOptions{IdempotencyKey: "req-1"}

	_, err := f.svc.Cancel(ctx, actor(f.owner, rbac.RoleCoworker), f.booking.ID, opts)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, actor(f.host, rbac.RoleHost), f.booking.ID, opts)
	require.NoError(t, err)

	assert.Len(t, f.repo.transitions, 2)
	assert.Contains(t, f.idem.keys, f.owner.String()+":req-1")
	assert.Contains(t, f.idem.keys, f.host.String()+":req-1")
}

func TestSentinelsMapOntoHTTPErrors(t *testing.T) {
	assert.ErrorIs(t, ErrNotFound, httpx.ErrNotFound)
	assert.ErrorIs(t, ErrActionNotPermitted, httpx.ErrForbidden)
	assert.ErrorIs(t, ErrTransitionRejected, httpx.ErrConflict)
	assert.ErrorIs(t, ErrInvalidTarget, httpx.ErrValidation)
	assert.ErrorIs(t, ErrReasonRequired, httpx.ErrValidation)
	assert.ErrorIs(t, ErrDuplicateRequest, httpx.ErrDuplicate)
}

func TestTransitionFailureReleasesIdempotencyKey(t *testing.T) {
	f := newFixture(StatusConfirmed)
	f.repo.transitionErr = errors.Join(ErrTransitionRejected, errors.New("booking already started"))

	_, err := f.svc.Cancel(context.Background(), actor(f.owner), f.booking.ID, TransitionOptions{IdempotencyKey: "req-2"})
	assert.ErrorIs(t, err, ErrTransitionRejected)
	assert.Equal(t, []string{f.owner.String() + ":req-2"}, f.idem.deleted)
	assert.Empty(t, f.idem.keys)
	assert.Empty(t, f.audit.logs)
}
