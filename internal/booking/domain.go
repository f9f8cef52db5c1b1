package booking

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a booking as stored by the remote
// system. It is read here for policy decisions only.
type Status string

const (
	StatusPending         Status = "pending"
	StatusPendingApproval Status = "pending_approval"
	StatusPendingPayment  Status = "pending_payment"
	StatusConfirmed       Status = "confirmed"
	StatusCancelled       Status = "cancelled"
	StatusCheckedOut      Status = "checked_out"
	StatusNoShow          Status = "no_show"
)

// IsValid checks if the status is part of the known enumeration.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPendingApproval, StatusPendingPayment, StatusConfirmed,
		StatusCancelled, StatusCheckedOut, StatusNoShow:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no regular transition leaves s.
func (s Status) IsTerminal() bool {
	return CanUseAdministrativeActions(s)
}

// Action is a state-changing operation offered on a booking.
type Action string

const (
	ActionCancel        Action = "cancel"
	ActionMarkNoShow    Action = "mark_no_show"
	ActionAdminOverride Action = "admin_override"
)

// Booking mirrors the remote reservation record.
type Booking struct {
	ID       uuid.UUID `json:"id"`
	SpaceID  uuid.UUID `json:"space_id"`
	HostID   uuid.UUID `json:"host_id"`
	UserID   uuid.UUID `json:"user_id"`
	Status   Status    `json:"status"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// TransitionRequest is forwarded to the remote transition procedure.
type TransitionRequest struct {
	BookingID    uuid.UUID
	Action       Action
	TargetStatus Status
	ActorID      uuid.UUID
	Reason       string
}
