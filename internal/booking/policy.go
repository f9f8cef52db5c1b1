// Package booking decides which actions a booking's status permits and
// forwards permitted transitions to the remote booking procedures.
package booking

// Status subsets per action. Anything not listed permits nothing.
var (
	cancellable = map[Status]struct{}{
		StatusPending:         {},
		StatusPendingApproval: {},
		StatusPendingPayment:  {},
		StatusConfirmed:       {},
	}
	noShowMarkable = map[Status]struct{}{
		StatusConfirmed: {},
	}
	administrable = map[Status]struct{}{
		StatusCancelled:  {},
		StatusCheckedOut: {},
		StatusNoShow:     {},
	}
)

var actionOrder = []Action{ActionCancel, ActionMarkNoShow, ActionAdminOverride}

func CanCancel(s Status) bool {
	_, ok := cancellable[s]
	return ok
}

func CanMarkNoShow(s Status) bool {
	_, ok := noShowMarkable[s]
	return ok
}

// CanUseAdministrativeActions is true for terminal statuses, where only an
// administrative correction is meaningful.
func CanUseAdministrativeActions(s Status) bool {
	_, ok := administrable[s]
	return ok
}

// Permits reports whether status s allows action a.
func Permits(a Action, s Status) bool {
	switch a {
	case ActionCancel:
		return CanCancel(s)
	case ActionMarkNoShow:
		return CanMarkNoShow(s)
	case ActionAdminOverride:
		return CanUseAdministrativeActions(s)
	default:
		return false
	}
}

// Actions lists the actions s permits, in a fixed order.
func Actions(s Status) []Action {
	out := make([]Action, 0, len(actionOrder))
	for _, a := range actionOrder {
		if Permits(a, s) {
			out = append(out, a)
		}
	}
	return out
}
