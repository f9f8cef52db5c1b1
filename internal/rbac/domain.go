package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Role is a capability tag assigned to an identity.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleHost      Role = "host"
	RoleCoworker  Role = "coworker"
)

// DefaultRole is the primary role of an identity without assignments.
const DefaultRole = RoleCoworker

// precedence lists roles from highest to lowest for PrimaryRole.
var precedence = []Role{RoleAdmin, RoleHost, RoleModerator, RoleCoworker}

// IsValid reports whether r belongs to the role enumeration.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleHost, RoleCoworker:
		return true
	default:
		return false
	}
}

// IsSystem reports whether r is granted separately from the profile.
func (r Role) IsSystem() bool {
	return r == RoleAdmin || r == RoleModerator
}

// IsBusiness reports whether r is derived from the profile's account type.
func (r Role) IsBusiness() bool {
	return r == RoleHost || r == RoleCoworker
}

func (r Role) String() string {
	return string(r)
}

// AllRoles returns the role enumeration in precedence order.
func AllRoles() []Role {
	return Precedence()
}

// Precedence returns a copy of the primary role ordering, highest first.
func Precedence() []Role {
	out := make([]Role, len(precedence))
	copy(out, precedence)
	return out
}

// Assignment records a system role granted to a user.
type Assignment struct {
	UserID    uuid.UUID
	Role      Role
	GrantedBy uuid.UUID
	CreatedAt time.Time
}
