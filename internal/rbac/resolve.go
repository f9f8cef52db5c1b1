package rbac

import "strings"

// HasRole reports whether target is present in roles.
func HasRole(roles []Role, target Role) bool {
	for _, r := range roles {
		if r == target {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether roles and allowed intersect. An empty allowed
// set never matches.
func HasAnyRole(roles []Role, allowed []Role) bool {
	if len(allowed) == 0 || len(roles) == 0 {
		return false
	}
	set := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	for _, a := range allowed {
		if _, ok := set[a]; ok {
			return true
		}
	}
	return false
}

// PrimaryRole returns the highest-precedence role present, or DefaultRole
// when none of the known roles is assigned.
func PrimaryRole(roles []Role) Role {
	for _, candidate := range precedence {
		if HasRole(roles, candidate) {
			return candidate
		}
	}
	return DefaultRole
}

func IsAdmin(roles []Role) bool {
	return HasRole(roles, RoleAdmin)
}

func IsHost(roles []Role) bool {
	return HasRole(roles, RoleHost)
}

func IsModerator(roles []Role) bool {
	return HasRole(roles, RoleModerator)
}

// CanModerate is true for admins and moderators.
func CanModerate(roles []Role) bool {
	return HasAnyRole(roles, []Role{RoleAdmin, RoleModerator})
}

// ParseRole normalizes a raw role tag.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.TrimSpace(strings.ToLower(raw)))
	if !r.IsValid() {
		return "", false
	}
	return r, true
}

// ParseRoles normalizes raw tags, dropping unknown and duplicate entries.
func ParseRoles(raw []string) []Role {
	roles := make([]Role, 0, len(raw))
	for _, item := range raw {
		if r, ok := ParseRole(item); ok {
			roles = append(roles, r)
		}
	}
	return Normalize(roles)
}

// Normalize drops unknown and duplicate roles. Output follows precedence
// order so equal sets compare equal.
func Normalize(roles []Role) []Role {
	seen := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		if r.IsValid() {
			seen[r] = struct{}{}
		}
	}
	out := make([]Role, 0, len(seen))
	for _, r := range precedence {
		if _, ok := seen[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Strings converts roles back to their tags.
func Strings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
