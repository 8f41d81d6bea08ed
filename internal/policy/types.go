package policy

import "github.com/upb/eloboost/models"

// Rule is a single permission entry. An empty Role marks the path public.
type Rule struct {
	Path string
	Role models.Role
}

// Public reports whether the rule lets anyone through
func (r Rule) Public() bool {
	return r.Role == ""
}

// Decision represents the result of checking a role against a path.
// RequiredRole is empty for public paths.
type Decision struct {
	AccessGranted bool
	UserRole      models.Role
	RequiredRole  models.Role
	RoutePath     string
}
