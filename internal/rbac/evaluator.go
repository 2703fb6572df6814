package rbac

import (
	"context"
	"errors"
	"sort"
)

// Evaluator answers allow/deny questions over the role registry.
//
// NOTE: the evaluator deliberately does not consult Role.Active — an
// inactive role still grants its permissions when referenced. This mirrors
// the behaviour of the system it replaces; see DESIGN.md before "fixing" it.
type Evaluator struct {
	roles RoleSource
}

// NewEvaluator constructs an Evaluator over the given role source.
func NewEvaluator(roles RoleSource) *Evaluator {
	return &Evaluator{roles: roles}
}

// HasPermission reports whether the role may execute the action identified
// by the permission id. Unknown roles are denied; a role holding the
// all_modules sentinel is allowed unconditionally, even for permission ids
// absent from the catalog. The returned error is non-nil only for storage
// failures.
func (e *Evaluator) HasPermission(ctx context.Context, roleID, permissionID string) (bool, error) {
	role, err := e.roles.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return roleAllows(role, permissionID), nil
}

// HasAnyPermission is the OR of HasPermission over the given set.
func (e *Evaluator) HasAnyPermission(ctx context.Context, roleID string, permissionIDs ...string) (bool, error) {
	role, err := e.roles.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, p := range permissionIDs {
		if roleAllows(role, p) {
			return true, nil
		}
	}
	return false, nil
}

// CanViewCases reports whether the role may read the case register.
func (e *Evaluator) CanViewCases(ctx context.Context, roleID string) (bool, error) {
	return e.HasAnyPermission(ctx, roleID, PermCaseView, PermCaseManagement, PermAllModules)
}

// CanEditCases reports whether the role may change case state.
func (e *Evaluator) CanEditCases(ctx context.Context, roleID string) (bool, error) {
	return e.HasAnyPermission(ctx, roleID, PermCaseManagement, PermAllModules)
}

func roleAllows(role Role, permissionID string) bool {
	if role.HasWildcard() {
		return true
	}
	for _, p := range role.Permissions {
		if p == permissionID {
			return true
		}
	}
	return false
}

// Principal represents an authenticated user with the resolved effective
// permission set: role permissions united with the user's custom
// permissions.
type Principal struct {
	User        User
	Role        Role
	Permissions map[string]struct{}
}

// NewPrincipal resolves the effective permission set for a user and role.
func NewPrincipal(user User, role Role) Principal {
	set := make(map[string]struct{}, len(role.Permissions)+len(user.CustomPermissions))
	for _, p := range role.Permissions {
		set[p] = struct{}{}
	}
	for _, p := range user.CustomPermissions {
		set[p] = struct{}{}
	}
	return Principal{User: user, Role: role, Permissions: set}
}

// HasPermission reports whether the principal can execute the action,
// honouring the all_modules wildcard.
func (p Principal) HasPermission(permissionID string) bool {
	if _, ok := p.Permissions[PermAllModules]; ok {
		return true
	}
	_, ok := p.Permissions[permissionID]
	return ok
}

// HasAnyPermission is the OR of HasPermission over the given set.
func (p Principal) HasAnyPermission(permissionIDs ...string) bool {
	for _, id := range permissionIDs {
		if p.HasPermission(id) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal acts under the admin system role.
// Only admins may read or write another user's custom permissions.
func (p Principal) IsAdmin() bool {
	return p.Role.ID == RoleAdmin
}

// SortedPermissions returns the effective permission set as a sorted slice.
func (p Principal) SortedPermissions() []string {
	out := make([]string, 0, len(p.Permissions))
	for k := range p.Permissions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
