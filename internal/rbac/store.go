package rbac

import (
	"context"
	"time"
)

// Store describes persistence operations required by the access-control
// subsystem. Core logic depends only on this interface; implementations live
// in internal/store.
type Store interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, id string) (Permission, error)
	CreatePermission(ctx context.Context, p Permission) (Permission, error)
	UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (Permission, error)
	// DeletePermission removes the permission and strips it from every
	// role's permission set. Both happen or neither is visible.
	DeletePermission(ctx context.Context, id string) error

	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error)
	DeleteRole(ctx context.Context, id string) error

	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error)
	DeleteUser(ctx context.Context, id string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// RoleSource is the read-only slice of Store the Evaluator needs.
type RoleSource interface {
	GetRole(ctx context.Context, id string) (Role, error)
}
