package rbac

import "time"

// Category groups permissions by the module they guard.
type Category string

const (
	CategoryCase   Category = "case"
	CategoryUser   Category = "user"
	CategoryRole   Category = "role"
	CategorySystem Category = "system"
	CategoryReport Category = "report"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryCase, CategoryUser, CategoryRole, CategorySystem, CategoryReport:
		return true
	}
	return false
}

const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// Permission is an atomic capability token.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    Category  `json:"category"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Role is a named bundle of permission ids assigned to users.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Permissions []string  `json:"permissions"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasWildcard reports whether the role carries the all_modules sentinel.
func (r Role) HasWildcard() bool {
	for _, p := range r.Permissions {
		if p == PermAllModules {
			return true
		}
	}
	return false
}

// User is a staff account bound to exactly one role.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	RoleID     string `json:"role_id"`
	Department string `json:"department"`
	Phone      string `json:"phone,omitempty"`
	Status     string `json:"status"`
	// CustomPermissions augment (never replace) the role's permission set.
	// Admin-editable only.
	CustomPermissions []string   `json:"custom_permissions,omitempty"`
	PasswordHash      string     `json:"-"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// PermissionUpdate is a partial update; nil fields are left unchanged.
type PermissionUpdate struct {
	Name        *string
	Description *string
	Category    *Category
	Active      *bool
}

// RoleUpdate is a partial update; nil fields are left unchanged.
type RoleUpdate struct {
	Name        *string
	Description *string
	Permissions []string
	Active      *bool
}

// UserUpdate is a partial update; nil fields are left unchanged.
type UserUpdate struct {
	Name              *string
	Email             *string
	RoleID            *string
	Department        *string
	Phone             *string
	Status            *string
	Password          *string
	CustomPermissions []string
}

// UserFilter narrows ListUsers; empty fields do not filter. All active
// filters are combined with AND; Query matches name, email and department
// case-insensitively.
type UserFilter struct {
	Query      string
	RoleID     string
	Status     string
	Department string
}
