package rbac

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bank.com/mop/internal/ids"
)

const defaultEmailDomain = "bank.com"

var (
	permissionIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	emailLocalPattern   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+$`)
	phonePattern        = regexp.MustCompile(`^\+?[0-9]+$`)
)

// Service provides catalog, registry and directory operations with input
// validation on top of a Store.
type Service struct {
	store       Store
	emailDomain string
	now         func() time.Time

	bootstrapEmail    string
	bootstrapPassword string
}

// ServiceOption configures Service behaviour.
type ServiceOption func(*Service)

// WithEmailDomain overrides the organizational email domain users must
// belong to.
func WithEmailDomain(domain string) ServiceOption {
	return func(s *Service) {
		domain = strings.TrimSpace(strings.ToLower(domain))
		if domain != "" {
			s.emailDomain = domain
		}
	}
}

// WithBootstrapAdmin configures the first administrator account seeded by
// EnsureDefaults. Without it a fresh deployment has no account that could
// log in and create users. The email defaults to admin@<domain> when empty;
// an empty password disables the bootstrap entirely.
func WithBootstrapAdmin(email, password string) ServiceOption {
	return func(s *Service) {
		s.bootstrapEmail = strings.TrimSpace(strings.ToLower(email))
		s.bootstrapPassword = password
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	s := &Service{
		store:       store,
		emailDomain: defaultEmailDomain,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureDefaults seeds the built-in permission catalog, the system roles
// and, when bootstrap credentials are configured, the first administrator
// account. Existing entries are left untouched.
func (s *Service) EnsureDefaults(ctx context.Context) error {
	for _, p := range BuiltinPermissions {
		if _, err := s.store.CreatePermission(ctx, p); err != nil && !errors.Is(err, ErrConflict) {
			return fmt.Errorf("seed permission %s: %w", p.ID, err)
		}
	}
	for _, r := range DefaultRoles {
		if _, err := s.store.CreateRole(ctx, r); err != nil && !errors.Is(err, ErrConflict) {
			return fmt.Errorf("seed role %s: %w", r.ID, err)
		}
	}
	if s.bootstrapPassword != "" {
		if err := s.ensureBootstrapAdmin(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ensureBootstrapAdmin creates the configured administrator account unless a
// user with that email already exists. Reruns never touch the existing
// account, so a later password change survives restarts.
func (s *Service) ensureBootstrapAdmin(ctx context.Context) error {
	email := s.bootstrapEmail
	if email == "" {
		email = "admin@" + s.emailDomain
	}
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("look up bootstrap admin: %w", err)
	}
	system := NewPrincipal(User{ID: "system"}, Role{ID: RoleAdmin, Permissions: []string{PermAllModules}})
	_, err := s.CreateUser(ctx, system, User{
		Name:       "Administrator",
		Email:      email,
		RoleID:     RoleAdmin,
		Department: "Administration",
		Phone:      "0000000000",
		Status:     UserStatusActive,
	}, s.bootstrapPassword)
	if err != nil && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("seed bootstrap admin: %w", err)
	}
	return nil
}

// ---- Permission catalog ----

func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

func (s *Service) GetPermission(ctx context.Context, id string) (Permission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Permission{}, fmt.Errorf("%w: permission id is required", ErrInvalidInput)
	}
	return s.store.GetPermission(ctx, id)
}

// CreatePermission adds a permission to the catalog. The id must be a
// lowercase snake_case token; creating an existing id fails with ErrConflict.
func (s *Service) CreatePermission(ctx context.Context, p Permission) (Permission, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = "perm_" + strings.ToLower(ids.New())
	}
	if !permissionIDPattern.MatchString(p.ID) {
		return Permission{}, fmt.Errorf("%w: permission id must be a lowercase snake_case token", ErrInvalidInput)
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Permission{}, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
	}
	if p.Category == "" {
		p.Category = CategorySystem
	}
	if !p.Category.Valid() {
		return Permission{}, fmt.Errorf("%w: unknown permission category %q", ErrInvalidInput, p.Category)
	}
	p.Description = strings.TrimSpace(p.Description)
	return s.store.CreatePermission(ctx, p)
}

func (s *Service) UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (Permission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Permission{}, fmt.Errorf("%w: permission id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Permission{}, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Category != nil && !upd.Category.Valid() {
		return Permission{}, fmt.Errorf("%w: unknown permission category %q", ErrInvalidInput, *upd.Category)
	}
	return s.store.UpdatePermission(ctx, id, upd)
}

// DeletePermission removes the permission from the catalog and from every
// role that references it.
func (s *Service) DeletePermission(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: permission id is required", ErrInvalidInput)
	}
	return s.store.DeletePermission(ctx, id)
}

// ---- Role registry ----

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// ListActiveRoles returns roles whose Active flag is set. Note this is a
// listing convenience only: permission checks do not consult the flag.
func (s *Service) ListActiveRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	active := roles[:0]
	for _, r := range roles {
		if r.Active {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	return s.store.GetRole(ctx, id)
}

// CreateRole registers a role. Ids are generated when absent; referenced
// permission ids are deduplicated but not checked for existence (dangling
// references are tolerated). Role names are not unique.
func (s *Service) CreateRole(ctx context.Context, role Role) (Role, error) {
	role.ID = strings.TrimSpace(role.ID)
	if role.ID == "" {
		role.ID = "role_" + strings.ToLower(ids.New())
	}
	role.Name = strings.TrimSpace(role.Name)
	if role.Name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role.Description = strings.TrimSpace(role.Description)
	role.Permissions = dedupeStrings(role.Permissions)
	role.Active = true
	return s.store.CreateRole(ctx, role)
}

func (s *Service) UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Permissions != nil {
		upd.Permissions = dedupeStrings(upd.Permissions)
	}
	return s.store.UpdateRole(ctx, id, upd)
}

// DeleteRole removes a role. Deleting a system role is warned about, not
// prevented: without force the call returns ErrConfirmRequired and nothing
// is deleted.
func (s *Service) DeleteRole(ctx context.Context, id string, force bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	if IsSystemRole(id) && !force {
		return fmt.Errorf("%w: %s is a system role", ErrConfirmRequired, id)
	}
	return s.store.DeleteRole(ctx, id)
}

// ---- User directory ----

func (s *Service) ListUsers(ctx context.Context, actor Principal, filter UserFilter) ([]User, error) {
	users, err := s.store.ListUsers(ctx, filter)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		for i := range users {
			users[i].CustomPermissions = nil
		}
	}
	return users, nil
}

func (s *Service) GetUser(ctx context.Context, actor Principal, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !actor.IsAdmin() {
		user.CustomPermissions = nil
	}
	return user, nil
}

// CreateUser registers a staff account. The email must belong to the
// organizational domain, the phone is digits-only, and the referenced role
// must exist. Custom permissions may only be set by an admin.
func (s *Service) CreateUser(ctx context.Context, actor Principal, u User, password string) (User, error) {
	var err error
	if u.Name = strings.TrimSpace(u.Name); u.Name == "" {
		return User{}, fmt.Errorf("%w: user name is required", ErrInvalidInput)
	}
	if u.Email, err = s.normalizeEmail(u.Email); err != nil {
		return User{}, err
	}
	if u.Phone, err = normalizePhone(u.Phone); err != nil {
		return User{}, err
	}
	u.Department = strings.TrimSpace(u.Department)
	if u.Department == "" {
		return User{}, fmt.Errorf("%w: department is required", ErrInvalidInput)
	}
	u.RoleID = strings.TrimSpace(u.RoleID)
	if u.RoleID == "" {
		return User{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if _, err := s.store.GetRole(ctx, u.RoleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("%w: role %s does not exist", ErrInvalidInput, u.RoleID)
		}
		return User{}, err
	}
	if u.Status, err = normalizeStatus(u.Status); err != nil {
		return User{}, err
	}
	if len(u.CustomPermissions) > 0 {
		if !actor.IsAdmin() {
			return User{}, fmt.Errorf("%w: only admins may set custom permissions", ErrUnauthorized)
		}
		u.CustomPermissions = dedupeStrings(u.CustomPermissions)
	} else {
		u.CustomPermissions = nil
	}
	if u.PasswordHash, err = hashUserPassword(password); err != nil {
		return User{}, err
	}
	if u.ID = strings.TrimSpace(u.ID); u.ID == "" {
		u.ID = "user_" + strings.ToLower(ids.New())
	}
	return s.store.CreateUser(ctx, u)
}

func (s *Service) UpdateUser(ctx context.Context, actor Principal, id string, upd UserUpdate) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return User{}, fmt.Errorf("%w: user name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Email != nil {
		email, err := s.normalizeEmail(*upd.Email)
		if err != nil {
			return User{}, err
		}
		upd.Email = &email
	}
	if upd.Phone != nil {
		phone, err := normalizePhone(*upd.Phone)
		if err != nil {
			return User{}, err
		}
		upd.Phone = &phone
	}
	if upd.RoleID != nil {
		roleID := strings.TrimSpace(*upd.RoleID)
		if roleID == "" {
			return User{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
		}
		if _, err := s.store.GetRole(ctx, roleID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return User{}, fmt.Errorf("%w: role %s does not exist", ErrInvalidInput, roleID)
			}
			return User{}, err
		}
		upd.RoleID = &roleID
	}
	if upd.Status != nil {
		status, err := normalizeStatus(*upd.Status)
		if err != nil {
			return User{}, err
		}
		upd.Status = &status
	}
	if upd.Password != nil {
		hash, err := hashUserPassword(*upd.Password)
		if err != nil {
			return User{}, err
		}
		upd.Password = &hash
	}
	if upd.CustomPermissions != nil {
		if !actor.IsAdmin() {
			return User{}, fmt.Errorf("%w: only admins may edit custom permissions", ErrUnauthorized)
		}
		upd.CustomPermissions = dedupeStrings(upd.CustomPermissions)
	}
	user, err := s.store.UpdateUser(ctx, id, upd)
	if err != nil {
		return User{}, err
	}
	if !actor.IsAdmin() {
		user.CustomPermissions = nil
	}
	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.DeleteUser(ctx, id)
}

// ToggleUserStatus flips a user between active and inactive.
func (s *Service) ToggleUserStatus(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	next := UserStatusActive
	if user.Status == UserStatusActive {
		next = UserStatusInactive
	}
	return s.store.UpdateUser(ctx, id, UserUpdate{Status: &next})
}

// EffectivePermissions resolves a user's permission set: role permissions
// united with the user's custom permissions. The custom portion is visible
// to admin actors only; everyone else gets the role permissions alone, the
// same rule that hides the CustomPermissions field itself.
func (s *Service) EffectivePermissions(ctx context.Context, actor Principal, userID string) ([]string, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		user.CustomPermissions = nil
	}
	role, err := s.store.GetRole(ctx, user.RoleID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return NewPrincipal(user, role).SortedPermissions(), nil
}

// Authenticate verifies credentials and returns the resolved principal.
// Inactive accounts are rejected.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Principal{}, ErrUnauthorized
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}
	if user.Status != UserStatusActive {
		return Principal{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return Principal{}, ErrUnauthorized
	}
	now := s.now().UTC()
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err == nil {
		user.LastLogin = &now
	}
	return s.PrincipalForUser(ctx, user)
}

// PrincipalForUser resolves the effective permission set for a loaded user.
func (s *Service) PrincipalForUser(ctx context.Context, user User) (Principal, error) {
	role, err := s.store.GetRole(ctx, user.RoleID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Principal{}, err
	}
	return NewPrincipal(user, role), nil
}

// Principal loads a user by id and resolves the effective permission set.
func (s *Service) Principal(ctx context.Context, userID string) (Principal, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	return s.PrincipalForUser(ctx, user)
}

func (s *Service) normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	if !emailLocalPattern.MatchString(email[:at]) {
		return "", fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	if email[at+1:] != s.emailDomain {
		return "", fmt.Errorf("%w: email must use @%s domain", ErrInvalidInput, s.emailDomain)
	}
	return email, nil
}

func normalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", fmt.Errorf("%w: phone number is required", ErrInvalidInput)
	}
	if !phonePattern.MatchString(phone) {
		return "", fmt.Errorf("%w: phone number must contain only digits", ErrInvalidInput)
	}
	return phone, nil
}

func normalizeStatus(status string) (string, error) {
	status = strings.TrimSpace(strings.ToLower(status))
	if status == "" {
		return UserStatusActive, nil
	}
	if status != UserStatusActive && status != UserStatusInactive {
		return "", fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
	}
	return status, nil
}

func hashUserPassword(password string) (string, error) {
	password = strings.TrimSpace(password)
	if len(password) < 6 {
		return "", fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}
	return HashPassword(password)
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
