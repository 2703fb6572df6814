package rbac

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal in-memory Store for service tests. The real
// implementations live in internal/store and have their own tests.
type fakeStore struct {
	permissions map[string]Permission
	roles       map[string]Role
	users       map[string]User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		permissions: map[string]Permission{},
		roles:       map[string]Role{},
		users:       map[string]User{},
	}
}

func (f *fakeStore) ListPermissions(context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(f.permissions))
	for _, p := range f.permissions {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) GetPermission(_ context.Context, id string) (Permission, error) {
	p, ok := f.permissions[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) CreatePermission(_ context.Context, p Permission) (Permission, error) {
	if _, ok := f.permissions[p.ID]; ok {
		return Permission{}, ErrConflict
	}
	f.permissions[p.ID] = p
	return p, nil
}

func (f *fakeStore) UpdatePermission(_ context.Context, id string, upd PermissionUpdate) (Permission, error) {
	p, ok := f.permissions[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	if upd.Active != nil {
		p.Active = *upd.Active
	}
	f.permissions[id] = p
	return p, nil
}

func (f *fakeStore) DeletePermission(_ context.Context, id string) error {
	if _, ok := f.permissions[id]; !ok {
		return ErrNotFound
	}
	delete(f.permissions, id)
	for rid, role := range f.roles {
		kept := role.Permissions[:0]
		for _, p := range role.Permissions {
			if p != id {
				kept = append(kept, p)
			}
		}
		role.Permissions = kept
		f.roles[rid] = role
	}
	return nil
}

func (f *fakeStore) ListRoles(context.Context) ([]Role, error) {
	out := make([]Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) GetRole(_ context.Context, id string) (Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) CreateRole(_ context.Context, role Role) (Role, error) {
	if _, ok := f.roles[role.ID]; ok {
		return Role{}, ErrConflict
	}
	f.roles[role.ID] = role
	return role, nil
}

func (f *fakeStore) UpdateRole(_ context.Context, id string, upd RoleUpdate) (Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	if upd.Permissions != nil {
		r.Permissions = upd.Permissions
	}
	if upd.Active != nil {
		r.Active = *upd.Active
	}
	f.roles[id] = r
	return r, nil
}

func (f *fakeStore) DeleteRole(_ context.Context, id string) error {
	if _, ok := f.roles[id]; !ok {
		return ErrNotFound
	}
	delete(f.roles, id)
	return nil
}

func (f *fakeStore) ListUsers(_ context.Context, filter UserFilter) ([]User, error) {
	out := make([]User, 0, len(f.users))
	for _, u := range f.users {
		if filter.RoleID != "" && u.RoleID != filter.RoleID {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (User, error) {
	u, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (f *fakeStore) CreateUser(_ context.Context, u User) (User, error) {
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return User{}, ErrConflict
		}
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, id string, upd UserUpdate) (User, error) {
	u, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.RoleID != nil {
		u.RoleID = *upd.RoleID
	}
	if upd.Department != nil {
		u.Department = *upd.Department
	}
	if upd.Phone != nil {
		u.Phone = *upd.Phone
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	if upd.Password != nil {
		u.PasswordHash = *upd.Password
	}
	if upd.CustomPermissions != nil {
		u.CustomPermissions = upd.CustomPermissions
	}
	f.users[id] = u
	return u, nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	u, ok := f.users[id]
	if !ok {
		return ErrNotFound
	}
	u.LastLogin = &at
	f.users[id] = u
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	svc, err := NewService(store)
	require.NoError(t, err)
	require.NoError(t, svc.EnsureDefaults(context.Background()))
	return svc, store
}

func adminPrincipal() Principal {
	return NewPrincipal(User{ID: "user_admin", RoleID: RoleAdmin}, DefaultRoles[0])
}

func officerPrincipal() Principal {
	return NewPrincipal(User{ID: "user_officer", RoleID: RoleOnboardingOfficer}, DefaultRoles[1])
}

func TestEnsureDefaultsIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	require.NoError(t, svc.EnsureDefaults(context.Background()))
	require.Len(t, store.permissions, len(BuiltinPermissions))
	require.Len(t, store.roles, len(DefaultRoles))
}

func TestEnsureDefaultsSeedsBootstrapAdmin(t *testing.T) {
	store := newFakeStore()
	svc, err := NewService(store, WithBootstrapAdmin("", "first-secret"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, svc.EnsureDefaults(ctx))

	p, err := svc.Authenticate(ctx, "admin@bank.com", "first-secret")
	require.NoError(t, err, "a fresh deployment must have a way to log in")
	require.Equal(t, RoleAdmin, p.Role.ID)
	require.True(t, p.HasPermission(PermUserManagement))

	// A rerun must not recreate the account or reset its password.
	hash := store.users[p.User.ID].PasswordHash
	require.NoError(t, svc.EnsureDefaults(ctx))
	require.Equal(t, hash, store.users[p.User.ID].PasswordHash)
}

func TestEnsureDefaultsSkipsBootstrapWithoutPassword(t *testing.T) {
	store := newFakeStore()
	svc, err := NewService(store, WithBootstrapAdmin("admin@bank.com", ""))
	require.NoError(t, err)
	require.NoError(t, svc.EnsureDefaults(context.Background()))
	require.Empty(t, store.users)
}

func TestCreatePermissionValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreatePermission(ctx, Permission{ID: "sanctions_screening"})
	require.ErrorIs(t, err, ErrInvalidInput, "name is required")

	_, err = svc.CreatePermission(ctx, Permission{ID: "Sanctions Screening", Name: "Sanctions Screening"})
	require.ErrorIs(t, err, ErrInvalidInput, "id must be snake_case")

	p, err := svc.CreatePermission(ctx, Permission{ID: "sanctions_screening", Name: "Sanctions Screening", Category: CategoryCase})
	require.NoError(t, err)
	require.Equal(t, "sanctions_screening", p.ID)

	_, err = svc.CreatePermission(ctx, Permission{ID: "sanctions_screening", Name: "Duplicate"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestCreatePermissionGeneratesID(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.CreatePermission(context.Background(), Permission{Name: "Ad Hoc"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(p.ID, "perm_"))
	require.Equal(t, CategorySystem, p.Category)
}

func TestDeletePermissionCascades(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.DeletePermission(ctx, PermCaseView))

	for id, role := range store.roles {
		require.NotContains(t, role.Permissions, PermCaseView, "role %s still references the deleted permission", id)
	}
	_, err := svc.GetPermission(ctx, PermCaseView)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRoleDeduplicatesPermissions(t *testing.T) {
	svc, _ := newTestService(t)

	role, err := svc.CreateRole(context.Background(), Role{
		Name:        "Auditor",
		Permissions: []string{PermCaseView, PermCaseView, " ", PermRiskAssessment},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(role.ID, "role_"))
	require.Equal(t, []string{PermCaseView, PermRiskAssessment}, role.Permissions)
	require.True(t, role.Active)
}

func TestCreateRoleToleratesDanglingPermission(t *testing.T) {
	svc, _ := newTestService(t)

	role, err := svc.CreateRole(context.Background(), Role{
		Name:        "Future Auditor",
		Permissions: []string{"permission_not_yet_registered"},
	})
	require.NoError(t, err)
	require.Contains(t, role.Permissions, "permission_not_yet_registered")
}

func TestDeleteSystemRoleNeedsConfirmation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	err := svc.DeleteRole(ctx, RoleVerifier, false)
	require.ErrorIs(t, err, ErrConfirmRequired)
	require.Contains(t, store.roles, RoleVerifier, "role must survive an unconfirmed delete")

	require.NoError(t, svc.DeleteRole(ctx, RoleVerifier, true))
	require.NotContains(t, store.roles, RoleVerifier)
}

func TestDeleteCustomRoleNeedsNoConfirmation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, Role{Name: "Temp"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRole(ctx, role.ID, false))
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := adminPrincipal()

	base := User{
		Name:       "Aidana Seitkali",
		Email:      "aidana.seitkali@bank.com",
		RoleID:     RoleOnboardingOfficer,
		Department: "Onboarding",
		Phone:      "+77011234567",
	}

	for name, mutate := range map[string]func(User) User{
		"foreign email domain": func(u User) User { u.Email = "aidana@gmail.com"; return u },
		"malformed email":      func(u User) User { u.Email = "@bank.com"; return u },
		"letters in phone":     func(u User) User { u.Phone = "+7701abc"; return u },
		"missing department":   func(u User) User { u.Department = " "; return u },
		"missing role":         func(u User) User { u.RoleID = ""; return u },
		"unknown role":         func(u User) User { u.RoleID = "role_missing"; return u },
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, admin, mutate(base), "secret6")
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := svc.CreateUser(ctx, admin, base, "short")
	require.ErrorIs(t, err, ErrInvalidInput, "password must be at least 6 characters")

	created, err := svc.CreateUser(ctx, admin, base, "secret6")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(created.ID, "user_"))
	require.Equal(t, UserStatusActive, created.Status)
	require.NoError(t, VerifyPassword(created.PasswordHash, "secret6"))

	_, err = svc.CreateUser(ctx, admin, base, "secret6")
	require.ErrorIs(t, err, ErrConflict, "duplicate email")
}

func TestCustomPermissionsAdminOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u := User{
		Name:              "Miras Bekov",
		Email:             "miras.bekov@bank.com",
		RoleID:            RoleVerifier,
		Department:        "Verification",
		Phone:             "77017654321",
		CustomPermissions: []string{PermComplianceCheck},
	}

	_, err := svc.CreateUser(ctx, officerPrincipal(), u, "secret6")
	require.ErrorIs(t, err, ErrUnauthorized)

	created, err := svc.CreateUser(ctx, adminPrincipal(), u, "secret6")
	require.NoError(t, err)
	require.Equal(t, []string{PermComplianceCheck}, created.CustomPermissions)

	_, err = svc.UpdateUser(ctx, officerPrincipal(), created.ID, UserUpdate{CustomPermissions: []string{PermAllModules}})
	require.ErrorIs(t, err, ErrUnauthorized)

	got, err := svc.GetUser(ctx, officerPrincipal(), created.ID)
	require.NoError(t, err)
	require.Nil(t, got.CustomPermissions, "custom permissions hidden from non-admins")

	got, err = svc.GetUser(ctx, adminPrincipal(), created.ID)
	require.NoError(t, err)
	require.Equal(t, []string{PermComplianceCheck}, got.CustomPermissions)
}

func TestToggleUserStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, adminPrincipal(), User{
		Name:       "Dana Omar",
		Email:      "dana.omar@bank.com",
		RoleID:     RoleComplianceReviewer,
		Department: "Compliance",
		Phone:      "77010000001",
	}, "secret6")
	require.NoError(t, err)

	toggled, err := svc.ToggleUserStatus(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, UserStatusInactive, toggled.Status)

	toggled, err = svc.ToggleUserStatus(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, UserStatusActive, toggled.Status)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, adminPrincipal(), User{
		Name:       "Erlan Kozhabek",
		Email:      "erlan.kozhabek@bank.com",
		RoleID:     RoleOnboardingOfficer,
		Department: "Onboarding",
		Phone:      "77010000002",
	}, "secret6")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, created.Email, "wrong-password")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Authenticate(ctx, "nobody@bank.com", "secret6")
	require.ErrorIs(t, err, ErrUnauthorized)

	p, err := svc.Authenticate(ctx, "Erlan.Kozhabek@bank.com", "secret6")
	require.NoError(t, err)
	require.Equal(t, created.ID, p.User.ID)
	require.NotNil(t, p.User.LastLogin)
	require.True(t, p.HasPermission(PermCaseCreation))
	require.False(t, p.HasPermission(PermCaseManagement))

	_, err = svc.ToggleUserStatus(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, created.Email, "secret6")
	require.ErrorIs(t, err, ErrUnauthorized, "inactive accounts cannot log in")
}

func TestEffectivePermissionsSurviveDanglingRole(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, adminPrincipal(), User{
		Name:              "Saule Akhmetova",
		Email:             "saule.akhmetova@bank.com",
		RoleID:            RoleVerifier,
		Department:        "Verification",
		Phone:             "77010000003",
		CustomPermissions: []string{PermCaseView},
	}, "secret6")
	require.NoError(t, err)

	delete(store.roles, RoleVerifier)

	perms, err := svc.EffectivePermissions(ctx, adminPrincipal(), created.ID)
	require.NoError(t, err)
	require.Equal(t, []string{PermCaseView}, perms, "custom permissions remain when the role is gone")
}

func TestEffectivePermissionsHideCustomGrantsFromNonAdmins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, adminPrincipal(), User{
		Name:              "Aidos Serik",
		Email:             "aidos.serik@bank.com",
		RoleID:            RoleVerifier,
		Department:        "Verification",
		Phone:             "77010000004",
		CustomPermissions: []string{PermComplianceCheck},
	}, "secret6")
	require.NoError(t, err)

	perms, err := svc.EffectivePermissions(ctx, adminPrincipal(), created.ID)
	require.NoError(t, err)
	require.Contains(t, perms, PermComplianceCheck)

	perms, err = svc.EffectivePermissions(ctx, officerPrincipal(), created.ID)
	require.NoError(t, err)
	require.NotContains(t, perms, PermComplianceCheck,
		"the effective set must not reveal custom grants the field-level rule hides")
	require.Contains(t, perms, PermBackgroundCheck)
}
