package mem

import (
	"context"
	"sort"
	"strings"
	"time"

	"bank.com/mop/internal/rbac"
)

func clonePermission(p rbac.Permission) rbac.Permission { return p }

func cloneRole(r rbac.Role) rbac.Role {
	r.Permissions = append([]string(nil), r.Permissions...)
	return r
}

func cloneUser(u rbac.User) rbac.User {
	u.CustomPermissions = append([]string(nil), u.CustomPermissions...)
	if u.LastLogin != nil {
		t := *u.LastLogin
		u.LastLogin = &t
	}
	return u
}

func (s *Store) ListPermissions(context.Context) ([]rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rbac.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, clonePermission(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetPermission(_ context.Context, id string) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.permissions[id]
	if !ok {
		return rbac.Permission{}, rbac.ErrNotFound
	}
	return clonePermission(p), nil
}

func (s *Store) CreatePermission(_ context.Context, p rbac.Permission) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[p.ID]; ok {
		return rbac.Permission{}, rbac.ErrConflict
	}
	now := s.stamp()
	p.CreatedAt, p.UpdatedAt = now, now
	s.permissions[p.ID] = p
	return clonePermission(p), nil
}

func (s *Store) UpdatePermission(_ context.Context, id string, upd rbac.PermissionUpdate) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.permissions[id]
	if !ok {
		return rbac.Permission{}, rbac.ErrNotFound
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
	p.UpdatedAt = s.stamp()
	s.permissions[id] = p
	return clonePermission(p), nil
}

// DeletePermission removes the permission and strips it from every role.
// Under one mutex both changes become visible together.
func (s *Store) DeletePermission(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(s.permissions, id)
	now := s.stamp()
	for rid, role := range s.roles {
		kept := role.Permissions[:0]
		removed := false
		for _, p := range role.Permissions {
			if p == id {
				removed = true
				continue
			}
			kept = append(kept, p)
		}
		if removed {
			role.Permissions = kept
			role.UpdatedAt = now
			s.roles[rid] = role
		}
	}
	return nil
}

func (s *Store) ListRoles(context.Context) ([]rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rbac.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, cloneRole(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetRole(_ context.Context, id string) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	return cloneRole(r), nil
}

func (s *Store) CreateRole(_ context.Context, role rbac.Role) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; ok {
		return rbac.Role{}, rbac.ErrConflict
	}
	now := s.stamp()
	role.CreatedAt, role.UpdatedAt = now, now
	s.roles[role.ID] = cloneRole(role)
	return cloneRole(role), nil
}

func (s *Store) UpdateRole(_ context.Context, id string, upd rbac.RoleUpdate) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	if upd.Permissions != nil {
		r.Permissions = append([]string(nil), upd.Permissions...)
	}
	if upd.Active != nil {
		r.Active = *upd.Active
	}
	r.UpdatedAt = s.stamp()
	s.roles[id] = r
	return cloneRole(r), nil
}

func (s *Store) DeleteRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(s.roles, id)
	return nil
}

func (s *Store) ListUsers(_ context.Context, filter rbac.UserFilter) ([]rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rbac.User, 0, len(s.users))
	for _, u := range s.users {
		if !userMatches(u, filter) {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func userMatches(u rbac.User, f rbac.UserFilter) bool {
	if f.RoleID != "" && u.RoleID != f.RoleID {
		return false
	}
	if f.Status != "" && u.Status != f.Status {
		return false
	}
	if f.Department != "" && !strings.EqualFold(u.Department, f.Department) {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(u.Name), q) &&
			!strings.Contains(strings.ToLower(u.Email), q) &&
			!strings.Contains(strings.ToLower(u.Department), q) {
			return false
		}
	}
	return true
}

func (s *Store) GetUser(_ context.Context, id string) (rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return rbac.User{}, rbac.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return rbac.User{}, rbac.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, u rbac.User) (rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return rbac.User{}, rbac.ErrConflict
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return rbac.User{}, rbac.ErrConflict
		}
	}
	now := s.stamp()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = cloneUser(u)
	return cloneUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, id string, upd rbac.UserUpdate) (rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return rbac.User{}, rbac.ErrNotFound
	}
	if upd.Email != nil && !strings.EqualFold(*upd.Email, u.Email) {
		for oid, other := range s.users {
			if oid != id && strings.EqualFold(other.Email, *upd.Email) {
				return rbac.User{}, rbac.ErrConflict
			}
		}
		u.Email = *upd.Email
	}
	if upd.Name != nil {
		u.Name = *upd.Name
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
		u.CustomPermissions = append([]string(nil), upd.CustomPermissions...)
	}
	u.UpdatedAt = s.stamp()
	s.users[id] = u
	return cloneUser(u), nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return rbac.ErrNotFound
	}
	at = at.UTC()
	u.LastLogin = &at
	s.users[id] = u
	return nil
}
