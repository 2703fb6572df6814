package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bank.com/mop/internal/rbac"
)

func (s *Store) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, category, is_active, created_at, updated_at
		from permissions
		order by id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetPermission(ctx context.Context, id string) (rbac.Permission, error) {
	var p rbac.Permission
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, category, is_active, created_at, updated_at
		from permissions
		where id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Permission{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Permission{}, err
	}
	return p, nil
}

func (s *Store) CreatePermission(ctx context.Context, p rbac.Permission) (rbac.Permission, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into permissions (id, name, description, category, is_active)
		values ($1, $2, $3, $4, $5)
		returning id, name, description, category, is_active, created_at, updated_at
	`, p.ID, p.Name, p.Description, p.Category, p.Active)
	var created rbac.Permission
	if err := row.Scan(&created.ID, &created.Name, &created.Description, &created.Category, &created.Active, &created.CreatedAt, &created.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return rbac.Permission{}, rbac.ErrConflict
		}
		return rbac.Permission{}, err
	}
	return created, nil
}

func (s *Store) UpdatePermission(ctx context.Context, id string, upd rbac.PermissionUpdate) (rbac.Permission, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	if upd.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", idx))
		args = append(args, *upd.Description)
		idx++
	}
	if upd.Category != nil {
		setClauses = append(setClauses, fmt.Sprintf("category = $%d", idx))
		args = append(args, *upd.Category)
		idx++
	}
	if upd.Active != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", idx))
		args = append(args, *upd.Active)
		idx++
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update permissions set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return rbac.Permission{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return rbac.Permission{}, err
		}
		if aff == 0 {
			return rbac.Permission{}, rbac.ErrNotFound
		}
	}
	return s.GetPermission(ctx, id)
}

// DeletePermission removes the permission row and strips the id from every
// role in one transaction. role_permissions carries no foreign key to
// permissions (dangling references are tolerated on the way in), so the
// strip is explicit.
func (s *Store) DeletePermission(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `delete from permissions where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where permission_id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.is_active, r.created_at, r.updated_at,
		       coalesce(json_agg(rp.permission_id order by rp.permission_id)
		                filter (where rp.permission_id is not null), '[]')
		from roles r
		left join role_permissions rp on rp.role_id = r.id
		group by r.id
		order by r.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rbac.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (rbac.Role, error) {
	var (
		role     rbac.Role
		rawPerms []byte
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Active, &role.CreatedAt, &role.UpdatedAt, &rawPerms); err != nil {
		return rbac.Role{}, err
	}
	role.Permissions = []string{}
	if len(rawPerms) > 0 {
		if err := json.Unmarshal(rawPerms, &role.Permissions); err != nil {
			return rbac.Role{}, fmt.Errorf("decode role permissions: %w", err)
		}
	}
	return role, nil
}

func (s *Store) GetRole(ctx context.Context, id string) (rbac.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		select r.id, r.name, r.description, r.is_active, r.created_at, r.updated_at,
		       coalesce(json_agg(rp.permission_id order by rp.permission_id)
		                filter (where rp.permission_id is not null), '[]')
		from roles r
		left join role_permissions rp on rp.role_id = r.id
		where r.id = $1
		group by r.id
	`, id)
	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.Role{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.Role{}, err
	}
	return role, nil
}

func (s *Store) CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rbac.Role{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into roles (id, name, description, is_active)
		values ($1, $2, $3, $4)
	`, role.ID, role.Name, role.Description, role.Active); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return rbac.Role{}, rbac.ErrConflict
		}
		return rbac.Role{}, err
	}
	if err := insertRolePermissions(ctx, tx, role.ID, role.Permissions); err != nil {
		return rbac.Role{}, err
	}
	if err := tx.Commit(); err != nil {
		return rbac.Role{}, err
	}
	return s.GetRole(ctx, role.ID)
}

// insertRolePermissions tolerates permission ids absent from the catalog:
// unknown ids are kept as dangling references, mirroring the registry
// contract, so they go in without a foreign key check failing the batch.
func insertRolePermissions(ctx context.Context, tx *sql.Tx, roleID string, permissions []string) error {
	for _, pid := range permissions {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			values ($1, $2)
			on conflict do nothing
		`, roleID, pid); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, upd rbac.RoleUpdate) (rbac.Role, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rbac.Role{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `select true from roles where id = $1 for update`, id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rbac.Role{}, rbac.ErrNotFound
		}
		return rbac.Role{}, err
	}

	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	if upd.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", idx))
		args = append(args, *upd.Description)
		idx++
	}
	if upd.Active != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", idx))
		args = append(args, *upd.Active)
		idx++
	}
	setClauses = append(setClauses, "updated_at = now()")
	query := fmt.Sprintf(`update roles set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
	args = append(args, id)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return rbac.Role{}, err
	}

	if upd.Permissions != nil {
		if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, id); err != nil {
			return rbac.Role{}, err
		}
		if err := insertRolePermissions(ctx, tx, id, upd.Permissions); err != nil {
			return rbac.Role{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return rbac.Role{}, err
	}
	return s.GetRole(ctx, id)
}

func (s *Store) DeleteRole(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

const userColumns = `id, name, email, role_id, department, phone, status, custom_permissions, password_hash, last_login, created_at, updated_at`

func scanUser(row rowScanner) (rbac.User, error) {
	var (
		u         rbac.User
		rawCustom []byte
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.RoleID, &u.Department, &u.Phone, &u.Status, &rawCustom, &u.PasswordHash, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return rbac.User{}, err
	}
	if len(rawCustom) > 0 {
		if err := json.Unmarshal(rawCustom, &u.CustomPermissions); err != nil {
			return rbac.User{}, fmt.Errorf("decode custom permissions: %w", err)
		}
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, filter rbac.UserFilter) ([]rbac.User, error) {
	var (
		conds []string
		args  []any
		idx   = 1
	)
	if filter.RoleID != "" {
		conds = append(conds, fmt.Sprintf("role_id = $%d", idx))
		args = append(args, filter.RoleID)
		idx++
	}
	if filter.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.Department != "" {
		conds = append(conds, fmt.Sprintf("lower(department) = lower($%d)", idx))
		args = append(args, filter.Department)
		idx++
	}
	if filter.Query != "" {
		conds = append(conds, fmt.Sprintf("(name ilike $%d or email ilike $%d or department ilike $%d)", idx, idx, idx))
		args = append(args, "%"+filter.Query+"%")
		idx++
	}
	query := `select ` + userColumns + ` from users`
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}
	query += " order by id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []rbac.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (rbac.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.User{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (rbac.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where lower(email) = lower($1)`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.User{}, rbac.ErrNotFound
	}
	if err != nil {
		return rbac.User{}, err
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u rbac.User) (rbac.User, error) {
	custom, err := json.Marshal(u.CustomPermissions)
	if err != nil {
		return rbac.User{}, fmt.Errorf("marshal custom permissions: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, name, email, role_id, department, phone, status, custom_permissions, password_hash)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning `+userColumns+`
	`, u.ID, u.Name, u.Email, u.RoleID, u.Department, u.Phone, u.Status, custom, u.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return rbac.User{}, rbac.ErrConflict
			case pgErrForeignKeyViolation:
				return rbac.User{}, rbac.ErrNotFound
			}
		}
		return rbac.User{}, err
	}
	return created, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd rbac.UserUpdate) (rbac.User, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	add := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.RoleID != nil {
		add("role_id", *upd.RoleID)
	}
	if upd.Department != nil {
		add("department", *upd.Department)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Password != nil {
		add("password_hash", *upd.Password)
	}
	if upd.CustomPermissions != nil {
		custom, err := json.Marshal(upd.CustomPermissions)
		if err != nil {
			return rbac.User{}, fmt.Errorf("marshal custom permissions: %w", err)
		}
		add("custom_permissions", custom)
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok {
				switch pgErr.Code {
				case pgErrUniqueViolation:
					return rbac.User{}, rbac.ErrConflict
				case pgErrForeignKeyViolation:
					return rbac.User{}, rbac.ErrNotFound
				}
			}
			return rbac.User{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return rbac.User{}, err
		}
		if aff == 0 {
			return rbac.User{}, rbac.ErrNotFound
		}
	}
	return s.GetUser(ctx, id)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `update users set last_login = $2 where id = $1`, id, at.UTC())
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}
