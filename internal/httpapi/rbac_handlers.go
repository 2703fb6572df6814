package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"bank.com/mop/internal/rbac"
)

type createPermissionRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type updatePermissionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Active      *bool   `json:"is_active"`
}

type createRoleRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type updateRoleRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
	Active      *bool    `json:"is_active"`
}

type createUserRequest struct {
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Password          string   `json:"password"`
	RoleID            string   `json:"role_id"`
	Department        string   `json:"department"`
	Phone             string   `json:"phone"`
	Status            string   `json:"status"`
	CustomPermissions []string `json:"custom_permissions"`
}

type updateUserRequest struct {
	Name              *string  `json:"name"`
	Email             *string  `json:"email"`
	Password          *string  `json:"password"`
	RoleID            *string  `json:"role_id"`
	Department        *string  `json:"department"`
	Phone             *string  `json:"phone"`
	Status            *string  `json:"status"`
	CustomPermissions []string `json:"custom_permissions"`
}

// --- permissions ---

func (a *API) handlePermissionsCollection(w http.ResponseWriter, r *http.Request) {
	if a.rbac == nil {
		writeError(w, r, http.StatusServiceUnavailable, "access control unavailable")
		return
	}
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.principal(w, r); !ok {
			return
		}
		list, err := a.rbac.ListPermissions(r.Context())
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		if _, ok := a.ensurePermissions(w, r, rbac.PermPermissionManagement); !ok {
			return
		}
		var req createPermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perm, err := a.rbac.CreatePermission(r.Context(), rbac.Permission{
			ID:          req.ID,
			Name:        req.Name,
			Description: req.Description,
			Category:    rbac.Category(req.Category),
		})
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.permission.create", "permission", perm.ID, map[string]string{
			"name": perm.Name,
		})
		w.Header().Set("Location", "/v1/permissions/"+perm.ID)
		writeJSON(w, http.StatusCreated, perm)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handlePermissionResource(w http.ResponseWriter, r *http.Request) {
	if a.rbac == nil {
		writeError(w, r, http.StatusServiceUnavailable, "access control unavailable")
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/permissions/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if _, ok := a.principal(w, r); !ok {
			return
		}
		perm, err := a.rbac.GetPermission(r.Context(), id)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, perm)
	case http.MethodPatch:
		if _, ok := a.ensurePermissions(w, r, rbac.PermPermissionManagement); !ok {
			return
		}
		var req updatePermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		upd := rbac.PermissionUpdate{
			Name:        req.Name,
			Description: req.Description,
			Active:      req.Active,
		}
		if req.Category != nil {
			cat := rbac.Category(*req.Category)
			upd.Category = &cat
		}
		perm, err := a.rbac.UpdatePermission(r.Context(), id, upd)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.permission.update", "permission", perm.ID, nil)
		writeJSON(w, http.StatusOK, perm)
	case http.MethodDelete:
		if _, ok := a.ensurePermissions(w, r, rbac.PermPermissionManagement); !ok {
			return
		}
		if err := a.rbac.DeletePermission(r.Context(), id); err != nil {
			handleRBACError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.permission.delete", "permission", id, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

// --- roles ---

func (a *API) handleRolesCollection(w http.ResponseWriter, r *http.Request) {
	if a.rbac == nil {
		writeError(w, r, http.StatusServiceUnavailable, "access control unavailable")
		return
	}
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.principal(w, r); !ok {
			return
		}
		var (
			list []rbac.Role
			err  error
		)
		if r.URL.Query().Get("active") == "true" {
			list, err = a.rbac.ListActiveRoles(r.Context())
		} else {
			list, err = a.rbac.ListRoles(r.Context())
		}
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		if _, ok := a.ensurePermissions(w, r, rbac.PermRoleManagement); !ok {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.CreateRole(r.Context(), rbac.Role{
			ID:          req.ID,
			Name:        req.Name,
			Description: req.Description,
			Permissions: req.Permissions,
		})
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.role.create", "role", role.ID, map[string]string{
			"name": role.Name,
		})
		w.Header().Set("Location", "/v1/roles/"+role.ID)
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	if a.rbac == nil {
		writeError(w, r, http.StatusServiceUnavailable, "access control unavailable")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	// /v1/roles/{id}/has-permission/{perm}
	if len(parts) == 3 && parts[1] == "has-permission" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		if _, ok := a.principal(w, r); !ok {
			return
		}
		allowed, err := a.evaluator.HasPermission(r.Context(), parts[0], parts[2])
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"role_id":    parts[0],
			"permission": parts[2],
			"allowed":    allowed,
		})
		return
	}

	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodGet:
		if _, ok := a.principal(w, r); !ok {
			return
		}
		role, err := a.rbac.GetRole(r.Context(), id)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPatch:
		if _, ok := a.ensurePermissions(w, r, rbac.PermRoleManagement); !ok {
			return
		}
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.UpdateRole(r.Context(), id, rbac.RoleUpdate{
			Name:        req.Name,
			Description: req.Description,
			Permissions: req.Permissions,
			Active:      req.Active,
		})
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.role.update", "role", role.ID, nil)
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if _, ok := a.ensurePermissions(w, r, rbac.PermRoleManagement); !ok {
			return
		}
		force := r.URL.Query().Get("force") == "true"
		if err := a.rbac.DeleteRole(r.Context(), id, force); err != nil {
			handleRBACError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.role.delete", "role", id, map[string]string{
			"force": fmt.Sprintf("%t", force),
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

// --- users ---

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	if a.rbac == nil {
		writeError(w, r, http.StatusServiceUnavailable, "access control unavailable")
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, ok := a.ensurePermissions(w, r, rbac.PermUserManagement)
		if !ok {
			return
		}
		q := r.URL.Query()
		list, err := a.rbac.ListUsers(r.Context(), p, rbac.UserFilter{
			Query:      q.Get("q"),
			RoleID:     q.Get("role_id"),
			Status:     q.Get("status"),
			Department: q.Get("department"),
		})
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		p, ok := a.ensurePermissions(w, r, rbac.PermUserManagement)
		if !ok {
			return
		}
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.rbac.CreateUser(r.Context(), p, rbac.User{
			Name:              req.Name,
			Email:             req.Email,
			RoleID:            req.RoleID,
			Department:        req.Department,
			Phone:             req.Phone,
			Status:            req.Status,
			CustomPermissions: req.CustomPermissions,
		}, req.Password)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.user.create", "user", user.ID, map[string]string{
			"email":   user.Email,
			"role_id": user.RoleID,
		})
		w.Header().Set("Location", "/v1/users/"+user.ID)
		writeJSON(w, http.StatusCreated, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	if a.rbac == nil {
		writeError(w, r, http.StatusServiceUnavailable, "access control unavailable")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	if len(parts) == 2 {
		switch parts[1] {
		case "toggle-status":
			a.toggleUserStatus(w, r, parts[0])
		case "permissions":
			a.effectivePermissions(w, r, parts[0])
		default:
			writeError(w, r, http.StatusNotFound, "resource not found")
		}
		return
	}
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodGet:
		p, ok := a.ensurePermissions(w, r, rbac.PermUserManagement)
		if !ok {
			return
		}
		user, err := a.rbac.GetUser(r.Context(), p, id)
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPatch:
		p, ok := a.ensurePermissions(w, r, rbac.PermUserManagement)
		if !ok {
			return
		}
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.rbac.UpdateUser(r.Context(), p, id, rbac.UserUpdate{
			Name:              req.Name,
			Email:             req.Email,
			Password:          req.Password,
			RoleID:            req.RoleID,
			Department:        req.Department,
			Phone:             req.Phone,
			Status:            req.Status,
			CustomPermissions: req.CustomPermissions,
		})
		if err != nil {
			handleRBACError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.user.update", "user", user.ID, nil)
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if _, ok := a.ensurePermissions(w, r, rbac.PermUserManagement); !ok {
			return
		}
		if err := a.rbac.DeleteUser(r.Context(), id); err != nil {
			handleRBACError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.user.delete", "user", id, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) toggleUserStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.ensurePermissions(w, r, rbac.PermUserManagement); !ok {
		return
	}
	user, err := a.rbac.ToggleUserStatus(r.Context(), id)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	a.audit(r.Context(), "rbac.user.toggle_status", "user", user.ID, map[string]string{
		"status": user.Status,
	})
	writeJSON(w, http.StatusOK, user)
}

func (a *API) effectivePermissions(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.ensurePermissions(w, r, rbac.PermUserManagement)
	if !ok {
		return
	}
	perms, err := a.rbac.EffectivePermissions(r.Context(), p, id)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     id,
		"permissions": perms,
	})
}
