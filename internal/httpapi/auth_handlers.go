package httpapi

import (
	"net/http"
	"strings"
	"time"

	"bank.com/mop/internal/rbac"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        rbac.User `json:"user"`
	Role        rbac.Role `json:"role"`
	Permissions []string  `json:"permissions"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	principal, err := a.rbac.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		// One answer for every failure mode, so login does not leak which
		// accounts exist.
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := a.tokens.Issue(principal)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	a.audit(r.Context(), "auth.login", "user", principal.User.ID, map[string]string{
		"email":      principal.User.Email,
		"role_id":    principal.Role.ID,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:       token,
		ExpiresAt:   expiresAt,
		User:        principal.User,
		Role:        principal.Role,
		Permissions: principal.SortedPermissions(),
	})
}

// handleLogout is bookkeeping only: tokens are stateless and expire on
// their own, so the server just records the event.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	a.audit(r.Context(), "auth.logout", "user", p.User.ID, nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        p.User,
		"role":        p.Role,
		"permissions": p.SortedPermissions(),
	})
}
