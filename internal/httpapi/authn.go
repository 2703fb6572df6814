package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"bank.com/mop/internal/rbac"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/openapi.yaml",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.tokens == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.tokens.Verify(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		principal, err := a.rbac.Principal(r.Context(), claims.Subject)
		if err != nil {
			switch {
			case errors.Is(err, rbac.ErrNotFound), errors.Is(err, rbac.ErrUnauthorized):
				writeError(w, r, http.StatusUnauthorized, "session no longer valid")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}
		if principal.User.Status != rbac.UserStatusActive {
			writeError(w, r, http.StatusUnauthorized, "account is inactive")
			return
		}

		next.ServeHTTP(w, r.WithContext(rbac.WithPrincipal(r.Context(), principal)))
	})
}

// principal returns the authenticated caller, or responds 401 and reports
// ok=false when the request carries none.
func (a *API) principal(w http.ResponseWriter, r *http.Request) (rbac.Principal, bool) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return rbac.Principal{}, false
	}
	return p, true
}

// ensurePermissions answers 403 and reports false unless the caller holds at
// least one of the listed permissions (the all_modules wildcard always
// passes).
func (a *API) ensurePermissions(w http.ResponseWriter, r *http.Request, perms ...string) (rbac.Principal, bool) {
	p, ok := a.principal(w, r)
	if !ok {
		return rbac.Principal{}, false
	}
	if !p.HasAnyPermission(perms...) {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return rbac.Principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
