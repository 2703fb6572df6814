package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"bank.com/mop/internal/cases"
	"bank.com/mop/internal/notify"
	"bank.com/mop/internal/params"
	"bank.com/mop/internal/rbac"
	"bank.com/mop/internal/store/mem"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

const testPassword = "secret123"

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	store := mem.New()
	svc, err := rbac.NewService(store)
	if err != nil {
		t.Fatalf("rbac service: %v", err)
	}
	if err := svc.EnsureDefaults(context.Background()); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}

	events := notify.New()
	wf, err := cases.NewWorkflow(store, cases.WithNotifier(events))
	if err != nil {
		t.Fatalf("workflow: %v", err)
	}
	prm, err := params.NewService(store)
	if err != nil {
		t.Fatalf("params service: %v", err)
	}
	tokens, err := rbac.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}

	seedUsers(t, svc)

	api := New(Deps{
		RBAC:       svc,
		Tokens:     tokens,
		Workflow:   wf,
		Params:     prm,
		Stream:     events,
		Version:    "test",
		RateBurst:  1000,
		RatePerSec: 1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func seedUsers(t *testing.T, svc *rbac.Service) {
	t.Helper()
	admin := rbac.NewPrincipal(rbac.User{ID: "seed"}, rbac.Role{ID: rbac.RoleAdmin, Permissions: []string{rbac.PermAllModules}})
	accounts := []rbac.User{
		{Name: "Ava Admin", Email: "ava@bank.com", RoleID: rbac.RoleAdmin, Department: "IT"},
		{Name: "Omar Officer", Email: "omar@bank.com", RoleID: rbac.RoleOnboardingOfficer, Department: "Onboarding"},
		{Name: "Rita Reviewer", Email: "rita@bank.com", RoleID: rbac.RoleComplianceReviewer, Department: "Compliance"},
		{Name: "Vik Verifier", Email: "vik@bank.com", RoleID: rbac.RoleVerifier, Department: "Verification"},
	}
	for _, u := range accounts {
		if _, err := svc.CreateUser(context.Background(), admin, u, testPassword); err != nil {
			t.Fatalf("seed user %s: %v", u.Email, err)
		}
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) login(email string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": testPassword,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: unexpected status %d", email, resp.StatusCode)
	}
	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode login response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func auth(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func completeCaseBody(submit bool) map[string]any {
	return map[string]any{
		"business_name":       "Acme Trading",
		"business_type":       "Private Limited Company",
		"registration_number": "REG-1001",
		"merchant_category":   "Electronics",
		"business_address":    "1 Commerce Street",
		"director_name":       "Dana Director",
		"director_ic":         "900101105678",
		"director_phone":      "60123456789",
		"director_email":      "dana@acme.example",
		"submit":              submit,
	}
}

func TestLoginAndMe(t *testing.T) {
	api := newTestAPI(t)

	token := api.login("ava@bank.com")
	resp := api.get("/v1/auth/me", nil, auth(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", resp.StatusCode)
	}
	payload := decode[struct {
		User        rbac.User `json:"user"`
		Permissions []string  `json:"permissions"`
	}](t, resp)
	if payload.User.Email != "ava@bank.com" {
		t.Fatalf("unexpected user %q", payload.User.Email)
	}
	found := false
	for _, p := range payload.Permissions {
		if p == rbac.PermAllModules {
			found = true
		}
	}
	if !found {
		t.Fatalf("admin permissions missing all_modules: %v", payload.Permissions)
	}
}

// newBareAPI starts a server whose only accounts come from EnsureDefaults,
// mirroring a fresh deployment.
func newBareAPI(t *testing.T, opts ...rbac.ServiceOption) *apiClient {
	t.Helper()

	store := mem.New()
	svc, err := rbac.NewService(store, opts...)
	if err != nil {
		t.Fatalf("rbac service: %v", err)
	}
	if err := svc.EnsureDefaults(context.Background()); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}
	tokens, err := rbac.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}

	api := New(Deps{
		RBAC:       svc,
		Tokens:     tokens,
		Version:    "test",
		RateBurst:  1000,
		RatePerSec: 1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{baseURL: srv.URL, client: srv.Client(), t: t}
}

func TestFreshDeploymentIsLockedOutWithoutBootstrap(t *testing.T) {
	api := newBareAPI(t)

	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "admin@bank.com",
		"password": testPassword,
	}, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login without any seeded account: expected 401, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/users", map[string]any{"name": "x"}, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated user create: expected 401, got %d", resp.StatusCode)
	}
}

func TestBootstrapAdminFirstLogin(t *testing.T) {
	api := newBareAPI(t, rbac.WithBootstrapAdmin("admin@bank.com", testPassword))

	token := api.login("admin@bank.com")

	resp := api.post("/v1/users", map[string]any{
		"name":       "Omar Officer",
		"email":      "omar.officer@bank.com",
		"password":   testPassword,
		"role_id":    rbac.RoleOnboardingOfficer,
		"department": "Onboarding",
		"phone":      "60123456780",
	}, auth(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("bootstrap admin should be able to create users, got %d", resp.StatusCode)
	}

	api.login("omar.officer@bank.com")
}

func TestLoginRejectsBadPassword(t *testing.T) {
	api := newTestAPI(t)
	resp := api.post("/v1/auth/login", map[string]any{
		"email":    "ava@bank.com",
		"password": "wrong-password",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAPIEnforcesAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/cases", nil, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = api.get("/healthz", nil, nil)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz should be public, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/cases", nil, auth("not-a-token"))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp.StatusCode)
	}
}

func TestCaseLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	officer := api.login("omar@bank.com")
	reviewer := api.login("rita@bank.com")

	resp := api.post("/v1/cases", completeCaseBody(true), auth(officer))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	created := decode[cases.Case](t, resp)
	if !strings.HasPrefix(created.ID, "MOP-") {
		t.Fatalf("unexpected case id %q", created.ID)
	}
	if created.Status != cases.StatusPendingReview {
		t.Fatalf("submitted case should be pending review, got %q", created.Status)
	}

	// Officers cannot approve.
	resp = api.post("/v1/cases/"+created.ID+"/approve", nil, auth(officer))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("officer approve: expected 403, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/cases/"+created.ID+"/approve", nil, auth(reviewer))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reviewer approve: expected 200, got %d", resp.StatusCode)
	}
	approved := decode[cases.Case](t, resp)
	if approved.Status != cases.StatusApproved {
		t.Fatalf("expected approved, got %q", approved.Status)
	}

	resp = api.get("/v1/cases/"+created.ID+"/history", nil, auth(officer))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", resp.StatusCode)
	}
	payload := decode[struct {
		History []cases.HistoryEntry `json:"history"`
	}](t, resp)
	if len(payload.History) == 0 || payload.History[0].Action != "Case approved" {
		t.Fatalf("expected newest-first history with approval, got %+v", payload.History)
	}

	// Terminal: further transitions conflict.
	resp = api.post("/v1/cases/"+created.ID+"/reject", map[string]any{"reason": "late"}, auth(reviewer))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("reject after approve: expected 409, got %d", resp.StatusCode)
	}
}

func TestDraftSubmitValidationOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	officer := api.login("omar@bank.com")

	resp := api.post("/v1/cases", map[string]any{
		"business_name": "Half Filled",
		"submit":        false,
	}, auth(officer))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("draft create: expected 201, got %d", resp.StatusCode)
	}
	draft := decode[cases.Case](t, resp)
	if draft.Status != cases.StatusDraft {
		t.Fatalf("expected draft, got %q", draft.Status)
	}

	resp = api.post("/v1/cases/"+draft.ID+"/submit", nil, auth(officer))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("incomplete submit: expected 400, got %d", resp.StatusCode)
	}
}

func TestUserEndpointsRequireUserManagement(t *testing.T) {
	api := newTestAPI(t)
	officer := api.login("omar@bank.com")
	admin := api.login("ava@bank.com")

	body := map[string]any{
		"name":       "New Hire",
		"email":      "hire@bank.com",
		"password":   testPassword,
		"role_id":    rbac.RoleVerifier,
		"department": "Verification",
	}
	resp := api.post("/v1/users", body, auth(officer))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("officer create user: expected 403, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/users", body, auth(admin))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin create user: expected 201, got %d", resp.StatusCode)
	}
	created := decode[rbac.User](t, resp)

	resp = api.post("/v1/users/"+created.ID+"/toggle-status", nil, auth(admin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle: expected 200, got %d", resp.StatusCode)
	}
	toggled := decode[rbac.User](t, resp)
	if toggled.Status != rbac.UserStatusInactive {
		t.Fatalf("expected inactive after toggle, got %q", toggled.Status)
	}

	// Inactive accounts cannot log in.
	loginResp := api.post("/v1/auth/login", map[string]any{
		"email":    "hire@bank.com",
		"password": testPassword,
	}, nil)
	_ = loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("inactive login: expected 401, got %d", loginResp.StatusCode)
	}
}

func TestSystemRoleDeleteNeedsForce(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login("ava@bank.com")

	resp := api.do(http.MethodDelete, "/v1/roles/"+rbac.RoleVerifier, nil, auth(admin))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 without force, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["confirm_required"] != true {
		t.Fatalf("expected confirm_required flag, got %v", payload)
	}

	resp = api.do(http.MethodDelete, "/v1/roles/"+rbac.RoleVerifier+"?force=true", nil, auth(admin))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 with force, got %d", resp.StatusCode)
	}
}

func TestHasPermissionHonoursWildcard(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("omar@bank.com")

	resp := api.get("/v1/roles/"+rbac.RoleAdmin+"/has-permission/some_future_permission", nil, auth(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["allowed"] != true {
		t.Fatalf("wildcard role should grant anything, got %v", payload)
	}

	resp = api.get("/v1/roles/"+rbac.RoleVerifier+"/has-permission/user_management", nil, auth(token))
	payload = decode[map[string]any](t, resp)
	if payload["allowed"] != false {
		t.Fatalf("verifier should not manage users, got %v", payload)
	}
}

func TestBusinessParamsGating(t *testing.T) {
	api := newTestAPI(t)
	officer := api.login("omar@bank.com")
	admin := api.login("ava@bank.com")

	body := map[string]any{
		"code":        "sole",
		"name":        "Sole Proprietorship",
		"description": "Single-owner business",
	}
	resp := api.post("/v1/business-params/business-types", body, auth(officer))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("officer create: expected 403, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/business-params/business-types", body, auth(admin))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin create: expected 201, got %d", resp.StatusCode)
	}
	created := decode[map[string]any](t, resp)
	if created["code"] != "SOLE" {
		t.Fatalf("codes are uppercased, got %v", created["code"])
	}

	resp = api.post("/v1/business-params/business-types", body, auth(admin))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate code: expected 409, got %d", resp.StatusCode)
	}

	// Reads are open to any authenticated user.
	resp = api.get("/v1/business-params/business-types", url.Values{"q": {"sole"}}, auth(officer))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("officer list: expected 200, got %d", resp.StatusCode)
	}
	list := decode[[]map[string]any](t, resp)
	if len(list) != 1 {
		t.Fatalf("expected one business type, got %d", len(list))
	}
}

func TestCaseRegisterExport(t *testing.T) {
	api := newTestAPI(t)
	officer := api.login("omar@bank.com")
	admin := api.login("ava@bank.com")

	resp := api.post("/v1/cases", completeCaseBody(true), auth(officer))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/cases/export", nil, auth(admin))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("unexpected content type %q", ct)
	}

	// Officers lack verification_reports and case_management.
	resp = api.get("/v1/cases/export", nil, auth(officer))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("officer export: expected 403, got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	token := api.login("ava@bank.com")

	resp := api.do(http.MethodDelete, "/v1/cases", nil, auth(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); !strings.Contains(allow, http.MethodGet) {
		t.Fatalf("expected Allow header, got %q", allow)
	}
}
