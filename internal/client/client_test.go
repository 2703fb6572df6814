package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"bank.com/mop/internal/cases"
	"bank.com/mop/internal/httpapi"
	"bank.com/mop/internal/notify"
	"bank.com/mop/internal/params"
	"bank.com/mop/internal/rbac"
	"bank.com/mop/internal/store/mem"
)

func newServer(t *testing.T) *Client {
	t.Helper()

	store := mem.New()
	svc, err := rbac.NewService(store)
	if err != nil {
		t.Fatalf("rbac service: %v", err)
	}
	if err := svc.EnsureDefaults(context.Background()); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}
	admin := rbac.NewPrincipal(rbac.User{ID: "seed"}, rbac.Role{ID: rbac.RoleAdmin, Permissions: []string{rbac.PermAllModules}})
	if _, err := svc.CreateUser(context.Background(), admin, rbac.User{
		Name:       "Ava Admin",
		Email:      "ava@bank.com",
		RoleID:     rbac.RoleAdmin,
		Department: "IT",
	}, "secret123"); err != nil {
		t.Fatalf("seed admin: %v", err)
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

	api := httpapi.New(httpapi.Deps{
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

	return New(srv.URL)
}

func completeInput() cases.Input {
	return cases.Input{
		BusinessName:       "Acme Trading",
		BusinessType:       "Private Limited Company",
		RegistrationNumber: "REG-1001",
		MerchantCategory:   "Electronics",
		BusinessAddress:    "1 Commerce Street",
		DirectorName:       "Dana Director",
		DirectorIC:         "900101105678",
		DirectorPhone:      "60123456789",
		DirectorEmail:      "dana@acme.example",
	}
}

func TestClientLoginAndCaseFlow(t *testing.T) {
	c := newServer(t)

	if err := c.Healthz(); err != nil {
		t.Fatalf("healthz: %v", err)
	}

	user, err := c.Login("ava@bank.com", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Email != "ava@bank.com" {
		t.Fatalf("unexpected user %q", user.Email)
	}

	created, err := c.CreateCase(completeInput(), true)
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	if created.Status != cases.StatusPendingReview {
		t.Fatalf("expected pending review, got %q", created.Status)
	}

	approved, err := c.Approve(created.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != cases.StatusApproved {
		t.Fatalf("expected approved, got %q", approved.Status)
	}

	history, err := c.History(created.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) == 0 || history[0].Action != "Case approved" {
		t.Fatalf("expected approval on top of history, got %+v", history)
	}

	list, err := c.ListCases("approved", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one approved case, got %d", len(list))
	}
}

func TestClientLoginFailure(t *testing.T) {
	c := newServer(t)
	if _, err := c.Login("ava@bank.com", "nope"); err == nil {
		t.Fatal("expected login failure")
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	c := newServer(t)
	if _, err := c.Login("ava@bank.com", "secret123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := c.GetCase("MOP-2026-999"); err == nil {
		t.Fatal("expected not-found error")
	}
}
