// Package client is a typed Go client for the onboarding API, used by the
// smoke binary and suitable for scripting against a running instance.
package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"bank.com/mop/internal/cases"
	"bank.com/mop/internal/rbac"
)

// Client talks to a running onboarding API instance.
type Client struct {
	http *resty.Client
}

// New builds a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: c}
}

type apiError struct {
	Message   string `json:"error"`
	RequestID string `json:"request_id"`
}

type loginPayload struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        rbac.User `json:"user"`
	Permissions []string  `json:"permissions"`
}

func statusErr(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	if e, ok := resp.Error().(*apiError); ok && e.Message != "" {
		return fmt.Errorf("api: %s (%d)", e.Message, resp.StatusCode())
	}
	return fmt.Errorf("api: unexpected status %d", resp.StatusCode())
}

// Login exchanges credentials for a session and stores the bearer token on
// the client for subsequent calls.
func (c *Client) Login(email, password string) (rbac.User, error) {
	var out loginPayload
	resp, err := c.http.R().
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		SetError(&apiError{}).
		Post("/v1/auth/login")
	if err != nil {
		return rbac.User{}, fmt.Errorf("login: %w", err)
	}
	if err := statusErr(resp); err != nil {
		return rbac.User{}, err
	}
	c.http.SetAuthToken(out.Token)
	return out.User, nil
}

// Healthz reports whether the service answers its liveness probe.
func (c *Client) Healthz() error {
	resp, err := c.http.R().Get("/healthz")
	if err != nil {
		return fmt.Errorf("healthz: %w", err)
	}
	return statusErr(resp)
}

type caseList struct {
	Items []cases.Case `json:"items"`
}

// ListCases returns cases matching the optional status token and query.
func (c *Client) ListCases(status, query string) ([]cases.Case, error) {
	var out caseList
	req := c.http.R().SetResult(&out).SetError(&apiError{})
	if status != "" {
		req.SetQueryParam("status", status)
	}
	if query != "" {
		req.SetQueryParam("q", query)
	}
	resp, err := req.Get("/v1/cases")
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	if err := statusErr(resp); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CreateCase files a new case. With submit true the case enters review
// immediately and every form field must be present.
func (c *Client) CreateCase(in cases.Input, submit bool) (cases.Case, error) {
	body := map[string]any{
		"business_name":       in.BusinessName,
		"business_type":       in.BusinessType,
		"registration_number": in.RegistrationNumber,
		"merchant_category":   in.MerchantCategory,
		"business_address":    in.BusinessAddress,
		"director_name":       in.DirectorName,
		"director_ic":         in.DirectorIC,
		"director_phone":      in.DirectorPhone,
		"director_email":      in.DirectorEmail,
		"submit":              submit,
	}
	var out cases.Case
	resp, err := c.http.R().SetBody(body).SetResult(&out).SetError(&apiError{}).Post("/v1/cases")
	if err != nil {
		return cases.Case{}, fmt.Errorf("create case: %w", err)
	}
	if err := statusErr(resp); err != nil {
		return cases.Case{}, err
	}
	return out, nil
}

// GetCase fetches a single case with documents and history.
func (c *Client) GetCase(id string) (cases.Case, error) {
	var out cases.Case
	resp, err := c.http.R().SetResult(&out).SetError(&apiError{}).Get("/v1/cases/" + id)
	if err != nil {
		return cases.Case{}, fmt.Errorf("get case: %w", err)
	}
	if err := statusErr(resp); err != nil {
		return cases.Case{}, err
	}
	return out, nil
}

func (c *Client) caseAction(id, action string, body any) (cases.Case, error) {
	var out cases.Case
	req := c.http.R().SetResult(&out).SetError(&apiError{})
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post("/v1/cases/" + id + "/" + action)
	if err != nil {
		return cases.Case{}, fmt.Errorf("case %s: %w", action, err)
	}
	if err := statusErr(resp); err != nil {
		return cases.Case{}, err
	}
	return out, nil
}

// Submit files a draft for review.
func (c *Client) Submit(id string) (cases.Case, error) {
	return c.caseAction(id, "submit", nil)
}

// Approve marks the case approved.
func (c *Client) Approve(id string) (cases.Case, error) {
	return c.caseAction(id, "approve", nil)
}

// Reject marks the case rejected, recording the reason when given.
func (c *Client) Reject(id, reason string) (cases.Case, error) {
	return c.caseAction(id, "reject", map[string]string{"reason": reason})
}

// SetStatus moves the case to an explicit workflow status.
func (c *Client) SetStatus(id, status string) (cases.Case, error) {
	return c.caseAction(id, "status", map[string]string{"status": status})
}

// Comment appends a free-text comment to the case history.
func (c *Client) Comment(id, text string) (cases.Case, error) {
	return c.caseAction(id, "comments", map[string]string{"text": text})
}

// AddDocument attaches a document record to the case.
func (c *Client) AddDocument(id, name, typ string) (cases.Case, error) {
	return c.caseAction(id, "documents", map[string]string{"name": name, "type": typ})
}

// History returns the case log, newest first.
func (c *Client) History(id string) ([]cases.HistoryEntry, error) {
	var out struct {
		History []cases.HistoryEntry `json:"history"`
	}
	resp, err := c.http.R().SetResult(&out).SetError(&apiError{}).Get("/v1/cases/" + id + "/history")
	if err != nil {
		return nil, fmt.Errorf("case history: %w", err)
	}
	if err := statusErr(resp); err != nil {
		return nil, err
	}
	return out.History, nil
}

// ExportRegister downloads the case register workbook.
func (c *Client) ExportRegister() ([]byte, error) {
	resp, err := c.http.R().SetError(&apiError{}).Get("/v1/cases/export")
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if err := statusErr(resp); err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("export: unexpected status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// ListUsers lists user accounts (requires user_management).
func (c *Client) ListUsers() ([]rbac.User, error) {
	var out []rbac.User
	resp, err := c.http.R().SetResult(&out).SetError(&apiError{}).Get("/v1/users")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if err := statusErr(resp); err != nil {
		return nil, err
	}
	return out, nil
}
