package cases

import (
	"strings"
	"time"
)

// Case statuses. Stored as strings, but every write goes through the
// workflow so only these values appear.
const (
	StatusDraft                  = "Draft"
	StatusPendingReview          = "Pending Review"
	StatusBackgroundVerification = "Background Verification"
	StatusComplianceReview       = "Compliance Review"
	StatusApproved               = "Approved"
	StatusRejected               = "Rejected"
)

// Statuses lists every case status in pipeline order.
var Statuses = []string{
	StatusDraft,
	StatusPendingReview,
	StatusBackgroundVerification,
	StatusComplianceReview,
	StatusApproved,
	StatusRejected,
}

// ValidStatus reports whether s is a known case status.
func ValidStatus(s string) bool {
	for _, known := range Statuses {
		if known == s {
			return true
		}
	}
	return false
}

// NormalizeStatusFilter converts a list-filter token like "pending_review"
// into the canonical status string. Empty input means no filter.
func NormalizeStatusFilter(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	token := strings.ToLower(strings.ReplaceAll(s, " ", "_"))
	for _, known := range Statuses {
		if strings.ToLower(strings.ReplaceAll(known, " ", "_")) == token {
			return known
		}
	}
	return s
}

// Document is a file attached to a case. Contents live elsewhere; the case
// tracks name and type only.
type Document struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// HistoryEntry is one line of the append-only case log, newest first.
type HistoryEntry struct {
	Time   time.Time `json:"time"`
	Action string    `json:"action"`
	Actor  string    `json:"actor,omitempty"`
}

// Case is a merchant onboarding application.
type Case struct {
	ID                 string         `json:"case_id"`
	BusinessName       string         `json:"business_name"`
	BusinessType       string         `json:"business_type"`
	RegistrationNumber string         `json:"registration_number"`
	MerchantCategory   string         `json:"merchant_category"`
	BusinessAddress    string         `json:"business_address"`
	DirectorName       string         `json:"director_name"`
	DirectorIC         string         `json:"director_ic"`
	DirectorPhone      string         `json:"director_phone"`
	DirectorEmail      string         `json:"director_email"`
	Status             string         `json:"status"`
	AssignedTo         string         `json:"assigned_to"`
	Priority           string         `json:"priority"`
	CreatedBy          string         `json:"created_by"`
	Documents          []Document     `json:"documents"`
	History            []HistoryEntry `json:"history"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"last_updated"`
}

// Input carries the business and director fields of a case form. All fields
// are optional for drafts and required at submission.
type Input struct {
	BusinessName       string `json:"business_name"`
	BusinessType       string `json:"business_type"`
	RegistrationNumber string `json:"registration_number"`
	MerchantCategory   string `json:"merchant_category"`
	BusinessAddress    string `json:"business_address"`
	DirectorName       string `json:"director_name"`
	DirectorIC         string `json:"director_ic"`
	DirectorPhone      string `json:"director_phone"`
	DirectorEmail      string `json:"director_email"`
}

// Update is a partial case-field update; nil means keep.
type Update struct {
	BusinessName       *string `json:"business_name,omitempty"`
	BusinessType       *string `json:"business_type,omitempty"`
	RegistrationNumber *string `json:"registration_number,omitempty"`
	MerchantCategory   *string `json:"merchant_category,omitempty"`
	BusinessAddress    *string `json:"business_address,omitempty"`
	DirectorName       *string `json:"director_name,omitempty"`
	DirectorIC         *string `json:"director_ic,omitempty"`
	DirectorPhone      *string `json:"director_phone,omitempty"`
	DirectorEmail      *string `json:"director_email,omitempty"`
	AssignedTo         *string `json:"assigned_to,omitempty"`
	Priority           *string `json:"priority,omitempty"`
}

// Filter narrows List results. Status matches exactly (after
// NormalizeStatusFilter); Query matches case-insensitively against the
// business name and case id.
type Filter struct {
	Status string
	Query  string
}

// Matches reports whether the case passes the filter.
func (f Filter) Matches(c Case) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(c.BusinessName), q) &&
			!strings.Contains(strings.ToLower(c.ID), q) {
			return false
		}
	}
	return true
}
