package params

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("params: not found")
	ErrConflict     = errors.New("params: already exists")
	ErrInvalidInput = errors.New("params: invalid input")
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Risk levels used by merchant categories.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// BusinessType classifies the legal form of a merchant. Codes are unique.
type BusinessType struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MerchantCategory groups merchants by trade, carrying a default risk level.
// Codes are unique.
type MerchantCategory struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	RiskLevel   string    `json:"risk_level"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RiskCategory maps a score band to a named risk tier. Levels are unique and
// ScoreMin must not exceed ScoreMax.
type RiskCategory struct {
	ID              string    `json:"id"`
	Level           int       `json:"level"`
	Name            string    `json:"name"`
	ScoreMin        int       `json:"score_min"`
	ScoreMax        int       `json:"score_max"`
	Description     string    `json:"description"`
	ActionsRequired string    `json:"actions_required"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BusinessTypeUpdate is a partial update; nil means keep.
type BusinessTypeUpdate struct {
	Code        *string `json:"code,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// MerchantCategoryUpdate is a partial update; nil means keep.
type MerchantCategoryUpdate struct {
	Code        *string `json:"code,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	RiskLevel   *string `json:"risk_level,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// RiskCategoryUpdate is a partial update; nil means keep. ScoreMin and
// ScoreMax must be updated together when either changes the ordering.
type RiskCategoryUpdate struct {
	Level           *int    `json:"level,omitempty"`
	Name            *string `json:"name,omitempty"`
	ScoreMin        *int    `json:"score_min,omitempty"`
	ScoreMax        *int    `json:"score_max,omitempty"`
	Description     *string `json:"description,omitempty"`
	ActionsRequired *string `json:"actions_required,omitempty"`
}

// Filter narrows list results. Query matches case-insensitively against
// code and name; Status and RiskLevel match exactly where the entity has
// those fields.
type Filter struct {
	Query     string
	Status    string
	RiskLevel string
}

// MatchesBusinessType reports whether the business type passes the filter.
func (f Filter) MatchesBusinessType(bt BusinessType) bool {
	if f.Status != "" && bt.Status != f.Status {
		return false
	}
	return matchesQuery(f.Query, bt.Code, bt.Name)
}

// MatchesMerchantCategory reports whether the merchant category passes the
// filter.
func (f Filter) MatchesMerchantCategory(mc MerchantCategory) bool {
	if f.Status != "" && mc.Status != f.Status {
		return false
	}
	if f.RiskLevel != "" && mc.RiskLevel != f.RiskLevel {
		return false
	}
	return matchesQuery(f.Query, mc.Code, mc.Name)
}

// MatchesRiskCategory reports whether the risk category passes the filter.
// Risk categories have no status or risk-level fields, so only Query applies.
func (f Filter) MatchesRiskCategory(rc RiskCategory) bool {
	return matchesQuery(f.Query, rc.Name)
}

func matchesQuery(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func validRiskLevel(level string) bool {
	switch level {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

func validStatus(status string) bool {
	return status == StatusActive || status == StatusInactive
}
