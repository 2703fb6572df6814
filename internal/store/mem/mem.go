// Package mem provides an in-memory store used by tests and by the API
// server when no database is configured. All methods are safe for
// concurrent use.
package mem

import (
	"sync"
	"time"

	"bank.com/mop/internal/cases"
	"bank.com/mop/internal/params"
	"bank.com/mop/internal/rbac"
)

// Store holds every collection behind one mutex. Collections are small
// (an admin tool, not a data plane), so a single lock is fine.
type Store struct {
	mu sync.Mutex

	permissions map[string]rbac.Permission
	roles       map[string]rbac.Role
	users       map[string]rbac.User

	cases   map[string]cases.Case
	caseSeq map[int]int

	businessTypes      map[string]params.BusinessType
	merchantCategories map[string]params.MerchantCategory
	riskCategories     map[string]params.RiskCategory

	now func() time.Time
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		permissions:        map[string]rbac.Permission{},
		roles:              map[string]rbac.Role{},
		users:              map[string]rbac.User{},
		cases:              map[string]cases.Case{},
		caseSeq:            map[int]int{},
		businessTypes:      map[string]params.BusinessType{},
		merchantCategories: map[string]params.MerchantCategory{},
		riskCategories:     map[string]params.RiskCategory{},
		now:                time.Now,
	}
}

// SetClock overrides the time source (useful for tests).
func (s *Store) SetClock(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

func (s *Store) stamp() time.Time { return s.now().UTC() }

var (
	_ rbac.Store   = (*Store)(nil)
	_ cases.Store  = (*Store)(nil)
	_ params.Store = (*Store)(nil)
)
