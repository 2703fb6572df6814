package mem

import (
	"context"
	"sort"

	"bank.com/mop/internal/cases"
)

func cloneCase(c cases.Case) cases.Case {
	c.Documents = append([]cases.Document(nil), c.Documents...)
	c.History = append([]cases.HistoryEntry(nil), c.History...)
	return c
}

func (s *Store) ListCases(_ context.Context, filter cases.Filter) ([]cases.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cases.Case, 0, len(s.cases))
	for _, c := range s.cases {
		if filter.Matches(c) {
			out = append(out, cloneCase(c))
		}
	}
	// Newest activity first, matching the register view.
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) GetCase(_ context.Context, id string) (cases.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return cases.Case{}, cases.ErrNotFound
	}
	return cloneCase(c), nil
}

func (s *Store) CreateCase(_ context.Context, c cases.Case) (cases.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; ok {
		return cases.Case{}, cases.ErrConflict
	}
	s.cases[c.ID] = cloneCase(c)
	return cloneCase(c), nil
}

func (s *Store) UpdateCase(_ context.Context, id string, upd cases.Update) (cases.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return cases.Case{}, cases.ErrNotFound
	}
	if upd.BusinessName != nil {
		c.BusinessName = *upd.BusinessName
	}
	if upd.BusinessType != nil {
		c.BusinessType = *upd.BusinessType
	}
	if upd.RegistrationNumber != nil {
		c.RegistrationNumber = *upd.RegistrationNumber
	}
	if upd.MerchantCategory != nil {
		c.MerchantCategory = *upd.MerchantCategory
	}
	if upd.BusinessAddress != nil {
		c.BusinessAddress = *upd.BusinessAddress
	}
	if upd.DirectorName != nil {
		c.DirectorName = *upd.DirectorName
	}
	if upd.DirectorIC != nil {
		c.DirectorIC = *upd.DirectorIC
	}
	if upd.DirectorPhone != nil {
		c.DirectorPhone = *upd.DirectorPhone
	}
	if upd.DirectorEmail != nil {
		c.DirectorEmail = *upd.DirectorEmail
	}
	if upd.AssignedTo != nil {
		c.AssignedTo = *upd.AssignedTo
	}
	if upd.Priority != nil {
		c.Priority = *upd.Priority
	}
	c.UpdatedAt = s.stamp()
	s.cases[id] = c
	return cloneCase(c), nil
}

// Transition applies the status change and history prepend under one lock,
// so readers never observe one without the other.
func (s *Store) Transition(_ context.Context, id string, status string, entry cases.HistoryEntry) (cases.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return cases.Case{}, cases.ErrNotFound
	}
	if status != "" {
		c.Status = status
	}
	c.History = append([]cases.HistoryEntry{entry}, c.History...)
	c.UpdatedAt = entry.Time
	s.cases[id] = c
	return cloneCase(c), nil
}

func (s *Store) AddDocument(_ context.Context, id string, doc cases.Document) (cases.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return cases.Case{}, cases.ErrNotFound
	}
	c.Documents = append(c.Documents, doc)
	c.UpdatedAt = doc.UploadedAt
	s.cases[id] = c
	return cloneCase(c), nil
}

func (s *Store) NextCaseSequence(_ context.Context, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caseSeq[year]++
	return s.caseSeq[year], nil
}
