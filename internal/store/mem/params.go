package mem

import (
	"context"
	"sort"

	"bank.com/mop/internal/params"
)

func (s *Store) ListBusinessTypes(_ context.Context, filter params.Filter) ([]params.BusinessType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]params.BusinessType, 0, len(s.businessTypes))
	for _, bt := range s.businessTypes {
		if !filter.MatchesBusinessType(bt) {
			continue
		}
		out = append(out, bt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) GetBusinessType(_ context.Context, id string) (params.BusinessType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bt, ok := s.businessTypes[id]
	if !ok {
		return params.BusinessType{}, params.ErrNotFound
	}
	return bt, nil
}

func (s *Store) CreateBusinessType(_ context.Context, bt params.BusinessType) (params.BusinessType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.businessTypes {
		if existing.Code == bt.Code {
			return params.BusinessType{}, params.ErrConflict
		}
	}
	now := s.stamp()
	bt.CreatedAt, bt.UpdatedAt = now, now
	s.businessTypes[bt.ID] = bt
	return bt, nil
}

func (s *Store) UpdateBusinessType(_ context.Context, id string, upd params.BusinessTypeUpdate) (params.BusinessType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bt, ok := s.businessTypes[id]
	if !ok {
		return params.BusinessType{}, params.ErrNotFound
	}
	if upd.Code != nil && *upd.Code != bt.Code {
		for oid, other := range s.businessTypes {
			if oid != id && other.Code == *upd.Code {
				return params.BusinessType{}, params.ErrConflict
			}
		}
		bt.Code = *upd.Code
	}
	if upd.Name != nil {
		bt.Name = *upd.Name
	}
	if upd.Description != nil {
		bt.Description = *upd.Description
	}
	if upd.Status != nil {
		bt.Status = *upd.Status
	}
	bt.UpdatedAt = s.stamp()
	s.businessTypes[id] = bt
	return bt, nil
}

func (s *Store) DeleteBusinessType(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.businessTypes[id]; !ok {
		return params.ErrNotFound
	}
	delete(s.businessTypes, id)
	return nil
}

func (s *Store) ListMerchantCategories(_ context.Context, filter params.Filter) ([]params.MerchantCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]params.MerchantCategory, 0, len(s.merchantCategories))
	for _, mc := range s.merchantCategories {
		if !filter.MatchesMerchantCategory(mc) {
			continue
		}
		out = append(out, mc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) GetMerchantCategory(_ context.Context, id string) (params.MerchantCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mc, ok := s.merchantCategories[id]
	if !ok {
		return params.MerchantCategory{}, params.ErrNotFound
	}
	return mc, nil
}

func (s *Store) CreateMerchantCategory(_ context.Context, mc params.MerchantCategory) (params.MerchantCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.merchantCategories {
		if existing.Code == mc.Code {
			return params.MerchantCategory{}, params.ErrConflict
		}
	}
	now := s.stamp()
	mc.CreatedAt, mc.UpdatedAt = now, now
	s.merchantCategories[mc.ID] = mc
	return mc, nil
}

func (s *Store) UpdateMerchantCategory(_ context.Context, id string, upd params.MerchantCategoryUpdate) (params.MerchantCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mc, ok := s.merchantCategories[id]
	if !ok {
		return params.MerchantCategory{}, params.ErrNotFound
	}
	if upd.Code != nil && *upd.Code != mc.Code {
		for oid, other := range s.merchantCategories {
			if oid != id && other.Code == *upd.Code {
				return params.MerchantCategory{}, params.ErrConflict
			}
		}
		mc.Code = *upd.Code
	}
	if upd.Name != nil {
		mc.Name = *upd.Name
	}
	if upd.Description != nil {
		mc.Description = *upd.Description
	}
	if upd.RiskLevel != nil {
		mc.RiskLevel = *upd.RiskLevel
	}
	if upd.Status != nil {
		mc.Status = *upd.Status
	}
	mc.UpdatedAt = s.stamp()
	s.merchantCategories[id] = mc
	return mc, nil
}

func (s *Store) DeleteMerchantCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.merchantCategories[id]; !ok {
		return params.ErrNotFound
	}
	delete(s.merchantCategories, id)
	return nil
}

func (s *Store) ListRiskCategories(_ context.Context, filter params.Filter) ([]params.RiskCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]params.RiskCategory, 0, len(s.riskCategories))
	for _, rc := range s.riskCategories {
		if !filter.MatchesRiskCategory(rc) {
			continue
		}
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (s *Store) GetRiskCategory(_ context.Context, id string) (params.RiskCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.riskCategories[id]
	if !ok {
		return params.RiskCategory{}, params.ErrNotFound
	}
	return rc, nil
}

func (s *Store) CreateRiskCategory(_ context.Context, rc params.RiskCategory) (params.RiskCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.riskCategories {
		if existing.Level == rc.Level {
			return params.RiskCategory{}, params.ErrConflict
		}
	}
	now := s.stamp()
	rc.CreatedAt, rc.UpdatedAt = now, now
	s.riskCategories[rc.ID] = rc
	return rc, nil
}

func (s *Store) UpdateRiskCategory(_ context.Context, id string, upd params.RiskCategoryUpdate) (params.RiskCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.riskCategories[id]
	if !ok {
		return params.RiskCategory{}, params.ErrNotFound
	}
	if upd.Level != nil && *upd.Level != rc.Level {
		for oid, other := range s.riskCategories {
			if oid != id && other.Level == *upd.Level {
				return params.RiskCategory{}, params.ErrConflict
			}
		}
		rc.Level = *upd.Level
	}
	if upd.Name != nil {
		rc.Name = *upd.Name
	}
	if upd.ScoreMin != nil {
		rc.ScoreMin = *upd.ScoreMin
	}
	if upd.ScoreMax != nil {
		rc.ScoreMax = *upd.ScoreMax
	}
	if upd.Description != nil {
		rc.Description = *upd.Description
	}
	if upd.ActionsRequired != nil {
		rc.ActionsRequired = *upd.ActionsRequired
	}
	rc.UpdatedAt = s.stamp()
	s.riskCategories[id] = rc
	return rc, nil
}

func (s *Store) DeleteRiskCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.riskCategories[id]; !ok {
		return params.ErrNotFound
	}
	delete(s.riskCategories, id)
	return nil
}
