package params

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bank.com/mop/internal/ids"
)

// Service validates reference-data writes before they reach the store.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("params store is required")
	}
	return &Service{store: store}, nil
}

// ---- Business types ----

func (s *Service) ListBusinessTypes(ctx context.Context, filter Filter) ([]BusinessType, error) {
	return s.store.ListBusinessTypes(ctx, filter)
}

func (s *Service) GetBusinessType(ctx context.Context, id string) (BusinessType, error) {
	return s.store.GetBusinessType(ctx, strings.TrimSpace(id))
}

func (s *Service) CreateBusinessType(ctx context.Context, bt BusinessType) (BusinessType, error) {
	bt.Code = strings.TrimSpace(strings.ToUpper(bt.Code))
	bt.Name = strings.TrimSpace(bt.Name)
	bt.Description = strings.TrimSpace(bt.Description)
	if bt.Code == "" {
		return BusinessType{}, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if bt.Name == "" {
		return BusinessType{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if bt.Status == "" {
		bt.Status = StatusActive
	}
	if !validStatus(bt.Status) {
		return BusinessType{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, bt.Status)
	}
	if bt.ID = strings.TrimSpace(bt.ID); bt.ID == "" {
		bt.ID = "bt_" + strings.ToLower(ids.New())
	}
	return s.store.CreateBusinessType(ctx, bt)
}

func (s *Service) UpdateBusinessType(ctx context.Context, id string, upd BusinessTypeUpdate) (BusinessType, error) {
	if upd.Code != nil {
		code := strings.TrimSpace(strings.ToUpper(*upd.Code))
		if code == "" {
			return BusinessType{}, fmt.Errorf("%w: code is required", ErrInvalidInput)
		}
		upd.Code = &code
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return BusinessType{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Status != nil && !validStatus(*upd.Status) {
		return BusinessType{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, *upd.Status)
	}
	return s.store.UpdateBusinessType(ctx, strings.TrimSpace(id), upd)
}

func (s *Service) DeleteBusinessType(ctx context.Context, id string) error {
	return s.store.DeleteBusinessType(ctx, strings.TrimSpace(id))
}

// ---- Merchant categories ----

func (s *Service) ListMerchantCategories(ctx context.Context, filter Filter) ([]MerchantCategory, error) {
	if filter.RiskLevel != "" && !validRiskLevel(filter.RiskLevel) {
		return nil, fmt.Errorf("%w: unsupported risk level %s", ErrInvalidInput, filter.RiskLevel)
	}
	return s.store.ListMerchantCategories(ctx, filter)
}

func (s *Service) GetMerchantCategory(ctx context.Context, id string) (MerchantCategory, error) {
	return s.store.GetMerchantCategory(ctx, strings.TrimSpace(id))
}

func (s *Service) CreateMerchantCategory(ctx context.Context, mc MerchantCategory) (MerchantCategory, error) {
	mc.Code = strings.TrimSpace(strings.ToUpper(mc.Code))
	mc.Name = strings.TrimSpace(mc.Name)
	mc.Description = strings.TrimSpace(mc.Description)
	mc.RiskLevel = strings.TrimSpace(strings.ToLower(mc.RiskLevel))
	if mc.Code == "" {
		return MerchantCategory{}, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if mc.Name == "" {
		return MerchantCategory{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !validRiskLevel(mc.RiskLevel) {
		return MerchantCategory{}, fmt.Errorf("%w: risk level must be low, medium or high", ErrInvalidInput)
	}
	if mc.Status == "" {
		mc.Status = StatusActive
	}
	if !validStatus(mc.Status) {
		return MerchantCategory{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, mc.Status)
	}
	if mc.ID = strings.TrimSpace(mc.ID); mc.ID == "" {
		mc.ID = "mc_" + strings.ToLower(ids.New())
	}
	return s.store.CreateMerchantCategory(ctx, mc)
}

func (s *Service) UpdateMerchantCategory(ctx context.Context, id string, upd MerchantCategoryUpdate) (MerchantCategory, error) {
	if upd.Code != nil {
		code := strings.TrimSpace(strings.ToUpper(*upd.Code))
		if code == "" {
			return MerchantCategory{}, fmt.Errorf("%w: code is required", ErrInvalidInput)
		}
		upd.Code = &code
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return MerchantCategory{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.RiskLevel != nil {
		level := strings.TrimSpace(strings.ToLower(*upd.RiskLevel))
		if !validRiskLevel(level) {
			return MerchantCategory{}, fmt.Errorf("%w: risk level must be low, medium or high", ErrInvalidInput)
		}
		upd.RiskLevel = &level
	}
	if upd.Status != nil && !validStatus(*upd.Status) {
		return MerchantCategory{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, *upd.Status)
	}
	return s.store.UpdateMerchantCategory(ctx, strings.TrimSpace(id), upd)
}

func (s *Service) DeleteMerchantCategory(ctx context.Context, id string) error {
	return s.store.DeleteMerchantCategory(ctx, strings.TrimSpace(id))
}

// ---- Risk categories ----

func (s *Service) ListRiskCategories(ctx context.Context, filter Filter) ([]RiskCategory, error) {
	return s.store.ListRiskCategories(ctx, filter)
}

func (s *Service) GetRiskCategory(ctx context.Context, id string) (RiskCategory, error) {
	return s.store.GetRiskCategory(ctx, strings.TrimSpace(id))
}

func (s *Service) CreateRiskCategory(ctx context.Context, rc RiskCategory) (RiskCategory, error) {
	rc.Name = strings.TrimSpace(rc.Name)
	rc.Description = strings.TrimSpace(rc.Description)
	rc.ActionsRequired = strings.TrimSpace(rc.ActionsRequired)
	if rc.Level <= 0 {
		return RiskCategory{}, fmt.Errorf("%w: level must be a positive integer", ErrInvalidInput)
	}
	if rc.Name == "" {
		return RiskCategory{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if rc.ScoreMin < 0 || rc.ScoreMax < 0 {
		return RiskCategory{}, fmt.Errorf("%w: scores must be non-negative", ErrInvalidInput)
	}
	if rc.ScoreMin > rc.ScoreMax {
		return RiskCategory{}, fmt.Errorf("%w: minimum score cannot be greater than maximum score", ErrInvalidInput)
	}
	if rc.ID = strings.TrimSpace(rc.ID); rc.ID == "" {
		rc.ID = "rc_" + strings.ToLower(ids.New())
	}
	return s.store.CreateRiskCategory(ctx, rc)
}

func (s *Service) UpdateRiskCategory(ctx context.Context, id string, upd RiskCategoryUpdate) (RiskCategory, error) {
	id = strings.TrimSpace(id)
	if upd.Level != nil && *upd.Level <= 0 {
		return RiskCategory{}, fmt.Errorf("%w: level must be a positive integer", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return RiskCategory{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.ScoreMin != nil || upd.ScoreMax != nil {
		current, err := s.store.GetRiskCategory(ctx, id)
		if err != nil {
			return RiskCategory{}, err
		}
		min, max := current.ScoreMin, current.ScoreMax
		if upd.ScoreMin != nil {
			min = *upd.ScoreMin
		}
		if upd.ScoreMax != nil {
			max = *upd.ScoreMax
		}
		if min < 0 || max < 0 {
			return RiskCategory{}, fmt.Errorf("%w: scores must be non-negative", ErrInvalidInput)
		}
		if min > max {
			return RiskCategory{}, fmt.Errorf("%w: minimum score cannot be greater than maximum score", ErrInvalidInput)
		}
	}
	return s.store.UpdateRiskCategory(ctx, id, upd)
}

func (s *Service) DeleteRiskCategory(ctx context.Context, id string) error {
	return s.store.DeleteRiskCategory(ctx, strings.TrimSpace(id))
}
