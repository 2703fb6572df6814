package params

import "context"

// Store persists the three reference collections. Uniqueness of business
// type / merchant category codes and risk category levels is enforced here
// (ErrConflict).
type Store interface {
	ListBusinessTypes(ctx context.Context, filter Filter) ([]BusinessType, error)
	GetBusinessType(ctx context.Context, id string) (BusinessType, error)
	CreateBusinessType(ctx context.Context, bt BusinessType) (BusinessType, error)
	UpdateBusinessType(ctx context.Context, id string, upd BusinessTypeUpdate) (BusinessType, error)
	DeleteBusinessType(ctx context.Context, id string) error

	ListMerchantCategories(ctx context.Context, filter Filter) ([]MerchantCategory, error)
	GetMerchantCategory(ctx context.Context, id string) (MerchantCategory, error)
	CreateMerchantCategory(ctx context.Context, mc MerchantCategory) (MerchantCategory, error)
	UpdateMerchantCategory(ctx context.Context, id string, upd MerchantCategoryUpdate) (MerchantCategory, error)
	DeleteMerchantCategory(ctx context.Context, id string) error

	ListRiskCategories(ctx context.Context, filter Filter) ([]RiskCategory, error)
	GetRiskCategory(ctx context.Context, id string) (RiskCategory, error)
	CreateRiskCategory(ctx context.Context, rc RiskCategory) (RiskCategory, error)
	UpdateRiskCategory(ctx context.Context, id string, upd RiskCategoryUpdate) (RiskCategory, error)
	DeleteRiskCategory(ctx context.Context, id string) error
}
