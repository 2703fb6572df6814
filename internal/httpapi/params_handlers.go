package httpapi

import (
	"net/http"
	"strings"

	"bank.com/mop/internal/params"
	"bank.com/mop/internal/rbac"
)

// handleBusinessParams dispatches /v1/business-params/{entity}[/{id}].
// Reads are open to any authenticated user; writes require the system
// configuration permission.
func (a *API) handleBusinessParams(w http.ResponseWriter, r *http.Request) {
	if a.params == nil {
		writeError(w, r, http.StatusServiceUnavailable, "business parameters unavailable")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/business-params/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	entity := parts[0]
	id := ""
	if len(parts) == 2 {
		id = parts[1]
	}

	switch entity {
	case "business-types":
		a.businessTypes(w, r, id)
	case "merchant-categories":
		a.merchantCategories(w, r, id)
	case "risk-categories":
		a.riskCategories(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func paramsFilter(r *http.Request) params.Filter {
	q := r.URL.Query()
	return params.Filter{
		Query:     q.Get("q"),
		Status:    q.Get("status"),
		RiskLevel: q.Get("risk_level"),
	}
}

func (a *API) businessTypes(w http.ResponseWriter, r *http.Request, id string) {
	switch {
	case r.Method == http.MethodGet && id == "":
		if _, ok := a.principal(w, r); !ok {
			return
		}
		list, err := a.params.ListBusinessTypes(r.Context(), paramsFilter(r))
		if err != nil {
			handleParamsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case r.Method == http.MethodGet:
		if _, ok := a.principal(w, r); !ok {
			return
		}
		bt, err := a.params.GetBusinessType(r.Context(), id)
		if err != nil {
			handleParamsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, bt)
	case r.Method == http.MethodPost && id == "":
		if _, ok := a.ensurePermissions(w, r, rbac.PermSystemConfiguration); !ok {
			return
		}
		var in params.BusinessType
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		bt, err := a.params.CreateBusinessType(r.Context(), in)
		if err != nil {
			handleParamsError(w, r, err)
			return
		}
		a.audit(r.Context(), "params.business_type.create", "business_type", bt.ID, map[string]string{
			"code": bt.Code,
		})
		w.Header().Set("Location", "/v1/business-params/business-types/"+bt.ID)
		writeJSON(w, http.StatusCreated, bt)
	case r.Method == http.MethodPatch && id != "":
		if _, ok := a.ensurePermissions(w, r, rbac.PermSystemConfiguration); !ok {
			return
		}
		var upd params.BusinessTypeUpdate
		if err := decodeJSON(w, r, &upd); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		bt, err := a.params.UpdateBusinessType(r.Context(), id, upd)
		if err != nil {
			handleParamsError(w, r, err)
			return
		}
		a.audit(r.Context(), "params.business_type.update", "business_type", bt.ID, nil)
		writeJSON(w, http.StatusOK, bt)
	case r.Method == http.MethodDelete && id != "":
		if _, ok := a.ensurePermissions(w, r, rbac.PermSystemConfiguration); !ok {
			return
		}
		if err := a.params.DeleteBusinessType(r.Context(), id); err != nil {
			handleParamsError(w, r, err)
			return
		}
		a.audit(r.Context(), "params.business_type.delete", "business_type", id, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) merchantCategories(w http.ResponseWriter, r *http.Request, id string) {
	switch {
	case r.Method == http.MethodGet && id == "":
		if _, ok := a.principal(w, r); !ok {
			return
		}
		list, err := a.params.ListMerchantCategories(r.Context(), paramsFilter(r))
		if err != nil {
			handleParamsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case r.Method == http.MethodGet:
		if _, ok := a.principal(w, r); !ok {
			return
		}
		mc, err := a.params.GetMerchantCategory(r.Context(), id)
		if err != nil {
			handleParamsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mc)
	case r.Method == http.MethodPost && id == "":
		if _, ok := a.ensurePermissions(w, r, rbac.PermSystemConfiguration); !ok {
			return
		}
		var in params.MerchantCategory
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		mc, err := a.params.CreateMerchantCategory(r.Context(), in)
		if err != nil {
			handleParamsError(w, r, err)
			return
		}
		a.audit(r.Context(), "params.merchant_category.create", "merchant_category", mc.ID, map[string]string{
			"code":       mc.Code,
			"risk_level": mc.RiskLevel,
		})
		w.Header().Set("Location", "/v1/business-params/merchant-categories/"+mc.ID)
		writeJSON(w, http.StatusCreated, mc)
	case r.Method == http.MethodPatch && id != "":
		if _, ok := a.ensurePermissions(w, r, rbac.PermSystemConfiguration); !ok {
			return
		}
		var upd params.MerchantCategoryUpdate
		if err := decodeJSON(w, r, &upd); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		mc, err := a.params.UpdateMerchantCategory(r.Context(), id, upd)
		if err != nil {
			handleParamsError(w, r, err)
			return
		}
		a.audit(r.Context(), "params.merchant_category.update", "merchant_category", mc.ID, nil)
		writeJSON(w, http.StatusOK, mc)
	case r.Method == http.MethodDelete && id != "":
		if _, ok := a.ensurePermissions(w, r, rbac.PermSystemConfiguration); !ok {
			return
		}
		if err := a.params.DeleteMerchantCategory(r.Context(), id); err != nil {
			handleParamsError(w, r, err)
			return
		}
		a.audit(r.Context(), "params.merchant_category.delete", "merchant_category", id, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) riskCategories(w http.ResponseWriter, r *http.Request, id string) {
	switch {
	case r.Method == http.MethodGet && id == "":
		if _, ok := a.principal(w, r); !ok {
			return
		}
		list, err := a.params.ListRiskCategories(r.Context(), paramsFilter(r))
		if err != nil {
			handleParamsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case r.Method == http.MethodGet:
		if _, ok := a.principal(w, r); !ok {
			return
		}
		rc, err := a.params.GetRiskCategory(r.Context(), id)
		if err != nil {
			handleParamsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rc)
	case r.Method == http.MethodPost && id == "":
		if _, ok := a.ensurePermissions(w, r, rbac.PermSystemConfiguration); !ok {
			return
		}
		var in params.RiskCategory
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		rc, err := a.params.CreateRiskCategory(r.Context(), in)
		if err != nil {
			handleParamsError(w, r, err)
			return
		}
		a.audit(r.Context(), "params.risk_category.create", "risk_category", rc.ID, map[string]string{
			"name": rc.Name,
		})
		w.Header().Set("Location", "/v1/business-params/risk-categories/"+rc.ID)
		writeJSON(w, http.StatusCreated, rc)
	case r.Method == http.MethodPatch && id != "":
		if _, ok := a.ensurePermissions(w, r, rbac.PermSystemConfiguration); !ok {
			return
		}
		var upd params.RiskCategoryUpdate
		if err := decodeJSON(w, r, &upd); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		rc, err := a.params.UpdateRiskCategory(r.Context(), id, upd)
		if err != nil {
			handleParamsError(w, r, err)
			return
		}
		a.audit(r.Context(), "params.risk_category.update", "risk_category", rc.ID, nil)
		writeJSON(w, http.StatusOK, rc)
	case r.Method == http.MethodDelete && id != "":
		if _, ok := a.ensurePermissions(w, r, rbac.PermSystemConfiguration); !ok {
			return
		}
		if err := a.params.DeleteRiskCategory(r.Context(), id); err != nil {
			handleParamsError(w, r, err)
			return
		}
		a.audit(r.Context(), "params.risk_category.delete", "risk_category", id, nil)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete)
	}
}
