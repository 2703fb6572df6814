package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bank.com/mop/internal/cases"
	"bank.com/mop/internal/rbac"
	"bank.com/mop/internal/reports"
)

type createCaseRequest struct {
	cases.Input
	// Submit files the case for review immediately instead of saving a
	// draft; every business and director field must then be present.
	Submit bool `json:"submit"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type commentRequest struct {
	Text string `json:"text"`
}

type addDocumentRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (a *API) handleCasesCollection(w http.ResponseWriter, r *http.Request) {
	if a.workflow == nil {
		writeError(w, r, http.StatusServiceUnavailable, "case workflow unavailable")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.listCases(w, r)
	case http.MethodPost:
		a.createCase(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleCaseResource(w http.ResponseWriter, r *http.Request) {
	if a.workflow == nil {
		writeError(w, r, http.StatusServiceUnavailable, "case workflow unavailable")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/cases/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch path {
	case "export":
		a.exportCases(w, r)
		return
	case "events":
		a.caseEvents(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			a.getCase(w, r, id)
		case http.MethodPatch:
			a.updateCase(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
		}
		return
	}
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch parts[1] {
	case "history":
		a.caseHistory(w, r, id)
	case "export":
		a.exportCase(w, r, id)
	case "submit":
		a.caseAction(w, r, id, "case.submit", func(p rbac.Principal) (cases.Case, error) {
			return a.workflow.Submit(r.Context(), p, id)
		})
	case "approve":
		a.caseAction(w, r, id, "case.approve", func(p rbac.Principal) (cases.Case, error) {
			return a.workflow.Approve(r.Context(), p, id)
		})
	case "reject":
		a.rejectCase(w, r, id)
	case "status":
		a.setCaseStatus(w, r, id)
	case "complete-verification":
		a.caseAction(w, r, id, "case.complete_verification", func(p rbac.Principal) (cases.Case, error) {
			return a.workflow.CompleteVerification(r.Context(), p, id)
		})
	case "flag":
		a.flagCase(w, r, id)
	case "request-review":
		a.caseAction(w, r, id, "case.request_review", func(p rbac.Principal) (cases.Case, error) {
			return a.workflow.RequestReview(r.Context(), p, id)
		})
	case "comments":
		a.addComment(w, r, id)
	case "documents":
		a.addDocument(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) listCases(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	list, err := a.workflow.List(r.Context(), p, cases.Filter{
		Status: cases.NormalizeStatusFilter(q.Get("status")),
		Query:  q.Get("q"),
	})
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": list,
		"as_of": time.Now().UTC(),
	})
}

func (a *API) createCase(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req createCaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.workflow.Create(r.Context(), p, req.Input, req.Submit)
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	a.audit(r.Context(), "case.create", "case", c.ID, map[string]string{
		"business_name": c.BusinessName,
		"status":        c.Status,
		"submitted":     fmt.Sprintf("%t", req.Submit),
	})
	w.Header().Set("Location", "/v1/cases/"+c.ID)
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) getCase(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	c, err := a.workflow.Get(r.Context(), p, id)
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) updateCase(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var upd cases.Update
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.workflow.UpdateFields(r.Context(), p, id, upd)
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	a.audit(r.Context(), "case.update", "case", c.ID, nil)
	writeJSON(w, http.StatusOK, c)
}

// caseAction runs a body-less workflow action and writes the updated case.
func (a *API) caseAction(w http.ResponseWriter, r *http.Request, id, event string, fn func(rbac.Principal) (cases.Case, error)) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	c, err := fn(p)
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	a.audit(r.Context(), event, "case", c.ID, map[string]string{
		"status": c.Status,
	})
	writeJSON(w, http.StatusOK, c)
}

func (a *API) rejectCase(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.workflow.Reject(r.Context(), p, id, req.Reason)
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	a.audit(r.Context(), "case.reject", "case", c.ID, map[string]string{
		"reason": req.Reason,
	})
	writeJSON(w, http.StatusOK, c)
}

func (a *API) setCaseStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.workflow.SetStatus(r.Context(), p, id, req.Status)
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	a.audit(r.Context(), "case.set_status", "case", c.ID, map[string]string{
		"status": c.Status,
	})
	writeJSON(w, http.StatusOK, c)
}

func (a *API) flagCase(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.workflow.Flag(r.Context(), p, id, req.Reason)
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	a.audit(r.Context(), "case.flag", "case", c.ID, map[string]string{
		"reason": req.Reason,
	})
	writeJSON(w, http.StatusOK, c)
}

func (a *API) addComment(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.workflow.AddComment(r.Context(), p, id, req.Text)
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	a.audit(r.Context(), "case.comment", "case", c.ID, nil)
	writeJSON(w, http.StatusOK, c)
}

func (a *API) addDocument(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req addDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.workflow.AddDocument(r.Context(), p, id, cases.Document{
		Name: req.Name,
		Type: req.Type,
	})
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	a.audit(r.Context(), "case.document.add", "case", c.ID, map[string]string{
		"document": req.Name,
	})
	writeJSON(w, http.StatusOK, c)
}

func (a *API) caseHistory(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	history, err := a.workflow.History(r.Context(), p, id)
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"case_id": id,
		"history": history,
	})
}

// exportCases streams the case register as an XLSX workbook. The same list
// filters as GET /v1/cases apply.
func (a *API) exportCases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.ensurePermissions(w, r, rbac.PermVerificationReports, rbac.PermCaseManagement)
	if !ok {
		return
	}
	q := r.URL.Query()
	list, err := a.workflow.List(r.Context(), p, cases.Filter{
		Status: cases.NormalizeStatusFilter(q.Get("status")),
		Query:  q.Get("q"),
	})
	if err != nil {
		handleCaseError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := reports.WriteCaseRegister(&buf, list); err != nil {
		writeError(w, r, http.StatusInternalServerError, "export failed")
		return
	}
	a.audit(r.Context(), "case.export", "case_register", "", map[string]string{
		"count": fmt.Sprintf("%d", len(list)),
	})
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="cases.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) exportCase(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.ensurePermissions(w, r, rbac.PermVerificationReports, rbac.PermCaseManagement)
	if !ok {
		return
	}
	c, err := a.workflow.Get(r.Context(), p, id)
	if err != nil {
		handleCaseError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := reports.WriteCaseDetail(&buf, c); err != nil {
		writeError(w, r, http.StatusInternalServerError, "export failed")
		return
	}
	a.audit(r.Context(), "case.export", "case", c.ID, nil)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c.ID+".xlsx"))
	_, _ = w.Write(buf.Bytes())
}
