package cases

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bank.com/mop/internal/obs"
	"bank.com/mop/internal/rbac"
)

const defaultIDPrefix = "MOP"

var (
	digitsOnlyPattern = regexp.MustCompile(`^\+?[0-9]+$`)
	icPattern         = regexp.MustCompile(`^[0-9]+$`)
	emailPattern      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// History action strings. The case log is shown verbatim to reviewers, so
// these are stable.
const (
	actionCreated               = "Case created"
	actionSubmitted             = "Case submitted for review"
	actionApproved              = "Case approved"
	actionRejected              = "Case rejected"
	actionVerificationCompleted = "Background verification completed"
	actionReviewRequested       = "Review request sent to Compliance Team"
)

// transitions maps a status to the statuses reachable from it. Annotations
// (flag, comment, review request, verification completion) never change
// status and are not listed here.
var transitions = map[string][]string{
	StatusDraft:                  {StatusPendingReview},
	StatusPendingReview:          {StatusBackgroundVerification, StatusComplianceReview, StatusApproved, StatusRejected},
	StatusBackgroundVerification: {StatusComplianceReview, StatusApproved, StatusRejected},
	StatusComplianceReview:       {StatusApproved, StatusRejected},
}

// Notifier receives case change events for fan-out to live subscribers.
type Notifier interface {
	CaseChanged(c Case, action string)
}

// Workflow implements the case lifecycle. Every state-changing action is
// permission-gated, appends exactly one history entry, and is atomic: a
// failed write leaves the prior state untouched.
type Workflow struct {
	store    Store
	notifier Notifier
	prefix   string
	now      func() time.Time
}

// WorkflowOption configures a Workflow.
type WorkflowOption func(*Workflow)

// WithNotifier attaches a change-event sink.
func WithNotifier(n Notifier) WorkflowOption {
	return func(w *Workflow) { w.notifier = n }
}

// WithIDPrefix overrides the case id prefix (default "MOP").
func WithIDPrefix(prefix string) WorkflowOption {
	return func(w *Workflow) {
		prefix = strings.TrimSpace(strings.ToUpper(prefix))
		if prefix != "" {
			w.prefix = prefix
		}
	}
}

// WithWorkflowClock overrides the time source (useful for tests).
func WithWorkflowClock(fn func() time.Time) WorkflowOption {
	return func(w *Workflow) {
		if fn != nil {
			w.now = fn
		}
	}
}

// NewWorkflow constructs a Workflow over the given store.
func NewWorkflow(store Store, opts ...WorkflowOption) (*Workflow, error) {
	if store == nil {
		return nil, errors.New("case store is required")
	}
	w := &Workflow{store: store, prefix: defaultIDPrefix, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// List returns cases visible to the actor, filtered.
func (w *Workflow) List(ctx context.Context, actor rbac.Principal, filter Filter) ([]Case, error) {
	if !canView(actor) {
		return nil, fmt.Errorf("%w: viewing cases requires case_view or case_management", ErrDenied)
	}
	filter.Status = NormalizeStatusFilter(filter.Status)
	return w.store.ListCases(ctx, filter)
}

// Get returns one case.
func (w *Workflow) Get(ctx context.Context, actor rbac.Principal, id string) (Case, error) {
	if !canView(actor) {
		return Case{}, fmt.Errorf("%w: viewing cases requires case_view or case_management", ErrDenied)
	}
	return w.store.GetCase(ctx, strings.TrimSpace(id))
}

// Create opens a new case. With submit=false the case is stored as a Draft
// and empty fields are tolerated; with submit=true every business and
// director field is validated and the case enters Pending Review directly.
func (w *Workflow) Create(ctx context.Context, actor rbac.Principal, in Input, submit bool) (Case, error) {
	if !actor.HasAnyPermission(rbac.PermCaseCreation, rbac.PermAllModules) {
		return Case{}, fmt.Errorf("%w: creating cases requires case_creation", ErrDenied)
	}
	in = trimInput(in)
	status := StatusDraft
	if submit {
		if err := validateSubmission(in); err != nil {
			return Case{}, err
		}
		status = StatusPendingReview
	}
	now := w.now().UTC()
	year := now.Year()
	seq, err := w.store.NextCaseSequence(ctx, year)
	if err != nil {
		return Case{}, fmt.Errorf("allocate case id: %w", err)
	}
	c := Case{
		ID:                 fmt.Sprintf("%s-%d-%03d", w.prefix, year, seq),
		BusinessName:       in.BusinessName,
		BusinessType:       in.BusinessType,
		RegistrationNumber: in.RegistrationNumber,
		MerchantCategory:   in.MerchantCategory,
		BusinessAddress:    in.BusinessAddress,
		DirectorName:       in.DirectorName,
		DirectorIC:         in.DirectorIC,
		DirectorPhone:      in.DirectorPhone,
		DirectorEmail:      in.DirectorEmail,
		Status:             status,
		AssignedTo:         "Unassigned",
		Priority:           "Normal",
		CreatedBy:          actor.User.ID,
		Documents:          []Document{},
		History:            []HistoryEntry{{Time: now, Action: actionCreated, Actor: actor.User.Name}},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	created, err := w.store.CreateCase(ctx, c)
	if err != nil {
		return Case{}, err
	}
	obs.ObserveCaseTransition(created.Status)
	w.notify(created, actionCreated)
	return created, nil
}

// UpdateFields edits the business/director fields of a case without touching
// its status or history.
func (w *Workflow) UpdateFields(ctx context.Context, actor rbac.Principal, id string, upd Update) (Case, error) {
	if !canEdit(actor) {
		return Case{}, fmt.Errorf("%w: editing cases requires case_management", ErrDenied)
	}
	return w.store.UpdateCase(ctx, strings.TrimSpace(id), upd)
}

// Submit moves a Draft into Pending Review after validating that every
// required field is filled.
func (w *Workflow) Submit(ctx context.Context, actor rbac.Principal, id string) (Case, error) {
	if !actor.HasAnyPermission(rbac.PermCaseCreation, rbac.PermCaseManagement, rbac.PermAllModules) {
		return Case{}, fmt.Errorf("%w: submitting cases requires case_creation", ErrDenied)
	}
	id = strings.TrimSpace(id)
	current, err := w.store.GetCase(ctx, id)
	if err != nil {
		return Case{}, err
	}
	if current.Status != StatusDraft {
		return Case{}, fmt.Errorf("%w: only drafts can be submitted (status is %s)", ErrBadTransition, current.Status)
	}
	if err := validateSubmission(Input{
		BusinessName:       current.BusinessName,
		BusinessType:       current.BusinessType,
		RegistrationNumber: current.RegistrationNumber,
		MerchantCategory:   current.MerchantCategory,
		BusinessAddress:    current.BusinessAddress,
		DirectorName:       current.DirectorName,
		DirectorIC:         current.DirectorIC,
		DirectorPhone:      current.DirectorPhone,
		DirectorEmail:      current.DirectorEmail,
	}); err != nil {
		return Case{}, err
	}
	return w.transition(ctx, actor, id, current, StatusPendingReview, actionSubmitted)
}

// SetStatus moves a case to an explicit status, enforcing the transition
// table.
func (w *Workflow) SetStatus(ctx context.Context, actor rbac.Principal, id, status string) (Case, error) {
	if !canEdit(actor) {
		return Case{}, fmt.Errorf("%w: changing case status requires case_management", ErrDenied)
	}
	if !ValidStatus(status) {
		return Case{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	id = strings.TrimSpace(id)
	current, err := w.store.GetCase(ctx, id)
	if err != nil {
		return Case{}, err
	}
	action := "Status changed to " + status
	switch status {
	case StatusApproved:
		action = actionApproved
	case StatusRejected:
		action = actionRejected
	}
	return w.transition(ctx, actor, id, current, status, action)
}

// Approve moves the case to Approved.
func (w *Workflow) Approve(ctx context.Context, actor rbac.Principal, id string) (Case, error) {
	return w.SetStatus(ctx, actor, id, StatusApproved)
}

// Reject moves the case to Rejected. A non-empty reason is recorded in the
// history line.
func (w *Workflow) Reject(ctx context.Context, actor rbac.Principal, id, reason string) (Case, error) {
	if !canEdit(actor) {
		return Case{}, fmt.Errorf("%w: changing case status requires case_management", ErrDenied)
	}
	id = strings.TrimSpace(id)
	current, err := w.store.GetCase(ctx, id)
	if err != nil {
		return Case{}, err
	}
	action := actionRejected
	if reason = strings.TrimSpace(reason); reason != "" {
		action = actionRejected + " - " + reason
	}
	return w.transition(ctx, actor, id, current, StatusRejected, action)
}

// CompleteVerification records that the background verification finished.
// The status is left unchanged; moving the case onward is a separate,
// compliance-gated decision.
func (w *Workflow) CompleteVerification(ctx context.Context, actor rbac.Principal, id string) (Case, error) {
	if !actor.HasAnyPermission(rbac.PermBackgroundCheck, rbac.PermCaseManagement, rbac.PermAllModules) {
		return Case{}, fmt.Errorf("%w: completing verification requires background_check", ErrDenied)
	}
	return w.annotate(ctx, actor, id, actionVerificationCompleted)
}

// Flag marks the case for review. The reason is required.
func (w *Workflow) Flag(ctx context.Context, actor rbac.Principal, id, reason string) (Case, error) {
	if !canView(actor) {
		return Case{}, fmt.Errorf("%w: flagging cases requires case_view", ErrDenied)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Case{}, fmt.Errorf("%w: a flag reason is required", ErrInvalidInput)
	}
	return w.annotate(ctx, actor, id, "Flagged for review: "+reason)
}

// RequestReview asks the compliance team to look at the case.
func (w *Workflow) RequestReview(ctx context.Context, actor rbac.Principal, id string) (Case, error) {
	if !canView(actor) {
		return Case{}, fmt.Errorf("%w: requesting review requires case_view", ErrDenied)
	}
	return w.annotate(ctx, actor, id, actionReviewRequested)
}

// AddComment appends a free-text comment to the case history.
func (w *Workflow) AddComment(ctx context.Context, actor rbac.Principal, id, text string) (Case, error) {
	if !canView(actor) {
		return Case{}, fmt.Errorf("%w: commenting requires case_view", ErrDenied)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Case{}, fmt.Errorf("%w: comment text is required", ErrInvalidInput)
	}
	return w.annotate(ctx, actor, id, fmt.Sprintf("Comment added: %q", text))
}

// AddDocument attaches a document record to the case.
func (w *Workflow) AddDocument(ctx context.Context, actor rbac.Principal, id string, doc Document) (Case, error) {
	if !actor.HasAnyPermission(rbac.PermDocumentUpload, rbac.PermCaseManagement, rbac.PermAllModules) {
		return Case{}, fmt.Errorf("%w: uploading documents requires document_upload", ErrDenied)
	}
	doc.Name = strings.TrimSpace(doc.Name)
	doc.Type = strings.TrimSpace(doc.Type)
	if doc.Name == "" || doc.Type == "" {
		return Case{}, fmt.Errorf("%w: document name and type are required", ErrInvalidInput)
	}
	doc.UploadedAt = w.now().UTC()
	updated, err := w.store.AddDocument(ctx, strings.TrimSpace(id), doc)
	if err != nil {
		return Case{}, err
	}
	w.notify(updated, "Document uploaded: "+doc.Name)
	return updated, nil
}

// History returns the case log, newest first.
func (w *Workflow) History(ctx context.Context, actor rbac.Principal, id string) ([]HistoryEntry, error) {
	c, err := w.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return c.History, nil
}

func (w *Workflow) transition(ctx context.Context, actor rbac.Principal, id string, current Case, status, action string) (Case, error) {
	if !reachable(current.Status, status) {
		return Case{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, current.Status, status)
	}
	entry := HistoryEntry{Time: w.now().UTC(), Action: action, Actor: actor.User.Name}
	updated, err := w.store.Transition(ctx, id, status, entry)
	if err != nil {
		return Case{}, err
	}
	obs.ObserveCaseTransition(status)
	w.notify(updated, action)
	return updated, nil
}

// annotate prepends a history entry without changing the status.
func (w *Workflow) annotate(ctx context.Context, actor rbac.Principal, id, action string) (Case, error) {
	entry := HistoryEntry{Time: w.now().UTC(), Action: action, Actor: actor.User.Name}
	updated, err := w.store.Transition(ctx, strings.TrimSpace(id), "", entry)
	if err != nil {
		return Case{}, err
	}
	w.notify(updated, action)
	return updated, nil
}

func (w *Workflow) notify(c Case, action string) {
	if w.notifier != nil {
		w.notifier.CaseChanged(c, action)
	}
}

func canView(actor rbac.Principal) bool {
	return actor.HasAnyPermission(rbac.PermCaseView, rbac.PermCaseManagement, rbac.PermAllModules)
}

func canEdit(actor rbac.Principal) bool {
	return actor.HasAnyPermission(rbac.PermCaseManagement, rbac.PermAllModules)
}

func reachable(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func trimInput(in Input) Input {
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	in.BusinessType = strings.TrimSpace(in.BusinessType)
	in.RegistrationNumber = strings.TrimSpace(in.RegistrationNumber)
	in.MerchantCategory = strings.TrimSpace(in.MerchantCategory)
	in.BusinessAddress = strings.TrimSpace(in.BusinessAddress)
	in.DirectorName = strings.TrimSpace(in.DirectorName)
	in.DirectorIC = strings.TrimSpace(in.DirectorIC)
	in.DirectorPhone = strings.TrimSpace(in.DirectorPhone)
	in.DirectorEmail = strings.TrimSpace(in.DirectorEmail)
	return in
}

func validateSubmission(in Input) error {
	required := []struct{ field, value string }{
		{"business_name", in.BusinessName},
		{"business_type", in.BusinessType},
		{"registration_number", in.RegistrationNumber},
		{"merchant_category", in.MerchantCategory},
		{"business_address", in.BusinessAddress},
		{"director_name", in.DirectorName},
		{"director_ic", in.DirectorIC},
		{"director_phone", in.DirectorPhone},
		{"director_email", in.DirectorEmail},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, r.field)
		}
	}
	if !icPattern.MatchString(in.DirectorIC) {
		return fmt.Errorf("%w: director_ic must contain only digits", ErrInvalidInput)
	}
	if !digitsOnlyPattern.MatchString(in.DirectorPhone) {
		return fmt.Errorf("%w: director_phone must contain only digits", ErrInvalidInput)
	}
	if !emailPattern.MatchString(in.DirectorEmail) {
		return fmt.Errorf("%w: director_email is malformed", ErrInvalidInput)
	}
	return nil
}
