package cases

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bank.com/mop/internal/rbac"
)

type fakeCaseStore struct {
	cases map[string]Case
	seq   map[int]int
}

func newFakeCaseStore() *fakeCaseStore {
	return &fakeCaseStore{cases: map[string]Case{}, seq: map[int]int{}}
}

func (f *fakeCaseStore) ListCases(_ context.Context, filter Filter) ([]Case, error) {
	out := make([]Case, 0, len(f.cases))
	for _, c := range f.cases {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCaseStore) GetCase(_ context.Context, id string) (Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return Case{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeCaseStore) CreateCase(_ context.Context, c Case) (Case, error) {
	if _, ok := f.cases[c.ID]; ok {
		return Case{}, ErrConflict
	}
	f.cases[c.ID] = c
	return c, nil
}

func (f *fakeCaseStore) UpdateCase(_ context.Context, id string, upd Update) (Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return Case{}, ErrNotFound
	}
	if upd.BusinessName != nil {
		c.BusinessName = *upd.BusinessName
	}
	if upd.AssignedTo != nil {
		c.AssignedTo = *upd.AssignedTo
	}
	if upd.Priority != nil {
		c.Priority = *upd.Priority
	}
	f.cases[id] = c
	return c, nil
}

func (f *fakeCaseStore) Transition(_ context.Context, id string, status string, entry HistoryEntry) (Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return Case{}, ErrNotFound
	}
	if status != "" {
		c.Status = status
	}
	c.History = append([]HistoryEntry{entry}, c.History...)
	c.UpdatedAt = entry.Time
	f.cases[id] = c
	return c, nil
}

func (f *fakeCaseStore) AddDocument(_ context.Context, id string, doc Document) (Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return Case{}, ErrNotFound
	}
	c.Documents = append(c.Documents, doc)
	c.UpdatedAt = doc.UploadedAt
	f.cases[id] = c
	return c, nil
}

func (f *fakeCaseStore) NextCaseSequence(_ context.Context, year int) (int, error) {
	f.seq[year]++
	return f.seq[year], nil
}

type recordingNotifier struct {
	events []string
}

func (r *recordingNotifier) CaseChanged(c Case, action string) {
	r.events = append(r.events, c.ID+": "+action)
}

func officer() rbac.Principal {
	return rbac.NewPrincipal(
		rbac.User{ID: "user_officer", Name: "Aigerim Nurlan", RoleID: rbac.RoleOnboardingOfficer},
		rbac.Role{ID: rbac.RoleOnboardingOfficer, Permissions: []string{rbac.PermCaseCreation, rbac.PermCaseView, rbac.PermDocumentUpload}},
	)
}

func reviewer() rbac.Principal {
	return rbac.NewPrincipal(
		rbac.User{ID: "user_reviewer", Name: "Bolat Serik", RoleID: rbac.RoleComplianceReviewer},
		rbac.Role{ID: rbac.RoleComplianceReviewer, Permissions: []string{rbac.PermCaseView, rbac.PermCaseManagement, rbac.PermComplianceCheck}},
	)
}

func verifier() rbac.Principal {
	return rbac.NewPrincipal(
		rbac.User{ID: "user_verifier", Name: "Gulnara Abay", RoleID: rbac.RoleVerifier},
		rbac.Role{ID: rbac.RoleVerifier, Permissions: []string{rbac.PermCaseView, rbac.PermBackgroundCheck}},
	)
}

func completeInput() Input {
	return Input{
		BusinessName:       "Almaty Fresh Market",
		BusinessType:       "Retail",
		RegistrationNumber: "REG-991122",
		MerchantCategory:   "Groceries",
		BusinessAddress:    "12 Abay Ave, Almaty",
		DirectorName:       "Dinara Akhmet",
		DirectorIC:         "900101123456",
		DirectorPhone:      "+77012223344",
		DirectorEmail:      "dinara@freshmarket.kz",
	}
}

func newTestWorkflow(t *testing.T, opts ...WorkflowOption) (*Workflow, *fakeCaseStore, *recordingNotifier) {
	t.Helper()
	store := newFakeCaseStore()
	notifier := &recordingNotifier{}
	opts = append([]WorkflowOption{WithNotifier(notifier)}, opts...)
	wf, err := NewWorkflow(store, opts...)
	require.NoError(t, err)
	return wf, store, notifier
}

func TestCreateDraft(t *testing.T) {
	wf, _, notifier := newTestWorkflow(t)

	c, err := wf.Create(context.Background(), officer(), Input{BusinessName: "Half Filled"}, false)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, c.Status)
	require.Len(t, c.History, 1)
	require.Equal(t, "Case created", c.History[0].Action)
	require.Equal(t, "Unassigned", c.AssignedTo)
	require.Len(t, notifier.events, 1)
}

func TestCreateSubmittedSkipsDraft(t *testing.T) {
	wf, _, _ := newTestWorkflow(t)

	c, err := wf.Create(context.Background(), officer(), completeInput(), true)
	require.NoError(t, err)
	require.Equal(t, StatusPendingReview, c.Status)
	require.Len(t, c.History, 1)
}

func TestCreateRequiresPermission(t *testing.T) {
	wf, _, _ := newTestWorkflow(t)

	_, err := wf.Create(context.Background(), verifier(), completeInput(), false)
	require.ErrorIs(t, err, ErrDenied)
}

func TestCreateSubmitValidation(t *testing.T) {
	wf, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	for name, mutate := range map[string]func(Input) Input{
		"missing business name": func(in Input) Input { in.BusinessName = ""; return in },
		"letters in IC":         func(in Input) Input { in.DirectorIC = "90AB01"; return in },
		"letters in phone":      func(in Input) Input { in.DirectorPhone = "+77 call me"; return in },
		"malformed email":       func(in Input) Input { in.DirectorEmail = "not-an-email"; return in },
	} {
		t.Run(name, func(t *testing.T) {
			_, err := wf.Create(ctx, officer(), mutate(completeInput()), true)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestCaseIDFormat(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	wf, _, _ := newTestWorkflow(t, WithWorkflowClock(func() time.Time { return now }))
	ctx := context.Background()

	first, err := wf.Create(ctx, officer(), completeInput(), false)
	require.NoError(t, err)
	require.Equal(t, "MOP-2026-001", first.ID)

	second, err := wf.Create(ctx, officer(), completeInput(), false)
	require.NoError(t, err)
	require.Equal(t, "MOP-2026-002", second.ID)
}

func TestSubmitDraft(t *testing.T) {
	wf, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	draft, err := wf.Create(ctx, officer(), completeInput(), false)
	require.NoError(t, err)

	submitted, err := wf.Submit(ctx, officer(), draft.ID)
	require.NoError(t, err)
	require.NotEqual(t, StatusDraft, submitted.Status)
	require.Len(t, submitted.History, 2, "submit prepends exactly one history entry")
	require.Equal(t, "Case submitted for review", submitted.History[0].Action)

	_, err = wf.Submit(ctx, officer(), draft.ID)
	require.ErrorIs(t, err, ErrBadTransition, "resubmitting a non-draft fails")
}

func TestSubmitIncompleteDraftFails(t *testing.T) {
	wf, store, _ := newTestWorkflow(t)
	ctx := context.Background()

	draft, err := wf.Create(ctx, officer(), Input{BusinessName: "Only A Name"}, false)
	require.NoError(t, err)

	_, err = wf.Submit(ctx, officer(), draft.ID)
	require.ErrorIs(t, err, ErrInvalidInput)

	unchanged := store.cases[draft.ID]
	require.Equal(t, StatusDraft, unchanged.Status, "failed submit leaves the draft untouched")
	require.Len(t, unchanged.History, 1)
}

func TestApproveAndReject(t *testing.T) {
	wf, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	c, err := wf.Create(ctx, officer(), completeInput(), true)
	require.NoError(t, err)

	_, err = wf.Approve(ctx, officer(), c.ID)
	require.ErrorIs(t, err, ErrDenied, "officers cannot approve")

	approved, err := wf.Approve(ctx, reviewer(), c.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Equal(t, "Case approved", approved.History[0].Action)

	_, err = wf.Reject(ctx, reviewer(), c.ID, "")
	require.ErrorIs(t, err, ErrBadTransition, "approved cases are terminal")
}

func TestRejectWithReason(t *testing.T) {
	wf, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	c, err := wf.Create(ctx, officer(), completeInput(), true)
	require.NoError(t, err)

	rejected, err := wf.Reject(ctx, reviewer(), c.ID, "incomplete documents")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "Case rejected - incomplete documents", rejected.History[0].Action)
}

func TestSetStatusEnforcesTransitionTable(t *testing.T) {
	wf, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	c, err := wf.Create(ctx, officer(), completeInput(), false)
	require.NoError(t, err)

	_, err = wf.SetStatus(ctx, reviewer(), c.ID, StatusApproved)
	require.ErrorIs(t, err, ErrBadTransition, "drafts cannot be approved directly")

	_, err = wf.SetStatus(ctx, reviewer(), c.ID, "In Limbo")
	require.ErrorIs(t, err, ErrInvalidInput)

	moved, err := wf.SetStatus(ctx, reviewer(), c.ID, StatusPendingReview)
	require.NoError(t, err)
	require.Equal(t, StatusPendingReview, moved.Status)

	moved, err = wf.SetStatus(ctx, reviewer(), c.ID, StatusBackgroundVerification)
	require.NoError(t, err)
	require.Equal(t, StatusBackgroundVerification, moved.Status)
}

func TestCompleteVerificationKeepsStatus(t *testing.T) {
	wf, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	c, err := wf.Create(ctx, officer(), completeInput(), true)
	require.NoError(t, err)
	c, err = wf.SetStatus(ctx, reviewer(), c.ID, StatusBackgroundVerification)
	require.NoError(t, err)

	done, err := wf.CompleteVerification(ctx, verifier(), c.ID)
	require.NoError(t, err)
	require.Equal(t, StatusBackgroundVerification, done.Status, "verification completion is an annotation")
	require.Equal(t, "Background verification completed", done.History[0].Action)

	_, err = wf.CompleteVerification(ctx, officer(), c.ID)
	require.ErrorIs(t, err, ErrDenied)
}

func TestAnnotations(t *testing.T) {
	wf, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	c, err := wf.Create(ctx, officer(), completeInput(), true)
	require.NoError(t, err)

	flagged, err := wf.Flag(ctx, verifier(), c.ID, "suspicious registration number")
	require.NoError(t, err)
	require.Equal(t, StatusPendingReview, flagged.Status)
	require.Equal(t, "Flagged for review: suspicious registration number", flagged.History[0].Action)

	_, err = wf.Flag(ctx, verifier(), c.ID, "  ")
	require.ErrorIs(t, err, ErrInvalidInput)

	commented, err := wf.AddComment(ctx, officer(), c.ID, "called the director, docs on the way")
	require.NoError(t, err)
	require.Equal(t, `Comment added: "called the director, docs on the way"`, commented.History[0].Action)

	reviewed, err := wf.RequestReview(ctx, verifier(), c.ID)
	require.NoError(t, err)
	require.Equal(t, "Review request sent to Compliance Team", reviewed.History[0].Action)
	require.Len(t, reviewed.History, 4)
}

func TestHistoryNewestFirst(t *testing.T) {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	step := 0
	wf, _, _ := newTestWorkflow(t, WithWorkflowClock(func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}))
	ctx := context.Background()

	c, err := wf.Create(ctx, officer(), completeInput(), true)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		c, err = wf.AddComment(ctx, officer(), c.ID, fmt.Sprintf("note %d", i))
		require.NoError(t, err)
	}

	for i := 0; i < len(c.History)-1; i++ {
		require.True(t, !c.History[i].Time.Before(c.History[i+1].Time), "history must be newest first")
	}
}

func TestAddDocument(t *testing.T) {
	wf, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	c, err := wf.Create(ctx, officer(), completeInput(), true)
	require.NoError(t, err)

	_, err = wf.AddDocument(ctx, verifier(), c.ID, Document{Name: "passport.pdf", Type: "identity"})
	require.ErrorIs(t, err, ErrDenied)

	withDoc, err := wf.AddDocument(ctx, officer(), c.ID, Document{Name: "passport.pdf", Type: "identity"})
	require.NoError(t, err)
	require.Len(t, withDoc.Documents, 1)
	require.False(t, withDoc.Documents[0].UploadedAt.IsZero())

	_, err = wf.AddDocument(ctx, officer(), c.ID, Document{Name: "", Type: "identity"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestListFiltering(t *testing.T) {
	wf, _, _ := newTestWorkflow(t)
	ctx := context.Background()

	_, err := wf.Create(ctx, officer(), completeInput(), true)
	require.NoError(t, err)
	draft, err := wf.Create(ctx, officer(), Input{BusinessName: "Shymkent Textiles"}, false)
	require.NoError(t, err)

	_, err = wf.List(ctx, rbac.NewPrincipal(rbac.User{}, rbac.Role{ID: "nobody"}), Filter{})
	require.ErrorIs(t, err, ErrDenied)

	all, err := wf.List(ctx, verifier(), Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	drafts, err := wf.List(ctx, verifier(), Filter{Status: "draft"})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, draft.ID, drafts[0].ID)

	byName, err := wf.List(ctx, verifier(), Filter{Query: "textiles"})
	require.NoError(t, err)
	require.Len(t, byName, 1)

	byID, err := wf.List(ctx, verifier(), Filter{Query: strings.ToLower(draft.ID)})
	require.NoError(t, err)
	require.Len(t, byID, 1)
}
