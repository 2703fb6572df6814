package mem

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bank.com/mop/internal/cases"
	"bank.com/mop/internal/rbac"
)

func TestDeletePermissionStripsRoles(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreatePermission(ctx, rbac.Permission{ID: "case_view", Name: "Case View"})
	require.NoError(t, err)
	_, err = s.CreateRole(ctx, rbac.Role{ID: "r1", Name: "R1", Permissions: []string{"case_view"}})
	require.NoError(t, err)
	_, err = s.CreateRole(ctx, rbac.Role{ID: "r2", Name: "R2", Permissions: []string{"case_view", "case_creation"}})
	require.NoError(t, err)

	require.NoError(t, s.DeletePermission(ctx, "case_view"))

	r1, err := s.GetRole(ctx, "r1")
	require.NoError(t, err)
	require.Empty(t, r1.Permissions)

	r2, err := s.GetRole(ctx, "r2")
	require.NoError(t, err)
	require.Equal(t, []string{"case_creation"}, r2.Permissions)
}

func TestReturnedRoleIsACopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateRole(ctx, rbac.Role{ID: "r1", Name: "R1", Permissions: []string{"a"}})
	require.NoError(t, err)

	got, err := s.GetRole(ctx, "r1")
	require.NoError(t, err)
	got.Permissions[0] = "mutated"

	again, err := s.GetRole(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, again.Permissions, "callers must not be able to mutate stored state")
}

func TestEmailUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateUser(ctx, rbac.User{ID: "u1", Email: "same@bank.com"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, rbac.User{ID: "u2", Email: "Same@bank.com"})
	require.ErrorIs(t, err, rbac.ErrConflict)

	_, err = s.CreateUser(ctx, rbac.User{ID: "u3", Email: "other@bank.com"})
	require.NoError(t, err)
	email := "same@bank.com"
	_, err = s.UpdateUser(ctx, "u3", rbac.UserUpdate{Email: &email})
	require.ErrorIs(t, err, rbac.ErrConflict)
}

func TestNextCaseSequenceIsMonotonicPerYear(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	seen := make(chan int, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.NextCaseSequence(ctx, 2026)
			require.NoError(t, err)
			seen <- n
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int]bool{}
	for n := range seen {
		require.False(t, unique[n], "sequence %d issued twice", n)
		unique[n] = true
	}
	require.Len(t, unique, 100)

	n, err := s.NextCaseSequence(ctx, 2027)
	require.NoError(t, err)
	require.Equal(t, 1, n, "sequences are independent per year")
}

func TestTransitionIsAtomicallyVisible(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	_, err := s.CreateCase(ctx, cases.Case{
		ID:      "MOP-2026-001",
		Status:  cases.StatusDraft,
		History: []cases.HistoryEntry{{Time: now, Action: "Case created"}},
	})
	require.NoError(t, err)

	updated, err := s.Transition(ctx, "MOP-2026-001", cases.StatusPendingReview, cases.HistoryEntry{
		Time: now.Add(time.Minute), Action: "Case submitted for review",
	})
	require.NoError(t, err)
	require.Equal(t, cases.StatusPendingReview, updated.Status)
	require.Len(t, updated.History, 2)
	require.Equal(t, "Case submitted for review", updated.History[0].Action)
	require.Equal(t, now.Add(time.Minute), updated.UpdatedAt)

	_, err = s.Transition(ctx, "MOP-9999-999", "", cases.HistoryEntry{Time: now, Action: "noop"})
	require.ErrorIs(t, err, cases.ErrNotFound)
}
