package project

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/storage"
)

func newTestService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	exec, err := storage.NewSQLiteExecutor(storage.SQLiteOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	require.NoError(t, storage.ApplySchema(context.Background(), exec, storage.SQLiteDDL{}))
	return NewService(exec), NewRepository(exec)
}

func TestOrganizationAndProjectRoundTrip(t *testing.T) {
	_, repo := newTestService(t)
	ctx := context.Background()

	org := &Organization{
		ID:       "org-1",
		Name:     "Acme",
		Slug:     "acme",
		Settings: map[string]any{"plan": "pro"},
	}
	require.NoError(t, repo.CreateOrganization(ctx, org))

	gotOrg, err := repo.GetOrganization(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "pro", gotOrg.Settings["plan"])

	p := &Project{ID: "p-1", OrgID: "org-1", Name: "svc", Path: "/srv/svc"}
	require.NoError(t, repo.CreateProject(ctx, p))

	gotProject, err := repo.GetProject(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", gotProject.OrgID)

	projects, err := repo.ListProjects(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, projects, 1)

	// Project under an unknown org fails with NotFound.
	err = repo.CreateProject(ctx, &Project{ID: "p-2", OrgID: "ghost", Name: "x"})
	assert.True(t, errors.IsNotFound(err))
}

func TestPhaseSequenceAssignment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		phase, err := svc.CreatePhase(ctx, "p-1", "phase", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(i), phase.Sequence)
	}

	// Phases in another project start at 1.
	other, err := svc.CreatePhase(ctx, "p-2", "phase", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Sequence)

	// list_phases returns 1..=len without gaps.
	phases, err := svc.ListPhases(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, phases, 3)
	for i, phase := range phases {
		assert.Equal(t, int64(i+1), phase.Sequence)
	}
}

func TestPhaseTimestampPolicies(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	phase, err := svc.CreatePhase(ctx, "p-1", "build", nil)
	require.NoError(t, err)
	assert.Nil(t, phase.StartedAt)

	started, err := svc.UpdatePhaseStatus(ctx, phase.ID, PhaseInProgress)
	require.NoError(t, err)
	require.NotNil(t, started.StartedAt)
	firstStart := *started.StartedAt

	// Re-entering in_progress preserves the original timestamp.
	again, err := svc.UpdatePhaseStatus(ctx, phase.ID, PhaseInProgress)
	require.NoError(t, err)
	assert.Equal(t, firstStart, *again.StartedAt)

	completed, err := svc.UpdatePhaseStatus(ctx, phase.ID, PhaseCompleted)
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, firstStart, *completed.StartedAt)
}

func TestIssueClosedAtStampingAndClearing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	issue, err := svc.CreateIssue(ctx, "p-1", "flaky test", nil)
	require.NoError(t, err)
	assert.Equal(t, IssueOpen, issue.Status)
	assert.Nil(t, issue.ClosedAt)

	resolved, err := svc.UpdateIssueStatus(ctx, issue.ID, IssueResolved)
	require.NoError(t, err)
	require.NotNil(t, resolved.ClosedAt)

	// Transition back out clears closed_at.
	reopened, err := svc.UpdateIssueStatus(ctx, issue.ID, IssueOpen)
	require.NoError(t, err)
	assert.Nil(t, reopened.ClosedAt)

	closed, err := svc.UpdateIssueStatus(ctx, issue.ID, IssueClosed)
	require.NoError(t, err)
	assert.NotNil(t, closed.ClosedAt)
}

func TestAddDependencyRequiresBothIssues(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateIssue(ctx, "p-1", "issue a", nil)
	require.NoError(t, err)
	b, err := svc.CreateIssue(ctx, "p-1", "issue b", nil)
	require.NoError(t, err)

	dep, err := svc.AddDependency(ctx, "p-1", a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, dep.FromIssueID)

	_, err = svc.AddDependency(ctx, "p-1", a.ID, "ghost")
	assert.True(t, errors.IsNotFound(err))

	_, err = svc.AddDependency(ctx, "p-1", "ghost", b.ID)
	assert.True(t, errors.IsNotFound(err))

	deps, err := svc.ListDependencies(ctx, "p-1")
	require.NoError(t, err)
	assert.Len(t, deps, 1)
}

func TestDecisions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rationale := "sqlite keeps the deployment single-binary"
	_, err := svc.RecordDecision(ctx, "p-1", "use sqlite", &rationale)
	require.NoError(t, err)

	decisions, err := svc.ListDecisions(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "use sqlite", decisions[0].Title)
	assert.Equal(t, rationale, *decisions[0].Rationale)

	_, err = svc.RecordDecision(ctx, "p-1", "", nil)
	assert.Error(t, err)
}
