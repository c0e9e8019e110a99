package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/storage"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	exec, err := storage.NewSQLiteExecutor(storage.SQLiteOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	require.NoError(t, storage.ApplySchema(context.Background(), exec, storage.SQLiteDDL{}))
	return NewRepository(exec)
}

func TestCreateAndGetPlan(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := &Plan{ProjectID: "p-1", Title: "migrate the indexer"}
	require.NoError(t, repo.CreatePlan(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := repo.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, got.Status, "empty status defaults to draft")
	assert.Equal(t, "migrate the indexer", got.Title)
}

func TestCreatePlanValidation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	assert.Error(t, repo.CreatePlan(ctx, &Plan{ProjectID: "p-1"}), "empty title rejected")
	assert.Error(t, repo.CreatePlan(ctx, &Plan{ProjectID: "p-1", Title: "x", Status: "bogus"}))
}

func TestUpdateStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := &Plan{ProjectID: "p-1", Title: "plan"}
	require.NoError(t, repo.CreatePlan(ctx, p))

	require.NoError(t, repo.UpdateStatus(ctx, p.ID, StatusActive))

	got, err := repo.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)

	assert.Error(t, repo.UpdateStatus(ctx, p.ID, "bogus"))
	assert.True(t, errors.IsNotFound(repo.UpdateStatus(ctx, "ghost", StatusActive)))
}

func TestVersionNumbersAreMonotonic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := &Plan{ProjectID: "p-1", Title: "plan"}
	require.NoError(t, repo.CreatePlan(ctx, p))

	v1, err := repo.AddVersion(ctx, p.ID, `{"step":1}`)
	require.NoError(t, err)
	v2, err := repo.AddVersion(ctx, p.ID, `{"step":2}`)
	require.NoError(t, err)
	v3, err := repo.AddVersion(ctx, p.ID, `{"step":3}`)
	require.NoError(t, err)

	assert.Equal(t, int64(1), v1.VersionNumber)
	assert.Equal(t, int64(2), v2.VersionNumber)
	assert.Equal(t, int64(3), v3.VersionNumber)

	versions, err := repo.ListVersions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, `{"step":2}`, versions[1].ContentJSON)
}

func TestDeletePlanBlockedByVersions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := &Plan{ProjectID: "p-1", Title: "plan"}
	require.NoError(t, repo.CreatePlan(ctx, p))
	_, err := repo.AddVersion(ctx, p.ID, `{}`)
	require.NoError(t, err)

	err = repo.DeletePlan(ctx, p.ID)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryInvalidState, errors.CategoryOf(err))

	// Still present.
	_, err = repo.GetPlan(ctx, p.ID)
	require.NoError(t, err)
}

func TestDeletePlanWithoutVersions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := &Plan{ProjectID: "p-1", Title: "plan"}
	require.NoError(t, repo.CreatePlan(ctx, p))
	require.NoError(t, repo.DeletePlan(ctx, p.ID))

	_, err := repo.GetPlan(ctx, p.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestReviews(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := &Plan{ProjectID: "p-1", Title: "plan"}
	require.NoError(t, repo.CreatePlan(ctx, p))
	v, err := repo.AddVersion(ctx, p.ID, `{}`)
	require.NoError(t, err)

	comments := "needs a rollback step"
	require.NoError(t, repo.AddReview(ctx, &Review{
		PlanVersionID: v.ID,
		Reviewer:      "reviewer-1",
		Verdict:       VerdictNeedsRevision,
		Comments:      &comments,
	}))

	reviews, err := repo.ListReviews(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, VerdictNeedsRevision, reviews[0].Verdict)
	assert.Equal(t, comments, *reviews[0].Comments)

	// Unknown verdict and unknown version are rejected.
	assert.Error(t, repo.AddReview(ctx, &Review{PlanVersionID: v.ID, Reviewer: "r", Verdict: "maybe"}))
	err = repo.AddReview(ctx, &Review{PlanVersionID: "ghost", Reviewer: "r", Verdict: VerdictApproved})
	assert.True(t, errors.IsNotFound(err))
}
