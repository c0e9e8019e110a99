package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/filehash"
	"github.com/marlonsc/mcb/internal/storage"
)

func newTestRepo(t *testing.T) (*Repository, *storage.SQLiteExecutor) {
	t.Helper()
	exec, err := storage.NewSQLiteExecutor(storage.SQLiteOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	require.NoError(t, storage.ApplySchema(context.Background(), exec, storage.SQLiteDDL{}))
	return NewRepository(exec), exec
}

func testObservation(id, content string) *Observation {
	return &Observation{
		ID:          id,
		ProjectID:   "p-1",
		Content:     content,
		ContentHash: filehash.HashBytes([]byte(content)),
		Tags:        []string{"test"},
		Type:        ObservationContext,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestStoreAndGetObservation(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	obs := testObservation("obs-1", "discovered the config loader ignores hot reload")
	obs.Metadata = Metadata{SessionID: "session-1", Branch: "main", Commit: "abc123"}
	require.NoError(t, repo.StoreObservation(ctx, obs))

	got, err := repo.GetObservation(ctx, "obs-1")
	require.NoError(t, err)
	assert.Equal(t, obs.Content, got.Content)
	assert.Equal(t, obs.Metadata, got.Metadata)
	assert.Equal(t, obs.Tags, got.Tags)
	assert.Equal(t, obs.Type, got.Type)
	assert.Equal(t, obs.CreatedAt, got.CreatedAt)
}

func TestStoreObservationValidation(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Observation)
	}{
		{"empty id", func(o *Observation) { o.ID = "" }},
		{"empty project", func(o *Observation) { o.ProjectID = "" }},
		{"empty content", func(o *Observation) { o.Content = "   " }},
		{"bad type", func(o *Observation) { o.Type = "gossip" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := testObservation("obs-x", "valid content")
			tt.mutate(obs)
			assert.Error(t, repo.StoreObservation(ctx, obs))
		})
	}
}

func TestGetObservationNotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetObservation(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestSearchTextFindsStoredObservation(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.StoreObservation(ctx, testObservation("obs-a", "content about rust generics and trait bounds")))
	require.NoError(t, repo.StoreObservation(ctx, testObservation("obs-b", "content about python dynamic types")))

	results, err := repo.SearchText(ctx, "rust generics", Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "obs-a", results[0].Observation.ID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestSearchTextAfterDelete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.StoreObservation(ctx, testObservation("obs-1", "ephemeral zanzibar token")))

	results, err := repo.SearchText(ctx, "zanzibar", Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, repo.DeleteObservation(ctx, "obs-1"))

	results, err = repo.SearchText(ctx, "zanzibar", Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchTextFilterBySession(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	obs1 := testObservation("obs-1", "first observation about the indexer")
	obs1.Metadata.SessionID = "session-1"
	obs2 := testObservation("obs-2", "second observation about the indexer")
	obs2.Metadata.SessionID = "session-2"
	require.NoError(t, repo.StoreObservation(ctx, obs1))
	require.NoError(t, repo.StoreObservation(ctx, obs2))

	results, err := repo.SearchText(ctx, "observation", Filter{SessionID: "session-1"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "obs-1", results[0].Observation.ID)
}

func TestSearchTextEdgeCases(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.StoreObservation(ctx, testObservation("obs-1", "some content")))

	// k=0 returns nothing.
	results, err := repo.SearchText(ctx, "content", Filter{}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	// A query with no indexable tokens returns nothing.
	results, err = repo.SearchText(ctx, "!!! ???", Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFilterObservations(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	obs1 := testObservation("obs-1", "error in chunker")
	obs1.Type = ObservationError
	obs1.Tags = []string{"chunker", "bug"}
	obs2 := testObservation("obs-2", "decision on fusion weights")
	obs2.Type = ObservationDecision
	obs2.Tags = []string{"search"}
	require.NoError(t, repo.StoreObservation(ctx, obs1))
	require.NoError(t, repo.StoreObservation(ctx, obs2))

	byType, err := repo.FilterObservations(ctx, "p-1", Filter{Type: ObservationError}, 0)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "obs-1", byType[0].ID)

	byTag, err := repo.FilterObservations(ctx, "p-1", Filter{Tags: []string{"search"}}, 0)
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, "obs-2", byTag[0].ID)

	missingTag, err := repo.FilterObservations(ctx, "p-1", Filter{Tags: []string{"search", "bug"}}, 0)
	require.NoError(t, err)
	assert.Empty(t, missingTag)
}

func TestCorruptMetadataSurfacesDataCorruption(t *testing.T) {
	repo, exec := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.StoreObservation(ctx, testObservation("obs-1", "fine content")))

	// Corrupt the stored metadata behind the repository's back.
	require.NoError(t, exec.Execute(ctx,
		`UPDATE observations SET metadata = ? WHERE id = ?`,
		[]storage.Param{storage.String("{not json"), storage.String("obs-1")}))

	_, err := repo.GetObservation(ctx, "obs-1")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryDataCorruption, errors.CategoryOf(err))
	assert.Contains(t, err.Error(), "observation.metadata")
}

func TestSessionSummaryRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	summary := &SessionSummary{
		ID:        "sum-1",
		ProjectID: "p-1",
		SessionID: "session-1",
		Topics:    []string{"indexing", "fts"},
		Decisions: []string{"keep alpha at 0.5"},
		NextSteps: []string{"wire the watcher"},
		KeyFiles:  []string{"internal/search/engine.go"},
		OriginContext: map[string]any{
			"branch": "main",
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.StoreSessionSummary(ctx, summary))

	got, err := repo.GetSessionSummary(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, summary.Topics, got.Topics)
	assert.Equal(t, summary.Decisions, got.Decisions)
	assert.Equal(t, summary.NextSteps, got.NextSteps)
	assert.Equal(t, summary.KeyFiles, got.KeyFiles)
	assert.Equal(t, "main", got.OriginContext["branch"])

	_, err = repo.GetSessionSummary(ctx, "unknown-session")
	assert.True(t, errors.IsNotFound(err))
}

func TestListByProjectOrdering(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	older := testObservation("obs-old", "older note")
	older.CreatedAt = time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	newer := testObservation("obs-new", "newer note")
	require.NoError(t, repo.StoreObservation(ctx, older))
	require.NoError(t, repo.StoreObservation(ctx, newer))

	list, err := repo.ListByProject(ctx, "p-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "obs-new", list[0].ID, "newest first")

	limited, err := repo.ListByProject(ctx, "p-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
