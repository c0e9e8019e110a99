package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonsc/mcb/internal/embed"
	"github.com/marlonsc/mcb/internal/events"
	"github.com/marlonsc/mcb/internal/ids"
	"github.com/marlonsc/mcb/internal/memory"
	"github.com/marlonsc/mcb/internal/search"
	"github.com/marlonsc/mcb/internal/storage"
	"github.com/marlonsc/mcb/internal/vector"
)

func newMemoryService(t *testing.T, opts search.Options) (*MemoryService, *events.Recorder) {
	t.Helper()

	exec, err := storage.NewSQLiteExecutor(storage.SQLiteOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exec.Close() })
	ctx := context.Background()
	require.NoError(t, storage.ApplySchema(ctx, exec, storage.SQLiteDDL{}))

	store := vector.NewHNSWStore()
	t.Cleanup(store.Close)

	rec := events.NewRecorder()
	if opts.Publisher == nil {
		opts.Publisher = rec
	}

	svc, err := NewMemoryService(ctx,
		memory.NewRepository(exec),
		embed.NewStaticProvider(),
		store,
		ids.MustFromName("observations_test"),
		opts)
	require.NoError(t, err)
	return svc, rec
}

func storeObs(t *testing.T, svc *MemoryService, content, sessionID string) string {
	t.Helper()
	id, err := svc.StoreObservation(context.Background(), &memory.Observation{
		ProjectID: "p-1",
		Content:   content,
		Type:      memory.ObservationContext,
		Metadata:  memory.Metadata{SessionID: sessionID},
	})
	require.NoError(t, err)
	return id
}

func TestStoreObservationIndexesBothLegs(t *testing.T) {
	svc, _ := newMemoryService(t, search.Options{})
	ctx := context.Background()

	id := storeObs(t, svc, "the chunker emits one chunk per function", "session-1")

	obs, err := svc.GetObservation(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, obs.EmbeddingID, "observation carries its vector id")
	assert.NotEmpty(t, obs.ContentHash)
}

func TestHybridRanking(t *testing.T) {
	svc, rec := newMemoryService(t, search.Options{})
	ctx := context.Background()

	idA := storeObs(t, svc, "content about rust generics and trait bounds", "")
	storeObs(t, svc, "content about python dynamic types", "")

	results, err := svc.Search(ctx, "rust generics", memory.Filter{}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, idA, results[0].Observation.ID, "lexical match ranks first")
	if len(results) > 1 {
		assert.Greater(t, results[0].Score, results[1].Score)
	}

	// A SearchExecuted event is published.
	kinds := rec.Kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, events.KindSearchExecuted, kinds[len(kinds)-1])
}

func TestHybridFilterBySession(t *testing.T) {
	svc, _ := newMemoryService(t, search.Options{})
	ctx := context.Background()

	idWanted := storeObs(t, svc, "observation from the first session", "session-1")
	storeObs(t, svc, "observation from the second session", "session-2")

	results, err := svc.Search(ctx, "observation", memory.Filter{SessionID: "session-1"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "filter reduces the result count")
	assert.Equal(t, idWanted, results[0].Observation.ID)
}

func TestSearchKZero(t *testing.T) {
	svc, _ := newMemoryService(t, search.Options{})

	results, err := svc.Search(context.Background(), "anything", memory.Filter{}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchTruncatesToK(t *testing.T) {
	svc, _ := newMemoryService(t, search.Options{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		storeObs(t, svc, "shared token observation number", "")
	}

	results, err := svc.Search(ctx, "observation", memory.Filter{}, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestVectorOnlyHitStillSurfaces(t *testing.T) {
	// Alpha close to 1 leans almost entirely on the vector leg.
	svc, _ := newMemoryService(t, search.Options{Alpha: 0.9})
	ctx := context.Background()

	storeObs(t, svc, "vector similarity retrieval with embeddings", "")

	// FTS query tokens must all match, and "similar" and "embedding" have
	// no exact match ("similarity", "embeddings"), so the FTS leg is empty
	// and results come from the vector leg alone.
	results, err := svc.Search(ctx, "similar retrieval embedding", memory.Filter{}, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.Zero(t, results[0].FTSScore)
	assert.Positive(t, results[0].VectorScore)
}

func TestSessionSummaryThroughService(t *testing.T) {
	svc, _ := newMemoryService(t, search.Options{})
	ctx := context.Background()

	id, err := svc.StoreSessionSummary(ctx, &memory.SessionSummary{
		ProjectID: "p-1",
		SessionID: "session-1",
		Topics:    []string{"hybrid search"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := svc.GetSessionSummary(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hybrid search"}, got.Topics)
}
