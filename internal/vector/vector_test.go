package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/ids"
)

func newTestStore(t *testing.T) *HNSWStore {
	t.Helper()
	s := NewHNSWStore()
	t.Cleanup(s.Close)
	return s
}

func vec(dims int, hot int) []float32 {
	v := make([]float32, dims)
	v[hot] = 1
	return v
}

func TestCreateCollectionIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := ids.MustFromName("proj")

	require.NoError(t, s.CreateCollection(ctx, name, 4))
	require.NoError(t, s.CreateCollection(ctx, name, 4), "same dimensions is a no-op")

	err := s.CreateCollection(ctx, name, 8)
	require.Error(t, err, "differing dimensions must fail")

	exists, err := s.CollectionExists(ctx, name)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInsertAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := ids.MustFromName("proj")
	require.NoError(t, s.CreateCollection(ctx, name, 4))

	idsOut, err := s.InsertVectors(ctx, name,
		[][]float32{vec(4, 0), vec(4, 1), vec(4, 2)},
		[]Metadata{
			{Content: "alpha", FilePath: "a.go", StartLine: 1, Language: "go"},
			{Content: "beta", FilePath: "b.go", StartLine: 10, Language: "go"},
			{Content: "gamma", FilePath: "c.py", StartLine: 20, Language: "python"},
		})
	require.NoError(t, err)
	require.Len(t, idsOut, 3)

	results, err := s.SearchSimilar(ctx, name, vec(4, 0), 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Content)
	assert.Equal(t, "a.go", results[0].FilePath)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchBoundaries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := ids.MustFromName("proj")
	require.NoError(t, s.CreateCollection(ctx, name, 4))

	_, err := s.InsertVectors(ctx, name,
		[][]float32{vec(4, 0), vec(4, 1)},
		[]Metadata{{Content: "a"}, {Content: "b"}})
	require.NoError(t, err)

	// k=0 returns an empty list.
	results, err := s.SearchSimilar(ctx, name, vec(4, 0), 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	// k > collection size returns all vectors.
	results, err = s.SearchSimilar(ctx, name, vec(4, 0), 50, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchWithFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := ids.MustFromName("proj")
	require.NoError(t, s.CreateCollection(ctx, name, 4))

	_, err := s.InsertVectors(ctx, name,
		[][]float32{vec(4, 0), vec(4, 1)},
		[]Metadata{
			{Content: "session one", Extra: map[string]string{"session_id": "session-1"}},
			{Content: "session two", Extra: map[string]string{"session_id": "session-2"}},
		})
	require.NoError(t, err)

	results, err := s.SearchSimilar(ctx, name, vec(4, 1), 10, Filter{"session_id": "session-1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "session one", results[0].Content)
}

func TestDeleteVectors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := ids.MustFromName("proj")
	require.NoError(t, s.CreateCollection(ctx, name, 4))

	out, err := s.InsertVectors(ctx, name,
		[][]float32{vec(4, 0), vec(4, 1)},
		[]Metadata{{Content: "a"}, {Content: "b"}})
	require.NoError(t, err)

	require.NoError(t, s.DeleteVectors(ctx, name, []string{out[0], "no-such-id"}))

	results, err := s.SearchSimilar(ctx, name, vec(4, 0), 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Content)

	stored, err := s.GetVectorsByIDs(ctx, name, out)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, out[1], stored[0].ID)
}

func TestDimensionMismatchRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := ids.MustFromName("proj")
	require.NoError(t, s.CreateCollection(ctx, name, 4))

	_, err := s.InsertVectors(ctx, name, [][]float32{make([]float32, 8)}, []Metadata{{}})
	require.Error(t, err)

	_, err = s.SearchSimilar(ctx, name, make([]float32, 8), 3, nil)
	require.Error(t, err)
}

func TestUnknownCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SearchSimilar(ctx, ids.MustFromName("ghost"), vec(4, 0), 3, nil)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestBrowser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := ids.MustFromName("proj")
	require.NoError(t, s.CreateCollection(ctx, name, 4))

	_, err := s.InsertVectors(ctx, name,
		[][]float32{vec(4, 0), vec(4, 1), vec(4, 2)},
		[]Metadata{
			{Content: "second", FilePath: "a.go", StartLine: 30, Language: "go"},
			{Content: "first", FilePath: "a.go", StartLine: 5, Language: "go"},
			{Content: "other", FilePath: "b.go", StartLine: 1, Language: "go"},
		})
	require.NoError(t, err)

	collections, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"proj"}, collections)

	paths, err := s.ListFilePaths(ctx, name, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "b.go"}, paths)

	chunks, err := s.GetChunksByFile(ctx, name, "a.go")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first", chunks[0].Content, "chunks ordered by start line")
	assert.Equal(t, "second", chunks[1].Content)
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCollection(ctx, ids.MustFromName("a"), 4))
	require.NoError(t, s.CreateCollection(ctx, ids.MustFromName("b"), 8))
	_, err := s.InsertVectors(ctx, ids.MustFromName("a"),
		[][]float32{vec(4, 0)}, []Metadata{{Content: "x"}})
	require.NoError(t, err)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats.Collections, 2)
	assert.Equal(t, "a", stats.Collections[0].Name)
	assert.Equal(t, 1, stats.Collections[0].VectorCount)
	assert.Equal(t, 4, stats.Collections[0].Dimensions)
	assert.Equal(t, 0, stats.Collections[1].VectorCount)

	require.NoError(t, s.Flush(ctx))
}

func TestSentinelsForMissingFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	name := ids.MustFromName("proj")
	require.NoError(t, s.CreateCollection(ctx, name, 4))

	_, err := s.InsertVectors(ctx, name, [][]float32{vec(4, 0)}, []Metadata{{Content: "bare"}})
	require.NoError(t, err)

	results, err := s.SearchSimilar(ctx, name, vec(4, 0), 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids.UnknownLanguage, results[0].Language)
	assert.Equal(t, ids.UnknownStartLine, results[0].StartLine)
}
