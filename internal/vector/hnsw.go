package vector

import (
	"math"
	"sort"

	"github.com/coder/hnsw"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/ids"
)

// collection is one HNSW graph with its id mappings and metadata. It is
// only ever touched by the owning actor goroutine, so it carries no locks.
type collection struct {
	name       string
	dimensions int
	graph      *hnsw.Graph[uint64]

	idMap   map[string]uint64 // vector id -> internal key
	keyMap  map[uint64]string // internal key -> vector id
	meta    map[string]Metadata
	vecs    map[string][]float32 // normalized copies for direct reads
	order   []string             // insertion order of live ids
	nextKey uint64
}

func newCollection(name string, dimensions int) *collection {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &collection{
		name:       name,
		dimensions: dimensions,
		graph:      graph,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
		meta:       make(map[string]Metadata),
		vecs:       make(map[string][]float32),
	}
}

// insert adds vectors and returns one id per vector.
func (c *collection) insert(vectors [][]float32, metadata []Metadata) ([]string, error) {
	if len(vectors) != len(metadata) {
		return nil, errors.Newf(errors.CodeInvalidInput,
			"vectors and metadata length mismatch: %d vs %d", len(vectors), len(metadata))
	}

	for _, v := range vectors {
		if len(v) != c.dimensions {
			return nil, errors.Newf(errors.CodeInvalidInput,
				"dimension mismatch: collection %s expects %d, got %d", c.name, c.dimensions, len(v))
		}
	}

	out := make([]string, len(vectors))
	for i, v := range vectors {
		id := ids.NewID()
		key := c.nextKey
		c.nextKey++

		vec := make([]float32, len(v))
		copy(vec, v)
		normalizeInPlace(vec)

		c.graph.Add(hnsw.MakeNode(key, vec))
		c.idMap[id] = key
		c.keyMap[key] = id
		c.meta[id] = metadata[i]
		c.vecs[id] = vec
		c.order = append(c.order, id)
		out[i] = id
	}
	return out, nil
}

// search returns the top-k live vectors by cosine similarity, after filter.
func (c *collection) search(query []float32, k int, filter Filter) ([]ids.SearchResult, error) {
	if len(query) != c.dimensions {
		return nil, errors.Newf(errors.CodeInvalidInput,
			"dimension mismatch: collection %s expects %d, got %d", c.name, c.dimensions, len(query))
	}
	if k <= 0 || c.graph.Len() == 0 {
		return []ids.SearchResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	// Over-fetch so lazily deleted and filtered-out nodes don't shrink
	// the result below k.
	fetch := k
	if fetch < c.graph.Len() {
		fetch = c.graph.Len()
	}

	nodes := c.graph.Search(normalized, fetch)

	results := make([]ids.SearchResult, 0, k)
	for _, node := range nodes {
		id, live := c.keyMap[node.Key]
		if !live {
			continue
		}
		m := c.meta[id]
		if !matches(m, filter) {
			continue
		}

		distance := c.graph.Distance(normalized, node.Value)
		results = append(results, toSearchResult(id, distanceToScore(distance), m))
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// delete removes vectors by id using lazy deletion: mappings are dropped
// and the graph node is orphaned, which sidesteps graph repair on removal
// of the last node.
func (c *collection) delete(vectorIDs []string) {
	removed := make(map[string]struct{}, len(vectorIDs))
	for _, id := range vectorIDs {
		if key, exists := c.idMap[id]; exists {
			delete(c.keyMap, key)
			delete(c.idMap, id)
			delete(c.meta, id)
			delete(c.vecs, id)
			removed[id] = struct{}{}
		}
	}
	if len(removed) == 0 {
		return
	}

	live := c.order[:0]
	for _, id := range c.order {
		if _, gone := removed[id]; !gone {
			live = append(live, id)
		}
	}
	c.order = live
}

func (c *collection) getByIDs(vectorIDs []string) []StoredVector {
	out := make([]StoredVector, 0, len(vectorIDs))
	for _, id := range vectorIDs {
		vec, exists := c.vecs[id]
		if !exists {
			continue
		}
		out = append(out, StoredVector{ID: id, Vector: vec, Metadata: c.meta[id]})
	}
	return out
}

func (c *collection) list(limit int) []StoredVector {
	n := len(c.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]StoredVector, 0, n)
	for _, id := range c.order[:n] {
		out = append(out, StoredVector{ID: id, Vector: c.vecs[id], Metadata: c.meta[id]})
	}
	return out
}

func (c *collection) filePaths(limit int) []string {
	seen := make(map[string]struct{})
	var paths []string
	for _, id := range c.order {
		p := c.meta[id].FilePath
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
		if limit > 0 && len(paths) == limit {
			break
		}
	}
	sort.Strings(paths)
	return paths
}

func (c *collection) chunksByFile(path string) []ids.SearchResult {
	var out []ids.SearchResult
	for _, id := range c.order {
		m := c.meta[id]
		if m.FilePath != path {
			continue
		}
		out = append(out, toSearchResult(id, 0, m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartLine < out[j].StartLine })
	return out
}

func (c *collection) count() int {
	return len(c.idMap)
}

// matches checks a filter against metadata. Reserved keys address the fixed
// fields; everything else addresses Extra.
func matches(m Metadata, filter Filter) bool {
	for key, want := range filter {
		var got string
		switch key {
		case FilterFilePath:
			got = m.FilePath
		case FilterLanguage:
			got = m.Language
		default:
			got = m.Extra[key]
		}
		if got != want {
			return false
		}
	}
	return true
}

func toSearchResult(id string, score float64, m Metadata) ids.SearchResult {
	language := m.Language
	if language == "" {
		language = ids.UnknownLanguage
	}
	if m.RefID != "" {
		id = m.RefID
	}
	return ids.SearchResult{
		ID:        id,
		Score:     score,
		Content:   m.Content,
		FilePath:  m.FilePath,
		StartLine: m.StartLine,
		Language:  language,
	}
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore converts cosine distance (0-2) to similarity (0-1).
func distanceToScore(distance float32) float64 {
	return float64(1.0 - distance/2.0)
}
