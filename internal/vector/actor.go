package vector

import (
	"context"
	"sort"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/ids"
)

// requestQueueSize bounds the actor's mailbox; senders block when full,
// which is the backpressure mechanism.
const requestQueueSize = 128

// messageKind tags actor messages by capability.
type messageKind int

const (
	kindCore messageKind = iota
	kindQuery
	kindBrowse
)

// message is one unit of work for the actor. The actor runs fn and replies
// on done; fn has exclusive access to the store state while it runs.
type message struct {
	kind messageKind
	fn   func(*state)
	done chan struct{}
}

// state is the actor-owned store state. Never accessed outside the actor.
type state struct {
	collections map[string]*collection
}

// HNSWStore implements Store over in-memory HNSW collections behind a
// single-writer actor. One goroutine owns the index; operations are totally
// ordered by receive order per store.
type HNSWStore struct {
	requests chan message
	closed   chan struct{}
}

var _ Store = (*HNSWStore)(nil)

// NewHNSWStore creates the store and starts its actor.
func NewHNSWStore() *HNSWStore {
	s := &HNSWStore{
		requests: make(chan message, requestQueueSize),
		closed:   make(chan struct{}),
	}
	go s.run()
	return s
}

// run is the actor loop. It exits when the request channel closes.
func (s *HNSWStore) run() {
	st := &state{collections: make(map[string]*collection)}
	for msg := range s.requests {
		msg.fn(st)
		close(msg.done)
	}
	close(s.closed)
}

// Close stops the actor. Pending messages are drained first.
func (s *HNSWStore) Close() {
	close(s.requests)
	<-s.closed
}

// dispatch sends a message and waits for the actor to process it.
func (s *HNSWStore) dispatch(ctx context.Context, kind messageKind, fn func(*state)) error {
	msg := message{kind: kind, fn: fn, done: make(chan struct{})}
	select {
	case s.requests <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-msg.done:
		return nil
	case <-ctx.Done():
		// The actor will still process the message; the caller stops
		// waiting and the result is discarded.
		return ctx.Err()
	}
}

// CreateCollection creates a collection with fixed dimensions. Idempotent.
func (s *HNSWStore) CreateCollection(ctx context.Context, name ids.CollectionID, dimensions int) error {
	if dimensions <= 0 {
		return errors.Newf(errors.CodeInvalidInput, "dimensions must be positive, got %d", dimensions)
	}

	var result error
	err := s.dispatch(ctx, kindCore, func(st *state) {
		key := name.BackendName()
		if existing, ok := st.collections[key]; ok {
			if existing.dimensions != dimensions {
				result = errors.Newf(errors.CodeInvalidInput,
					"collection %s exists with dimensions %d, requested %d",
					name.Name(), existing.dimensions, dimensions)
			}
			return
		}
		st.collections[key] = newCollection(name.Name(), dimensions)
	})
	if err != nil {
		return err
	}
	return result
}

// InsertVectors stores vectors and returns one id per vector.
func (s *HNSWStore) InsertVectors(ctx context.Context, name ids.CollectionID, vectors [][]float32, metadata []Metadata) ([]string, error) {
	var (
		out    []string
		result error
	)
	err := s.dispatch(ctx, kindCore, func(st *state) {
		c, ok := st.collections[name.BackendName()]
		if !ok {
			result = errors.NotFound("collection", name.Name())
			return
		}
		out, result = c.insert(vectors, metadata)
	})
	if err != nil {
		return nil, err
	}
	return out, result
}

// SearchSimilar returns the top-k results by cosine similarity.
func (s *HNSWStore) SearchSimilar(ctx context.Context, name ids.CollectionID, query []float32, k int, filter Filter) ([]ids.SearchResult, error) {
	var (
		out    []ids.SearchResult
		result error
	)
	err := s.dispatch(ctx, kindQuery, func(st *state) {
		c, ok := st.collections[name.BackendName()]
		if !ok {
			result = errors.NotFound("collection", name.Name())
			return
		}
		out, result = c.search(query, k, filter)
	})
	if err != nil {
		return nil, err
	}
	return out, result
}

// DeleteVectors removes vectors by id. Unknown ids are ignored.
func (s *HNSWStore) DeleteVectors(ctx context.Context, name ids.CollectionID, vectorIDs []string) error {
	var result error
	err := s.dispatch(ctx, kindCore, func(st *state) {
		c, ok := st.collections[name.BackendName()]
		if !ok {
			result = errors.NotFound("collection", name.Name())
			return
		}
		c.delete(vectorIDs)
	})
	if err != nil {
		return err
	}
	return result
}

// GetVectorsByIDs returns stored vectors for the given ids.
func (s *HNSWStore) GetVectorsByIDs(ctx context.Context, name ids.CollectionID, vectorIDs []string) ([]StoredVector, error) {
	var (
		out    []StoredVector
		result error
	)
	err := s.dispatch(ctx, kindQuery, func(st *state) {
		c, ok := st.collections[name.BackendName()]
		if !ok {
			result = errors.NotFound("collection", name.Name())
			return
		}
		out = c.getByIDs(vectorIDs)
	})
	if err != nil {
		return nil, err
	}
	return out, result
}

// ListVectors returns up to limit stored vectors in insertion order.
func (s *HNSWStore) ListVectors(ctx context.Context, name ids.CollectionID, limit int) ([]StoredVector, error) {
	var (
		out    []StoredVector
		result error
	)
	err := s.dispatch(ctx, kindBrowse, func(st *state) {
		c, ok := st.collections[name.BackendName()]
		if !ok {
			result = errors.NotFound("collection", name.Name())
			return
		}
		out = c.list(limit)
	})
	if err != nil {
		return nil, err
	}
	return out, result
}

// CollectionExists reports whether the collection has been created.
func (s *HNSWStore) CollectionExists(ctx context.Context, name ids.CollectionID) (bool, error) {
	var exists bool
	err := s.dispatch(ctx, kindQuery, func(st *state) {
		_, exists = st.collections[name.BackendName()]
	})
	return exists, err
}

// GetStats returns per-collection statistics.
func (s *HNSWStore) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.dispatch(ctx, kindQuery, func(st *state) {
		for _, c := range st.collections {
			stats.Collections = append(stats.Collections, CollectionStats{
				Name:        c.name,
				VectorCount: c.count(),
				Dimensions:  c.dimensions,
			})
		}
		sort.Slice(stats.Collections, func(i, j int) bool {
			return stats.Collections[i].Name < stats.Collections[j].Name
		})
	})
	return stats, err
}

// Flush is a no-op for the in-memory store; it exists so callers can treat
// persistent backends uniformly.
func (s *HNSWStore) Flush(ctx context.Context) error {
	return s.dispatch(ctx, kindCore, func(*state) {})
}

// ListCollections returns the raw names of all collections.
func (s *HNSWStore) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := s.dispatch(ctx, kindBrowse, func(st *state) {
		for _, c := range st.collections {
			names = append(names, c.name)
		}
		sort.Strings(names)
	})
	return names, err
}

// ListFilePaths returns up to limit distinct file paths in the collection.
func (s *HNSWStore) ListFilePaths(ctx context.Context, name ids.CollectionID, limit int) ([]string, error) {
	var (
		out    []string
		result error
	)
	err := s.dispatch(ctx, kindBrowse, func(st *state) {
		c, ok := st.collections[name.BackendName()]
		if !ok {
			result = errors.NotFound("collection", name.Name())
			return
		}
		out = c.filePaths(limit)
	})
	if err != nil {
		return nil, err
	}
	return out, result
}

// GetChunksByFile returns the collection's chunks for one file, ordered by
// start line.
func (s *HNSWStore) GetChunksByFile(ctx context.Context, name ids.CollectionID, path string) ([]ids.SearchResult, error) {
	var (
		out    []ids.SearchResult
		result error
	)
	err := s.dispatch(ctx, kindBrowse, func(st *state) {
		c, ok := st.collections[name.BackendName()]
		if !ok {
			result = errors.NotFound("collection", name.Name())
			return
		}
		out = c.chunksByFile(path)
	})
	if err != nil {
		return nil, err
	}
	return out, result
}
